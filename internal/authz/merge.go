package authz

import (
	"sort"

	"github.com/warden-auth/warden/internal/account"
)

// Merge computes an effective permission set from a role's base permissions
// and an account's overrides. Grants are applied first, then every
// revocation is applied unconditionally, so a negation wins over a grant of
// the same permission regardless of list order. The wildcard "*" is carried
// through as a literal token; interpreting it is the access-control layer's
// concern.
func Merge(base []string, overrides []account.Override) []string {
	effective := make(map[string]struct{}, len(base)+len(overrides))
	for _, perm := range base {
		if perm != "" {
			effective[perm] = struct{}{}
		}
	}
	for _, o := range overrides {
		if !o.Revoke && o.Name != "" {
			effective[o.Name] = struct{}{}
		}
	}
	for _, o := range overrides {
		if o.Revoke {
			delete(effective, o.Name)
		}
	}
	merged := make([]string, 0, len(effective))
	for perm := range effective {
		merged = append(merged, perm)
	}
	sort.Strings(merged)
	return merged
}
