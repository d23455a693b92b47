package account

import "strings"

// Override is a per-account permission override. The stored representation
// is a string list where "-x" revokes x and both "+x" and "x" grant it.
// Parsing happens once at the store boundary so the rest of the system
// never inspects string prefixes.
type Override struct {
	Name   string
	Revoke bool
}

// ParseOverride parses a single stored override entry. The second return
// value is false for blank entries, which are skipped.
func ParseOverride(raw string) (Override, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "+" || raw == "-":
		return Override{}, false
	case strings.HasPrefix(raw, "-"):
		return Override{Name: raw[1:], Revoke: true}, true
	case strings.HasPrefix(raw, "+"):
		return Override{Name: raw[1:]}, true
	default:
		return Override{Name: raw}, true
	}
}

// ParseOverrides parses a stored override list, dropping blank entries.
func ParseOverrides(raw []string) []Override {
	if len(raw) == 0 {
		return nil
	}
	overrides := make([]Override, 0, len(raw))
	for _, entry := range raw {
		if o, ok := ParseOverride(entry); ok {
			overrides = append(overrides, o)
		}
	}
	return overrides
}

// String re-encodes the override for storage.
func (o Override) String() string {
	if o.Revoke {
		return "-" + o.Name
	}
	return o.Name
}

// EncodeOverrides renders overrides back to their stored representation.
func EncodeOverrides(overrides []Override) []string {
	if len(overrides) == 0 {
		return nil
	}
	raw := make([]string, len(overrides))
	for i, o := range overrides {
		raw[i] = o.String()
	}
	return raw
}
