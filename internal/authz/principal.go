package authz

// Principal is the resolved, ephemeral authorization view handed to
// access-control checks. It is derived from Account and Role at resolution
// time and never persisted.
type Principal struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Rank        int               `json:"rank"`
	Permissions []string          `json:"permissions"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Has reports whether the principal holds the permission, treating the
// literal "*" as all-granting. This is the access-control interpretation
// sitting above the merge engine, which only carries "*" through.
func (p *Principal) Has(permission string) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Permissions {
		if granted == permission || granted == "*" {
			return true
		}
	}
	return false
}

// Session is the minimal view of a connection session that resolvers and
// strategies need: a stable key for the session itself and the linked
// account identifier bound to it.
type Session interface {
	SessionID() string
	LinkedID() string
}
