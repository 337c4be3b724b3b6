package domain

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID string
	Email  string
	Roles  []RoleKey
}

// HasRole reports whether the principal holds key.
func (p Principal) HasRole(key RoleKey) bool {
	for _, r := range p.Roles {
		if r == key {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds at least one of keys.
func (p Principal) HasAnyRole(keys ...RoleKey) bool {
	for _, k := range keys {
		if p.HasRole(k) {
			return true
		}
	}
	return false
}
