package domain

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is userID or an admin
func (a Actor) Owns(userID uint) bool {
	return a.ID == userID || a.IsAdmin()
}
