package domain

// Principal identifies the caller of a service operation. The zero value is
// the anonymous principal.
type Principal struct {
	UserID int64
	Admin  bool
}

// Anonymous is the principal used for unauthenticated requests.
var Anonymous = Principal{}

// Authenticated reports whether the principal refers to a user.
func (p Principal) Authenticated() bool { return p.UserID > 0 }

// CanModify reports whether the principal may mutate a resource owned by
// ownerID.
func (p Principal) CanModify(ownerID int64) bool {
	return p.Authenticated() && (p.Admin || p.UserID == ownerID)
}
