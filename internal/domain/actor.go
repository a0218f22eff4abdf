package domain

// ActorRole differentiates the two parties on a ticket. Identities are resolved
// by the external authentication provider; the core only carries a stable id
// and a role tag.
type ActorRole string

const (
	RoleRequester ActorRole = "REQUESTER"
	RoleStaff     ActorRole = "STAFF"
)

// Actor is an authenticated caller as seen by the core.
type Actor struct {
	ID   string
	Role ActorRole
}

// IsStaff reports whether the actor carries the staff role.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}
