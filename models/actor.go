package models

// Role identifies the kind of account acting on the system.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleTailor     Role = "tailor"
	RoleCustomer   Role = "customer"
)

// AdminRoles lists the roles that may use the admin dashboard.
var AdminRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleModerator}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator, RoleTailor, RoleCustomer:
		return true
	}
	return false
}

// IsAdmin reports whether r is one of the admin roles.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleModerator
}

// Actor is the authenticated caller of a core operation. The ID refers to the
// admins, tailors or customers table depending on Role.
type Actor struct {
	ID   uint `json:"id"`
	Role Role `json:"role"`
}

// IsAdmin reports whether the actor holds any admin role.
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// Is reports whether the actor is the given account.
func (a Actor) Is(role Role, id uint) bool {
	return a.Role == role && a.ID == id
}

// IsAdminAccount reports whether the actor is the admin account with id.
func (a Actor) IsAdminAccount(id uint) bool {
	return a.IsAdmin() && a.ID == id
}
