package domain

// Role is the access level a principal holds on a document, either through
// ownership or through a share grant.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleEditor || r == RoleOwner
}

// CanEdit reports whether a session holding this role may submit edit
// operations. Viewers receive broadcasts only.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleOwner
}
