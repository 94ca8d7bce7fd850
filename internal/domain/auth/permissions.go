package auth

// Role names carried in organization role grants.
const (
	RoleNameSystemAdmin = "systemadmin"
	RoleNameAdmin       = "admin"
)

// Role is the coarse authorization tier used by HTTP middleware.
type Role string

const (
	RoleSystemAdmin Role = "systemadmin"
	RoleAdmin       Role = "admin"
	RoleMember      Role = "member"
	RoleGuest       Role = "guest"
)

// The permission queries below are safe on a nil *Profile and return the
// least-privileged answer in that case.

// IsSystemAdmin reports whether any grant is systemadmin, regardless of organization.
func (p *Profile) IsSystemAdmin() bool {
	if p == nil {
		return false
	}
	for _, r := range p.OrganizationRoles {
		if r.Role == RoleNameSystemAdmin {
			return true
		}
	}
	return false
}

// IsAdminInOrg reports whether the user holds admin in orgID.
func (p *Profile) IsAdminInOrg(orgID string) bool {
	if p == nil || orgID == "" {
		return false
	}
	for _, r := range p.OrganizationRoles {
		if r.OrganizationID == orgID && r.Role == RoleNameAdmin {
			return true
		}
	}
	return false
}

// IsAdminInCurrentOrg reports whether the user is admin in the most recently used organization.
func (p *Profile) IsAdminInCurrentOrg() bool {
	if p == nil {
		return false
	}
	return p.IsAdminInOrg(p.RecentOrganizationID)
}

func (p *Profile) CanManageOrganizations() bool {
	return p.IsSystemAdmin()
}

func (p *Profile) CanManageUsers() bool {
	return p.IsSystemAdmin() || p.IsAdminInCurrentOrg()
}

// CurrentOrganizationRole returns "systemadmin" for system admins, else the role
// granted in the recent organization. ok is false when neither applies.
func (p *Profile) CurrentOrganizationRole() (role string, ok bool) {
	if p == nil {
		return "", false
	}
	if p.IsSystemAdmin() {
		return RoleNameSystemAdmin, true
	}
	if p.RecentOrganizationID == "" {
		return "", false
	}
	for _, r := range p.OrganizationRoles {
		if r.OrganizationID == p.RecentOrganizationID {
			return r.Role, true
		}
	}
	return "", false
}

// Permissions is a snapshot of the derived permission queries.
type Permissions struct {
	SystemAdmin            bool   `json:"system_admin"`
	AdminInCurrentOrg      bool   `json:"admin_in_current_org"`
	CanManageOrganizations bool   `json:"can_manage_organizations"`
	CanManageUsers         bool   `json:"can_manage_users"`
	CurrentOrganizationID  string `json:"current_organization_id,omitempty"`
	CurrentRole            string `json:"current_role,omitempty"`
}

// Permissions evaluates every query once.
func (p *Profile) Permissions() Permissions {
	role, _ := p.CurrentOrganizationRole()
	var org string
	if p != nil {
		org = p.RecentOrganizationID
	}
	return Permissions{
		SystemAdmin:            p.IsSystemAdmin(),
		AdminInCurrentOrg:      p.IsAdminInCurrentOrg(),
		CanManageOrganizations: p.CanManageOrganizations(),
		CanManageUsers:         p.CanManageUsers(),
		CurrentOrganizationID:  org,
		CurrentRole:            role,
	}
}

// Clone returns a deep copy so callers cannot mutate session-owned state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.OrganizationRoles = append([]OrganizationRole(nil), p.OrganizationRoles...)
	return &cp
}
