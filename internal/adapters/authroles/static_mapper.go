package authroles

import (
	domainauth "github.com/target/console-auth/internal/domain/auth"
)

// TierMapper collapses a profile's organization grants into the single tier
// HTTP middleware checks: systemadmin > admin (in the current org) > member > guest.
type TierMapper struct {
	// MemberRoles lists role names that count as membership in the current org.
	// Empty means any grant in the current org counts.
	MemberRoles []string
}

func (m TierMapper) Map(p *domainauth.Profile) domainauth.Role {
	switch {
	case p.IsSystemAdmin():
		return domainauth.RoleSystemAdmin
	case p.IsAdminInCurrentOrg():
		return domainauth.RoleAdmin
	}
	role, ok := p.CurrentOrganizationRole()
	if !ok {
		return domainauth.RoleGuest
	}
	if len(m.MemberRoles) == 0 {
		return domainauth.RoleMember
	}
	for _, r := range m.MemberRoles {
		if r == role {
			return domainauth.RoleMember
		}
	}
	return domainauth.RoleGuest
}
