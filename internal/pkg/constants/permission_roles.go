package constants

import "github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:            {domain.RoleViewer, domain.RoleBuyer, domain.RoleGrower, domain.RoleLender, domain.RoleAdmin},
	PublishDemand:       {domain.RoleBuyer, domain.RoleAdmin},
	WithdrawDemand:      {domain.RoleBuyer, domain.RoleAdmin},
	CreateSupplyListing: {domain.RoleGrower, domain.RoleAdmin},
	GenerateMatches:     {domain.RoleBuyer, domain.RoleAdmin},
	RespondToMatch:      {domain.RoleBuyer, domain.RoleGrower, domain.RoleAdmin},
	AcceptMatch:         {domain.RoleBuyer, domain.RoleGrower, domain.RoleAdmin},
	SignContract:        {domain.RoleBuyer, domain.RoleGrower, domain.RoleAdmin},
	UpdateDelivery:      {domain.RoleBuyer, domain.RoleGrower, domain.RoleAdmin},
	ExpireMatches:       {domain.RoleAdmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
