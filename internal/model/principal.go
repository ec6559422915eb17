package model

import "github.com/google/uuid"

type Role string

const (
	RoleVendor              Role = "VENDOR"
	RoleProcurementReviewer Role = "PROCUREMENT_REVIEWER"
	RoleTechnicalReviewer   Role = "TECHNICAL_REVIEWER"
	RoleFinanceReviewer     Role = "FINANCE_REVIEWER"
	RoleTreasury            Role = "TREASURY"
	RoleAdmin               Role = "ADMIN"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleVendor, RoleProcurementReviewer, RoleTechnicalReviewer, RoleFinanceReviewer, RoleTreasury, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated actor behind a request.
type Principal struct {
	UserID   uuid.UUID
	Name     string
	Role     Role
	VendorID *uuid.UUID
}

func (p Principal) IsVendor() bool {
	return p.Role == RoleVendor
}

func (p Principal) IsProcurement() bool {
	return p.Role == RoleProcurementReviewer
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsReviewer() bool {
	switch p.Role {
	case RoleProcurementReviewer, RoleTechnicalReviewer, RoleFinanceReviewer:
		return true
	}
	return false
}

// CanManageContracts covers contract, vendor and RFQ registration.
func (p Principal) CanManageContracts() bool {
	return p.IsProcurement() || p.IsAdmin()
}
