package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "DRAFT"
	ContractStatusActive     ContractStatus = "ACTIVE"
	ContractStatusExpired    ContractStatus = "EXPIRED"
	ContractStatusClosed     ContractStatus = "CLOSED"
	ContractStatusTerminated ContractStatus = "TERMINATED"
)

func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusActive, ContractStatusExpired, ContractStatusClosed, ContractStatusTerminated:
		return true
	}
	return false
}

func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusExpired || s == ContractStatusClosed || s == ContractStatusTerminated
}

// CanTransitionTo reports whether the contract lifecycle allows moving to target.
// DRAFT may only be issued; ACTIVE may only end in one of the terminal states.
func (s ContractStatus) CanTransitionTo(target ContractStatus) bool {
	switch s {
	case ContractStatusDraft:
		return target == ContractStatusActive
	case ContractStatusActive:
		return target.IsTerminal()
	default:
		return false
	}
}

type Contract struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ContractNumber string          `json:"contract_number" gorm:"size:64;uniqueIndex;not null"`
	VendorID       uuid.UUID       `json:"vendor_id" gorm:"type:uuid;index;not null"`
	RFQID          *uuid.UUID      `json:"rfq_id,omitempty" gorm:"type:uuid"`
	Project        string          `json:"project" gorm:"size:255;index"`
	Title          string          `json:"title" gorm:"size:255"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	ContractValue  decimal.Decimal `json:"contract_value" gorm:"type:numeric(18,2);not null"`
	Status         ContractStatus  `json:"status" gorm:"size:20;index;not null"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	PaymentTerms   string          `json:"payment_terms" gorm:"size:255"`
	WarrantyMonths int             `json:"warranty_months"`
	CreatedBy      uuid.UUID       `json:"created_by" gorm:"type:uuid"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }

func (c Contract) IsActive() bool {
	return c.Status == ContractStatusActive
}
