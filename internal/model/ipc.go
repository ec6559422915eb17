package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IPCStatus string

const (
	IPCStatusSubmitted         IPCStatus = "SUBMITTED"
	IPCStatusProcurementReview IPCStatus = "PROCUREMENT_REVIEW"
	IPCStatusTechnicalApproved IPCStatus = "TECHNICAL_APPROVED"
	IPCStatusFinanceReview     IPCStatus = "FINANCE_REVIEW"
	IPCStatusApproved          IPCStatus = "APPROVED"
	IPCStatusPaid              IPCStatus = "PAID"
	IPCStatusRejected          IPCStatus = "REJECTED"
)

// AllIPCStatuses lists every IPC status in workflow order.
var AllIPCStatuses = []IPCStatus{
	IPCStatusSubmitted,
	IPCStatusProcurementReview,
	IPCStatusTechnicalApproved,
	IPCStatusFinanceReview,
	IPCStatusApproved,
	IPCStatusPaid,
	IPCStatusRejected,
}

func (s IPCStatus) IsValid() bool {
	for _, status := range AllIPCStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s IPCStatus) IsTerminal() bool {
	return s == IPCStatusPaid || s == IPCStatusRejected
}

// IsCommitted is true once the certificate value is fixed in the contract ledger.
func (s IPCStatus) IsCommitted() bool {
	return s == IPCStatusApproved || s == IPCStatusPaid
}

// IsPending is true while the certificate still awaits a decision.
func (s IPCStatus) IsPending() bool {
	return !s.IsCommitted() && s != IPCStatusRejected && s.IsValid()
}

type IPC struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ContractID      uuid.UUID       `json:"contract_id" gorm:"type:uuid;not null;uniqueIndex:uq_ipc_contract_number;uniqueIndex:uq_ipc_contract_sequence"`
	IPCNumber       string          `json:"ipc_number" gorm:"size:64;not null;uniqueIndex:uq_ipc_contract_number"`
	Sequence        int             `json:"sequence" gorm:"not null;uniqueIndex:uq_ipc_contract_sequence"`
	PeriodFrom      time.Time       `json:"period_from"`
	PeriodTo        time.Time       `json:"period_to"`
	CurrentValue    decimal.Decimal `json:"current_value" gorm:"type:numeric(18,2);not null"`
	Deductions      decimal.Decimal `json:"deductions" gorm:"type:numeric(18,2);not null"`
	CumulativeValue decimal.Decimal `json:"cumulative_value" gorm:"type:numeric(18,2);not null"`
	NetPayable      decimal.Decimal `json:"net_payable" gorm:"-"`
	Status          IPCStatus       `json:"status" gorm:"size:32;index;not null"`
	Description     string          `json:"description" gorm:"size:255"`
	WorkDescription string          `json:"work_description" gorm:"type:text"`
	SubmittedBy     uuid.UUID       `json:"submitted_by" gorm:"type:uuid;not null"`
	SubmittedByName string          `json:"submitted_by_name" gorm:"size:255"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Version         int             `json:"version" gorm:"not null;default:1"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Timeline        []TimelineEntry `json:"timeline" gorm:"foreignKey:IPCID"`
}

func (IPC) TableName() string { return "ipcs" }

// TimelineEntry is one audit record of an IPC status change. Entries are
// only ever inserted. Seq numbers an IPC's entries from 1 and breaks ties
// between equal timestamps.
type TimelineEntry struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	IPCID     uuid.UUID `json:"ipc_id" gorm:"type:uuid;index;not null;uniqueIndex:uq_ipc_timeline_seq"`
	Seq       int       `json:"seq" gorm:"not null;uniqueIndex:uq_ipc_timeline_seq"`
	Status    IPCStatus `json:"status" gorm:"size:32;not null"`
	ActorID   uuid.UUID `json:"actor_id" gorm:"type:uuid;not null"`
	ActorName string    `json:"actor_name" gorm:"size:255"`
	ActorRole Role      `json:"actor_role" gorm:"size:32"`
	Notes     *string   `json:"notes,omitempty" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

func (TimelineEntry) TableName() string { return "ipc_timeline" }

// IPCDraft is what a submitter provides when raising a new certificate.
type IPCDraft struct {
	IPCNumber       string
	PeriodFrom      time.Time
	PeriodTo        time.Time
	CurrentValue    decimal.Decimal
	Deductions      decimal.Decimal
	Description     string
	WorkDescription string
}
