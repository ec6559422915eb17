package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractSummary is the financial position of a single contract. Ratio
// fields are nil when their denominator is zero and must be shown as N/A.
type ContractSummary struct {
	ContractID      uuid.UUID        `json:"contract_id"`
	ContractNumber  string           `json:"contract_number"`
	VendorID        uuid.UUID        `json:"vendor_id"`
	Currency        string           `json:"currency"`
	Status          ContractStatus   `json:"status"`
	EndDate         time.Time        `json:"end_date"`
	ContractValue   decimal.Decimal  `json:"contract_value"`
	TotalPaid       decimal.Decimal  `json:"total_paid"`
	PendingValue    decimal.Decimal  `json:"pending_value"`
	CumulativeValue decimal.Decimal  `json:"cumulative_value"`
	RemainingValue  decimal.Decimal  `json:"remaining_value"`
	UtilizationRate *decimal.Decimal `json:"utilization_rate"`
	ProgressPercent *decimal.Decimal `json:"progress_percent"`
	Savings         *decimal.Decimal `json:"savings"`
	SavingsPercent  *decimal.Decimal `json:"savings_percent"`
	IPCCount        int              `json:"ipc_count"`
	PendingIPCCount int              `json:"pending_ipc_count"`
	Delayed         bool             `json:"delayed"`
	Warnings        []string         `json:"warnings"`
}

type VendorPerformance struct {
	VendorID         uuid.UUID        `json:"vendor_id"`
	CompanyName      string           `json:"company_name"`
	TotalContracts   int              `json:"total_contracts"`
	TotalValue       decimal.Decimal  `json:"total_value"`
	PaidAmount       decimal.Decimal  `json:"paid_amount"`
	IPCCount         int              `json:"ipc_count"`
	OnTimePayments   int              `json:"on_time_payments"`
	PerformanceScore *decimal.Decimal `json:"performance_score"`
	InsufficientData bool             `json:"insufficient_data"`
}

type ProjectSpend struct {
	Project       string           `json:"project"`
	Budget        decimal.Decimal  `json:"budget"`
	Spent         decimal.Decimal  `json:"spent"`
	Utilization   *decimal.Decimal `json:"utilization"`
	ContractCount int              `json:"contract_count"`
}

// ProjectFilter scopes aggregation. Zero values mean "no restriction".
type ProjectFilter struct {
	VendorID *uuid.UUID
	Project  string
	From     *time.Time
	To       *time.Time
}

type Dashboard struct {
	TotalContractValue decimal.Decimal  `json:"total_contract_value"`
	TotalPaid          decimal.Decimal  `json:"total_paid"`
	PendingValue       decimal.Decimal  `json:"pending_value"`
	UtilizationRate    *decimal.Decimal `json:"utilization_rate"`
	TotalSavings       decimal.Decimal  `json:"total_savings"`
	ActiveProjectCount int              `json:"active_project_count"`
	PendingIPCCount    int              `json:"pending_ipc_count"`
	DelayedContracts   int              `json:"delayed_contracts"`
	OverdueReviews     int              `json:"overdue_reviews"`
}

// IPCDocument carries everything the certificate printout needs.
type IPCDocument struct {
	IPC                IPC
	Contract           Contract
	Vendor             Vendor
	PreviousCumulative decimal.Decimal
	RemainingAfter     decimal.Decimal
	OverClaimed        bool
}

type SpendReport struct {
	GeneratedAt time.Time
	Filter      ProjectFilter
	Projects    []ProjectSpend
	Vendors     []VendorPerformance
}
