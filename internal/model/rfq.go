package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RFQ is the request for quotation a contract was awarded from. Its
// estimate is the baseline for savings.
type RFQ struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	RFQNumber          string          `json:"rfq_number" gorm:"size:64;uniqueIndex;not null"`
	Title              string          `json:"title" gorm:"size:255"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price" gorm:"type:numeric(18,2);not null"`
	Currency           string          `json:"currency" gorm:"size:3"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (RFQ) TableName() string { return "rfqs" }

type VariationOrder struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ContractID     uuid.UUID       `json:"contract_id" gorm:"type:uuid;index;not null"`
	VONumber       string          `json:"vo_number" gorm:"size:64;not null"`
	Description    string          `json:"description" gorm:"type:text"`
	CostImpact     decimal.Decimal `json:"cost_impact" gorm:"type:numeric(18,2)"`
	TimeImpactDays int             `json:"time_impact_days"`
	CreatedBy      uuid.UUID       `json:"created_by" gorm:"type:uuid"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (VariationOrder) TableName() string { return "variation_orders" }
