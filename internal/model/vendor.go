package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Vendor struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	CompanyName        string          `json:"company_name" gorm:"size:255;not null"`
	ContactName        string          `json:"contact_name" gorm:"size:255"`
	Email              string          `json:"email" gorm:"size:255"`
	Phone              string          `json:"phone" gorm:"size:64"`
	Address            string          `json:"address" gorm:"size:512"`
	QualificationScore decimal.Decimal `json:"qualification_score" gorm:"type:numeric(5,2)"`
	VendorClass        string          `json:"vendor_class" gorm:"size:16"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (Vendor) TableName() string { return "vendors" }
