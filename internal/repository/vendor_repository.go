package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/procurement-ipc/internal/model"
)

// VendorRepository stores the read models the ledger consumes: vendors,
// RFQs and variation orders.
type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) CreateVendor(ctx context.Context, vendor *model.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *VendorRepository) GetVendor(ctx context.Context, id uuid.UUID) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *VendorRepository) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	var vendors []model.Vendor
	if err := r.db.WithContext(ctx).Order("company_name ASC").Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}

func (r *VendorRepository) CreateRFQ(ctx context.Context, rfq *model.RFQ) error {
	return r.db.WithContext(ctx).Create(rfq).Error
}

func (r *VendorRepository) GetRFQ(ctx context.Context, id uuid.UUID) (*model.RFQ, error) {
	var rfq model.RFQ
	if err := r.db.WithContext(ctx).First(&rfq, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rfq, nil
}

// GetRFQs returns the RFQs with the given ids keyed by id.
func (r *VendorRepository) GetRFQs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.RFQ, error) {
	result := make(map[uuid.UUID]model.RFQ, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rfqs []model.RFQ
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rfqs).Error; err != nil {
		return nil, err
	}
	for _, rfq := range rfqs {
		result[rfq.ID] = rfq
	}
	return result, nil
}

func (r *VendorRepository) CreateVariationOrder(ctx context.Context, vo *model.VariationOrder) error {
	return r.db.WithContext(ctx).Create(vo).Error
}

func (r *VendorRepository) ListVariationOrders(ctx context.Context, contractID uuid.UUID) ([]model.VariationOrder, error) {
	var orders []model.VariationOrder
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
