package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/procurement-ipc/internal/model"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

type ContractQuery struct {
	VendorID *uuid.UUID
	Project  string
	Status   *model.ContractStatus
}

func (r *ContractRepository) CreateContract(ctx context.Context, contract *model.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *ContractRepository) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) ListContracts(ctx context.Context, query ContractQuery) ([]model.Contract, error) {
	q := r.db.WithContext(ctx).Model(&model.Contract{})
	if query.VendorID != nil {
		q = q.Where("vendor_id = ?", *query.VendorID)
	}
	if query.Project != "" {
		q = q.Where("project = ?", query.Project)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}

	var contracts []model.Contract
	if err := q.Order("contract_number ASC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// UpdateContractStatus moves a contract from one status to another only if
// it is still in the expected one.
func (r *ContractRepository) UpdateContractStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.ContractStatus,
	at time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}
