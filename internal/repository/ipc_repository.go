package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/procurement-ipc/internal/model"
)

type IPCRepository struct {
	db *gorm.DB
}

func NewIPCRepository(db *gorm.DB) *IPCRepository {
	return &IPCRepository{db: db}
}

// IPCBuilder turns the locked contract and its existing certificates into
// the certificate to insert.
type IPCBuilder func(contract model.Contract, existing []model.IPC) (*model.IPC, error)

// CreateIPC locks the contract row, hands the current ledger to build and
// inserts the result with its opening timeline, all in one transaction.
func (r *IPCRepository) CreateIPC(ctx context.Context, contractID uuid.UUID, build IPCBuilder) (*model.IPC, error) {
	var created *model.IPC
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contract model.Contract
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&contract, "id = ?", contractID).Error; err != nil {
			return err
		}

		var existing []model.IPC
		if err := tx.Where("contract_id = ?", contractID).
			Order("sequence ASC").
			Find(&existing).Error; err != nil {
			return err
		}

		ipc, err := build(contract, existing)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(ipc).Error; err != nil {
			return err
		}
		if len(ipc.Timeline) > 0 {
			if err := tx.Create(&ipc.Timeline).Error; err != nil {
				return err
			}
		}
		created = ipc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *IPCRepository) GetIPC(ctx context.Context, id uuid.UUID) (*model.IPC, error) {
	var ipc model.IPC
	err := r.db.WithContext(ctx).
		Preload("Timeline", orderTimeline).
		First(&ipc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &ipc, nil
}

// ListByContract returns a contract's certificates in creation order.
func (r *IPCRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.IPC, error) {
	return r.ListByContracts(ctx, []uuid.UUID{contractID})
}

func (r *IPCRepository) ListByContracts(ctx context.Context, contractIDs []uuid.UUID) ([]model.IPC, error) {
	if len(contractIDs) == 0 {
		return []model.IPC{}, nil
	}
	var ipcs []model.IPC
	err := r.db.WithContext(ctx).
		Preload("Timeline", orderTimeline).
		Where("contract_id IN ?", contractIDs).
		Order("contract_id ASC").
		Order("sequence ASC").
		Find(&ipcs).Error
	if err != nil {
		return nil, err
	}
	return ipcs, nil
}

// ListByStatus is used to sweep certificates waiting on reviewers.
func (r *IPCRepository) ListByStatus(ctx context.Context, statuses []model.IPCStatus) ([]model.IPC, error) {
	var ipcs []model.IPC
	err := r.db.WithContext(ctx).
		Preload("Timeline", orderTimeline).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&ipcs).Error
	if err != nil {
		return nil, err
	}
	return ipcs, nil
}

// SaveTransition persists a status change made on ipc, provided the stored
// row still carries expectedVersion, and appends the timeline entry.
func (r *IPCRepository) SaveTransition(
	ctx context.Context,
	ipc *model.IPC,
	expectedVersion int,
	entry model.TimelineEntry,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.IPC{}).
			Where("id = ? AND version = ?", ipc.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":      ipc.Status,
				"approved_at": ipc.ApprovedAt,
				"paid_at":     ipc.PaidAt,
				"version":     ipc.Version,
				"updated_at":  ipc.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleVersion
		}
		return tx.Create(&entry).Error
	})
}

func orderTimeline(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp ASC").Order("seq ASC")
}

