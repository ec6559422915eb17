package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/repository"
)

// ContractService owns the contract lifecycle and the vendor, RFQ and
// variation order registers the ledger reads from.
type ContractService struct {
	contracts *repository.ContractRepository
	vendors   *repository.VendorRepository
	cache     SummaryCache
	log       zerolog.Logger
	now       func() time.Time
}

func NewContractService(
	contracts *repository.ContractRepository,
	vendors *repository.VendorRepository,
	cache SummaryCache,
	log zerolog.Logger,
) *ContractService {
	return &ContractService{
		contracts: contracts,
		vendors:   vendors,
		cache:     cache,
		log:       log,
		now:       time.Now,
	}
}

type CreateContractInput struct {
	ContractNumber string
	VendorID       uuid.UUID
	RFQID          *uuid.UUID
	Project        string
	Title          string
	Currency       string
	ContractValue  decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	PaymentTerms   string
	WarrantyMonths int
	Principal      model.Principal
}

func (s *ContractService) CreateContract(ctx context.Context, input CreateContractInput) (*model.Contract, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	number := strings.TrimSpace(input.ContractNumber)
	if number == "" {
		return nil, fmt.Errorf("%w: contract_number is required", ErrInvalidInput)
	}
	if input.ContractValue.IsNegative() {
		return nil, fmt.Errorf("%w: contract_value must not be negative", ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}
	startDate := dateOnly(input.StartDate)
	endDate := dateOnly(input.EndDate)
	if !startDate.IsZero() && !endDate.IsZero() && startDate.After(endDate) {
		return nil, fmt.Errorf("%w: start_date must be before or equal to end_date", ErrInvalidInput)
	}
	if input.WarrantyMonths < 0 {
		return nil, fmt.Errorf("%w: warranty_months must not be negative", ErrInvalidInput)
	}

	if _, err := s.vendors.GetVendor(ctx, input.VendorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: vendor %s does not exist", ErrInvalidInput, input.VendorID)
		}
		return nil, err
	}
	if input.RFQID != nil {
		if _, err := s.vendors.GetRFQ(ctx, *input.RFQID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: rfq %s does not exist", ErrInvalidInput, *input.RFQID)
			}
			return nil, err
		}
	}

	now := s.now().UTC()
	contract := &model.Contract{
		ID:             uuid.New(),
		ContractNumber: number,
		VendorID:       input.VendorID,
		RFQID:          input.RFQID,
		Project:        strings.TrimSpace(input.Project),
		Title:          strings.TrimSpace(input.Title),
		Currency:       currency,
		ContractValue:  input.ContractValue,
		Status:         model.ContractStatusDraft,
		StartDate:      startDate,
		EndDate:        endDate,
		PaymentTerms:   strings.TrimSpace(input.PaymentTerms),
		WarrantyMonths: input.WarrantyMonths,
		CreatedBy:      input.Principal.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.contracts.CreateContract(ctx, contract); err != nil {
		return nil, translateStorageError(err)
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("contract_number", contract.ContractNumber).
		Str("contract_value", contract.ContractValue.String()).
		Msg("contract created")
	return contract, nil
}

// ChangeContractStatus issues, closes, terminates or expires a contract.
func (s *ContractService) ChangeContractStatus(
	ctx context.Context,
	id uuid.UUID,
	target model.ContractStatus,
	principal model.Principal,
) (*model.Contract, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return nil, translateStorageError(err)
	}
	if !contract.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidContractState, contract.Status, target)
	}

	now := s.now().UTC()
	if err := s.contracts.UpdateContractStatus(ctx, id, contract.Status, target, now); err != nil {
		return nil, translateStorageError(err)
	}
	s.cache.Invalidate(ctx, id)

	s.log.Info().
		Str("contract_id", id.String()).
		Str("from", string(contract.Status)).
		Str("to", string(target)).
		Msg("contract status changed")

	contract.Status = target
	contract.UpdatedAt = now
	return contract, nil
}

func (s *ContractService) GetContract(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.Contract, error) {
	contract, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return nil, translateStorageError(err)
	}
	if !canView(principal, contract.VendorID) {
		return nil, ErrPermissionDenied
	}
	return contract, nil
}

type CreateVendorInput struct {
	CompanyName        string
	ContactName        string
	Email              string
	Phone              string
	Address            string
	QualificationScore decimal.Decimal
	VendorClass        string
	Principal          model.Principal
}

func (s *ContractService) CreateVendor(ctx context.Context, input CreateVendorInput) (*model.Vendor, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.CompanyName)
	if name == "" {
		return nil, fmt.Errorf("%w: company_name is required", ErrInvalidInput)
	}
	if input.QualificationScore.IsNegative() || input.QualificationScore.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: qualification_score must be between 0 and 100", ErrInvalidInput)
	}

	vendor := &model.Vendor{
		ID:                 uuid.New(),
		CompanyName:        name,
		ContactName:        strings.TrimSpace(input.ContactName),
		Email:              strings.TrimSpace(input.Email),
		Phone:              strings.TrimSpace(input.Phone),
		Address:            strings.TrimSpace(input.Address),
		QualificationScore: input.QualificationScore,
		VendorClass:        strings.ToUpper(strings.TrimSpace(input.VendorClass)),
		CreatedAt:          s.now().UTC(),
	}
	if err := s.vendors.CreateVendor(ctx, vendor); err != nil {
		return nil, translateStorageError(err)
	}
	s.log.Info().Str("vendor_id", vendor.ID.String()).Str("company_name", vendor.CompanyName).Msg("vendor registered")
	return vendor, nil
}

func (s *ContractService) GetVendor(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.Vendor, error) {
	if !canView(principal, id) {
		return nil, ErrPermissionDenied
	}
	vendor, err := s.vendors.GetVendor(ctx, id)
	if err != nil {
		return nil, translateStorageError(err)
	}
	return vendor, nil
}

func (s *ContractService) ListVendors(ctx context.Context, principal model.Principal) ([]model.Vendor, error) {
	if principal.IsVendor() {
		return nil, ErrPermissionDenied
	}
	return s.vendors.ListVendors(ctx)
}

type CreateRFQInput struct {
	RFQNumber          string
	Title              string
	EstimatedUnitPrice decimal.Decimal
	Currency           string
	Principal          model.Principal
}

func (s *ContractService) CreateRFQ(ctx context.Context, input CreateRFQInput) (*model.RFQ, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	number := strings.TrimSpace(input.RFQNumber)
	if number == "" {
		return nil, fmt.Errorf("%w: rfq_number is required", ErrInvalidInput)
	}
	if input.EstimatedUnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: estimated_unit_price must not be negative", ErrInvalidInput)
	}

	rfq := &model.RFQ{
		ID:                 uuid.New(),
		RFQNumber:          number,
		Title:              strings.TrimSpace(input.Title),
		EstimatedUnitPrice: input.EstimatedUnitPrice,
		Currency:           strings.ToUpper(strings.TrimSpace(input.Currency)),
		CreatedAt:          s.now().UTC(),
	}
	if err := s.vendors.CreateRFQ(ctx, rfq); err != nil {
		return nil, translateStorageError(err)
	}
	return rfq, nil
}

type CreateVariationOrderInput struct {
	ContractID     uuid.UUID
	VONumber       string
	Description    string
	CostImpact     decimal.Decimal
	TimeImpactDays int
	Principal      model.Principal
}

// CreateVariationOrder records a change against a contract. The contract
// value itself is not adjusted.
func (s *ContractService) CreateVariationOrder(ctx context.Context, input CreateVariationOrderInput) (*model.VariationOrder, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	number := strings.TrimSpace(input.VONumber)
	if number == "" {
		return nil, fmt.Errorf("%w: vo_number is required", ErrInvalidInput)
	}
	contract, err := s.contracts.GetContract(ctx, input.ContractID)
	if err != nil {
		return nil, translateStorageError(err)
	}
	if contract.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: contract %s is %s", ErrContractNotActive, contract.ContractNumber, contract.Status)
	}

	vo := &model.VariationOrder{
		ID:             uuid.New(),
		ContractID:     contract.ID,
		VONumber:       number,
		Description:    strings.TrimSpace(input.Description),
		CostImpact:     input.CostImpact,
		TimeImpactDays: input.TimeImpactDays,
		CreatedBy:      input.Principal.UserID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.vendors.CreateVariationOrder(ctx, vo); err != nil {
		return nil, translateStorageError(err)
	}
	return vo, nil
}

func (s *ContractService) ListVariationOrders(ctx context.Context, contractID uuid.UUID, principal model.Principal) ([]model.VariationOrder, error) {
	contract, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, translateStorageError(err)
	}
	if !canView(principal, contract.VendorID) {
		return nil, ErrPermissionDenied
	}
	return s.vendors.ListVariationOrders(ctx, contractID)
}
