package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/procurement-ipc/internal/analytics"
	"github.com/nurpe/procurement-ipc/internal/config"
	"github.com/nurpe/procurement-ipc/internal/ledger"
	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/notify"
	"github.com/nurpe/procurement-ipc/internal/repository"
	"github.com/nurpe/procurement-ipc/internal/workflow"
)

type IPCService struct {
	ipcs             *repository.IPCRepository
	reader           ledgerReader
	cache            SummaryCache
	notifier         Notifier
	pdf              PDFGenerator
	aggregator       *analytics.Aggregator
	rejectOverClaims bool
	log              zerolog.Logger
	now              func() time.Time
}

func NewIPCService(
	contracts *repository.ContractRepository,
	ipcs *repository.IPCRepository,
	vendors *repository.VendorRepository,
	cache SummaryCache,
	notifier Notifier,
	pdf PDFGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) *IPCService {
	return &IPCService{
		ipcs:             ipcs,
		reader:           ledgerReader{contracts: contracts, ipcs: ipcs, vendors: vendors},
		cache:            cache,
		notifier:         notifier,
		pdf:              pdf,
		aggregator:       analytics.NewAggregator(cfg.Ledger.ReviewReminder()),
		rejectOverClaims: cfg.Ledger.RejectOverClaims(),
		log:              log,
		now:              time.Now,
	}
}

// WithClock replaces the time source used for timestamps and reminders.
func (s *IPCService) WithClock(now func() time.Time) *IPCService {
	s.now = now
	s.aggregator.WithClock(now)
	return s
}

type SubmitIPCInput struct {
	ContractID uuid.UUID
	Draft      model.IPCDraft
	Principal  model.Principal
}

// SubmitIPC raises a new certificate against an active contract. The
// cumulative value is fixed here from the contract's existing ledger.
func (s *IPCService) SubmitIPC(ctx context.Context, input SubmitIPCInput) (*model.IPC, error) {
	principal := input.Principal
	if !principal.IsVendor() && !principal.IsProcurement() {
		return nil, ErrPermissionDenied
	}
	draft := input.Draft
	if err := ledger.ValidateAmounts(draft.CurrentValue, draft.Deductions); err != nil {
		return nil, err
	}
	periodFrom := dateOnly(draft.PeriodFrom)
	periodTo := dateOnly(draft.PeriodTo)
	if !periodFrom.IsZero() && !periodTo.IsZero() && periodFrom.After(periodTo) {
		return nil, fmt.Errorf("%w: period_from must be before or equal to period_to", ErrInvalidInput)
	}

	overClaimed := false
	ipc, err := s.ipcs.CreateIPC(ctx, input.ContractID, func(contract model.Contract, existing []model.IPC) (*model.IPC, error) {
		if !canView(principal, contract.VendorID) {
			return nil, ErrPermissionDenied
		}
		if !contract.IsActive() {
			return nil, fmt.Errorf("%w: contract %s is %s", ErrContractNotActive, contract.ContractNumber, contract.Status)
		}
		if err := checkPeriodOverlap(existing, periodFrom, periodTo); err != nil {
			return nil, err
		}

		sequence := len(existing) + 1
		number := strings.TrimSpace(draft.IPCNumber)
		if number == "" {
			number = fmt.Sprintf("IPC-%03d", sequence)
		}
		for _, sibling := range existing {
			if sibling.IPCNumber == number {
				return nil, fmt.Errorf("%w: ipc number %s already used on this contract", ErrInvalidInput, number)
			}
		}

		cumulative := ledger.NextCumulative(existing, draft.CurrentValue)
		if cumulative.GreaterThan(contract.ContractValue) {
			if s.rejectOverClaims {
				return nil, fmt.Errorf("%w: cumulative value %s would exceed contract value %s",
					ledger.ErrInvalidAmount, cumulative, contract.ContractValue)
			}
			overClaimed = true
		}

		now := s.now().UTC()
		ipc := &model.IPC{
			ID:              uuid.New(),
			ContractID:      contract.ID,
			IPCNumber:       number,
			Sequence:        sequence,
			PeriodFrom:      periodFrom,
			PeriodTo:        periodTo,
			CurrentValue:    draft.CurrentValue,
			Deductions:      draft.Deductions,
			CumulativeValue: cumulative,
			Description:     strings.TrimSpace(draft.Description),
			WorkDescription: strings.TrimSpace(draft.WorkDescription),
			SubmittedBy:     principal.UserID,
			SubmittedByName: principal.Name,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		workflow.Open(ipc, principal, now)
		return ipc, nil
	})
	if err != nil {
		return nil, translateStorageError(err)
	}

	s.cache.Invalidate(ctx, ipc.ContractID)
	fillNetPayable(ipc)

	s.log.Info().
		Str("ipc_id", ipc.ID.String()).
		Str("ipc_number", ipc.IPCNumber).
		Str("contract_id", ipc.ContractID.String()).
		Str("current_value", ipc.CurrentValue.String()).
		Str("cumulative_value", ipc.CumulativeValue.String()).
		Msg("ipc submitted")
	s.notifier.Notify(notify.Event{
		Kind:       notify.EventIPCSubmitted,
		ContractID: ipc.ContractID,
		IPCID:      ipc.ID,
		IPCNumber:  ipc.IPCNumber,
		Status:     ipc.Status,
		ActorID:    principal.UserID,
		Message:    fmt.Sprintf("%s submitted for %s", ipc.IPCNumber, ipc.CurrentValue.StringFixed(2)),
	})
	if overClaimed {
		s.log.Warn().
			Str("ipc_id", ipc.ID.String()).
			Str("contract_id", ipc.ContractID.String()).
			Str("cumulative_value", ipc.CumulativeValue.String()).
			Msg("ipc pushes claims over contract value")
		s.notifier.Notify(notify.Event{
			Kind:       notify.EventOverClaim,
			ContractID: ipc.ContractID,
			IPCID:      ipc.ID,
			IPCNumber:  ipc.IPCNumber,
			Status:     ipc.Status,
			Message:    analytics.WarningOverClaim,
		})
	}
	return ipc, nil
}

func checkPeriodOverlap(existing []model.IPC, from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return nil
	}
	for _, sibling := range existing {
		if sibling.Status == model.IPCStatusRejected || sibling.PeriodFrom.IsZero() || sibling.PeriodTo.IsZero() {
			continue
		}
		if !from.After(dateOnly(sibling.PeriodTo)) && !to.Before(dateOnly(sibling.PeriodFrom)) {
			return fmt.Errorf("%w: period overlaps %s", ErrInvalidInput, sibling.IPCNumber)
		}
	}
	return nil
}

type TransitionIPCInput struct {
	IPCID           uuid.UUID
	Target          model.IPCStatus
	Principal       model.Principal
	Notes           string
	ExpectedVersion *int
}

// TransitionIPC applies one step of the review workflow. The write only
// lands if nobody else changed the IPC since it was read.
func (s *IPCService) TransitionIPC(ctx context.Context, input TransitionIPCInput) (*model.IPC, error) {
	if !input.Target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Target)
	}

	ipc, err := s.ipcs.GetIPC(ctx, input.IPCID)
	if err != nil {
		return nil, translateStorageError(err)
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != ipc.Version {
		return nil, fmt.Errorf("%w: expected version %d, current %d", ErrConcurrentModification, *input.ExpectedVersion, ipc.Version)
	}

	from := ipc.Status
	loadedVersion := ipc.Version
	entry, err := workflow.Apply(ipc, input.Target, input.Principal, input.Notes, s.now())
	if err != nil {
		if errors.Is(err, workflow.ErrRoleNotPermitted) {
			return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return nil, err
	}

	if err := s.ipcs.SaveTransition(ctx, ipc, loadedVersion, entry); err != nil {
		return nil, translateStorageError(err)
	}
	s.cache.Invalidate(ctx, ipc.ContractID)
	fillNetPayable(ipc)

	s.log.Info().
		Str("ipc_id", ipc.ID.String()).
		Str("from", string(from)).
		Str("to", string(ipc.Status)).
		Str("actor_id", input.Principal.UserID.String()).
		Str("actor_role", string(input.Principal.Role)).
		Int("version", ipc.Version).
		Msg("ipc transitioned")
	s.notifier.Notify(notify.Event{
		Kind:       notify.EventIPCTransitioned,
		ContractID: ipc.ContractID,
		IPCID:      ipc.ID,
		IPCNumber:  ipc.IPCNumber,
		Status:     ipc.Status,
		ActorID:    input.Principal.UserID,
		Message:    fmt.Sprintf("%s moved from %s to %s", ipc.IPCNumber, from, ipc.Status),
	})
	return ipc, nil
}

func (s *IPCService) GetIPC(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.IPC, error) {
	ipc, err := s.ipcs.GetIPC(ctx, id)
	if err != nil {
		return nil, translateStorageError(err)
	}
	if principal.IsVendor() {
		l, err := s.reader.loadOne(ctx, ipc.ContractID)
		if err != nil {
			return nil, err
		}
		if !canView(principal, l.Contract.VendorID) {
			return nil, ErrPermissionDenied
		}
	}
	fillNetPayable(ipc)
	return ipc, nil
}

// ListContractIPCs returns the contract's certificates in creation order.
func (s *IPCService) ListContractIPCs(ctx context.Context, contractID uuid.UUID, principal model.Principal) ([]model.IPC, error) {
	l, err := s.reader.loadOne(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !canView(principal, l.Contract.VendorID) {
		return nil, ErrPermissionDenied
	}
	ipcs := ledger.InCreationOrder(l.IPCs)
	for i := range ipcs {
		fillNetPayable(&ipcs[i])
	}
	return ipcs, nil
}

// RemindOverdueReviews notifies about every IPC waiting on a reviewer past
// the reminder threshold and returns how many there were.
func (s *IPCService) RemindOverdueReviews(ctx context.Context, principal model.Principal) (int, error) {
	if principal.IsVendor() {
		return 0, ErrPermissionDenied
	}
	waiting, err := s.ipcs.ListByStatus(ctx, []model.IPCStatus{
		model.IPCStatusSubmitted,
		model.IPCStatusProcurementReview,
		model.IPCStatusFinanceReview,
	})
	if err != nil {
		return 0, err
	}

	reminded := 0
	for _, ipc := range waiting {
		if !s.aggregator.IsOverdueForReview(ipc) {
			continue
		}
		reminded++
		s.notifier.Notify(notify.Event{
			Kind:       notify.EventReviewReminder,
			ContractID: ipc.ContractID,
			IPCID:      ipc.ID,
			IPCNumber:  ipc.IPCNumber,
			Status:     ipc.Status,
			Message:    fmt.Sprintf("%s has been waiting in %s", ipc.IPCNumber, ipc.Status),
		})
	}
	s.log.Info().Int("overdue", reminded).Msg("review reminders dispatched")
	return reminded, nil
}

// GenerateCertificate renders the printable certificate of one IPC.
func (s *IPCService) GenerateCertificate(ctx context.Context, id uuid.UUID, principal model.Principal) (*FileResult, error) {
	ipc, err := s.GetIPC(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	contract, err := s.reader.contracts.GetContract(ctx, ipc.ContractID)
	if err != nil {
		return nil, translateStorageError(err)
	}
	vendor, err := s.reader.vendors.GetVendor(ctx, contract.VendorID)
	if err != nil {
		return nil, translateStorageError(err)
	}

	remaining := contract.ContractValue.Sub(ipc.CumulativeValue)
	doc := model.IPCDocument{
		IPC:                *ipc,
		Contract:           *contract,
		Vendor:             *vendor,
		PreviousCumulative: ipc.CumulativeValue.Sub(ipc.CurrentValue),
		RemainingAfter:     remaining,
		OverClaimed:        remaining.IsNegative(),
	}
	content, err := s.pdf.Generate(doc)
	if err != nil {
		return nil, err
	}

	name := sanitizeFileName(contract.ContractNumber + "-" + ipc.IPCNumber)
	if name == "" {
		name = ipc.ID.String()
	}
	return &FileResult{FileName: fmt.Sprintf("ipc-%s.pdf", name), Content: content}, nil
}

func fillNetPayable(ipc *model.IPC) {
	if net, err := ledger.NetPayable(*ipc); err == nil {
		ipc.NetPayable = net
	}
}
