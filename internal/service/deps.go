package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/procurement-ipc/internal/analytics"
	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/notify"
	"github.com/nurpe/procurement-ipc/internal/repository"
)

// SummaryCache holds contract summaries. Generation is read before the
// ledger is loaded; SetSummary drops the write if an Invalidate happened in
// between.
type SummaryCache interface {
	GetSummary(ctx context.Context, contractID uuid.UUID) (*model.ContractSummary, bool)
	Generation(ctx context.Context, contractID uuid.UUID) int64
	SetSummary(ctx context.Context, summary model.ContractSummary, generation int64)
	Invalidate(ctx context.Context, contractID uuid.UUID)
}

type Notifier interface {
	Notify(event notify.Event)
}

type PDFGenerator interface {
	Generate(doc model.IPCDocument) ([]byte, error)
}

type ExcelGenerator interface {
	Generate(report model.SpendReport) ([]byte, error)
}

type FileResult struct {
	FileName string
	Content  []byte
}

// ledgerReader assembles contracts with their IPCs and RFQs.
type ledgerReader struct {
	contracts *repository.ContractRepository
	ipcs      *repository.IPCRepository
	vendors   *repository.VendorRepository
}

func (r ledgerReader) loadOne(ctx context.Context, contractID uuid.UUID) (analytics.ContractLedger, error) {
	contract, err := r.contracts.GetContract(ctx, contractID)
	if err != nil {
		return analytics.ContractLedger{}, translateStorageError(err)
	}
	ledgers, err := r.assemble(ctx, []model.Contract{*contract})
	if err != nil {
		return analytics.ContractLedger{}, err
	}
	return ledgers[0], nil
}

func (r ledgerReader) load(ctx context.Context, query repository.ContractQuery) ([]analytics.ContractLedger, error) {
	contracts, err := r.contracts.ListContracts(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.assemble(ctx, contracts)
}

func (r ledgerReader) assemble(ctx context.Context, contracts []model.Contract) ([]analytics.ContractLedger, error) {
	contractIDs := make([]uuid.UUID, 0, len(contracts))
	var rfqIDs []uuid.UUID
	for _, contract := range contracts {
		contractIDs = append(contractIDs, contract.ID)
		if contract.RFQID != nil {
			rfqIDs = append(rfqIDs, *contract.RFQID)
		}
	}

	ipcs, err := r.ipcs.ListByContracts(ctx, contractIDs)
	if err != nil {
		return nil, err
	}
	rfqs, err := r.vendors.GetRFQs(ctx, rfqIDs)
	if err != nil {
		return nil, err
	}

	byContract := make(map[uuid.UUID][]model.IPC, len(contracts))
	for _, ipc := range ipcs {
		byContract[ipc.ContractID] = append(byContract[ipc.ContractID], ipc)
	}

	ledgers := make([]analytics.ContractLedger, 0, len(contracts))
	for _, contract := range contracts {
		l := analytics.ContractLedger{Contract: contract, IPCs: byContract[contract.ID]}
		if contract.RFQID != nil {
			if rfq, ok := rfqs[*contract.RFQID]; ok {
				l.RFQ = &rfq
			}
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

// canView is false when a vendor principal looks at another vendor's data.
func canView(principal model.Principal, vendorID uuid.UUID) bool {
	if !principal.IsVendor() {
		return true
	}
	return principal.VendorID != nil && *principal.VendorID == vendorID
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
