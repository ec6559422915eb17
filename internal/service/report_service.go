package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/procurement-ipc/internal/analytics"
	"github.com/nurpe/procurement-ipc/internal/config"
	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/repository"
)

// ReportService serves the rolled-up views: contract summaries, vendor
// performance, project spend and the dashboard. Everything is computed on
// demand from the stored ledger.
type ReportService struct {
	reader     ledgerReader
	cache      SummaryCache
	excel      ExcelGenerator
	aggregator *analytics.Aggregator
	scorer     *analytics.Scorer
	log        zerolog.Logger
	now        func() time.Time
}

func NewReportService(
	contracts *repository.ContractRepository,
	ipcs *repository.IPCRepository,
	vendors *repository.VendorRepository,
	cache SummaryCache,
	excel ExcelGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) *ReportService {
	return &ReportService{
		reader:     ledgerReader{contracts: contracts, ipcs: ipcs, vendors: vendors},
		cache:      cache,
		excel:      excel,
		aggregator: analytics.NewAggregator(cfg.Ledger.ReviewReminder()),
		scorer:     analytics.NewScorer(cfg.Ledger.OnTimeWindow(), cfg.DB.MaxOpenConns/2),
		log:        log,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for delay and overdue flags.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	s.aggregator.WithClock(now)
	return s
}

func (s *ReportService) GetContractSummary(ctx context.Context, contractID uuid.UUID, principal model.Principal) (*model.ContractSummary, error) {
	if cached, ok := s.cache.GetSummary(ctx, contractID); ok {
		if !canView(principal, cached.VendorID) {
			return nil, ErrPermissionDenied
		}
		s.aggregator.RefreshDelayed(cached)
		return cached, nil
	}

	generation := s.cache.Generation(ctx, contractID)
	l, err := s.reader.loadOne(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !canView(principal, l.Contract.VendorID) {
		return nil, ErrPermissionDenied
	}
	summary := s.aggregator.Summarize(l)
	s.cache.SetSummary(ctx, summary, generation)
	return &summary, nil
}

func (s *ReportService) GetVendorPerformance(ctx context.Context, vendorID uuid.UUID, principal model.Principal) (*model.VendorPerformance, error) {
	if !canView(principal, vendorID) {
		return nil, ErrPermissionDenied
	}
	vendor, err := s.reader.vendors.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, translateStorageError(err)
	}
	ledgers, err := s.loadVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	perf := s.scorer.Score(*vendor, ledgers)
	return &perf, nil
}

// RankVendors scores every vendor and orders them by total contract value.
func (s *ReportService) RankVendors(ctx context.Context, principal model.Principal) ([]model.VendorPerformance, error) {
	if principal.IsVendor() {
		return nil, ErrPermissionDenied
	}
	return s.rank(ctx)
}

func (s *ReportService) rank(ctx context.Context) ([]model.VendorPerformance, error) {
	vendors, err := s.reader.vendors.ListVendors(ctx)
	if err != nil {
		return nil, err
	}
	return s.scorer.Rank(ctx, vendors, s.loadVendor)
}

func (s *ReportService) loadVendor(ctx context.Context, vendorID uuid.UUID) ([]analytics.ContractLedger, error) {
	return s.reader.load(ctx, repository.ContractQuery{VendorID: &vendorID})
}

// GetProjectSpend groups contract spend by project. Vendors only ever see
// their own contracts.
func (s *ReportService) GetProjectSpend(ctx context.Context, filter model.ProjectFilter, principal model.Principal) ([]model.ProjectSpend, error) {
	ledgers, err := s.filtered(ctx, filter, principal)
	if err != nil {
		return nil, err
	}
	return s.aggregator.ProjectSpend(ledgers), nil
}

func (s *ReportService) GetDashboard(ctx context.Context, filter model.ProjectFilter, principal model.Principal) (*model.Dashboard, error) {
	ledgers, err := s.filtered(ctx, filter, principal)
	if err != nil {
		return nil, err
	}
	dash := s.aggregator.Dashboard(ledgers)
	return &dash, nil
}

func (s *ReportService) filtered(ctx context.Context, filter model.ProjectFilter, principal model.Principal) ([]analytics.ContractLedger, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from must be before or equal to to", ErrInvalidInput)
	}
	if principal.IsVendor() {
		if principal.VendorID == nil {
			return nil, ErrPermissionDenied
		}
		if filter.VendorID != nil && *filter.VendorID != *principal.VendorID {
			return nil, ErrPermissionDenied
		}
		own := *principal.VendorID
		filter.VendorID = &own
	}

	ledgers, err := s.reader.load(ctx, repository.ContractQuery{VendorID: filter.VendorID, Project: filter.Project})
	if err != nil {
		return nil, err
	}
	return analytics.Filter(ledgers, filter), nil
}

// ExportSpendReport renders project spend and the vendor ranking into a
// workbook.
func (s *ReportService) ExportSpendReport(ctx context.Context, filter model.ProjectFilter, principal model.Principal) (*FileResult, error) {
	if principal.IsVendor() {
		return nil, ErrPermissionDenied
	}
	projects, err := s.GetProjectSpend(ctx, filter, principal)
	if err != nil {
		return nil, err
	}
	vendors, err := s.rank(ctx)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	content, err := s.excel.Generate(model.SpendReport{
		GeneratedAt: generatedAt,
		Filter:      filter,
		Projects:    projects,
		Vendors:     vendors,
	})
	if err != nil {
		return nil, err
	}

	name := "spend-report-" + generatedAt.Format("2006-01-02")
	if filter.Project != "" {
		if project := sanitizeFileName(filter.Project); project != "" {
			name = project + "-" + name
		}
	}
	s.log.Info().Int("projects", len(projects)).Int("vendors", len(vendors)).Msg("spend report exported")
	return &FileResult{FileName: name + ".xlsx", Content: content}, nil
}
