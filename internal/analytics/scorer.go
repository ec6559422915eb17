package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/nurpe/procurement-ipc/internal/ledger"
	"github.com/nurpe/procurement-ipc/internal/model"
)

// LedgerLoader fetches every contract ledger of a vendor.
type LedgerLoader func(ctx context.Context, vendorID uuid.UUID) ([]ContractLedger, error)

type Scorer struct {
	onTimeWindow time.Duration
	parallelism  int
}

func NewScorer(onTimeWindow time.Duration, parallelism int) *Scorer {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Scorer{onTimeWindow: onTimeWindow, parallelism: parallelism}
}

// IsOnTime is true for a PAID certificate settled within the window after
// submission.
func (s *Scorer) IsOnTime(ipc model.IPC) bool {
	if ipc.Status != model.IPCStatusPaid || ipc.PaidAt == nil {
		return false
	}
	return ipc.PaidAt.Sub(ipc.CreatedAt) <= s.onTimeWindow
}

// Score computes the performance of one vendor. A vendor with no IPCs gets
// no score and is flagged as having insufficient data.
func (s *Scorer) Score(vendor model.Vendor, ledgers []ContractLedger) model.VendorPerformance {
	perf := model.VendorPerformance{
		VendorID:    vendor.ID,
		CompanyName: vendor.CompanyName,
		TotalValue:  decimal.Zero,
		PaidAmount:  decimal.Zero,
	}

	for _, l := range ledgers {
		perf.TotalContracts++
		perf.TotalValue = perf.TotalValue.Add(l.Contract.ContractValue)
		perf.PaidAmount = perf.PaidAmount.Add(ledger.CommittedValue(l.IPCs))
		perf.IPCCount += len(l.IPCs)
		for _, ipc := range l.IPCs {
			if s.IsOnTime(ipc) {
				perf.OnTimePayments++
			}
		}
	}

	if perf.IPCCount == 0 {
		perf.InsufficientData = true
		return perf
	}
	score, err := ledger.Percent(decimal.NewFromInt(int64(perf.OnTimePayments)), decimal.NewFromInt(int64(perf.IPCCount)))
	if err == nil {
		perf.PerformanceScore = &score
	}
	return perf
}

// Rank scores vendors concurrently and orders them by total contract value,
// highest first.
func (s *Scorer) Rank(ctx context.Context, vendors []model.Vendor, load LedgerLoader) ([]model.VendorPerformance, error) {
	results := make([]model.VendorPerformance, len(vendors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, vendor := range vendors {
		g.Go(func() error {
			ledgers, err := load(gctx, vendor.ID)
			if err != nil {
				return err
			}
			results[i] = s.Score(vendor, ledgers)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortByTotalValue(results)
	return results, nil
}

func SortByTotalValue(perfs []model.VendorPerformance) {
	sort.SliceStable(perfs, func(i, j int) bool {
		if cmp := perfs[i].TotalValue.Cmp(perfs[j].TotalValue); cmp != 0 {
			return cmp > 0
		}
		return perfs[i].CompanyName < perfs[j].CompanyName
	})
}
