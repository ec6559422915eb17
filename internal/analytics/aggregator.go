package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/procurement-ipc/internal/ledger"
	"github.com/nurpe/procurement-ipc/internal/model"
)

// ContractLedger is a contract together with every IPC raised against it and,
// when the contract came out of a tender, its RFQ.
type ContractLedger struct {
	Contract model.Contract
	IPCs     []model.IPC
	RFQ      *model.RFQ
}

const (
	WarningZeroContractValue = "contract value is zero: utilization and progress are not available"
	WarningOverClaim         = "claimed value exceeds contract value"
)

type Aggregator struct {
	reviewReminder time.Duration
	now            func() time.Time
}

func NewAggregator(reviewReminder time.Duration) *Aggregator {
	return &Aggregator{reviewReminder: reviewReminder, now: time.Now}
}

// WithClock replaces the time source.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func (a *Aggregator) Summarize(l ContractLedger) model.ContractSummary {
	contract := l.Contract
	cumulative := ledger.LatestCumulative(l.IPCs)
	totalPaid := ledger.CommittedValue(l.IPCs)

	summary := model.ContractSummary{
		ContractID:      contract.ID,
		ContractNumber:  contract.ContractNumber,
		VendorID:        contract.VendorID,
		Currency:        contract.Currency,
		Status:          contract.Status,
		EndDate:         contract.EndDate,
		ContractValue:   contract.ContractValue,
		TotalPaid:       totalPaid,
		PendingValue:    ledger.PendingValue(l.IPCs),
		CumulativeValue: cumulative,
		RemainingValue:  ledger.RemainingContractValue(contract, l.IPCs),
		UtilizationRate: ledger.OptionalPercent(totalPaid, contract.ContractValue),
		ProgressPercent: ledger.OptionalPercent(cumulative, contract.ContractValue),
		IPCCount:        len(l.IPCs),
		PendingIPCCount: ledger.PendingCount(l.IPCs),
		Delayed:         a.IsDelayed(l),
		Warnings:        []string{},
	}

	if l.RFQ != nil {
		savings := ledger.Savings(contract, *l.RFQ)
		summary.Savings = &savings
		if pct, err := ledger.SavingsPercentage(contract, *l.RFQ); err == nil {
			summary.SavingsPercent = &pct
		}
	}

	if contract.ContractValue.IsZero() {
		summary.Warnings = append(summary.Warnings, WarningZeroContractValue)
	}
	if summary.RemainingValue.IsNegative() {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%s by %s %s", WarningOverClaim, summary.RemainingValue.Neg().StringFixed(2), contract.Currency))
	}
	return summary
}

// IsDelayed is true for an active contract past its end date that still has
// value left to certify.
func (a *Aggregator) IsDelayed(l ContractLedger) bool {
	return a.delayed(l.Contract.Status, l.Contract.EndDate, ledger.RemainingContractValue(l.Contract, l.IPCs))
}

// RefreshDelayed recomputes the clock-dependent delay flag of a summary
// computed earlier.
func (a *Aggregator) RefreshDelayed(summary *model.ContractSummary) {
	summary.Delayed = a.delayed(summary.Status, summary.EndDate, summary.RemainingValue)
}

func (a *Aggregator) delayed(status model.ContractStatus, endDate time.Time, remaining decimal.Decimal) bool {
	if status != model.ContractStatusActive || endDate.IsZero() {
		return false
	}
	return a.now().After(endDate) && remaining.IsPositive()
}

// IsOverdueForReview is true when an IPC has waited on a reviewer longer
// than the reminder threshold.
func (a *Aggregator) IsOverdueForReview(ipc model.IPC) bool {
	switch ipc.Status {
	case model.IPCStatusSubmitted, model.IPCStatusProcurementReview, model.IPCStatusFinanceReview:
	default:
		return false
	}
	if a.reviewReminder <= 0 {
		return false
	}
	return a.now().Sub(lastActivity(ipc)) > a.reviewReminder
}

func lastActivity(ipc model.IPC) time.Time {
	if n := len(ipc.Timeline); n > 0 {
		return ipc.Timeline[n-1].Timestamp
	}
	if !ipc.UpdatedAt.IsZero() {
		return ipc.UpdatedAt
	}
	return ipc.CreatedAt
}

// OverdueReviews returns every overdue IPC across ledgers.
func (a *Aggregator) OverdueReviews(ledgers []ContractLedger) []model.IPC {
	var overdue []model.IPC
	for _, l := range ledgers {
		for _, ipc := range l.IPCs {
			if a.IsOverdueForReview(ipc) {
				overdue = append(overdue, ipc)
			}
		}
	}
	return overdue
}

func (a *Aggregator) Dashboard(ledgers []ContractLedger) model.Dashboard {
	var dash model.Dashboard
	totalValue := decimal.Zero
	totalPaid := decimal.Zero
	pending := decimal.Zero
	savings := decimal.Zero

	for _, l := range ledgers {
		totalValue = totalValue.Add(l.Contract.ContractValue)
		totalPaid = totalPaid.Add(ledger.CommittedValue(l.IPCs))
		pending = pending.Add(ledger.PendingValue(l.IPCs))
		if l.RFQ != nil {
			savings = savings.Add(ledger.Savings(l.Contract, *l.RFQ))
		}
		if l.Contract.IsActive() {
			dash.ActiveProjectCount++
		}
		if a.IsDelayed(l) {
			dash.DelayedContracts++
		}
		dash.PendingIPCCount += ledger.PendingCount(l.IPCs)
		for _, ipc := range l.IPCs {
			if a.IsOverdueForReview(ipc) {
				dash.OverdueReviews++
			}
		}
	}

	dash.TotalContractValue = totalValue
	dash.TotalPaid = totalPaid
	dash.PendingValue = pending
	dash.TotalSavings = savings
	dash.UtilizationRate = ledger.OptionalPercent(totalPaid, totalValue)
	return dash
}

// ProjectSpend groups contracts by project, sorted by budget descending.
func (a *Aggregator) ProjectSpend(ledgers []ContractLedger) []model.ProjectSpend {
	index := make(map[string]int)
	var projects []model.ProjectSpend

	for _, l := range ledgers {
		name := l.Contract.Project
		pos, ok := index[name]
		if !ok {
			projects = append(projects, model.ProjectSpend{Project: name, Budget: decimal.Zero, Spent: decimal.Zero})
			pos = len(projects) - 1
			index[name] = pos
		}
		projects[pos].Budget = projects[pos].Budget.Add(l.Contract.ContractValue)
		projects[pos].Spent = projects[pos].Spent.Add(ledger.CommittedValue(l.IPCs))
		projects[pos].ContractCount++
	}

	for i := range projects {
		projects[i].Utilization = ledger.OptionalPercent(projects[i].Spent, projects[i].Budget)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if cmp := projects[i].Budget.Cmp(projects[j].Budget); cmp != 0 {
			return cmp > 0
		}
		return projects[i].Project < projects[j].Project
	})
	return projects
}

// Filter narrows ledgers to the filter. A date range keeps contracts whose
// term overlaps it and, within them, IPCs raised inside it.
func Filter(ledgers []ContractLedger, filter model.ProjectFilter) []ContractLedger {
	result := make([]ContractLedger, 0, len(ledgers))
	for _, l := range ledgers {
		if filter.VendorID != nil && l.Contract.VendorID != *filter.VendorID {
			continue
		}
		if filter.Project != "" && l.Contract.Project != filter.Project {
			continue
		}
		if filter.From != nil && !l.Contract.EndDate.IsZero() && l.Contract.EndDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !l.Contract.StartDate.IsZero() && l.Contract.StartDate.After(*filter.To) {
			continue
		}
		if filter.From != nil || filter.To != nil {
			l.IPCs = ipcsWithin(l.IPCs, filter.From, filter.To)
		}
		result = append(result, l)
	}
	return result
}

func ipcsWithin(ipcs []model.IPC, from, to *time.Time) []model.IPC {
	kept := make([]model.IPC, 0, len(ipcs))
	for _, ipc := range ipcs {
		if from != nil && ipc.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && ipc.CreatedAt.After(*to) {
			continue
		}
		kept = append(kept, ipc)
	}
	return kept
}
