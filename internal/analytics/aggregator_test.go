package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/procurement-ipc/internal/model"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func newAggregator() *Aggregator {
	return NewAggregator(72 * time.Hour).WithClock(func() time.Time { return fixedNow })
}

func contract(project, value string, status model.ContractStatus) model.Contract {
	return model.Contract{
		ID:             uuid.New(),
		ContractNumber: "C-" + project,
		VendorID:       uuid.New(),
		Project:        project,
		Currency:       "USD",
		ContractValue:  d(value),
		Status:         status,
		StartDate:      fixedNow.AddDate(0, -6, 0),
		EndDate:        fixedNow.AddDate(0, 6, 0),
	}
}

func ipc(seq int, value string, status model.IPCStatus) model.IPC {
	return model.IPC{
		ID:           uuid.New(),
		Sequence:     seq,
		CurrentValue: d(value),
		Deductions:   decimal.Zero,
		Status:       status,
		CreatedAt:    fixedNow.AddDate(0, 0, -seq),
		UpdatedAt:    fixedNow.AddDate(0, 0, -seq),
	}
}

func TestPendingIPCCount_SummaryMatchesDashboard(t *testing.T) {
	l := ContractLedger{
		Contract: contract("bridge", "1000000", model.ContractStatusActive),
		IPCs: []model.IPC{
			ipc(1, "100000", model.IPCStatusSubmitted),
			ipc(2, "100000", model.IPCStatusProcurementReview),
			ipc(3, "100000", model.IPCStatusTechnicalApproved),
			ipc(4, "100000", model.IPCStatusFinanceReview),
		},
	}
	agg := newAggregator()

	summary := agg.Summarize(l)
	dash := agg.Dashboard([]ContractLedger{l})

	assert.Equal(t, 2, summary.PendingIPCCount)
	assert.Equal(t, summary.PendingIPCCount, dash.PendingIPCCount)
	assertDecimal(t, "400000", summary.PendingValue)
	assert.True(t, summary.PendingValue.Equal(dash.PendingValue))
}

func TestSummarize_ExcludesRejectedFromPaid(t *testing.T) {
	l := ContractLedger{
		Contract: contract("bridge", "1000000", model.ContractStatusActive),
		IPCs: []model.IPC{
			ipc(1, "300000", model.IPCStatusPaid),
			ipc(2, "200000", model.IPCStatusRejected),
			ipc(3, "100000", model.IPCStatusFinanceReview),
		},
	}

	summary := newAggregator().Summarize(l)

	assertDecimal(t, "300000", summary.TotalPaid)
	assertDecimal(t, "100000", summary.PendingValue)
	assertDecimal(t, "400000", summary.CumulativeValue)
	assertDecimal(t, "600000", summary.RemainingValue)
	require.NotNil(t, summary.UtilizationRate)
	assertDecimal(t, "30", *summary.UtilizationRate)
	require.NotNil(t, summary.ProgressPercent)
	assertDecimal(t, "40", *summary.ProgressPercent)
	assert.Equal(t, 3, summary.IPCCount)
	assert.Equal(t, 0, summary.PendingIPCCount)
	assert.Nil(t, summary.Savings)
	assert.Empty(t, summary.Warnings)
	assert.False(t, summary.Delayed)
}

func TestSummarize_ZeroContractValue(t *testing.T) {
	l := ContractLedger{Contract: contract("zero", "0", model.ContractStatusActive)}

	summary := newAggregator().Summarize(l)

	assert.Nil(t, summary.UtilizationRate)
	assert.Nil(t, summary.ProgressPercent)
	assert.Contains(t, summary.Warnings, WarningZeroContractValue)
}

func TestSummarize_OverClaimWarning(t *testing.T) {
	l := ContractLedger{
		Contract: contract("over", "100", model.ContractStatusActive),
		IPCs: []model.IPC{
			ipc(1, "80", model.IPCStatusApproved),
			ipc(2, "50", model.IPCStatusApproved),
		},
	}

	summary := newAggregator().Summarize(l)

	assertDecimal(t, "-30", summary.RemainingValue)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], WarningOverClaim)
	assert.Contains(t, summary.Warnings[0], "30.00")
}

func TestSummarize_Savings(t *testing.T) {
	l := ContractLedger{
		Contract: contract("tender", "900", model.ContractStatusActive),
		RFQ:      &model.RFQ{EstimatedUnitPrice: d("1200")},
	}

	summary := newAggregator().Summarize(l)

	require.NotNil(t, summary.Savings)
	assertDecimal(t, "300", *summary.Savings)
	require.NotNil(t, summary.SavingsPercent)
	assertDecimal(t, "25", *summary.SavingsPercent)
}

func TestIsDelayed(t *testing.T) {
	agg := newAggregator()

	late := contract("late", "100", model.ContractStatusActive)
	late.EndDate = fixedNow.AddDate(0, 0, -1)
	assert.True(t, agg.IsDelayed(ContractLedger{Contract: late}))

	settled := ContractLedger{Contract: late, IPCs: []model.IPC{ipc(1, "100", model.IPCStatusPaid)}}
	assert.False(t, agg.IsDelayed(settled))

	closed := late
	closed.Status = model.ContractStatusClosed
	assert.False(t, agg.IsDelayed(ContractLedger{Contract: closed}))
}

func TestIsOverdueForReview(t *testing.T) {
	agg := newAggregator()

	stale := ipc(5, "10", model.IPCStatusSubmitted)
	assert.True(t, agg.IsOverdueForReview(stale))

	fresh := ipc(1, "10", model.IPCStatusFinanceReview)
	fresh.Timeline = []model.TimelineEntry{{Status: model.IPCStatusFinanceReview, Timestamp: fixedNow.Add(-time.Hour)}}
	assert.False(t, agg.IsOverdueForReview(fresh))

	technical := ipc(5, "10", model.IPCStatusTechnicalApproved)
	assert.False(t, agg.IsOverdueForReview(technical))
}

func TestDashboard(t *testing.T) {
	active := ContractLedger{
		Contract: contract("a", "1000", model.ContractStatusActive),
		IPCs: []model.IPC{
			ipc(1, "100", model.IPCStatusPaid),
			ipc(2, "200", model.IPCStatusSubmitted),
			ipc(3, "300", model.IPCStatusProcurementReview),
			ipc(4, "50", model.IPCStatusFinanceReview),
		},
		RFQ: &model.RFQ{EstimatedUnitPrice: d("1100")},
	}
	draft := ContractLedger{Contract: contract("b", "1000", model.ContractStatusDraft)}

	dash := newAggregator().Dashboard([]ContractLedger{active, draft})

	assertDecimal(t, "2000", dash.TotalContractValue)
	assertDecimal(t, "100", dash.TotalPaid)
	assertDecimal(t, "550", dash.PendingValue)
	assertDecimal(t, "100", dash.TotalSavings)
	require.NotNil(t, dash.UtilizationRate)
	assertDecimal(t, "5", *dash.UtilizationRate)
	assert.Equal(t, 1, dash.ActiveProjectCount)
	assert.Equal(t, 2, dash.PendingIPCCount)
	// only the FINANCE_REVIEW one has waited past 72h
	assert.Equal(t, 1, dash.OverdueReviews)

	empty := newAggregator().Dashboard(nil)
	assert.Nil(t, empty.UtilizationRate)
}

func TestProjectSpend(t *testing.T) {
	ledgers := []ContractLedger{
		{Contract: contract("small", "100", model.ContractStatusActive), IPCs: []model.IPC{ipc(1, "50", model.IPCStatusApproved)}},
		{Contract: contract("big", "1000", model.ContractStatusActive), IPCs: []model.IPC{ipc(1, "100", model.IPCStatusPaid), ipc(2, "400", model.IPCStatusSubmitted)}},
		{Contract: contract("big", "500", model.ContractStatusClosed)},
		{Contract: contract("none", "0", model.ContractStatusDraft)},
	}

	projects := newAggregator().ProjectSpend(ledgers)

	require.Len(t, projects, 3)
	assert.Equal(t, "big", projects[0].Project)
	assertDecimal(t, "1500", projects[0].Budget)
	assertDecimal(t, "100", projects[0].Spent)
	assert.Equal(t, 2, projects[0].ContractCount)
	require.NotNil(t, projects[0].Utilization)
	assertDecimal(t, "6.67", *projects[0].Utilization)

	assert.Equal(t, "small", projects[1].Project)
	assertDecimal(t, "50", *projects[1].Utilization)

	assert.Equal(t, "none", projects[2].Project)
	assert.Nil(t, projects[2].Utilization)
}

func TestFilter(t *testing.T) {
	first := contract("alpha", "100", model.ContractStatusActive)
	second := contract("beta", "100", model.ContractStatusActive)
	second.StartDate = fixedNow.AddDate(1, 0, 0)
	second.EndDate = fixedNow.AddDate(2, 0, 0)

	ledgers := []ContractLedger{
		{Contract: first, IPCs: []model.IPC{ipc(1, "10", model.IPCStatusPaid), ipc(30, "10", model.IPCStatusPaid)}},
		{Contract: second},
	}

	byVendor := Filter(ledgers, model.ProjectFilter{VendorID: &first.VendorID})
	require.Len(t, byVendor, 1)
	assert.Equal(t, first.ID, byVendor[0].Contract.ID)

	byProject := Filter(ledgers, model.ProjectFilter{Project: "beta"})
	require.Len(t, byProject, 1)
	assert.Equal(t, second.ID, byProject[0].Contract.ID)

	from := fixedNow.AddDate(0, 0, -7)
	to := fixedNow
	byRange := Filter(ledgers, model.ProjectFilter{From: &from, To: &to})
	require.Len(t, byRange, 1)
	assert.Len(t, byRange[0].IPCs, 1)
	assert.Len(t, ledgers[0].IPCs, 2)
}
