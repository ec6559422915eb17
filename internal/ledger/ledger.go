// Package ledger holds the contract payment arithmetic. Every figure the
// service reports about cumulative, remaining or paid value goes through
// these functions; none of them touch storage.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/procurement-ipc/internal/model"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrDivisionByZero = errors.New("division by zero")
	ErrUnknownIPC     = errors.New("ipc does not belong to contract ledger")
)

// PercentPrecision is the number of decimal places kept on percentages.
const PercentPrecision = 2

var hundred = decimal.NewFromInt(100)

// ValidateAmounts checks a claimed value and its deductions.
func ValidateAmounts(currentValue, deductions decimal.Decimal) error {
	if !currentValue.IsPositive() {
		return fmt.Errorf("%w: current value must be positive", ErrInvalidAmount)
	}
	if deductions.IsNegative() {
		return fmt.Errorf("%w: deductions must not be negative", ErrInvalidAmount)
	}
	if deductions.GreaterThan(currentValue) {
		return fmt.Errorf("%w: deductions %s exceed current value %s", ErrInvalidAmount, deductions, currentValue)
	}
	return nil
}

func NetPayable(ipc model.IPC) (decimal.Decimal, error) {
	if ipc.CurrentValue.IsNegative() || ipc.Deductions.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount on %s", ErrInvalidAmount, ipc.IPCNumber)
	}
	if ipc.Deductions.GreaterThan(ipc.CurrentValue) {
		return decimal.Zero, fmt.Errorf("%w: deductions exceed current value on %s", ErrInvalidAmount, ipc.IPCNumber)
	}
	return ipc.CurrentValue.Sub(ipc.Deductions), nil
}

// InCreationOrder returns a copy of ipcs sorted by sequence, then creation time.
func InCreationOrder(ipcs []model.IPC) []model.IPC {
	ordered := make([]model.IPC, len(ipcs))
	copy(ordered, ipcs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Sequence != ordered[j].Sequence {
			return ordered[i].Sequence < ordered[j].Sequence
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

// CumulativeValue sums current values in creation order up to and including
// uptoID. Rejected certificates never count.
func CumulativeValue(ipcs []model.IPC, uptoID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, ipc := range InCreationOrder(ipcs) {
		if ipc.Status != model.IPCStatusRejected {
			total = total.Add(ipc.CurrentValue)
		}
		if ipc.ID == uptoID {
			return total, nil
		}
	}
	return decimal.Zero, ErrUnknownIPC
}

// LatestCumulative is the cumulative value through the most recent IPC.
func LatestCumulative(ipcs []model.IPC) decimal.Decimal {
	total := decimal.Zero
	for _, ipc := range ipcs {
		if ipc.Status != model.IPCStatusRejected {
			total = total.Add(ipc.CurrentValue)
		}
	}
	return total
}

// NextCumulative is the cumulative value a new certificate of currentValue
// would carry if appended to ipcs.
func NextCumulative(ipcs []model.IPC, currentValue decimal.Decimal) decimal.Decimal {
	return LatestCumulative(ipcs).Add(currentValue)
}

// RemainingContractValue may be negative after an over-claim; callers warn
// rather than clamp.
func RemainingContractValue(contract model.Contract, ipcs []model.IPC) decimal.Decimal {
	return contract.ContractValue.Sub(LatestCumulative(ipcs))
}

func PaymentProgressPercent(contract model.Contract, ipcs []model.IPC) (decimal.Decimal, error) {
	return Percent(LatestCumulative(ipcs), contract.ContractValue)
}

// Percent returns part/whole*100 rounded to PercentPrecision.
func Percent(part, whole decimal.Decimal) (decimal.Decimal, error) {
	if whole.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return part.Mul(hundred).Div(whole).Round(PercentPrecision), nil
}

// OptionalPercent is Percent with a zero denominator mapped to nil.
func OptionalPercent(part, whole decimal.Decimal) *decimal.Decimal {
	value, err := Percent(part, whole)
	if err != nil {
		return nil
	}
	return &value
}

// CommittedValue sums certificates that reached APPROVED or PAID.
func CommittedValue(ipcs []model.IPC) decimal.Decimal {
	total := decimal.Zero
	for _, ipc := range ipcs {
		if ipc.Status.IsCommitted() {
			total = total.Add(ipc.CurrentValue)
		}
	}
	return total
}

// PendingValue sums certificates still under review.
func PendingValue(ipcs []model.IPC) decimal.Decimal {
	total := decimal.Zero
	for _, ipc := range ipcs {
		if ipc.Status.IsPending() {
			total = total.Add(ipc.CurrentValue)
		}
	}
	return total
}

// PendingCount counts certificates still in the intake queue, that is
// SUBMITTED or PROCUREMENT_REVIEW. Later review stages are pending in value
// but not in this count.
func PendingCount(ipcs []model.IPC) int {
	count := 0
	for _, ipc := range ipcs {
		if ipc.Status == model.IPCStatusSubmitted || ipc.Status == model.IPCStatusProcurementReview {
			count++
		}
	}
	return count
}

// Savings is how far the awarded value came in under the RFQ estimate.
func Savings(contract model.Contract, rfq model.RFQ) decimal.Decimal {
	return decimal.Max(decimal.Zero, rfq.EstimatedUnitPrice.Sub(contract.ContractValue))
}

func SavingsPercentage(contract model.Contract, rfq model.RFQ) (decimal.Decimal, error) {
	return Percent(Savings(contract, rfq), rfq.EstimatedUnitPrice)
}

// OverClaimed reports whether the non-rejected claims exceed the contract value.
func OverClaimed(contract model.Contract, ipcs []model.IPC) bool {
	return RemainingContractValue(contract, ipcs).IsNegative()
}
