package pricing

import "errors"

var (
	// ErrInvalidQuantity is returned when a line quantity is below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidPrice is returned when a unit price is not strictly positive.
	ErrInvalidPrice = errors.New("unit price must be positive")
	// ErrInvalidPolicy is returned when the delivery policy is malformed.
	ErrInvalidPolicy = errors.New("invalid delivery policy")
)

// Line describes one product line in a cart or manual sale.
type Line struct {
	Qty       int
	UnitPrice Money
	// CostPrice enables margin reporting when known. Nil means the cost
	// basis is unknown, which is distinct from a zero cost.
	CostPrice *Money
}

// LineTotals aggregates the derived values of a single line.
type LineTotals struct {
	Subtotal Money
	Cost     Money
	Profit   Money
}

// ComputeLine derives subtotal, cost and profit for a line. A cost price
// above the unit price yields a negative profit; that is a loss the caller
// must surface, not an error.
func ComputeLine(l Line) (LineTotals, error) {
	if l.Qty < 1 {
		return LineTotals{}, ErrInvalidQuantity
	}
	if l.UnitPrice <= 0 {
		return LineTotals{}, ErrInvalidPrice
	}
	if l.CostPrice != nil && *l.CostPrice < 0 {
		return LineTotals{}, ErrInvalidAmount
	}
	totals := LineTotals{Subtotal: Money(l.Qty) * l.UnitPrice}
	if l.CostPrice != nil {
		totals.Cost = Money(l.Qty) * *l.CostPrice
	}
	totals.Profit = totals.Subtotal - totals.Cost
	return totals, nil
}

// MarginPercent reports profit as a percentage of the sale amount. It
// returns nil when the cost basis is unknown or the subtotal is zero rather
// than pretending the margin is 0%.
func MarginPercent(t LineTotals) *float64 {
	if t.Cost <= 0 || t.Subtotal <= 0 {
		return nil
	}
	margin := float64(t.Profit) / float64(t.Subtotal) * 100
	return &margin
}

// DeliveryPolicy captures the delivery fee rules configured for the shop.
type DeliveryPolicy struct {
	Base Money
	// FreeThreshold waives the fee when the order subtotal reaches it,
	// boundary inclusive. Nil disables free delivery entirely.
	FreeThreshold *Money
}

// Summary aggregates computed order components.
type Summary struct {
	Subtotal    Money `json:"subtotal"`
	Discount    Money `json:"discount"`
	DeliveryFee Money `json:"deliveryFee"`
	Total       Money `json:"total"`
}

// ComputeOrder sums the provided lines, applies the delivery policy and the
// already-resolved discount, and returns the order summary. An empty line
// set is a valid empty cart, not an error. The discount is applied to the
// subtotal before the delivery fee is added, so the fee itself is never
// discounted.
func ComputeOrder(lines []Line, policy DeliveryPolicy, discount Money) (Summary, error) {
	if policy.Base < 0 {
		return Summary{}, ErrInvalidPolicy
	}
	if discount < 0 {
		return Summary{}, ErrInvalidAmount
	}
	var subtotal Money
	for _, l := range lines {
		totals, err := ComputeLine(l)
		if err != nil {
			return Summary{}, err
		}
		subtotal += totals.Subtotal
	}
	fee := policy.Base
	if policy.FreeThreshold != nil && subtotal >= *policy.FreeThreshold {
		fee = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return Summary{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       subtotal - discount + fee,
	}, nil
}
