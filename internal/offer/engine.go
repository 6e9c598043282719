package offer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/pricing"
)

// Kind distinguishes the two supported discount shapes.
type Kind string

const (
	// KindPercent discounts a percentage of the eligible subtotal.
	KindPercent Kind = "percent"
	// KindFixedAmount discounts a fixed FCFA amount.
	KindFixedAmount Kind = "fixed_amount"
)

var (
	// ErrInvalidRule is returned when the discount configuration itself is malformed.
	ErrInvalidRule = errors.New("invalid offer configuration")
	// ErrInactive is returned when the offer has been deactivated by an admin.
	ErrInactive = errors.New("offer not active")
	// ErrNotStarted is returned when the current instant precedes the validity window.
	ErrNotStarted = errors.New("offer not started")
	// ErrExpired is returned when the validity window has closed.
	ErrExpired = errors.New("offer expired")
	// ErrUsageLimitReached indicates the global usage quota is exhausted.
	ErrUsageLimitReached = errors.New("offer usage limit reached")
	// ErrMinPurchaseUnmet indicates the order subtotal does not qualify.
	ErrMinPurchaseUnmet = errors.New("offer minimum purchase not met")
	// ErrNotApplicable is returned when no line item matches a scoped offer.
	ErrNotApplicable = errors.New("offer not applicable to cart")
)

// Ineligible reports whether err is a rule rejection rather than an
// infrastructure failure. Callers may treat these as "code no longer valid".
func Ineligible(err error) bool {
	return errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrNotStarted) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrUsageLimitReached) ||
		errors.Is(err, ErrMinPurchaseUnmet) ||
		errors.Is(err, ErrNotApplicable)
}

// Rule captures the runtime constraints of a promotional offer.
type Rule struct {
	Code        string
	Kind        Kind
	Value       pricing.Money
	Percent     int32
	MaxDiscount *pricing.Money
	MinPurchase pricing.Money
	StartsAt    *time.Time
	EndsAt      *time.Time
	UsageLimit  *int32
	UsedCount   int32
	Active      bool
	ProductIDs  []uuid.UUID
	CategoryIDs []uuid.UUID
}

// Item represents a cart line eligible for discount calculation.
type Item struct {
	ProductID  *uuid.UUID
	CategoryID *uuid.UUID
	Subtotal   pricing.Money
}

// CheckConfig validates the discount shape independently of any order. A
// percent rule requires a value in (0,100]; a fixed rule requires a strictly
// positive amount.
func (r Rule) CheckConfig() error {
	switch r.Kind {
	case KindPercent:
		if r.Percent <= 0 || r.Percent > 100 {
			return ErrInvalidRule
		}
	case KindFixedAmount:
		if r.Value <= 0 {
			return ErrInvalidRule
		}
	default:
		return ErrInvalidRule
	}
	if r.MaxDiscount != nil && *r.MaxDiscount <= 0 {
		return ErrInvalidRule
	}
	if r.MinPurchase < 0 {
		return ErrInvalidRule
	}
	return nil
}

// Validate reports whether the rule can be applied at the given instant and
// order subtotal. The validity window is inclusive on both ends.
func (r Rule) Validate(now time.Time, subtotal pricing.Money) error {
	if !r.Active {
		return ErrInactive
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return ErrNotStarted
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return ErrExpired
	}
	if r.UsageLimit != nil && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if subtotal < r.MinPurchase {
		return ErrMinPurchaseUnmet
	}
	return nil
}

// Scoped reports whether the rule is restricted to specific products or categories.
func (r Rule) Scoped() bool {
	return len(r.ProductIDs) > 0 || len(r.CategoryIDs) > 0
}

// EligibleSubtotal returns the portion of the cart the rule discounts: the
// whole subtotal for a storefront-wide offer, or the sum of matching line
// subtotals for a scoped one.
func EligibleSubtotal(items []Item, r Rule) pricing.Money {
	var total pricing.Money
	scoped := r.Scoped()
	for _, it := range items {
		if it.Subtotal <= 0 {
			continue
		}
		if !scoped || matches(r, it) {
			total += it.Subtotal
		}
	}
	return total
}

func matches(r Rule, it Item) bool {
	if it.ProductID != nil {
		for _, id := range r.ProductIDs {
			if id == *it.ProductID {
				return true
			}
		}
	}
	if it.CategoryID != nil {
		for _, id := range r.CategoryIDs {
			if id == *it.CategoryID {
				return true
			}
		}
	}
	return false
}

// Compute determines the discount amount for the eligible base. Percent
// discounts round half-up to the nearest whole unit and are clamped to
// MaxDiscount when set; fixed discounts never exceed the base they apply to.
func Compute(eligible pricing.Money, r Rule) (pricing.Money, error) {
	if err := r.CheckConfig(); err != nil {
		return 0, err
	}
	if eligible <= 0 {
		return 0, nil
	}
	var discount pricing.Money
	switch r.Kind {
	case KindPercent:
		discount = (eligible*pricing.Money(r.Percent) + 50) / 100
		if r.MaxDiscount != nil && discount > *r.MaxDiscount {
			discount = *r.MaxDiscount
		}
	case KindFixedAmount:
		discount = r.Value
	}
	if discount > eligible {
		discount = eligible
	}
	return discount, nil
}

// ResolveEligible filters the candidate rules down to those applicable at
// the given instant and subtotal. It never combines offers: the caller
// decides which single offer to apply per order.
func ResolveEligible(rules []Rule, now time.Time, subtotal pricing.Money) []Rule {
	eligible := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.CheckConfig() != nil {
			continue
		}
		if r.Validate(now, subtotal) != nil {
			continue
		}
		eligible = append(eligible, r)
	}
	return eligible
}
