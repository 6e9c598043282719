package offer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// Querier captures the database methods required by the offer service.
type Querier interface {
	GetOfferByCode(ctx context.Context, code string) (store.Offer, error)
	ListOffers(ctx context.Context) ([]store.Offer, error)
	GetOfferUsageByOrder(ctx context.Context, offerID, orderID uuid.UUID) (int64, error)
	InsertOfferUsage(ctx context.Context, offerID, orderID uuid.UUID, amount int64) error
	IncrementOfferUsage(ctx context.Context, offerID uuid.UUID) error
}

// RuleFromRow converts a persisted offer row into the engine's evaluation form.
func RuleFromRow(o store.Offer) Rule {
	return Rule{
		Code:        o.Code,
		Kind:        Kind(o.Kind),
		Value:       o.Value,
		Percent:     o.Percent,
		MaxDiscount: o.MaxDiscount,
		MinPurchase: o.MinPurchase,
		StartsAt:    o.StartsAt,
		EndsAt:      o.EndsAt,
		UsageLimit:  o.UsageLimit,
		UsedCount:   o.UsedCount,
		Active:      o.Active,
		ProductIDs:  o.ProductIDs,
		CategoryIDs: o.CategoryIDs,
	}
}

// PreviewResult describes the outcome of a dry-run evaluation.
type PreviewResult struct {
	Code           string        `json:"code"`
	Discount       pricing.Money `json:"discount"`
	EligibleAmount pricing.Money `json:"eligibleAmount"`
}

// Service evaluates offer rules against carts and records redemptions.
type Service struct {
	Q   Querier
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Preview evaluates a code against a cart snapshot without mutating state.
func (s *Service) Preview(ctx context.Context, code string, subtotal pricing.Money, items []Item) (PreviewResult, error) {
	if s == nil || s.Q == nil {
		return PreviewResult{}, errors.New("offer service not configured")
	}
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return PreviewResult{}, fmt.Errorf("code is required: %w", ErrInvalidRule)
	}
	row, err := s.Q.GetOfferByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PreviewResult{}, ErrNotApplicable
		}
		return PreviewResult{}, err
	}
	rule := RuleFromRow(row)
	if err := rule.CheckConfig(); err != nil {
		return PreviewResult{}, err
	}
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return PreviewResult{}, err
	}
	eligible := EligibleSubtotal(items, rule)
	if eligible <= 0 {
		return PreviewResult{}, ErrNotApplicable
	}
	discount, err := Compute(eligible, rule)
	if err != nil {
		return PreviewResult{}, err
	}
	if discount <= 0 {
		return PreviewResult{}, ErrNotApplicable
	}
	return PreviewResult{Code: row.Code, Discount: discount, EligibleAmount: eligible}, nil
}

// ListEligible resolves every offer applicable to the given cart snapshot.
// The caller chooses which single one to apply; nothing is combined here.
func (s *Service) ListEligible(ctx context.Context, subtotal pricing.Money, items []Item) ([]PreviewResult, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("offer service not configured")
	}
	rows, err := s.Q.ListOffers(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, RuleFromRow(row))
	}
	out := make([]PreviewResult, 0)
	for _, rule := range ResolveEligible(rules, s.now(), subtotal) {
		eligible := EligibleSubtotal(items, rule)
		if eligible <= 0 {
			continue
		}
		discount, err := Compute(eligible, rule)
		if err != nil || discount <= 0 {
			continue
		}
		out = append(out, PreviewResult{Code: rule.Code, Discount: discount, EligibleAmount: eligible})
	}
	return out, nil
}

// Settle records redemption of an offer for an order exactly once. Callers
// serialise concurrent settlements of the same code; this method only
// guarantees idempotency per order.
func (s *Service) Settle(ctx context.Context, code string, orderID uuid.UUID, amount pricing.Money) error {
	if s == nil || s.Q == nil {
		return errors.New("offer service not configured")
	}
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" || orderID == uuid.Nil || amount <= 0 {
		return nil
	}
	row, err := s.Q.GetOfferByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.Q.GetOfferUsageByOrder(ctx, row.ID, orderID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := s.Q.InsertOfferUsage(ctx, row.ID, orderID, amount); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return err
	}
	return s.Q.IncrementOfferUsage(ctx, row.ID)
}
