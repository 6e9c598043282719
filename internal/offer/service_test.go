package offer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/store"
)

type stubQueries struct {
	offer       store.Offer
	usages      map[uuid.UUID]int64
	incremented int
}

func (s *stubQueries) GetOfferByCode(ctx context.Context, code string) (store.Offer, error) {
	if s.offer.Code == "" || s.offer.Code != code {
		return store.Offer{}, store.ErrNotFound
	}
	return s.offer, nil
}

func (s *stubQueries) ListOffers(ctx context.Context) ([]store.Offer, error) {
	if s.offer.Code == "" {
		return nil, nil
	}
	return []store.Offer{s.offer}, nil
}

func (s *stubQueries) GetOfferUsageByOrder(ctx context.Context, offerID, orderID uuid.UUID) (int64, error) {
	if amount, ok := s.usages[orderID]; ok {
		return amount, nil
	}
	return 0, store.ErrNotFound
}

func (s *stubQueries) InsertOfferUsage(ctx context.Context, offerID, orderID uuid.UUID, amount int64) error {
	if s.usages == nil {
		s.usages = map[uuid.UUID]int64{}
	}
	s.usages[orderID] = amount
	return nil
}

func (s *stubQueries) IncrementOfferUsage(ctx context.Context, offerID uuid.UUID) error {
	s.incremented++
	return nil
}

func newStoredOffer() store.Offer {
	now := time.Now()
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)
	return store.Offer{
		ID:          uuid.New(),
		Code:        "RENTREE",
		Kind:        string(KindPercent),
		Percent:     20,
		MinPurchase: 5000,
		Active:      true,
		StartsAt:    &from,
		EndsAt:      &to,
	}
}

func TestRuleFromRow(t *testing.T) {
	row := newStoredOffer()
	maxDisc := int64(4_000)
	row.MaxDiscount = &maxDisc
	limit := int32(50)
	row.UsageLimit = &limit
	row.UsedCount = 7
	row.ProductIDs = []uuid.UUID{uuid.New()}

	rule := RuleFromRow(row)
	if rule.Code != row.Code || rule.Kind != KindPercent || rule.Percent != row.Percent {
		t.Fatalf("rule mismatch: %+v", rule)
	}
	if rule.MaxDiscount != row.MaxDiscount || rule.UsageLimit != row.UsageLimit || rule.UsedCount != 7 {
		t.Fatalf("limits not carried: %+v", rule)
	}
	if rule.StartsAt != row.StartsAt || rule.EndsAt != row.EndsAt || !rule.Active {
		t.Fatalf("window not carried: %+v", rule)
	}
	if len(rule.ProductIDs) != 1 || rule.ProductIDs[0] != row.ProductIDs[0] {
		t.Fatalf("scope not carried: %+v", rule)
	}
}

func TestPreview(t *testing.T) {
	svc := &Service{Q: &stubQueries{offer: newStoredOffer()}}
	result, err := svc.Preview(context.Background(), "rentree", 13_000, []Item{{Subtotal: 13_000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Discount != 2600 {
		t.Fatalf("expected 2600, got %d", result.Discount)
	}
	if result.Code != "RENTREE" {
		t.Fatalf("unexpected code %q", result.Code)
	}
}

func TestPreviewMinPurchase(t *testing.T) {
	svc := &Service{Q: &stubQueries{offer: newStoredOffer()}}
	_, err := svc.Preview(context.Background(), "RENTREE", 4000, []Item{{Subtotal: 4000}})
	if !errors.Is(err, ErrMinPurchaseUnmet) {
		t.Fatalf("expected ErrMinPurchaseUnmet, got %v", err)
	}
}

func TestPreviewUnknownCode(t *testing.T) {
	svc := &Service{Q: &stubQueries{}}
	_, err := svc.Preview(context.Background(), "NOPE", 10_000, []Item{{Subtotal: 10_000}})
	if !errors.Is(err, ErrNotApplicable) {
		t.Fatalf("expected ErrNotApplicable, got %v", err)
	}
}

func TestPreviewScopedNoMatch(t *testing.T) {
	row := newStoredOffer()
	scope := uuid.New()
	row.ProductIDs = []uuid.UUID{scope}
	other := uuid.New()
	svc := &Service{Q: &stubQueries{offer: row}}
	_, err := svc.Preview(context.Background(), "RENTREE", 13_000, []Item{{ProductID: &other, Subtotal: 13_000}})
	if !errors.Is(err, ErrNotApplicable) {
		t.Fatalf("expected ErrNotApplicable, got %v", err)
	}
}

func TestListEligibleSkipsIneligible(t *testing.T) {
	svc := &Service{Q: &stubQueries{offer: newStoredOffer()}}
	results, err := svc.ListEligible(context.Background(), 4000, []Item{{Subtotal: 4000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("below min purchase should yield nothing, got %+v", results)
	}
	results, err = svc.ListEligible(context.Background(), 13_000, []Item{{Subtotal: 13_000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one eligible offer, got %d", len(results))
	}
}

func TestSettleIdempotentPerOrder(t *testing.T) {
	stub := &stubQueries{offer: newStoredOffer()}
	svc := &Service{Q: stub}
	orderID := uuid.New()
	if err := svc.Settle(context.Background(), "RENTREE", orderID, 2600); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if err := svc.Settle(context.Background(), "RENTREE", orderID, 2600); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if stub.incremented != 1 {
		t.Fatalf("used count must be incremented exactly once, got %d", stub.incremented)
	}
}
