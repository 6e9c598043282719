package offer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/pricing"
)

func maxOf(v int64) *pricing.Money { return &v }

func TestComputePercentUnderCap(t *testing.T) {
	rule := Rule{Code: "PROMO20", Kind: KindPercent, Percent: 20, MaxDiscount: maxOf(10_000), Active: true}
	discount, err := Compute(13_000, rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 2600 {
		t.Fatalf("expected 2600 discount, got %d", discount)
	}
}

func TestComputePercentCapped(t *testing.T) {
	rule := Rule{Kind: KindPercent, Percent: 50, MaxDiscount: maxOf(1000), Active: true}
	discount, err := Compute(100_000, rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 1000 {
		t.Fatalf("expected discount clamped to cap, got %d", discount)
	}
}

func TestComputePercentRoundsHalfUp(t *testing.T) {
	// 15% of 1005 = 150.75, rounds up to 151.
	rule := Rule{Kind: KindPercent, Percent: 15, Active: true}
	discount, err := Compute(1005, rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 151 {
		t.Fatalf("expected 151, got %d", discount)
	}
}

func TestComputeFixedClampedToBase(t *testing.T) {
	rule := Rule{Kind: KindFixedAmount, Value: 5000, Active: true}
	discount, err := Compute(4000, rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != 4000 {
		t.Fatalf("expected discount clamped to base, got %d", discount)
	}
}

func TestCheckConfig(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{"percent zero", Rule{Kind: KindPercent, Percent: 0}},
		{"percent above 100", Rule{Kind: KindPercent, Percent: 101}},
		{"fixed zero", Rule{Kind: KindFixedAmount, Value: 0}},
		{"fixed negative", Rule{Kind: KindFixedAmount, Value: -500}},
		{"unknown kind", Rule{Kind: Kind("bogo"), Value: 10}},
	}
	for _, tc := range cases {
		if err := tc.rule.CheckConfig(); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("%s: expected ErrInvalidRule, got %v", tc.name, err)
		}
	}
	valid := Rule{Kind: KindPercent, Percent: 100}
	if err := valid.CheckConfig(); err != nil {
		t.Fatalf("100%% is a valid percent: %v", err)
	}
}

func TestValidateWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	starts := now.Add(time.Hour)
	ends := now.Add(-time.Hour)

	future := Rule{Kind: KindFixedAmount, Value: 500, Active: true, StartsAt: &starts}
	if err := future.Validate(now, 10_000); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	past := Rule{Kind: KindFixedAmount, Value: 500, Active: true, EndsAt: &ends}
	if err := past.Validate(now, 10_000); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	boundary := Rule{Kind: KindFixedAmount, Value: 500, Active: true, StartsAt: &now, EndsAt: &now}
	if err := boundary.Validate(now, 10_000); err != nil {
		t.Fatalf("window must be inclusive: %v", err)
	}
}

func TestValidateStateAndCaps(t *testing.T) {
	inactive := Rule{Kind: KindFixedAmount, Value: 500}
	if err := inactive.Validate(time.Now(), 10_000); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	limit := int32(3)
	exhausted := Rule{Kind: KindFixedAmount, Value: 500, Active: true, UsageLimit: &limit, UsedCount: 3}
	if err := exhausted.Validate(time.Now(), 10_000); !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
	minPurchase := Rule{Kind: KindFixedAmount, Value: 500, Active: true, MinPurchase: 5000}
	if err := minPurchase.Validate(time.Now(), 4999); !errors.Is(err, ErrMinPurchaseUnmet) {
		t.Fatalf("expected ErrMinPurchaseUnmet, got %v", err)
	}
}

func TestEligibleSubtotalScoped(t *testing.T) {
	tarteID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	eclairID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	viennoiserieCat := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	rule := Rule{ProductIDs: []uuid.UUID{tarteID}}
	items := []Item{
		{ProductID: &tarteID, Subtotal: 8500},
		{ProductID: &eclairID, Subtotal: 4500},
	}
	if got := EligibleSubtotal(items, rule); got != 8500 {
		t.Fatalf("expected only the matching line, got %d", got)
	}

	catRule := Rule{CategoryIDs: []uuid.UUID{viennoiserieCat}}
	items[1].CategoryID = &viennoiserieCat
	if got := EligibleSubtotal(items, catRule); got != 4500 {
		t.Fatalf("expected category-matched line, got %d", got)
	}

	wide := Rule{}
	if got := EligibleSubtotal(items, wide); got != 13_000 {
		t.Fatalf("storefront-wide offer covers everything, got %d", got)
	}
}

func TestResolveEligible(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	rules := []Rule{
		{Code: "OK", Kind: KindPercent, Percent: 10, Active: true},
		{Code: "SOON", Kind: KindPercent, Percent: 10, Active: true, StartsAt: &future},
		{Code: "OFF", Kind: KindPercent, Percent: 10},
		{Code: "BROKEN", Kind: KindPercent, Percent: 400, Active: true},
		{Code: "BIGCART", Kind: KindFixedAmount, Value: 1000, Active: true, MinPurchase: 50_000},
	}
	eligible := ResolveEligible(rules, now, 13_000)
	if len(eligible) != 1 || eligible[0].Code != "OK" {
		t.Fatalf("unexpected eligible set: %+v", eligible)
	}
}

func TestDiscountNeverExceedsBase(t *testing.T) {
	bases := []pricing.Money{0, 1, 499, 500, 13_000}
	rules := []Rule{
		{Kind: KindPercent, Percent: 100, Active: true},
		{Kind: KindFixedAmount, Value: 1_000_000, Active: true},
	}
	for _, base := range bases {
		for _, rule := range rules {
			discount, err := Compute(base, rule)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if discount > base {
				t.Fatalf("discount %d exceeds base %d", discount, base)
			}
			if discount < 0 {
				t.Fatalf("discount must be non-negative, got %d", discount)
			}
		}
	}
}
