package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fatou-sy/backend-patisserie/internal/obs"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// ErrInvalidInput is returned when a manual sale payload cannot be priced.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Querier captures the database methods the sales service depends on.
type Querier interface {
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	InsertOrderItem(ctx context.Context, arg store.InsertOrderItemParams) error
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	GetSalesTotals(ctx context.Context, from, to time.Time) (store.SalesTotals, error)
	CreateExpense(ctx context.Context, arg store.CreateExpenseParams) (store.Expense, error)
	ListExpenses(ctx context.Context, from, to time.Time) ([]store.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	GetExpenseTotal(ctx context.Context, from, to time.Time) (int64, error)
}

// ManualLine is one entry of a sale recorded from the back office. Lines may
// reference a catalog product or be free-form (special orders).
type ManualLine struct {
	ProductID *uuid.UUID
	Name      string
	Qty       int
	UnitPrice pricing.Money
	CostPrice *pricing.Money
}

// ManualSaleInput is a sale captured outside the storefront (phone, WhatsApp,
// walk-in).
type ManualSaleInput struct {
	CustomerName string
	Phone        string
	Address      string
	Lines        []ManualLine
	Discount     pricing.Money
	DeliveryFee  pricing.Money
	Note         *string
}

// Summary aggregates revenue, costs and expenses over a period.
type Summary struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Orders       int64     `json:"orders"`
	Revenue      int64     `json:"revenue"`
	Discounts    int64     `json:"discounts"`
	CostTotal    int64     `json:"costTotal"`
	GrossProfit  int64     `json:"grossProfit"`
	ExpenseTotal int64     `json:"expenseTotal"`
	NetProfit    int64     `json:"netProfit"`
}

// Service records manual sales and expenses and serves the accounting
// summary, cached briefly in Redis because the back office polls it.
type Service struct {
	Q        Querier
	Redis    *redis.Client
	CacheTTL time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RecordSale prices and stores a manual sale. The discount is a raw amount
// entered by the operator, clamped to the subtotal like any other discount.
func (s *Service) RecordSale(ctx context.Context, input ManualSaleInput) (store.Order, error) {
	if s == nil || s.Q == nil {
		return store.Order{}, errors.New("sales service not configured")
	}
	if len(input.Lines) == 0 {
		return store.Order{}, fmt.Errorf("at least one line is required: %w", ErrInvalidInput)
	}
	if input.Discount < 0 || input.DeliveryFee < 0 {
		return store.Order{}, fmt.Errorf("%w: %v", ErrInvalidInput, pricing.ErrInvalidAmount)
	}

	lines := make([]pricing.Line, 0, len(input.Lines))
	for _, l := range input.Lines {
		lines = append(lines, pricing.Line{Qty: l.Qty, UnitPrice: l.UnitPrice, CostPrice: l.CostPrice})
	}
	summary, err := pricing.ComputeOrder(lines, pricing.DeliveryPolicy{Base: input.DeliveryFee}, input.Discount)
	if err != nil {
		return store.Order{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var costTotal pricing.Money
	for _, l := range lines {
		totals, err := pricing.ComputeLine(l)
		if err != nil {
			return store.Order{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		costTotal += totals.Cost
	}
	profit := summary.Subtotal - summary.Discount - costTotal

	order, err := s.Q.CreateOrder(ctx, store.CreateOrderParams{
		Channel:      store.ChannelManual,
		CustomerName: input.CustomerName,
		Phone:        input.Phone,
		Address:      input.Address,
		Subtotal:     summary.Subtotal,
		Discount:     summary.Discount,
		DeliveryFee:  summary.DeliveryFee,
		Total:        summary.Total,
		CostTotal:    costTotal,
		Profit:       profit,
		Note:         input.Note,
		Status:       "confirmed",
	})
	if err != nil {
		if obs.OrdersTotal != nil {
			obs.OrdersTotal.WithLabelValues(store.ChannelManual, "error").Inc()
		}
		return store.Order{}, err
	}

	for i := range input.Lines {
		l := input.Lines[i]
		var cost *int64
		if l.CostPrice != nil {
			c := int64(*l.CostPrice)
			cost = &c
		}
		totals, err := pricing.ComputeLine(pricing.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
		if err != nil {
			return store.Order{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err := s.Q.InsertOrderItem(ctx, store.InsertOrderItemParams{
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			Qty:       int32(l.Qty),
			UnitPrice: l.UnitPrice,
			CostPrice: cost,
			Subtotal:  totals.Subtotal,
		}); err != nil {
			return store.Order{}, err
		}
	}

	if obs.OrdersTotal != nil {
		obs.OrdersTotal.WithLabelValues(store.ChannelManual, "ok").Inc()
	}
	if obs.OrderAmount != nil {
		obs.OrderAmount.WithLabelValues(store.ChannelManual).Observe(float64(order.Total))
	}
	s.invalidateSummary(ctx)
	return order, nil
}

// AddExpense stores a back-office expense.
func (s *Service) AddExpense(ctx context.Context, arg store.CreateExpenseParams) (store.Expense, error) {
	if arg.Amount <= 0 {
		return store.Expense{}, fmt.Errorf("amount must be positive: %w", ErrInvalidInput)
	}
	if arg.IncurredAt.IsZero() {
		arg.IncurredAt = s.now()
	}
	expense, err := s.Q.CreateExpense(ctx, arg)
	if err != nil {
		return store.Expense{}, err
	}
	s.invalidateSummary(ctx)
	return expense, nil
}

// ListExpenses returns expenses within [from, to).
func (s *Service) ListExpenses(ctx context.Context, from, to time.Time) ([]store.Expense, error) {
	return s.Q.ListExpenses(ctx, from, to)
}

// RemoveExpense deletes an expense.
func (s *Service) RemoveExpense(ctx context.Context, id uuid.UUID) error {
	if err := s.Q.DeleteExpense(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.invalidateSummary(ctx)
	return nil
}

// GetSummary computes the accounting view for [from, to), serving a cached
// copy when one is fresh.
func (s *Service) GetSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	if !to.After(from) {
		return Summary{}, fmt.Errorf("empty period: %w", ErrInvalidInput)
	}
	key := summaryKey(from, to)
	if s.Redis != nil {
		if data, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			var cached Summary
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	totals, err := s.Q.GetSalesTotals(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	expenses, err := s.Q.GetExpenseTotal(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		From:         from,
		To:           to,
		Orders:       totals.Orders,
		Revenue:      totals.Revenue,
		Discounts:    totals.Discounts,
		CostTotal:    totals.CostTotal,
		GrossProfit:  totals.Profit,
		ExpenseTotal: expenses,
		NetProfit:    totals.Profit - expenses,
	}

	if s.Redis != nil {
		ttl := s.CacheTTL
		if ttl <= 0 {
			ttl = 2 * time.Minute
		}
		if data, err := json.Marshal(summary); err == nil {
			_ = s.Redis.Set(ctx, key, data, ttl).Err()
		}
	}
	return summary, nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	iter := s.Redis.Scan(ctx, 0, "sales:summary:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = s.Redis.Del(ctx, keys...).Err()
	}
}

func summaryKey(from, to time.Time) string {
	return fmt.Sprintf("sales:summary:%d:%d", from.Unix(), to.Unix())
}
