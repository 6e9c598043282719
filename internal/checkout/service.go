package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fatou-sy/backend-patisserie/internal/lock"
	"github.com/fatou-sy/backend-patisserie/internal/obs"
	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

var (
	// ErrCartNotFound indicates the cart does not exist or has expired.
	ErrCartNotFound = errors.New("cart not found")
	// ErrEmptyCart indicates there is nothing to purchase.
	ErrEmptyCart = errors.New("cart is empty")
)

// Querier captures the database methods checkout needs inside one transaction.
type Querier interface {
	GetCart(ctx context.Context, id uuid.UUID) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (store.Product, error)
	GetOfferByCodeForUpdate(ctx context.Context, code string) (store.Offer, error)
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	InsertOrderItem(ctx context.Context, arg store.InsertOrderItemParams) error
	InsertOfferUsage(ctx context.Context, offerID, orderID uuid.UUID, amount int64) error
	IncrementOfferUsage(ctx context.Context, offerID uuid.UUID) error
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error
	SetCartOffer(ctx context.Context, id uuid.UUID, code *string) error
}

// TxRunner executes a closure inside a database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Querier) error) error
}

// PoolRunner is the production TxRunner backed by a pgx pool.
type PoolRunner struct {
	Pool *pgxpool.Pool
	Base *store.Store
}

// WithinTx runs fn in a transaction, committing only when fn succeeds.
func (p PoolRunner) WithinTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(p.Base.WithTx(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// CustomerInput carries the delivery form submitted at checkout.
type CustomerInput struct {
	Name    string
	Phone   string
	Address string
	Note    *string
}

// Result is the settled order with its pricing summary.
type Result struct {
	Order   store.Order
	Summary pricing.Summary
}

// Service turns a cart into a settled order.
type Service struct {
	Tx       TxRunner
	Locks    lock.Locker
	Delivery pricing.DeliveryPolicy
	LockTTL  time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PlaceOrder settles the cart into an order. The offer attached to the cart
// is re-validated under a row lock so its usage limit holds even when two
// checkouts race on the same code. The cart is emptied on success.
func (s *Service) PlaceOrder(ctx context.Context, cartID uuid.UUID, input CustomerInput) (Result, error) {
	if s == nil || s.Tx == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	var result Result
	run := func(ctx context.Context) error {
		return s.Tx.WithinTx(ctx, func(q Querier) error {
			settled, err := s.settle(ctx, q, cartID, input)
			if err != nil {
				return err
			}
			result = settled
			return nil
		})
	}

	var err error
	if s.Locks.R != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 15 * time.Second
		}
		err = s.Locks.WithLock(ctx, "checkout:cart:"+cartID.String(), ttl, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		countOrder(store.ChannelWeb, "error")
		return Result{}, err
	}
	countOrder(store.ChannelWeb, "ok")
	observeOrder(result.Order)
	return result, nil
}

func (s *Service) settle(ctx context.Context, q Querier, cartID uuid.UUID, input CustomerInput) (Result, error) {
	cart, err := q.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, ErrCartNotFound
		}
		return Result{}, err
	}
	items, err := q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return Result{}, ErrEmptyCart
	}

	lines := make([]pricing.Line, 0, len(items))
	offerItems := make([]offer.Item, 0, len(items))
	costs := make([]*int64, len(items))
	var subtotal pricing.Money
	for i := range items {
		it := items[i]
		p, err := q.GetProductByID(ctx, it.ProductID)
		switch {
		case err == nil:
			costs[i] = p.CostPrice
		case errors.Is(err, store.ErrNotFound):
			// product deleted after snapshot; cost stays unknown
		default:
			return Result{}, err
		}
		var cost *pricing.Money
		if costs[i] != nil {
			c := pricing.Money(*costs[i])
			cost = &c
		}
		lines = append(lines, pricing.Line{Qty: int(it.Qty), UnitPrice: it.UnitPrice, CostPrice: cost})
		offerItems = append(offerItems, offer.Item{Subtotal: it.Subtotal, ProductID: &items[i].ProductID, CategoryID: items[i].CategoryID})
		subtotal += it.Subtotal
	}

	var discount pricing.Money
	var appliedCode *string
	var appliedOffer *store.Offer
	if cart.AppliedOfferCode != nil && *cart.AppliedOfferCode != "" {
		row, err := q.GetOfferByCodeForUpdate(ctx, *cart.AppliedOfferCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Result{}, offer.ErrNotApplicable
			}
			return Result{}, err
		}
		rule := offer.RuleFromRow(row)
		if err := rule.Validate(s.now(), subtotal); err != nil {
			countRedemption("settle", "rejected")
			return Result{}, err
		}
		eligible := offer.EligibleSubtotal(offerItems, rule)
		if eligible <= 0 {
			countRedemption("settle", "rejected")
			return Result{}, offer.ErrNotApplicable
		}
		discount, err = offer.Compute(eligible, rule)
		if err != nil {
			return Result{}, err
		}
		appliedCode = &row.Code
		appliedOffer = &row
	}

	summary, err := pricing.ComputeOrder(lines, s.Delivery, discount)
	if err != nil {
		return Result{}, err
	}

	var costTotal pricing.Money
	for i := range lines {
		totals, err := pricing.ComputeLine(lines[i])
		if err != nil {
			return Result{}, err
		}
		costTotal += totals.Cost
	}
	// Unknown cost prices contribute zero, so profit is an upper bound
	// when some products have no recorded cost.
	profit := summary.Subtotal - summary.Discount - costTotal

	order, err := q.CreateOrder(ctx, store.CreateOrderParams{
		Channel:      store.ChannelWeb,
		CustomerName: input.Name,
		Phone:        input.Phone,
		Address:      input.Address,
		Subtotal:     summary.Subtotal,
		Discount:     summary.Discount,
		DeliveryFee:  summary.DeliveryFee,
		Total:        summary.Total,
		CostTotal:    costTotal,
		Profit:       profit,
		OfferCode:    appliedCode,
		Note:         input.Note,
		Status:       "confirmed",
	})
	if err != nil {
		return Result{}, err
	}

	for i := range items {
		it := items[i]
		productID := it.ProductID
		if err := q.InsertOrderItem(ctx, store.InsertOrderItemParams{
			OrderID:   order.ID,
			ProductID: &productID,
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			CostPrice: costs[i],
			Subtotal:  it.Subtotal,
		}); err != nil {
			return Result{}, err
		}
	}

	if appliedOffer != nil && summary.Discount > 0 {
		if err := q.InsertOfferUsage(ctx, appliedOffer.ID, order.ID, summary.Discount); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				return Result{}, err
			}
		} else if err := q.IncrementOfferUsage(ctx, appliedOffer.ID); err != nil {
			return Result{}, err
		}
		countRedemption("settle", "ok")
		if obs.DiscountGrantedTotal != nil {
			obs.DiscountGrantedTotal.Add(float64(summary.Discount))
		}
	}

	if err := q.ClearCartItems(ctx, cart.ID); err != nil {
		return Result{}, err
	}
	if err := q.SetCartOffer(ctx, cart.ID, nil); err != nil {
		return Result{}, err
	}

	return Result{Order: order, Summary: summary}, nil
}

func countOrder(channel, result string) {
	if obs.OrdersTotal != nil {
		obs.OrdersTotal.WithLabelValues(channel, result).Inc()
	}
}

func countRedemption(stage, result string) {
	if obs.OfferRedemptionTotal != nil {
		obs.OfferRedemptionTotal.WithLabelValues(stage, result).Inc()
	}
}

func observeOrder(o store.Order) {
	if obs.OrderAmount != nil {
		obs.OrderAmount.WithLabelValues(o.Channel).Observe(float64(o.Total))
	}
}
