package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Querier captures the database methods required by the cart service.
type Querier interface {
	CreateCart(ctx context.Context, anonToken string, expiresAt time.Time) (store.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (store.Cart, error)
	GetCartByToken(ctx context.Context, anonToken string) (store.Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetCartOffer(ctx context.Context, id uuid.UUID, code *string) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	FindCartItem(ctx context.Context, cartID, productID uuid.UUID) (store.CartItem, error)
	GetCartItem(ctx context.Context, id uuid.UUID) (store.CartItem, error)
	InsertCartItem(ctx context.Context, arg store.InsertCartItemParams) error
	UpdateCartItemQty(ctx context.Context, id uuid.UUID, qty int32, subtotal int64) error
	DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error
	GetProductByID(ctx context.Context, id uuid.UUID) (store.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Q        Querier
	Offers   *offer.Service
	Delivery pricing.DeliveryPolicy
	TTL      time.Duration
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ensure loads or creates the cart bound to the provided anonymous token.
func (s *Service) Ensure(ctx context.Context, anonToken string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	if anonToken == "" {
		return store.Cart{}, fmt.Errorf("cart token required: %w", ErrInvalidInput)
	}
	expires := s.now().Add(s.ttl())
	cart, err := s.Q.GetCartByToken(ctx, anonToken)
	if err == nil {
		_ = s.Q.TouchCart(ctx, cart.ID, expires)
		return cart, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Cart{}, err
	}
	return s.Q.CreateCart(ctx, anonToken, expires)
}

// AddItem inserts a product line or increments an existing one. The unit
// price is snapshotted from the catalog at add time.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, productID uuid.UUID, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty < 1 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, pricing.ErrInvalidQuantity)
	}
	cart, err := s.Q.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	existing, err := s.Q.FindCartItem(ctx, cart.ID, productID)
	if err == nil {
		newQty := int(existing.Qty) + qty
		totals, err := pricing.ComputeLine(pricing.Line{Qty: newQty, UnitPrice: existing.UnitPrice})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err := s.Q.UpdateCartItemQty(ctx, existing.ID, int32(newQty), totals.Subtotal); err != nil {
			return err
		}
		_ = s.Q.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	product, err := s.Q.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("unknown product: %w", ErrInvalidInput)
		}
		return err
	}
	if !product.Active {
		return fmt.Errorf("product not available: %w", ErrInvalidInput)
	}
	totals, err := pricing.ComputeLine(pricing.Line{Qty: qty, UnitPrice: product.Price})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.Q.InsertCartItem(ctx, store.InsertCartItemParams{
		CartID:    cart.ID,
		ProductID: product.ID,
		Name:      product.Name,
		Qty:       int32(qty),
		UnitPrice: product.Price,
		Subtotal:  totals.Subtotal,
	}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
	return nil
}

// UpdateQty rewrites the quantity of a cart line. Quantities below one are
// rejected; removing a line is a separate call.
func (s *Service) UpdateQty(ctx context.Context, itemID uuid.UUID, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	item, err := s.Q.GetCartItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	totals, err := pricing.ComputeLine(pricing.Line{Qty: qty, UnitPrice: item.UnitPrice})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.Q.UpdateCartItemQty(ctx, item.ID, int32(qty), totals.Subtotal); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, item.CartID, s.now().Add(s.ttl()))
	return nil
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Q.DeleteCartItem(ctx, cartID, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	_ = s.Q.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// ApplyOffer validates a code against the live cart and attaches it,
// returning the discount it currently grants.
func (s *Service) ApplyOffer(ctx context.Context, cartID uuid.UUID, code string) (pricing.Money, error) {
	if s == nil || s.Q == nil || s.Offers == nil {
		return 0, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	items, subtotal, err := s.snapshot(ctx, cart.ID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("cart empty: %w", ErrInvalidInput)
	}
	result, err := s.Offers.Preview(ctx, code, subtotal, items)
	if err != nil {
		return 0, err
	}
	if err := s.Q.SetCartOffer(ctx, cart.ID, &result.Code); err != nil {
		return 0, err
	}
	_ = s.Q.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
	return result.Discount, nil
}

// RemoveOffer clears the applied code.
func (s *Service) RemoveOffer(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Q.SetCartOffer(ctx, cartID, nil); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// Quote describes a cart with its computed totals.
type Quote struct {
	Cart      store.Cart
	Items     []store.CartItem
	OfferCode *string
	Summary   pricing.Summary
}

// GetQuote computes the full pricing summary for the cart as it stands,
// re-evaluating the applied offer against the current contents. A stale
// code that no longer qualifies is dropped from the quote rather than
// failing it.
func (s *Service) GetQuote(ctx context.Context, cartID uuid.UUID) (Quote, error) {
	if s == nil || s.Q == nil {
		return Quote{}, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, err
	}
	rows, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return Quote{}, err
	}

	items := make([]offer.Item, 0, len(rows))
	var subtotal pricing.Money
	for i := range rows {
		items = append(items, offer.Item{Subtotal: rows[i].Subtotal, ProductID: &rows[i].ProductID, CategoryID: rows[i].CategoryID})
		subtotal += rows[i].Subtotal
	}

	var discount pricing.Money
	var applied *string
	if cart.AppliedOfferCode != nil && *cart.AppliedOfferCode != "" && s.Offers != nil {
		result, err := s.Offers.Preview(ctx, *cart.AppliedOfferCode, subtotal, items)
		switch {
		case err == nil:
			discount = result.Discount
			applied = &result.Code
		case offer.Ineligible(err):
			// stale code; the quote simply stops carrying it
		default:
			return Quote{}, err
		}
	}

	lines := make([]pricing.Line, 0, len(rows))
	for _, it := range rows {
		lines = append(lines, pricing.Line{Qty: int(it.Qty), UnitPrice: it.UnitPrice})
	}
	summary, err := pricing.ComputeOrder(lines, s.Delivery, discount)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Cart: cart, Items: rows, OfferCode: applied, Summary: summary}, nil
}

func (s *Service) snapshot(ctx context.Context, cartID uuid.UUID) ([]offer.Item, pricing.Money, error) {
	rows, err := s.Q.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, 0, err
	}
	items := make([]offer.Item, 0, len(rows))
	var subtotal pricing.Money
	for i := range rows {
		items = append(items, offer.Item{Subtotal: rows[i].Subtotal, ProductID: &rows[i].ProductID, CategoryID: rows[i].CategoryID})
		subtotal += rows[i].Subtotal
	}
	return items, subtotal, nil
}
