package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

type stubTx struct {
	carts      map[uuid.UUID]store.Cart
	items      map[uuid.UUID][]store.CartItem
	products   map[uuid.UUID]store.Product
	offers     map[string]store.Offer
	orders     []store.Order
	orderItems []store.InsertOrderItemParams
	usages     map[uuid.UUID][]uuid.UUID
	increments map[uuid.UUID]int
	productErr error
}

func newStubTx() *stubTx {
	return &stubTx{
		carts:      map[uuid.UUID]store.Cart{},
		items:      map[uuid.UUID][]store.CartItem{},
		products:   map[uuid.UUID]store.Product{},
		offers:     map[string]store.Offer{},
		usages:     map[uuid.UUID][]uuid.UUID{},
		increments: map[uuid.UUID]int{},
	}
}

func (s *stubTx) WithinTx(_ context.Context, fn func(Querier) error) error { return fn(s) }

func (s *stubTx) GetCart(_ context.Context, id uuid.UUID) (store.Cart, error) {
	c, ok := s.carts[id]
	if !ok {
		return store.Cart{}, store.ErrNotFound
	}
	return c, nil
}

func (s *stubTx) ListCartItems(_ context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	return s.items[cartID], nil
}

func (s *stubTx) GetProductByID(_ context.Context, id uuid.UUID) (store.Product, error) {
	if s.productErr != nil {
		return store.Product{}, s.productErr
	}
	p, ok := s.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *stubTx) GetOfferByCodeForUpdate(_ context.Context, code string) (store.Offer, error) {
	o, ok := s.offers[code]
	if !ok {
		return store.Offer{}, store.ErrNotFound
	}
	return o, nil
}

func (s *stubTx) CreateOrder(_ context.Context, arg store.CreateOrderParams) (store.Order, error) {
	o := store.Order{
		ID:           uuid.New(),
		Channel:      arg.Channel,
		CustomerName: arg.CustomerName,
		Phone:        arg.Phone,
		Address:      arg.Address,
		Subtotal:     arg.Subtotal,
		Discount:     arg.Discount,
		DeliveryFee:  arg.DeliveryFee,
		Total:        arg.Total,
		CostTotal:    arg.CostTotal,
		Profit:       arg.Profit,
		OfferCode:    arg.OfferCode,
		Note:         arg.Note,
		Status:       arg.Status,
		CreatedAt:    time.Now(),
	}
	s.orders = append(s.orders, o)
	return o, nil
}

func (s *stubTx) InsertOrderItem(_ context.Context, arg store.InsertOrderItemParams) error {
	s.orderItems = append(s.orderItems, arg)
	return nil
}

func (s *stubTx) InsertOfferUsage(_ context.Context, offerID, orderID uuid.UUID, _ int64) error {
	for _, existing := range s.usages[offerID] {
		if existing == orderID {
			return store.ErrConflict
		}
	}
	s.usages[offerID] = append(s.usages[offerID], orderID)
	return nil
}

func (s *stubTx) IncrementOfferUsage(_ context.Context, offerID uuid.UUID) error {
	s.increments[offerID]++
	return nil
}

func (s *stubTx) ClearCartItems(_ context.Context, cartID uuid.UUID) error {
	delete(s.items, cartID)
	return nil
}

func (s *stubTx) SetCartOffer(_ context.Context, id uuid.UUID, code *string) error {
	c, ok := s.carts[id]
	if !ok {
		return store.ErrNotFound
	}
	c.AppliedOfferCode = code
	s.carts[id] = c
	return nil
}

func testCheckout(tx *stubTx) *Service {
	free := pricing.Money(12_000)
	return &Service{
		Tx: tx,
		Delivery: pricing.DeliveryPolicy{
			Base:          1_500,
			FreeThreshold: &free,
		},
		Now: func() time.Time { return time.Date(2026, 4, 18, 10, 0, 0, 0, time.UTC) },
	}
}

func seedCart(tx *stubTx, unitPrice, cost int64, qty int32) (uuid.UUID, uuid.UUID) {
	cartID := uuid.New()
	productID := uuid.New()
	tx.carts[cartID] = store.Cart{ID: cartID, AnonToken: "tok"}
	c := cost
	tx.products[productID] = store.Product{ID: productID, Name: "Tarte aux fraises", Price: unitPrice, CostPrice: &c, Active: true}
	tx.items[cartID] = []store.CartItem{{
		ID: uuid.New(), CartID: cartID, ProductID: productID,
		Name: "Tarte aux fraises", Qty: qty, UnitPrice: unitPrice, Subtotal: unitPrice * int64(qty),
	}}
	return cartID, productID
}

func TestPlaceOrderComputesTotals(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)
	cartID, _ := seedCart(tx, 4_250, 2_000, 2)

	result, err := svc.PlaceOrder(context.Background(), cartID, CustomerInput{
		Name: "Awa Diop", Phone: "+221770000000", Address: "Dakar, Plateau",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if result.Summary.Subtotal != 8_500 || result.Summary.DeliveryFee != 1_500 || result.Summary.Total != 10_000 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Order.CostTotal != 4_000 || result.Order.Profit != 4_500 {
		t.Fatalf("unexpected cost figures: cost=%d profit=%d", result.Order.CostTotal, result.Order.Profit)
	}
	if result.Order.Status != "confirmed" || result.Order.Channel != store.ChannelWeb {
		t.Fatalf("unexpected order meta: %+v", result.Order)
	}
	if len(tx.orderItems) != 1 || tx.orderItems[0].Qty != 2 || tx.orderItems[0].UnitPrice != 4_250 {
		t.Fatalf("order items not snapshotted: %+v", tx.orderItems)
	}
	if len(tx.items[cartID]) != 0 {
		t.Fatal("cart should be cleared after checkout")
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)
	cartID := uuid.New()
	tx.carts[cartID] = store.Cart{ID: cartID}

	_, err := svc.PlaceOrder(context.Background(), cartID, CustomerInput{Name: "A", Phone: "770", Address: "x"})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
	if len(tx.orders) != 0 {
		t.Fatal("no order should be created")
	}
}

func TestPlaceOrderFailsOnCostLookupError(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)
	cartID, _ := seedCart(tx, 4_250, 2_000, 2)
	tx.productErr = errors.New("connection reset")

	_, err := svc.PlaceOrder(context.Background(), cartID, CustomerInput{Name: "A", Phone: "770", Address: "x"})
	if err == nil || errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected lookup failure to abort checkout, got %v", err)
	}
	if len(tx.orders) != 0 {
		t.Fatal("no order should be created when the cost lookup fails")
	}
	if len(tx.items[cartID]) == 0 {
		t.Fatal("cart must remain intact when checkout aborts")
	}
}

func TestPlaceOrderUnknownCart(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), CustomerInput{Name: "A", Phone: "770", Address: "x"})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("err = %v, want ErrCartNotFound", err)
	}
}

func TestPlaceOrderSettlesOffer(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)
	cartID, _ := seedCart(tx, 6_500, 3_000, 2)

	code := "PAQUES20"
	tx.offers[code] = store.Offer{ID: uuid.New(), Code: code, Kind: string(offer.KindPercent), Percent: 20, Active: true}
	cart := tx.carts[cartID]
	cart.AppliedOfferCode = &code
	tx.carts[cartID] = cart

	result, err := svc.PlaceOrder(context.Background(), cartID, CustomerInput{
		Name: "Moussa Ndiaye", Phone: "+221780000000", Address: "Dakar, Ouakam",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	// 20% of 13 000 = 2 600; subtotal crosses the free delivery threshold.
	if result.Summary.Discount != 2_600 || result.Summary.DeliveryFee != 0 || result.Summary.Total != 10_400 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Order.OfferCode == nil || *result.Order.OfferCode != code {
		t.Fatalf("offer code not recorded: %+v", result.Order.OfferCode)
	}
	offerID := tx.offers[code].ID
	if got := tx.increments[offerID]; got != 1 {
		t.Fatalf("used_count incremented %d times, want 1", got)
	}
	if len(tx.usages[offerID]) != 1 {
		t.Fatalf("usage rows = %d, want 1", len(tx.usages[offerID]))
	}
	if tx.carts[cartID].AppliedOfferCode != nil {
		t.Fatal("cart offer should be cleared after checkout")
	}
}

func TestPlaceOrderRejectsExhaustedOffer(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)
	cartID, _ := seedCart(tx, 5_000, 2_500, 1)

	code := "FLASH"
	limit := int32(10)
	tx.offers[code] = store.Offer{
		ID: uuid.New(), Code: code, Kind: string(offer.KindPercent), Percent: 15, Active: true,
		UsageLimit: &limit, UsedCount: 10,
	}
	cart := tx.carts[cartID]
	cart.AppliedOfferCode = &code
	tx.carts[cartID] = cart

	_, err := svc.PlaceOrder(context.Background(), cartID, CustomerInput{Name: "B", Phone: "770", Address: "y"})
	if !errors.Is(err, offer.ErrUsageLimitReached) {
		t.Fatalf("err = %v, want ErrUsageLimitReached", err)
	}
	if len(tx.orders) != 0 {
		t.Fatal("no order should be created when the offer is exhausted")
	}
}

func TestPlaceOrderDeletedOfferCode(t *testing.T) {
	tx := newStubTx()
	svc := testCheckout(tx)
	cartID, _ := seedCart(tx, 5_000, 2_500, 1)

	code := "DISPARU"
	cart := tx.carts[cartID]
	cart.AppliedOfferCode = &code
	tx.carts[cartID] = cart

	_, err := svc.PlaceOrder(context.Background(), cartID, CustomerInput{Name: "C", Phone: "770", Address: "z"})
	if !errors.Is(err, offer.ErrNotApplicable) {
		t.Fatalf("err = %v, want ErrNotApplicable", err)
	}
}
