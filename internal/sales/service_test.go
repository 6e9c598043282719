package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

type stubQueries struct {
	orders      []store.Order
	orderItems  []store.InsertOrderItemParams
	expenses    map[uuid.UUID]store.Expense
	totals      store.SalesTotals
	totalsCalls int
}

func newStubQueries() *stubQueries {
	return &stubQueries{expenses: map[uuid.UUID]store.Expense{}}
}

func (s *stubQueries) CreateOrder(_ context.Context, arg store.CreateOrderParams) (store.Order, error) {
	o := store.Order{
		ID:           uuid.New(),
		Channel:      arg.Channel,
		CustomerName: arg.CustomerName,
		Subtotal:     arg.Subtotal,
		Discount:     arg.Discount,
		DeliveryFee:  arg.DeliveryFee,
		Total:        arg.Total,
		CostTotal:    arg.CostTotal,
		Profit:       arg.Profit,
		Note:         arg.Note,
		Status:       arg.Status,
		CreatedAt:    time.Now(),
	}
	s.orders = append(s.orders, o)
	return o, nil
}

func (s *stubQueries) InsertOrderItem(_ context.Context, arg store.InsertOrderItemParams) error {
	s.orderItems = append(s.orderItems, arg)
	return nil
}

func (s *stubQueries) GetOrder(_ context.Context, id uuid.UUID) (store.Order, error) {
	for _, o := range s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return store.Order{}, store.ErrNotFound
}

func (s *stubQueries) GetSalesTotals(context.Context, time.Time, time.Time) (store.SalesTotals, error) {
	s.totalsCalls++
	return s.totals, nil
}

func (s *stubQueries) CreateExpense(_ context.Context, arg store.CreateExpenseParams) (store.Expense, error) {
	e := store.Expense{ID: uuid.New(), Label: arg.Label, Category: arg.Category, Amount: arg.Amount, IncurredAt: arg.IncurredAt}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *stubQueries) ListExpenses(context.Context, time.Time, time.Time) ([]store.Expense, error) {
	var out []store.Expense
	for _, e := range s.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (s *stubQueries) DeleteExpense(_ context.Context, id uuid.UUID) error {
	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *stubQueries) GetExpenseTotal(context.Context, time.Time, time.Time) (int64, error) {
	var total int64
	for _, e := range s.expenses {
		total += e.Amount
	}
	return total, nil
}

func testService(t *testing.T, q *stubQueries) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		Q:        q,
		Redis:    client,
		CacheTTL: time.Minute,
		Now:      func() time.Time { return time.Date(2026, 4, 18, 9, 0, 0, 0, time.UTC) },
	}
}

func TestRecordSaleComputesTotals(t *testing.T) {
	q := newStubQueries()
	svc := testService(t, q)
	cost := pricing.Money(4_000)

	order, err := svc.RecordSale(context.Background(), ManualSaleInput{
		CustomerName: "Commande anniversaire",
		Lines: []ManualLine{
			{Name: "Gateau personnalise", Qty: 1, UnitPrice: 25_000, CostPrice: &cost},
			{Name: "Bougies", Qty: 2, UnitPrice: 500},
		},
		Discount:    1_000,
		DeliveryFee: 2_000,
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if order.Subtotal != 26_000 || order.Discount != 1_000 || order.DeliveryFee != 2_000 || order.Total != 27_000 {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Channel != store.ChannelManual {
		t.Fatalf("channel = %q, want manual", order.Channel)
	}
	if order.CostTotal != 4_000 || order.Profit != 21_000 {
		t.Fatalf("cost figures: cost=%d profit=%d", order.CostTotal, order.Profit)
	}
	if len(q.orderItems) != 2 {
		t.Fatalf("order items = %d, want 2", len(q.orderItems))
	}
}

func TestRecordSaleRejectsEmptyLines(t *testing.T) {
	q := newStubQueries()
	svc := testService(t, q)

	_, err := svc.RecordSale(context.Background(), ManualSaleInput{CustomerName: "X"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRecordSaleClampsDiscount(t *testing.T) {
	q := newStubQueries()
	svc := testService(t, q)

	order, err := svc.RecordSale(context.Background(), ManualSaleInput{
		CustomerName: "Remise totale",
		Lines:        []ManualLine{{Name: "Chausson", Qty: 1, UnitPrice: 900}},
		Discount:     5_000,
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if order.Discount != 900 || order.Total != 0 {
		t.Fatalf("discount not clamped: %+v", order)
	}
}

func TestSummaryAggregatesAndCaches(t *testing.T) {
	q := newStubQueries()
	svc := testService(t, q)
	q.totals = store.SalesTotals{Orders: 12, Revenue: 180_000, Discounts: 6_000, CostTotal: 80_000, Profit: 94_000}
	if _, err := svc.AddExpense(context.Background(), store.CreateExpenseParams{
		Label: "Farine T45", Category: "ingredients", Amount: 30_000,
	}); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	summary, err := svc.GetSummary(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Revenue != 180_000 || summary.GrossProfit != 94_000 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.ExpenseTotal != 30_000 || summary.NetProfit != 64_000 {
		t.Fatalf("net figures: %+v", summary)
	}

	// Second read is served from cache.
	calls := q.totalsCalls
	if _, err := svc.GetSummary(context.Background(), from, to); err != nil {
		t.Fatalf("summary again: %v", err)
	}
	if q.totalsCalls != calls {
		t.Fatal("expected cached summary")
	}

	// Recording a sale invalidates the cache.
	if _, err := svc.RecordSale(context.Background(), ManualSaleInput{
		CustomerName: "Client comptoir",
		Lines:        []ManualLine{{Name: "Pain au chocolat", Qty: 3, UnitPrice: 600}},
	}); err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if _, err := svc.GetSummary(context.Background(), from, to); err != nil {
		t.Fatalf("summary after sale: %v", err)
	}
	if q.totalsCalls != calls+1 {
		t.Fatal("expected summary recomputed after invalidation")
	}
}

func TestRemoveExpense(t *testing.T) {
	q := newStubQueries()
	svc := testService(t, q)
	e, err := svc.AddExpense(context.Background(), store.CreateExpenseParams{
		Label: "Cartons patisserie", Category: "emballage", Amount: 12_500,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.RemoveExpense(context.Background(), e.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RemoveExpense(context.Background(), e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
