package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order channels distinguish web checkouts from back-office manual sales.
const (
	ChannelWeb    = "web"
	ChannelManual = "manual"
)

// Order is a settled purchase with its pricing summary snapshotted.
type Order struct {
	ID           uuid.UUID
	Channel      string
	CustomerName string
	Phone        string
	Address      string
	Subtotal     int64
	Discount     int64
	DeliveryFee  int64
	Total        int64
	CostTotal    int64
	Profit       int64
	OfferCode    *string
	Note         *string
	Status       string
	CreatedAt    time.Time
}

// OrderItem is a snapshotted purchase line.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID *uuid.UUID
	Name      string
	Qty       int32
	UnitPrice int64
	CostPrice *int64
	Subtotal  int64
}

// CreateOrderParams carries a fully computed order.
type CreateOrderParams struct {
	Channel      string
	CustomerName string
	Phone        string
	Address      string
	Subtotal     int64
	Discount     int64
	DeliveryFee  int64
	Total        int64
	CostTotal    int64
	Profit       int64
	OfferCode    *string
	Note         *string
	Status       string
}

const orderColumns = `id, channel, customer_name, phone, COALESCE(address, ''), subtotal, discount, delivery_fee, total, cost_total, profit, offer_code, note, status, created_at`

// CreateOrder inserts an order row.
func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	var o Order
	err := s.db.QueryRow(ctx, `INSERT INTO orders (channel, customer_name, phone, address, subtotal, discount, delivery_fee, total, cost_total, profit, offer_code, note, status)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+orderColumns,
		arg.Channel, arg.CustomerName, arg.Phone, arg.Address, arg.Subtotal, arg.Discount,
		arg.DeliveryFee, arg.Total, arg.CostTotal, arg.Profit, arg.OfferCode, arg.Note, arg.Status).
		Scan(&o.ID, &o.Channel, &o.CustomerName, &o.Phone, &o.Address, &o.Subtotal, &o.Discount,
			&o.DeliveryFee, &o.Total, &o.CostTotal, &o.Profit, &o.OfferCode, &o.Note, &o.Status, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// InsertOrderItemParams carries one order line snapshot.
type InsertOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID *uuid.UUID
	Name      string
	Qty       int32
	UnitPrice int64
	CostPrice *int64
	Subtotal  int64
}

// InsertOrderItem snapshots a line onto an order.
func (s *Store) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) error {
	_, err := s.db.Exec(ctx, `INSERT INTO order_items (order_id, product_id, name, qty, unit_price, cost_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		arg.OrderID, arg.ProductID, arg.Name, arg.Qty, arg.UnitPrice, arg.CostPrice, arg.Subtotal)
	return err
}

// GetOrder fetches one order by id.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	err := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Channel, &o.CustomerName, &o.Phone, &o.Address, &o.Subtotal, &o.Discount,
			&o.DeliveryFee, &o.Total, &o.CostTotal, &o.Profit, &o.OfferCode, &o.Note, &o.Status, &o.CreatedAt)
	if err != nil {
		return Order{}, mapRowErr(err)
	}
	return o, nil
}

// SalesTotals aggregates revenue figures over [from, to).
type SalesTotals struct {
	Orders    int64
	Revenue   int64
	Discounts int64
	CostTotal int64
	Profit    int64
}

// GetSalesTotals sums settled orders for the accounting summary.
func (s *Store) GetSalesTotals(ctx context.Context, from, to time.Time) (SalesTotals, error) {
	var t SalesTotals
	err := s.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(discount), 0), COALESCE(SUM(cost_total), 0), COALESCE(SUM(profit), 0)
FROM orders
WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2`, from, to).
		Scan(&t.Orders, &t.Revenue, &t.Discounts, &t.CostTotal, &t.Profit)
	return t, err
}
