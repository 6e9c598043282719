package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cart holds an anonymous shopper's basket.
type Cart struct {
	ID               uuid.UUID
	AnonToken        string
	AppliedOfferCode *string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// CartItem is one product line inside a cart. Unit price and subtotal are
// snapshotted at add time so later price edits do not mutate open carts.
type CartItem struct {
	ID         uuid.UUID
	CartID     uuid.UUID
	ProductID  uuid.UUID
	CategoryID *uuid.UUID
	Name       string
	Qty        int32
	UnitPrice  int64
	Subtotal   int64
}

const cartColumns = `id, anon_token, applied_offer_code, created_at, expires_at`

// CreateCart inserts a cart for the given anonymous token.
func (s *Store) CreateCart(ctx context.Context, anonToken string, expiresAt time.Time) (Cart, error) {
	var c Cart
	err := s.db.QueryRow(ctx, `INSERT INTO carts (anon_token, expires_at) VALUES ($1, $2)
RETURNING `+cartColumns, anonToken, expiresAt).
		Scan(&c.ID, &c.AnonToken, &c.AppliedOfferCode, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Cart{}, ErrConflict
		}
		return Cart{}, err
	}
	return c, nil
}

// GetCart fetches a cart by id.
func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	var c Cart
	err := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id).
		Scan(&c.ID, &c.AnonToken, &c.AppliedOfferCode, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return Cart{}, mapRowErr(err)
	}
	return c, nil
}

// GetCartByToken fetches the active cart attached to an anonymous token.
func (s *Store) GetCartByToken(ctx context.Context, anonToken string) (Cart, error) {
	var c Cart
	err := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE anon_token = $1 AND expires_at > now()`, anonToken).
		Scan(&c.ID, &c.AnonToken, &c.AppliedOfferCode, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return Cart{}, mapRowErr(err)
	}
	return c, nil
}

// TouchCart pushes the cart expiry forward.
func (s *Store) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET expires_at = $2 WHERE id = $1`, id, expiresAt)
	return err
}

// SetCartOffer attaches or clears the applied offer code.
func (s *Store) SetCartOffer(ctx context.Context, id uuid.UUID, code *string) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET applied_offer_code = $2 WHERE id = $1`, id, code)
	return err
}

// DeleteCart removes a cart and cascades to its items.
func (s *Store) DeleteCart(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return err
}

// ListCartItems returns the cart lines joined with their category for offer
// scope matching.
func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx, `SELECT ci.id, ci.cart_id, ci.product_id, p.category_id, ci.name, ci.qty, ci.unit_price, ci.subtotal
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.CategoryID, &it.Name, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindCartItem locates a line by cart and product.
func (s *Store) FindCartItem(ctx context.Context, cartID, productID uuid.UUID) (CartItem, error) {
	var it CartItem
	err := s.db.QueryRow(ctx, `SELECT ci.id, ci.cart_id, ci.product_id, p.category_id, ci.name, ci.qty, ci.unit_price, ci.subtotal
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1 AND ci.product_id = $2`, cartID, productID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.CategoryID, &it.Name, &it.Qty, &it.UnitPrice, &it.Subtotal)
	if err != nil {
		return CartItem{}, mapRowErr(err)
	}
	return it, nil
}

// GetCartItem fetches one line by id.
func (s *Store) GetCartItem(ctx context.Context, id uuid.UUID) (CartItem, error) {
	var it CartItem
	err := s.db.QueryRow(ctx, `SELECT ci.id, ci.cart_id, ci.product_id, p.category_id, ci.name, ci.qty, ci.unit_price, ci.subtotal
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.id = $1`, id).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.CategoryID, &it.Name, &it.Qty, &it.UnitPrice, &it.Subtotal)
	if err != nil {
		return CartItem{}, mapRowErr(err)
	}
	return it, nil
}

// InsertCartItemParams carries a new cart line.
type InsertCartItemParams struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// InsertCartItem adds a line to a cart.
func (s *Store) InsertCartItem(ctx context.Context, arg InsertCartItemParams) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, name, qty, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)`, arg.CartID, arg.ProductID, arg.Name, arg.Qty, arg.UnitPrice, arg.Subtotal)
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// UpdateCartItemQty rewrites quantity and the snapshotted subtotal.
func (s *Store) UpdateCartItemQty(ctx context.Context, id uuid.UUID, qty int32, subtotal int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE cart_items SET qty = $2, subtotal = $3 WHERE id = $1`, id, qty, subtotal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartItem removes a line from a cart.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCartItems empties a cart after checkout.
func (s *Store) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
