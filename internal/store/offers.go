package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Offer is the persisted form of a promotional rule.
type Offer struct {
	ID          uuid.UUID
	Code        string
	Kind        string
	Value       int64
	Percent     int32
	MaxDiscount *int64
	MinPurchase int64
	StartsAt    *time.Time
	EndsAt      *time.Time
	UsageLimit  *int32
	UsedCount   int32
	Active      bool
	ProductIDs  []uuid.UUID
	CategoryIDs []uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const offerColumns = `id, code, kind, value, percent, max_discount, min_purchase, starts_at, ends_at, usage_limit, used_count, active, product_ids, category_ids, created_at, updated_at`

func scanOffer(row interface{ Scan(...any) error }) (Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.Code, &o.Kind, &o.Value, &o.Percent, &o.MaxDiscount, &o.MinPurchase,
		&o.StartsAt, &o.EndsAt, &o.UsageLimit, &o.UsedCount, &o.Active, &o.ProductIDs, &o.CategoryIDs,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetOfferByCode fetches one offer by its code.
func (s *Store) GetOfferByCode(ctx context.Context, code string) (Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE code = $1`, code)
	o, err := scanOffer(row)
	if err != nil {
		return Offer{}, mapRowErr(err)
	}
	return o, nil
}

// GetOfferByCodeForUpdate locks the offer row inside the current transaction.
func (s *Store) GetOfferByCodeForUpdate(ctx context.Context, code string) (Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE code = $1 FOR UPDATE`, code)
	o, err := scanOffer(row)
	if err != nil {
		return Offer{}, mapRowErr(err)
	}
	return o, nil
}

// ListOffers returns every offer, newest first.
func (s *Store) ListOffers(ctx context.Context) ([]Offer, error) {
	rows, err := s.db.Query(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertOfferParams carries the admin offer form payload.
type UpsertOfferParams struct {
	Code        string
	Kind        string
	Value       int64
	Percent     int32
	MaxDiscount *int64
	MinPurchase int64
	StartsAt    *time.Time
	EndsAt      *time.Time
	UsageLimit  *int32
	Active      bool
	ProductIDs  []uuid.UUID
	CategoryIDs []uuid.UUID
}

// CreateOffer inserts a new offer rule.
func (s *Store) CreateOffer(ctx context.Context, arg UpsertOfferParams) (Offer, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO offers (code, kind, value, percent, max_discount, min_purchase, starts_at, ends_at, usage_limit, active, product_ids, category_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+offerColumns,
		arg.Code, arg.Kind, arg.Value, arg.Percent, arg.MaxDiscount, arg.MinPurchase,
		arg.StartsAt, arg.EndsAt, arg.UsageLimit, arg.Active, arg.ProductIDs, arg.CategoryIDs)
	o, err := scanOffer(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Offer{}, ErrConflict
		}
		return Offer{}, err
	}
	return o, nil
}

// UpdateOffer rewrites an offer identified by code. UsedCount is never
// touched here; redemptions own that column.
func (s *Store) UpdateOffer(ctx context.Context, arg UpsertOfferParams) (Offer, error) {
	row := s.db.QueryRow(ctx, `UPDATE offers
SET kind = $2, value = $3, percent = $4, max_discount = $5, min_purchase = $6,
    starts_at = $7, ends_at = $8, usage_limit = $9, active = $10,
    product_ids = $11, category_ids = $12, updated_at = now()
WHERE code = $1
RETURNING `+offerColumns,
		arg.Code, arg.Kind, arg.Value, arg.Percent, arg.MaxDiscount, arg.MinPurchase,
		arg.StartsAt, arg.EndsAt, arg.UsageLimit, arg.Active, arg.ProductIDs, arg.CategoryIDs)
	o, err := scanOffer(row)
	if err != nil {
		return Offer{}, mapRowErr(err)
	}
	return o, nil
}

// DeleteOffer removes an offer by code.
func (s *Store) DeleteOffer(ctx context.Context, code string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM offers WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOfferUsageByOrder reports whether a redemption was already recorded for
// the order, making settlement idempotent.
func (s *Store) GetOfferUsageByOrder(ctx context.Context, offerID, orderID uuid.UUID) (int64, error) {
	var amount int64
	err := s.db.QueryRow(ctx, `SELECT amount FROM offer_usages WHERE offer_id = $1 AND order_id = $2`, offerID, orderID).Scan(&amount)
	if err != nil {
		return 0, mapRowErr(err)
	}
	return amount, nil
}

// InsertOfferUsage records one redemption.
func (s *Store) InsertOfferUsage(ctx context.Context, offerID, orderID uuid.UUID, amount int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO offer_usages (offer_id, order_id, amount) VALUES ($1, $2, $3)`, offerID, orderID, amount)
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// IncrementOfferUsage bumps the global usage counter.
func (s *Store) IncrementOfferUsage(ctx context.Context, offerID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE offers SET used_count = used_count + 1, updated_at = now() WHERE id = $1`, offerID)
	return err
}
