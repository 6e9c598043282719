package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product is a catalog row. CostPrice is nullable so that margin reporting
// can distinguish "unknown cost" from a zero cost.
type Product struct {
	ID          uuid.UUID
	CategoryID  *uuid.UUID
	Name        string
	Slug        string
	Description string
	Price       int64
	CostPrice   *int64
	ImageURL    *string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category groups products (tartes, viennoiseries, entremets, ...).
type Category struct {
	ID   uuid.UUID
	Name string
	Slug string
}

const productColumns = `id, category_id, name, slug, COALESCE(description, ''), price, cost_price, image_url, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.CostPrice, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProductsParams filters the public product listing.
type ListProductsParams struct {
	CategorySlug string
	Query        string
	ActiveOnly   bool
	Limit        int32
	Offset       int32
}

// ListProducts returns a filtered page of products plus the total count.
func (s *Store) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if arg.ActiveOnly {
		where = append(where, "p.active")
	}
	if strings.TrimSpace(arg.CategorySlug) != "" {
		args = append(args, strings.TrimSpace(arg.CategorySlug))
		where = append(where, fmt.Sprintf("p.category_id = (SELECT id FROM categories WHERE slug = $%d)", len(args)))
	}
	if strings.TrimSpace(arg.Query) != "" {
		args = append(args, "%"+strings.TrimSpace(arg.Query)+"%")
		where = append(where, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM products p WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, arg.Limit, arg.Offset)
	q := fmt.Sprintf(`SELECT p.id, p.category_id, p.name, p.slug, COALESCE(p.description, ''), p.price, p.cost_price, p.image_url, p.active, p.created_at, p.updated_at
FROM products p WHERE %s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetProductBySlug fetches one product by its public slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, mapRowErr(err)
	}
	return p, nil
}

// GetProductByID fetches one product by id.
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, mapRowErr(err)
	}
	return p, nil
}

// CreateProductParams carries the admin product form payload.
type CreateProductParams struct {
	CategoryID  *uuid.UUID
	Name        string
	Slug        string
	Description string
	Price       int64
	CostPrice   *int64
	ImageURL    *string
	Active      bool
}

// CreateProduct inserts a product and returns the stored row.
func (s *Store) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO products (category_id, name, slug, description, price, cost_price, image_url, active)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
RETURNING `+productColumns, arg.CategoryID, arg.Name, arg.Slug, arg.Description, arg.Price, arg.CostPrice, arg.ImageURL, arg.Active)
	p, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrConflict
		}
		return Product{}, err
	}
	return p, nil
}

// UpdateProduct replaces the mutable fields of a product.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, arg CreateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `UPDATE products
SET category_id = $2, name = $3, slug = $4, description = NULLIF($5, ''), price = $6, cost_price = $7, image_url = $8, active = $9, updated_at = now()
WHERE id = $1
RETURNING `+productColumns, id, arg.CategoryID, arg.Name, arg.Slug, arg.Description, arg.Price, arg.CostPrice, arg.ImageURL, arg.Active)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, mapRowErr(err)
	}
	return p, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category, used by the seeder and admin tooling.
func (s *Store) CreateCategory(ctx context.Context, name, slug string) (Category, error) {
	var c Category
	err := s.db.QueryRow(ctx, `INSERT INTO categories (name, slug) VALUES ($1, $2)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, slug`, name, slug).Scan(&c.ID, &c.Name, &c.Slug)
	if err != nil {
		return Category{}, err
	}
	return c, nil
}
