package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/obs"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrConflict indicates a slug collision on create.
var ErrConflict = errors.New("product already exists")

// Querier captures the database methods the catalog service depends on.
type Querier interface {
	ListProducts(ctx context.Context, arg store.ListProductsParams) ([]store.Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (store.Product, error)
	CreateProduct(ctx context.Context, arg store.CreateProductParams) (store.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, arg store.CreateProductParams) (store.Product, error)
	ListCategories(ctx context.Context) ([]store.Category, error)
	CreateCategory(ctx context.Context, name, slug string) (store.Category, error)
}

// ListParams filters the public product listing.
type ListParams struct {
	Page     int
	Limit    int
	Category string
	Search   string
}

// ProductView is the public product representation.
type ProductView struct {
	ID          string  `json:"id"`
	CategoryID  *string `json:"categoryId,omitempty"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	Price       int64   `json:"price"`
	PriceLabel  string  `json:"priceLabel"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Active      bool    `json:"active"`
}

// AdminProductView extends the public view with cost and margin figures.
type AdminProductView struct {
	ProductView
	CostPrice     *int64   `json:"costPrice,omitempty"`
	MarginPercent *float64 `json:"marginPercent,omitempty"`
}

// ListResult is a page of products with pagination metadata.
type ListResult struct {
	Items []ProductView `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// Service wraps catalog reads behind a Redis cache and exposes the
// admin write path that invalidates it.
type Service struct {
	Q             Querier
	Cache         *Cache
	CurrencyLabel string
}

func (s *Service) currency() string {
	if s == nil || s.CurrencyLabel == "" {
		return "FCFA"
	}
	return s.CurrencyLabel
}

// List returns a page of products, served from cache when the request is
// the unfiltered storefront default.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 24
	}

	key, cacheable := listCacheKey(params)
	if cacheable && s.Cache != nil {
		var cached ListResult
		ok, err := s.Cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			countCacheLookup("hit")
			cached.Page = params.Page
			cached.Limit = params.Limit
			return cached, nil
		}
		countCacheLookup("miss")
	}

	rows, total, err := s.Q.ListProducts(ctx, store.ListProductsParams{
		CategorySlug: params.Category,
		Query:        params.Search,
		ActiveOnly:   true,
		Limit:        int32(params.Limit),
		Offset:       int32((params.Page - 1) * params.Limit),
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}

	items := make([]ProductView, 0, len(rows))
	for _, p := range rows {
		items = append(items, s.toView(p))
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if cacheable && s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, result)
	}
	return result, nil
}

// GetBySlug returns a single product for the storefront.
func (s *Service) GetBySlug(ctx context.Context, slug string) (ProductView, error) {
	key := detailCacheKey(slug)
	if s.Cache != nil {
		var cached ProductView
		ok, err := s.Cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			countCacheLookup("hit")
			return cached, nil
		}
		countCacheLookup("miss")
	}
	p, err := s.Q.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProductView{}, ErrNotFound
		}
		return ProductView{}, err
	}
	if !p.Active {
		return ProductView{}, ErrNotFound
	}
	view := s.toView(p)
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, view)
	}
	return view, nil
}

// Categories lists all product categories.
func (s *Service) Categories(ctx context.Context) ([]store.Category, error) {
	return s.Q.ListCategories(ctx)
}

// Create inserts a product and evicts affected cache entries.
func (s *Service) Create(ctx context.Context, arg store.CreateProductParams) (AdminProductView, error) {
	p, err := s.Q.CreateProduct(ctx, arg)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return AdminProductView{}, ErrConflict
		}
		return AdminProductView{}, err
	}
	s.evict(ctx, p.Slug)
	return s.toAdminView(p), nil
}

// Update replaces a product's mutable fields and evicts affected cache entries.
func (s *Service) Update(ctx context.Context, id uuid.UUID, arg store.CreateProductParams) (AdminProductView, error) {
	before, err := s.Q.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AdminProductView{}, ErrNotFound
		}
		return AdminProductView{}, err
	}
	p, err := s.Q.UpdateProduct(ctx, id, arg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AdminProductView{}, ErrNotFound
		}
		if errors.Is(err, store.ErrConflict) {
			return AdminProductView{}, ErrConflict
		}
		return AdminProductView{}, err
	}
	s.evict(ctx, before.Slug, p.Slug)
	return s.toAdminView(p), nil
}

// GetAdmin returns the admin representation of one product.
func (s *Service) GetAdmin(ctx context.Context, id uuid.UUID) (AdminProductView, error) {
	p, err := s.Q.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AdminProductView{}, ErrNotFound
		}
		return AdminProductView{}, err
	}
	return s.toAdminView(p), nil
}

func (s *Service) evict(ctx context.Context, slugs ...string) {
	if s.Cache == nil {
		return
	}
	keys := []string{defaultListKey}
	for _, slug := range slugs {
		if slug != "" {
			keys = append(keys, detailCacheKey(slug))
		}
	}
	_ = s.Cache.Del(ctx, keys...)
}

func (s *Service) toView(p store.Product) ProductView {
	var categoryID *string
	if p.CategoryID != nil {
		id := p.CategoryID.String()
		categoryID = &id
	}
	return ProductView{
		ID:          p.ID.String(),
		CategoryID:  categoryID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		PriceLabel:  pricing.Format(p.Price, s.currency()),
		ImageURL:    p.ImageURL,
		Active:      p.Active,
	}
}

func (s *Service) toAdminView(p store.Product) AdminProductView {
	view := AdminProductView{ProductView: s.toView(p), CostPrice: p.CostPrice}
	if p.CostPrice != nil {
		var cost pricing.Money = *p.CostPrice
		totals, err := pricing.ComputeLine(pricing.Line{Qty: 1, UnitPrice: p.Price, CostPrice: &cost})
		if err == nil {
			view.MarginPercent = pricing.MarginPercent(totals)
		}
	}
	return view
}

func countCacheLookup(result string) {
	if obs.CatalogCacheTotal != nil {
		obs.CatalogCacheTotal.WithLabelValues(result).Inc()
	}
}

const defaultListKey = "catalog:list:default"

func listCacheKey(params ListParams) (string, bool) {
	if params.Page == 1 && params.Limit == 24 && strings.TrimSpace(params.Category) == "" && strings.TrimSpace(params.Search) == "" {
		return defaultListKey, true
	}
	return "", false
}

func detailCacheKey(slug string) string {
	return "catalog:product:" + strings.TrimSpace(strings.ToLower(slug))
}
