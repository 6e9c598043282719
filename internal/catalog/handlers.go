package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/common"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// Handler exposes the catalog HTTP surface.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type productPayload struct {
	CategoryID  *string `json:"categoryId" validate:"omitempty,uuid_rfc4122"`
	Name        string  `json:"name" validate:"required,min=2,max=120"`
	Slug        string  `json:"slug" validate:"required,min=2,max=120"`
	Description string  `json:"description" validate:"max=2000"`
	Price       int64   `json:"price" validate:"required,gt=0"`
	CostPrice   *int64  `json:"costPrice" validate:"omitempty,gte=0"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	Active      *bool   `json:"active"`
}

// ListProducts serves the public storefront listing.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 24)
	result, err := h.Svc.List(r.Context(), ListParams{
		Page:     page,
		Limit:    limit,
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not list products", nil)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// GetProduct serves one product by slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	view, err := h.Svc.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, view)
}

// ListCategories serves the category index.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Svc.Categories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not list categories", nil)
		return
	}
	out := make([]map[string]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, map[string]string{"id": c.ID.String(), "name": c.Name, "slug": c.Slug})
	}
	common.JSON(w, http.StatusOK, out)
}

// CreateProduct handles the admin product form.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	arg, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Create(r.Context(), arg)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, view)
}

// UpdateProduct handles admin product edits.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product id", nil)
		return
	}
	arg, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Update(r.Context(), id, arg)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view)
}

// GetAdminProduct returns cost and margin fields alongside the public ones.
func (h *Handler) GetAdminProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product id", nil)
		return
	}
	view, err := h.Svc.GetAdmin(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view)
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (store.CreateProductParams, bool) {
	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return store.CreateProductParams{}, false
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return store.CreateProductParams{}, false
	}
	var categoryID *uuid.UUID
	if req.CategoryID != nil {
		id, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid category id", nil)
			return store.CreateProductParams{}, false
		}
		categoryID = &id
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return store.CreateProductParams{
		CategoryID:  categoryID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        strings.ToLower(strings.TrimSpace(req.Slug)),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		CostPrice:   req.CostPrice,
		ImageURL:    req.ImageURL,
		Active:      active,
	}, true
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrConflict):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "slug already in use", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}
