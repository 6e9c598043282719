package offer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/common"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// AdminQuerier captures the database methods required by admin handlers.
type AdminQuerier interface {
	CreateOffer(ctx context.Context, arg store.UpsertOfferParams) (store.Offer, error)
	UpdateOffer(ctx context.Context, arg store.UpsertOfferParams) (store.Offer, error)
	DeleteOffer(ctx context.Context, code string) error
	GetOfferByCode(ctx context.Context, code string) (store.Offer, error)
	ListOffers(ctx context.Context) ([]store.Offer, error)
}

// Handler exposes offer management and preview endpoints.
type Handler struct {
	Q        AdminQuerier
	Svc      *Service
	Validate *validator.Validate
}

type offerPayload struct {
	Code        string     `json:"code" validate:"required,min=2,max=32"`
	Kind        string     `json:"kind" validate:"required,oneof=percent fixed_amount"`
	Value       int64      `json:"value" validate:"min=0"`
	Percent     int32      `json:"percent" validate:"min=0,max=100"`
	MaxDiscount *int64     `json:"maxDiscount" validate:"omitempty,gt=0"`
	MinPurchase int64      `json:"minPurchase" validate:"min=0"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
	UsageLimit  *int32     `json:"usageLimit" validate:"omitempty,gt=0"`
	Active      *bool      `json:"active"`
	ProductIDs  []string   `json:"productIds" validate:"dive,uuid_rfc4122"`
	CategoryIDs []string   `json:"categoryIds" validate:"dive,uuid_rfc4122"`
}

type previewRequest struct {
	Code     string               `json:"code" validate:"required"`
	Subtotal int64                `json:"subtotal" validate:"min=0"`
	Items    []previewRequestItem `json:"items" validate:"required,min=1,dive"`
}

type previewRequestItem struct {
	ProductID  *string `json:"productId" validate:"omitempty,uuid_rfc4122"`
	CategoryID *string `json:"categoryId" validate:"omitempty,uuid_rfc4122"`
	Subtotal   int64   `json:"subtotal" validate:"min=0"`
}

type offerResponse struct {
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	Value       int64      `json:"value"`
	Percent     int32      `json:"percent"`
	MaxDiscount *int64     `json:"maxDiscount,omitempty"`
	MinPurchase int64      `json:"minPurchase"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	UsageLimit  *int32     `json:"usageLimit,omitempty"`
	UsedCount   int32      `json:"usedCount"`
	Active      bool       `json:"active"`
	ProductIDs  []string   `json:"productIds,omitempty"`
	CategoryIDs []string   `json:"categoryIds,omitempty"`
}

func toResponse(o store.Offer) offerResponse {
	return offerResponse{
		Code:        o.Code,
		Kind:        o.Kind,
		Value:       o.Value,
		Percent:     o.Percent,
		MaxDiscount: o.MaxDiscount,
		MinPurchase: o.MinPurchase,
		StartsAt:    o.StartsAt,
		EndsAt:      o.EndsAt,
		UsageLimit:  o.UsageLimit,
		UsedCount:   o.UsedCount,
		Active:      o.Active,
		ProductIDs:  uuidStrings(o.ProductIDs),
		CategoryIDs: uuidStrings(o.CategoryIDs),
	}
}

func (h *Handler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

// Create inserts a new offer rule after validating its configuration.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer queries not configured", nil)
		return
	}
	var payload offerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	params, err := buildParams(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_OFFER", err.Error(), nil)
		return
	}
	row, err := h.Q.CreateOffer(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "offer code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create offer", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(row)})
}

// Update mutates an existing offer identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer queries not configured", nil)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var payload offerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = code
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	params, err := buildParams(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_OFFER", err.Error(), nil)
		return
	}
	row, err := h.Q.UpdateOffer(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update offer", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(row)})
}

// Get returns one offer by code.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer queries not configured", nil)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	row, err := h.Q.GetOfferByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load offer", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(row)})
}

// List returns every configured offer.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer queries not configured", nil)
		return
	}
	rows, err := h.Q.ListOffers(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list offers", nil)
		return
	}
	out := make([]offerResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toResponse(row))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Delete removes an offer by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer queries not configured", nil)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	if err := h.Q.DeleteOffer(r.Context(), code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete offer", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview returns the simulated discount for a cart snapshot without
// persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	items, err := toEngineItems(req.Items)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, req.Subtotal, items)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func buildParams(payload offerPayload) (store.UpsertOfferParams, error) {
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if code == "" {
		return store.UpsertOfferParams{}, errors.New("code is required")
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	productIDs, err := parseUUIDs(payload.ProductIDs)
	if err != nil {
		return store.UpsertOfferParams{}, err
	}
	categoryIDs, err := parseUUIDs(payload.CategoryIDs)
	if err != nil {
		return store.UpsertOfferParams{}, err
	}
	if payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt) {
		return store.UpsertOfferParams{}, errors.New("endsAt precedes startsAt")
	}

	rule := Rule{
		Code:        code,
		Kind:        Kind(payload.Kind),
		Value:       pricing.Money(payload.Value),
		Percent:     payload.Percent,
		MaxDiscount: payload.MaxDiscount,
		MinPurchase: pricing.Money(payload.MinPurchase),
	}
	if err := rule.CheckConfig(); err != nil {
		return store.UpsertOfferParams{}, err
	}

	return store.UpsertOfferParams{
		Code:        code,
		Kind:        payload.Kind,
		Value:       payload.Value,
		Percent:     payload.Percent,
		MaxDiscount: payload.MaxDiscount,
		MinPurchase: payload.MinPurchase,
		StartsAt:    payload.StartsAt,
		EndsAt:      payload.EndsAt,
		UsageLimit:  payload.UsageLimit,
		Active:      active,
		ProductIDs:  productIDs,
		CategoryIDs: categoryIDs,
	}, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		parsed, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func toEngineItems(items []previewRequestItem) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Subtotal <= 0 {
			continue
		}
		item := Item{Subtotal: it.Subtotal}
		if it.ProductID != nil && strings.TrimSpace(*it.ProductID) != "" {
			parsed, err := uuid.Parse(strings.TrimSpace(*it.ProductID))
			if err != nil {
				return nil, err
			}
			item.ProductID = &parsed
		}
		if it.CategoryID != nil && strings.TrimSpace(*it.CategoryID) != "" {
			parsed, err := uuid.Parse(strings.TrimSpace(*it.CategoryID))
			if err != nil {
				return nil, err
			}
			item.CategoryID = &parsed
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil, errors.New("no valid items provided")
	}
	return out, nil
}
