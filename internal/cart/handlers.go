package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/common"
	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// TokenHeader carries the anonymous cart token issued to storefront clients.
const TokenHeader = "X-Cart-Token"

// Handler exposes the cart HTTP surface.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid_rfc4122"`
	Qty       int    `json:"qty" validate:"required,min=1,max=500"`
}

type updateQtyRequest struct {
	Qty int `json:"qty" validate:"required,min=1,max=500"`
}

type applyOfferRequest struct {
	Code string `json:"code" validate:"required,min=2,max=40"`
}

type itemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int32  `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

type quoteResponse struct {
	CartID    string          `json:"cartId"`
	Items     []itemResponse  `json:"items"`
	OfferCode *string         `json:"offerCode,omitempty"`
	Summary   pricing.Summary `json:"summary"`
}

// EnsureCart returns the cart bound to the caller's token, creating both
// when the token is new or absent.
func (h *Handler) EnsureCart(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		token = uuid.NewString()
	}
	cart, err := h.Svc.Ensure(r.Context(), token)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not open cart", nil)
		return
	}
	w.Header().Set(TokenHeader, cart.AnonToken)
	common.JSON(w, http.StatusOK, map[string]any{
		"id":        cart.ID.String(),
		"token":     cart.AnonToken,
		"expiresAt": cart.ExpiresAt,
	})
}

// GetQuote renders the cart with its pricing summary.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	quote, err := h.Svc.GetQuote(r.Context(), cartID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toQuoteResponse(quote))
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product id", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, productID, req.Qty); err != nil {
		h.writeErr(w, err)
		return
	}
	h.respondQuote(w, r, cartID, http.StatusCreated)
}

// UpdateItem changes the quantity of a line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid item id", nil)
		return
	}
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), itemID, req.Qty); err != nil {
		h.writeErr(w, err)
		return
	}
	h.respondQuote(w, r, cartID, http.StatusOK)
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeErr(w, err)
		return
	}
	h.respondQuote(w, r, cartID, http.StatusOK)
}

// ApplyOffer attaches a promo code to the cart.
func (h *Handler) ApplyOffer(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var req applyOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return
	}
	if _, err := h.Svc.ApplyOffer(r.Context(), cartID, req.Code); err != nil {
		h.writeErr(w, err)
		return
	}
	h.respondQuote(w, r, cartID, http.StatusOK)
}

// RemoveOffer detaches the promo code from the cart.
func (h *Handler) RemoveOffer(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveOffer(r.Context(), cartID); err != nil {
		h.writeErr(w, err)
		return
	}
	h.respondQuote(w, r, cartID, http.StatusOK)
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "cartID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondQuote(w http.ResponseWriter, r *http.Request, cartID uuid.UUID, status int) {
	quote, err := h.Svc.GetQuote(r.Context(), cartID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, status, toQuoteResponse(quote))
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, offer.ErrNotApplicable),
		errors.Is(err, offer.ErrInactive),
		errors.Is(err, offer.ErrNotStarted),
		errors.Is(err, offer.ErrExpired),
		errors.Is(err, offer.ErrUsageLimitReached),
		errors.Is(err, offer.ErrMinPurchaseUnmet):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}

func toQuoteResponse(q Quote) quoteResponse {
	items := make([]itemResponse, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, itemResponse{
			ID:        it.ID.String(),
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return quoteResponse{
		CartID:    q.Cart.ID.String(),
		Items:     items,
		OfferCode: q.OfferCode,
		Summary:   q.Summary,
	}
}
