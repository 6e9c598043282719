package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/common"
	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Currency string
}

func (h *Handler) currency() string {
	if h == nil || h.Currency == "" {
		return "FCFA"
	}
	return h.Currency
}

type checkoutRequest struct {
	CartID       string  `json:"cartId" validate:"required,uuid_rfc4122"`
	CustomerName string  `json:"customerName" validate:"required,min=2,max=120"`
	Phone        string  `json:"phone" validate:"required,min=6,max=30"`
	Address      string  `json:"address" validate:"required,min=5,max=500"`
	Note         *string `json:"note" validate:"omitempty,max=1000"`
}

type checkoutResponse struct {
	OrderID   string          `json:"orderId"`
	Status    string          `json:"status"`
	OfferCode *string         `json:"offerCode,omitempty"`
	Summary   pricing.Summary `json:"summary"`
	Total     string          `json:"totalLabel"`
}

// PlaceOrder converts the cart into an order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return
	}
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid cart id", nil)
		return
	}

	result, err := h.Svc.PlaceOrder(r.Context(), cartID, CustomerInput{
		Name:    strings.TrimSpace(req.CustomerName),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Note:    req.Note,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}

	common.JSON(w, http.StatusCreated, checkoutResponse{
		OrderID:   result.Order.ID.String(),
		Status:    result.Order.Status,
		OfferCode: result.Order.OfferCode,
		Summary:   result.Summary,
		Total:     pricing.Format(result.Summary.Total, h.currency()),
	})
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, offer.ErrNotApplicable),
		errors.Is(err, offer.ErrInactive),
		errors.Is(err, offer.ErrNotStarted),
		errors.Is(err, offer.ErrExpired),
		errors.Is(err, offer.ErrUsageLimitReached),
		errors.Is(err, offer.ErrMinPurchaseUnmet):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not place order", nil)
	}
}
