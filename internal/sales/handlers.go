package sales

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fatou-sy/backend-patisserie/internal/common"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

// Handler exposes the back-office sales and accounting endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Currency string
}

type manualLinePayload struct {
	ProductID *string `json:"productId" validate:"omitempty,uuid_rfc4122"`
	Name      string  `json:"name" validate:"required,min=1,max=120"`
	Qty       int     `json:"qty" validate:"required,min=1,max=500"`
	UnitPrice int64   `json:"unitPrice" validate:"required,gt=0"`
	CostPrice *int64  `json:"costPrice" validate:"omitempty,gte=0"`
}

type manualSalePayload struct {
	CustomerName string              `json:"customerName" validate:"required,min=2,max=120"`
	Phone        string              `json:"phone" validate:"omitempty,max=30"`
	Address      string              `json:"address" validate:"omitempty,max=500"`
	Lines        []manualLinePayload `json:"lines" validate:"required,min=1,dive"`
	Discount     int64               `json:"discount" validate:"gte=0"`
	DeliveryFee  int64               `json:"deliveryFee" validate:"gte=0"`
	Note         *string             `json:"note" validate:"omitempty,max=1000"`
}

type expensePayload struct {
	Label      string `json:"label" validate:"required,min=2,max=200"`
	Category   string `json:"category" validate:"required,min=2,max=60"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	IncurredAt string `json:"incurredAt" validate:"omitempty"`
}

// RecordSale handles manual sale capture.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req manualSalePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return
	}

	lines := make([]ManualLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		line := ManualLine{Name: strings.TrimSpace(l.Name), Qty: l.Qty, UnitPrice: l.UnitPrice}
		if l.ProductID != nil {
			id, err := uuid.Parse(*l.ProductID)
			if err != nil {
				common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product id", nil)
				return
			}
			line.ProductID = &id
		}
		if l.CostPrice != nil {
			c := pricing.Money(*l.CostPrice)
			line.CostPrice = &c
		}
		lines = append(lines, line)
	}

	order, err := h.Svc.RecordSale(r.Context(), ManualSaleInput{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Lines:        lines,
		Discount:     req.Discount,
		DeliveryFee:  req.DeliveryFee,
		Note:         req.Note,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, h.orderView(order))
}

// GetOrder returns one order for the back office.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order id", nil)
		return
	}
	order, err := h.Svc.Q.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, h.orderView(order))
}

// GetSummary serves the accounting summary for a period. Defaults to the
// current month when no bounds are provided.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	summary, err := h.Svc.GetSummary(r.Context(), from, to)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, summary)
}

// AddExpense records an expense.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req expensePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", err.Error())
		return
	}
	var incurred time.Time
	if strings.TrimSpace(req.IncurredAt) != "" {
		parsed, err := time.Parse(time.RFC3339, req.IncurredAt)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "incurredAt must be RFC 3339", nil)
			return
		}
		incurred = parsed
	}
	expense, err := h.Svc.AddExpense(r.Context(), store.CreateExpenseParams{
		Label:      strings.TrimSpace(req.Label),
		Category:   strings.TrimSpace(req.Category),
		Amount:     req.Amount,
		IncurredAt: incurred,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, expenseView(expense))
}

// ListExpenses serves expenses for a period.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	expenses, err := h.Svc.ListExpenses(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not list expenses", nil)
		return
	}
	out := make([]map[string]any, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseView(e))
	}
	common.JSON(w, http.StatusOK, out)
}

// RemoveExpense deletes an expense.
func (h *Handler) RemoveExpense(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid expense id", nil)
		return
	}
	if err := h.Svc.RemoveExpense(r.Context(), id); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) period(r *http.Request) (time.Time, time.Time, error) {
	now := h.Svc.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func (h *Handler) currency() string {
	if h == nil || h.Currency == "" {
		return "FCFA"
	}
	return h.Currency
}

func (h *Handler) orderView(o store.Order) map[string]any {
	return map[string]any{
		"id":           o.ID.String(),
		"channel":      o.Channel,
		"customerName": o.CustomerName,
		"subtotal":     o.Subtotal,
		"discount":     o.Discount,
		"deliveryFee":  o.DeliveryFee,
		"total":        o.Total,
		"totalLabel":   pricing.Format(o.Total, h.currency()),
		"costTotal":    o.CostTotal,
		"profit":       o.Profit,
		"offerCode":    o.OfferCode,
		"status":       o.Status,
		"createdAt":    o.CreatedAt,
	}
}

func expenseView(e store.Expense) map[string]any {
	return map[string]any{
		"id":         e.ID.String(),
		"label":      e.Label,
		"category":   e.Category,
		"amount":     e.Amount,
		"incurredAt": e.IncurredAt,
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "record not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}
