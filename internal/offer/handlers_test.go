package offer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

type fakeAdminQueries struct {
	offers map[string]store.Offer
}

func newFakeAdminQueries() *fakeAdminQueries {
	return &fakeAdminQueries{offers: map[string]store.Offer{}}
}

func (f *fakeAdminQueries) CreateOffer(ctx context.Context, arg store.UpsertOfferParams) (store.Offer, error) {
	if _, ok := f.offers[arg.Code]; ok {
		return store.Offer{}, store.ErrConflict
	}
	row := rowFromParams(arg)
	f.offers[arg.Code] = row
	return row, nil
}

func (f *fakeAdminQueries) UpdateOffer(ctx context.Context, arg store.UpsertOfferParams) (store.Offer, error) {
	if _, ok := f.offers[arg.Code]; !ok {
		return store.Offer{}, store.ErrNotFound
	}
	row := rowFromParams(arg)
	f.offers[arg.Code] = row
	return row, nil
}

func (f *fakeAdminQueries) DeleteOffer(ctx context.Context, code string) error {
	if _, ok := f.offers[code]; !ok {
		return store.ErrNotFound
	}
	delete(f.offers, code)
	return nil
}

func (f *fakeAdminQueries) GetOfferByCode(ctx context.Context, code string) (store.Offer, error) {
	row, ok := f.offers[code]
	if !ok {
		return store.Offer{}, store.ErrNotFound
	}
	return row, nil
}

func (f *fakeAdminQueries) ListOffers(ctx context.Context) ([]store.Offer, error) {
	out := make([]store.Offer, 0, len(f.offers))
	for _, row := range f.offers {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeAdminQueries) GetOfferUsageByOrder(ctx context.Context, offerID, orderID uuid.UUID) (int64, error) {
	return 0, store.ErrNotFound
}

func (f *fakeAdminQueries) InsertOfferUsage(ctx context.Context, offerID, orderID uuid.UUID, amount int64) error {
	return nil
}

func (f *fakeAdminQueries) IncrementOfferUsage(ctx context.Context, offerID uuid.UUID) error {
	return nil
}

func rowFromParams(arg store.UpsertOfferParams) store.Offer {
	return store.Offer{
		Code:        arg.Code,
		Kind:        arg.Kind,
		Value:       arg.Value,
		Percent:     arg.Percent,
		MaxDiscount: arg.MaxDiscount,
		MinPurchase: arg.MinPurchase,
		StartsAt:    arg.StartsAt,
		EndsAt:      arg.EndsAt,
		UsageLimit:  arg.UsageLimit,
		Active:      arg.Active,
		ProductIDs:  arg.ProductIDs,
		CategoryIDs: arg.CategoryIDs,
	}
}

func newHandler(q *fakeAdminQueries) *offer.Handler {
	return &offer.Handler{
		Q:        q,
		Svc:      &offer.Service{Q: q},
		Validate: validator.New(),
	}
}

func TestCreateOffer(t *testing.T) {
	h := newHandler(newFakeAdminQueries())
	body := `{"code":"paques25","kind":"percent","percent":25,"maxDiscount":10000,"minPurchase":5000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Code    string `json:"code"`
			Percent int32  `json:"percent"`
			Active  bool   `json:"active"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "PAQUES25", resp.Data.Code)
	require.Equal(t, int32(25), resp.Data.Percent)
	require.True(t, resp.Data.Active)
}

func TestCreateOfferRejectsBadPercent(t *testing.T) {
	h := newHandler(newFakeAdminQueries())
	body := `{"code":"TROP","kind":"percent","percent":150}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOfferRejectsZeroFixedAmount(t *testing.T) {
	h := newHandler(newFakeAdminQueries())
	body := `{"code":"RIEN","kind":"fixed_amount","value":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOfferConflict(t *testing.T) {
	q := newFakeAdminQueries()
	h := newHandler(q)
	body := `{"code":"NOEL","kind":"fixed_amount","value":1500}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	q := newFakeAdminQueries()
	h := newHandler(q)
	create := `{"code":"BIENVENUE","kind":"percent","percent":10}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(create)))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"code":"BIENVENUE","subtotal":8500,"items":[{"subtotal":8500}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offers/preview", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.Preview(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data offer.PreviewResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 850, resp.Data.Discount)
}

func TestPreviewIneligible(t *testing.T) {
	h := newHandler(newFakeAdminQueries())
	body := `{"code":"ABSENT","subtotal":8500,"items":[{"subtotal":8500}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offers/preview", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Preview(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
