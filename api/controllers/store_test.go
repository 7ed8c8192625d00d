package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/internal/store"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
)

func TestStoreCheckout(t *testing.T) {
	logg := testLogger()
	validBody := `{
		"customer_name": "Ben Ayuk",
		"customer_email": "ben@example.com",
		"shipping_address": "45 Elsewhere Rd, Calgary",
		"items": [{"store_item_id": "` + uuid.NewString() + `", "quantity": 2}]
	}`

	t.Run("success returns 201 with order total", func(t *testing.T) {
		stub := &stubStoreCheckoutService{
			checkout: &store.CheckoutResponse{
				OrderID:    uuid.New(),
				TotalCents: 5000,
				SessionID:  "cs_test_store",
				SessionURL: "https://checkout.stripe.com/c/pay/cs_test_store",
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/store/create-checkout", strings.NewReader(validBody))
		rec := httptest.NewRecorder()
		StoreCheckout(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("insufficient stock returns 400", func(t *testing.T) {
		stub := &stubStoreCheckoutService{
			checkoutErr: pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock for item"),
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/store/create-checkout", strings.NewReader(validBody))
		rec := httptest.NewRecorder()
		StoreCheckout(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("empty cart returns 400 without service call", func(t *testing.T) {
		stub := &stubStoreCheckoutService{}
		body := `{"customer_name":"Ben Ayuk","customer_email":"ben@example.com","shipping_address":"45 Elsewhere Rd","items":[]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/store/create-checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		StoreCheckout(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if stub.checkoutCalls != 0 {
			t.Fatalf("service must not run for an empty cart")
		}
	})
}

func TestStoreVerify(t *testing.T) {
	logg := testLogger()

	t.Run("paid order includes receipt fields", func(t *testing.T) {
		orderID := uuid.New()
		stub := &stubStoreCheckoutService{
			verify: &store.VerifyResult{OrderID: orderID, Status: enums.PaymentStatusCompleted, NewlyCompleted: true},
		}
		finder := &stubOrderFinder{
			order: &models.StoreOrder{ID: orderID, CustomerName: "Ben Ayuk", TotalCents: 5000},
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/store/verify-payment", strings.NewReader(`{"session_id":"cs_test_store1"}`))
		rec := httptest.NewRecorder()
		StoreVerify(stub, finder, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		var envelope struct {
			Data orderVerifyResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !envelope.Data.Success {
			t.Fatalf("expected success true")
		}
		if envelope.Data.CustomerName != "Ben Ayuk" || envelope.Data.TotalCents != 5000 {
			t.Fatalf("expected receipt fields, got %+v", envelope.Data)
		}
	})

	t.Run("unpaid order returns success false without receipt", func(t *testing.T) {
		stub := &stubStoreCheckoutService{
			verify: &store.VerifyResult{OrderID: uuid.New(), Status: enums.PaymentStatusPending},
		}
		finder := &stubOrderFinder{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/store/verify-payment", strings.NewReader(`{"session_id":"cs_test_store2"}`))
		rec := httptest.NewRecorder()
		StoreVerify(stub, finder, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var envelope struct {
			Data orderVerifyResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data.Success {
			t.Fatalf("expected success false")
		}
		if finder.calls != 0 {
			t.Fatalf("receipt lookup should be skipped for unpaid orders")
		}
	})
}

func TestStoreItemDetail(t *testing.T) {
	logg := testLogger()

	t.Run("invalid id returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/store/items/not-a-uuid", nil)
		req = withURLParam(req, "itemId", "not-a-uuid")
		rec := httptest.NewRecorder()
		StoreItemDetail(&stubStoreCatalogService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing item returns 404", func(t *testing.T) {
		itemID := uuid.New()
		stub := &stubStoreCatalogService{
			getErr: pkgerrors.New(pkgerrors.CodeNotFound, "store item not found"),
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/store/items/"+itemID.String(), nil)
		req = withURLParam(req, "itemId", itemID.String())
		rec := httptest.NewRecorder()
		StoreItemDetail(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

type stubStoreCheckoutService struct {
	checkout      *store.CheckoutResponse
	checkoutErr   error
	checkoutCalls int
	verify        *store.VerifyResult
	verifyErr     error
}

func (s *stubStoreCheckoutService) CreateCheckout(ctx context.Context, input store.OrderInput) (*store.CheckoutResponse, error) {
	s.checkoutCalls++
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	return s.checkout, nil
}

func (s *stubStoreCheckoutService) VerifyPayment(ctx context.Context, sessionID string) (*store.VerifyResult, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verify, nil
}

type stubOrderFinder struct {
	order *models.StoreOrder
	calls int
}

func (s *stubOrderFinder) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error) {
	s.calls++
	return s.order, nil
}

type stubStoreCatalogService struct {
	items  []store.ItemDTO
	item   *store.ItemDTO
	getErr error
}

func (s *stubStoreCatalogService) ListItems(ctx context.Context, category string) ([]store.ItemDTO, error) {
	return s.items, nil
}

func (s *stubStoreCatalogService) GetItem(ctx context.Context, id uuid.UUID) (*store.ItemDTO, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.item, nil
}
