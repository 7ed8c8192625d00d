package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/api/responses"
	"github.com/sobacalgary/backoffice/api/validators"
	"github.com/sobacalgary/backoffice/internal/store"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

type storeCatalogService interface {
	ListItems(ctx context.Context, category string) ([]store.ItemDTO, error)
	GetItem(ctx context.Context, id uuid.UUID) (*store.ItemDTO, error)
}

type storeCheckoutService interface {
	CreateCheckout(ctx context.Context, input store.OrderInput) (*store.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, sessionID string) (*store.VerifyResult, error)
}

type orderFinder interface {
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error)
}

type orderVerifyResponse struct {
	Success      bool                `json:"success"`
	OrderID      uuid.UUID           `json:"order_id"`
	Status       enums.PaymentStatus `json:"status"`
	CustomerName string              `json:"customer_name,omitempty"`
	TotalCents   int64               `json:"total_cents,omitempty"`
	Message      string              `json:"message,omitempty"`
}

// StoreItems lists the public catalog, optionally narrowed by category.
func StoreItems(svc storeCatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		category := validators.SanitizeString(r.URL.Query().Get("category"), 100)
		items, err := svc.ListItems(r.Context(), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// StoreItemDetail returns a single catalog item.
func StoreItemDetail(svc storeCatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		itemID, err := validators.ParsePathUUID(strings.TrimSpace(chi.URLParam(r, "itemId")), "item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// StoreCheckout creates a pending order, reserves stock, and opens a hosted
// session for the cart total.
func StoreCheckout(svc storeCheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		var body store.OrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckout(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// StoreVerify confirms a session and returns the receipt fields the order
// confirmation page renders.
func StoreVerify(svc storeCheckoutService, orders orderFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		var body store.VerifyInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), body.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := orderVerifyResponse{
			Success: result.Status == enums.PaymentStatusCompleted,
			OrderID: result.OrderID,
			Status:  result.Status,
		}
		if resp.Success && orders != nil {
			order, err := orders.FindOrderByID(r.Context(), result.OrderID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order receipt"))
				return
			}
			if order != nil {
				resp.CustomerName = order.CustomerName
				resp.TotalCents = order.TotalCents
			}
		}
		if !resp.Success {
			resp.Message = unpaidSessionMessage(result.Status)
		}
		responses.WriteSuccess(w, resp)
	}
}
