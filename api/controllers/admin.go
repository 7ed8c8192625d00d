package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/api/responses"
	"github.com/sobacalgary/backoffice/api/validators"
	"github.com/sobacalgary/backoffice/internal/donations"
	"github.com/sobacalgary/backoffice/internal/members"
	"github.com/sobacalgary/backoffice/internal/store"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/pagination"
)

type adminMemberRepository interface {
	List(ctx context.Context, filter members.ListFilter, cursor *pagination.Cursor, limit int) ([]models.Member, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type adminDonationRepository interface {
	List(ctx context.Context, filter donations.ListFilter, cursor *pagination.Cursor, limit int) ([]models.Donation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error
}

type adminOrderRepository interface {
	ListOrders(ctx context.Context, filter store.OrderListFilter, cursor *pagination.Cursor, limit int) ([]models.StoreOrder, error)
}

type adminStoreService interface {
	ListItems(ctx context.Context, category string) ([]store.ItemDTO, error)
	GetItem(ctx context.Context, id uuid.UUID) (*store.ItemDTO, error)
	CreateItem(ctx context.Context, input store.ItemInput) (*store.ItemDTO, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input store.ItemInput) (*store.ItemDTO, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

type adminListResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type memberFlagsInput struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func listParams(r *http.Request, logg *logger.Logger, w http.ResponseWriter) (int, *pagination.Cursor, bool) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return 0, nil, false
	}
	cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cursor"))
		return 0, nil, false
	}
	return limit, cursor, true
}

func statusFilter(r *http.Request) (*enums.PaymentStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParsePaymentStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "status")
	}
	return &status, nil
}

// AdminMembers lists members with optional paid filter and name/email search.
func AdminMembers(repo adminMemberRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member repository unavailable"))
			return
		}

		limit, cursor, ok := listParams(r, logg, w)
		if !ok {
			return
		}

		filter := members.ListFilter{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 200),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("is_paid")); raw != "" {
			isPaid, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "is_paid"))
				return
			}
			filter.IsPaid = &isPaid
		}

		rows, err := repo.List(r.Context(), filter, cursor, limit+1)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members"))
			return
		}

		next := ""
		if len(rows) > limit {
			rows = rows[:limit]
			last := rows[len(rows)-1]
			next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
		responses.WriteSuccess(w, adminListResponse{Items: members.ToDTOs(rows), NextCursor: next})
	}
}

// AdminMemberFlags flips the admin-managed active flag.
func AdminMemberFlags(repo adminMemberRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member repository unavailable"))
			return
		}

		memberID, err := validators.ParsePathUUID(strings.TrimSpace(chi.URLParam(r, "memberId")), "member id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body memberFlagsInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.SetActive(r.Context(), memberID, *body.IsActive); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "member not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member flags"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": memberID, "is_active": *body.IsActive})
	}
}

// AdminDonations lists donations with optional status and category filters.
func AdminDonations(repo adminDonationRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "donation repository unavailable"))
			return
		}

		limit, cursor, ok := listParams(r, logg, w)
		if !ok {
			return
		}
		status, err := statusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := donations.ListFilter{
			Status:   status,
			Category: validators.SanitizeString(r.URL.Query().Get("category"), 100),
		}

		rows, err := repo.List(r.Context(), filter, cursor, limit+1)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donations"))
			return
		}

		next := ""
		if len(rows) > limit {
			rows = rows[:limit]
			last := rows[len(rows)-1]
			next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
		responses.WriteSuccess(w, adminListResponse{Items: donations.ToDTOs(rows), NextCursor: next})
	}
}

// AdminDonationRefund marks a completed donation refunded. The money moves in
// the Stripe dashboard; this endpoint records the outcome.
func AdminDonationRefund(repo adminDonationRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "donation repository unavailable"))
			return
		}

		donationID, err := validators.ParsePathUUID(strings.TrimSpace(chi.URLParam(r, "donationId")), "donation id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		donation, err := repo.FindByID(r.Context(), donationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "donation not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load donation"))
			return
		}
		if donation.Status != enums.PaymentStatusCompleted {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "only completed donations can be refunded"))
			return
		}

		if err := repo.UpdateStatus(r.Context(), donationID, enums.PaymentStatusRefunded); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark donation refunded"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": donationID, "status": enums.PaymentStatusRefunded})
	}
}

// AdminOrders lists store orders with an optional status filter.
func AdminOrders(repo adminOrderRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		limit, cursor, ok := listParams(r, logg, w)
		if !ok {
			return
		}
		status, err := statusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := repo.ListOrders(r.Context(), store.OrderListFilter{Status: status}, cursor, limit+1)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		next := ""
		if len(rows) > limit {
			rows = rows[:limit]
			last := rows[len(rows)-1]
			next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
		responses.WriteSuccess(w, adminListResponse{Items: store.OrdersToDTOs(rows), NextCursor: next})
	}
}

// AdminStoreItems lists the catalog including out-of-stock items.
func AdminStoreItems(svc adminStoreService, logg *logger.Logger) http.HandlerFunc {
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

// AdminStoreItemCreate adds a catalog item.
func AdminStoreItemCreate(svc adminStoreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		var body store.ItemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// AdminStoreItemUpdate replaces a catalog item's editable fields.
func AdminStoreItemUpdate(svc adminStoreService, logg *logger.Logger) http.HandlerFunc {
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

		var body store.ItemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItem(r.Context(), itemID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdminStoreItemDelete removes a catalog item.
func AdminStoreItemDelete(svc adminStoreService, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.DeleteItem(r.Context(), itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": itemID, "deleted": true})
	}
}
