package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/internal/checkout"
	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/metrics"
	"github.com/sobacalgary/backoffice/pkg/outbox"
	"github.com/sobacalgary/backoffice/pkg/outbox/payloads"
	stripeclient "github.com/sobacalgary/backoffice/pkg/stripe"
)

const (
	successPath = "store/success"
	cancelPath  = "store/cancelled"
)

type storeRepo interface {
	ListItems(ctx context.Context, category string, inStockOnly bool) ([]models.StoreItem, error)
	FindItemByID(ctx context.Context, id uuid.UUID) (*models.StoreItem, error)
	FindItemsByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]models.StoreItem, error)
	DecrementStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) (int64, error)
	CreateItem(ctx context.Context, item *models.StoreItem) error
	UpdateItem(ctx context.Context, id uuid.UUID, fields map[string]any) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	CreateOrderTx(tx *gorm.DB, order *models.StoreOrder) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error)
	FindOrderLineItemsTx(tx *gorm.DB, orderID uuid.UUID) ([]models.OrderLineItem, error)
	TransitionOrderTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error)
	RestoreStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the store service.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     storeRepo
	Provider checkout.Provider
	Outbox   outboxEmitter
	Metrics  *metrics.PaymentMetrics
	Checkout config.CheckoutConfig
	Timeout  time.Duration
	BaseURL  string
}

// Service manages the catalog and runs store-order checkouts.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	repo     storeRepo
	provider checkout.Provider
	outbox   outboxEmitter
	metrics  *metrics.PaymentMetrics
	checkout config.CheckoutConfig
	timeout  time.Duration
	baseURL  string
}

// NewService builds the store service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store repo required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		provider: params.Provider,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		checkout: params.Checkout,
		timeout:  params.Timeout,
		baseURL:  params.BaseURL,
	}, nil
}

// ListItems returns the public catalog.
func (s *Service) ListItems(ctx context.Context, category string) ([]ItemDTO, error) {
	rows, err := s.repo.ListItems(ctx, category, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list store items")
	}
	return ItemsToDTOs(rows), nil
}

// GetItem returns a single catalog item.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.repo.FindItemByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store item")
	}
	dto := ItemToDTO(item)
	return &dto, nil
}

// CreateCheckout prices the cart from the catalog, reserves stock, records
// a pending order, and opens a hosted checkout session. Stock is reserved
// in the same transaction as the order insert so overselling is impossible.
func (s *Service) CreateCheckout(ctx context.Context, input OrderInput) (*CheckoutResponse, error) {
	method, err := enums.ParsePaymentMethod(string(input.PaymentMethod))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment method")
	}

	quantities, ids, err := collapseLines(input.Items)
	if err != nil {
		return nil, err
	}

	order := &models.StoreOrder{
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		CustomerPhone:   input.CustomerPhone,
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		Status:          enums.PaymentStatusPending,
		PaymentMethod:   method,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.repo.FindItemsByIDsTx(tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store items")
		}
		byID := make(map[uuid.UUID]models.StoreItem, len(items))
		for _, item := range items {
			byID[item.ID] = item
		}

		var total int64
		lines := make([]models.OrderLineItem, 0, len(ids))
		for _, id := range ids {
			item, ok := byID[id]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("store item %s not found", id))
			}
			qty := quantities[id]
			rows, err := s.repo.DecrementStockTx(tx, id, qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for %q", item.Name))
			}
			lineTotal := item.PriceCents * int64(qty)
			total += lineTotal
			lines = append(lines, models.OrderLineItem{
				StoreItemID:    id,
				Name:           item.Name,
				UnitPriceCents: item.PriceCents,
				Quantity:       qty,
				TotalCents:     lineTotal,
			})
		}
		if total <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
		}

		order.TotalCents = total
		order.Items = lines
		if err := s.repo.CreateOrderTx(tx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout")
	}

	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.provider.CreateCheckoutSession(sessionCtx, stripeclient.CheckoutSessionParams{
		ProductName:   "Store Order",
		Description:   fmt.Sprintf("SOBA Calgary store order (%d items)", len(order.Items)),
		AmountCents:   order.TotalCents,
		Currency:      s.checkout.Currency,
		CustomerEmail: order.CustomerEmail,
		SuccessURL:    checkout.SuccessURL(s.baseURL, successPath),
		CancelURL:     checkout.CancelURL(s.baseURL, cancelPath),
		PaymentMethod: method,
		Metadata:      checkout.BuildMetadata(enums.RecordTypeOrder, order.ID),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout session")
	}

	s.metrics.IncSessionCreated(string(enums.RecordTypeOrder))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"session_id":  session.ID,
		"total_cents": order.TotalCents,
	})
	s.logg.Info(logCtx, "store checkout session opened")

	return &CheckoutResponse{
		OrderID:    order.ID,
		TotalCents: order.TotalCents,
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}

// VerifyPayment resolves the provider session and settles the order exactly
// once. Repeat calls for a settled session are idempotent no-ops.
func (s *Service) VerifyPayment(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.provider.GetCheckoutSession(sessionCtx, sessionID)
	if err != nil {
		s.metrics.IncVerification(string(enums.RecordTypeOrder), "dependency_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	ref, err := checkout.ParseMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	if ref.Type != enums.RecordTypeOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session does not belong to a store order")
	}

	if !session.Paid() {
		order, err := s.repo.FindOrderByID(ctx, ref.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.PaymentStatusPending || !session.Expired() {
			return &VerifyResult{OrderID: order.ID, Status: order.Status}, nil
		}
		status, err := s.expireOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{OrderID: order.ID, Status: status}, nil
	}

	result := &VerifyResult{OrderID: ref.ID, Status: enums.PaymentStatusCompleted}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.TransitionOrderTx(tx, ref.ID, enums.PaymentStatusCompleted)
		if err != nil {
			return err
		}
		if rows == 0 {
			order, err := s.repo.FindOrderByID(ctx, ref.ID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return err
			}
			result.Status = order.Status
			return nil
		}

		result.NewlyCompleted = true
		order, err := s.repo.FindOrderByID(ctx, ref.ID)
		if err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCompletedEvent{
				OrderID:       order.ID,
				CustomerEmail: order.CustomerEmail,
				TotalCents:    order.TotalCents,
				ItemCount:     len(order.Items),
				CompletedAt:   time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order payment")
	}

	outcome := "already_completed"
	if result.NewlyCompleted {
		outcome = "completed"
		logCtx := s.logg.WithField(ctx, "order_id", ref.ID.String())
		s.logg.Info(logCtx, "store order payment confirmed")
	}
	s.metrics.IncVerification(string(enums.RecordTypeOrder), outcome)

	return result, nil
}

// expireOrder abandons a pending order whose checkout session lapsed and
// hands the reserved stock back in the same transaction. When the conditional
// transition loses to a concurrent settlement the committed status is
// reported instead.
func (s *Service) expireOrder(ctx context.Context, id uuid.UUID) (enums.PaymentStatus, error) {
	status := enums.PaymentStatusExpired
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.TransitionOrderTx(tx, id, enums.PaymentStatusExpired)
		if err != nil {
			return err
		}
		if rows == 0 {
			order, err := s.repo.FindOrderByID(ctx, id)
			if err != nil {
				return err
			}
			status = order.Status
			return nil
		}

		lines, err := s.repo.FindOrderLineItemsTx(tx, id)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.repo.RestoreStockTx(tx, line.StoreItemID, line.Quantity); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRecordExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.RecordExpiredEvent{
				RecordID:   id,
				RecordType: enums.RecordTypeOrder,
				ExpiredAt:  now,
			},
		})
	})
	if err != nil {
		return status, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stale order")
	}
	return status, nil
}

// CreateItem adds an admin-managed catalog entry.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (*ItemDTO, error) {
	item := &models.StoreItem{
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		PriceCents:    input.PriceCents,
		Category:      strings.TrimSpace(input.Category),
		ImageURL:      input.ImageURL,
		InStock:       input.StockQuantity > 0,
		StockQuantity: input.StockQuantity,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create store item")
	}
	dto := ItemToDTO(item)
	return &dto, nil
}

// UpdateItem applies admin edits to a catalog item.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, input ItemInput) (*ItemDTO, error) {
	fields := map[string]any{
		"name":           strings.TrimSpace(input.Name),
		"description":    strings.TrimSpace(input.Description),
		"price_cents":    input.PriceCents,
		"category":       strings.TrimSpace(input.Category),
		"stock_quantity": input.StockQuantity,
		"in_stock":       input.StockQuantity > 0,
	}
	if input.ImageURL != nil {
		fields["image_url"] = *input.ImageURL
	}
	if err := s.repo.UpdateItem(ctx, id, fields); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store item")
	}
	return s.GetItem(ctx, id)
}

// DeleteItem removes a catalog item.
func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "store item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete store item")
	}
	return nil
}

// collapseLines merges duplicate item references and returns a stable id
// order for deterministic lock acquisition.
func collapseLines(lines []OrderLineInput) (map[uuid.UUID]int, []uuid.UUID, error) {
	quantities := make(map[uuid.UUID]int, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, seen := quantities[line.StoreItemID]; !seen {
			ids = append(ids, line.StoreItemID)
		}
		quantities[line.StoreItemID] += line.Quantity
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return quantities, ids, nil
}
