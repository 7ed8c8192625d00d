package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/outbox"
	stripeclient "github.com/sobacalgary/backoffice/pkg/stripe"
)

func newTestService(t *testing.T, repo *stubStoreRepo, provider *stubProvider, emitter *stubEmitter) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{Output: io.Discard}),
		DB:       &stubTxRunner{},
		Repo:     repo,
		Provider: provider,
		Outbox:   emitter,
		Checkout: config.CheckoutConfig{Currency: "cad"},
		BaseURL:  "https://sobacalgary.org",
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func catalogItem(name string, priceCents int64, stock int) models.StoreItem {
	return models.StoreItem{
		ID:            uuid.New(),
		Name:          name,
		PriceCents:    priceCents,
		Category:      "apparel",
		InStock:       stock > 0,
		StockQuantity: stock,
	}
}

func orderInput(lines ...OrderLineInput) OrderInput {
	return OrderInput{
		CustomerName:    "Ada Lovelace",
		CustomerEmail:   "Ada@Example.com",
		ShippingAddress: "100 Main St SW, Calgary",
		Items:           lines,
	}
}

func TestCreateCheckoutPricesFromCatalog(t *testing.T) {
	shirt := catalogItem("Club Shirt", 3500, 10)
	mug := catalogItem("Mug", 1500, 5)
	repo := &stubStoreRepo{items: []models.StoreItem{shirt, mug}}
	provider := &stubProvider{
		createResp: &stripeclient.CheckoutSession{ID: "cs_order", URL: "https://checkout.stripe.com/cs_order"},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	resp, err := service.CreateCheckout(context.Background(), orderInput(
		OrderLineInput{StoreItemID: shirt.ID, Quantity: 2},
		OrderLineInput{StoreItemID: mug.ID, Quantity: 1},
	))
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if resp.TotalCents != 2*3500+1500 {
		t.Fatalf("expected server-side total 8500, got %d", resp.TotalCents)
	}
	if len(repo.orders) != 1 {
		t.Fatalf("expected one order created")
	}
	order := repo.orders[0]
	if order.CustomerEmail != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", order.CustomerEmail)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected two line items, got %d", len(order.Items))
	}
	for _, line := range order.Items {
		if line.StoreItemID == shirt.ID && line.UnitPriceCents != 3500 {
			t.Fatalf("line must snapshot catalog price")
		}
	}
	if provider.lastCreate.Metadata["orderId"] != order.ID.String() {
		t.Fatalf("session metadata missing orderId")
	}
	if repo.decrements[shirt.ID] != 2 || repo.decrements[mug.ID] != 1 {
		t.Fatalf("expected stock reserved, got %v", repo.decrements)
	}
}

func TestCreateCheckoutMergesDuplicateLines(t *testing.T) {
	shirt := catalogItem("Club Shirt", 3500, 10)
	repo := &stubStoreRepo{items: []models.StoreItem{shirt}}
	provider := &stubProvider{
		createResp: &stripeclient.CheckoutSession{ID: "cs_dup", URL: "https://checkout.stripe.com/cs_dup"},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	resp, err := service.CreateCheckout(context.Background(), orderInput(
		OrderLineInput{StoreItemID: shirt.ID, Quantity: 1},
		OrderLineInput{StoreItemID: shirt.ID, Quantity: 2},
	))
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if resp.TotalCents != 3*3500 {
		t.Fatalf("expected merged total, got %d", resp.TotalCents)
	}
	if repo.decrements[shirt.ID] != 3 {
		t.Fatalf("expected merged reservation of 3, got %d", repo.decrements[shirt.ID])
	}
}

func TestCreateCheckoutInsufficientStockFailsValidation(t *testing.T) {
	shirt := catalogItem("Club Shirt", 3500, 1)
	repo := &stubStoreRepo{items: []models.StoreItem{shirt}, understocked: true}
	service := newTestService(t, repo, &stubProvider{}, &stubEmitter{})

	_, err := service.CreateCheckout(context.Background(), orderInput(
		OrderLineInput{StoreItemID: shirt.ID, Quantity: 2},
	))
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("no order should be created when understocked")
	}
}

func TestCreateCheckoutUnknownItemIsNotFound(t *testing.T) {
	repo := &stubStoreRepo{}
	service := newTestService(t, repo, &stubProvider{}, &stubEmitter{})

	_, err := service.CreateCheckout(context.Background(), orderInput(
		OrderLineInput{StoreItemID: uuid.New(), Quantity: 1},
	))
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPaymentCompletesOrderOnce(t *testing.T) {
	orderID := uuid.New()
	order := &models.StoreOrder{
		ID:            orderID,
		CustomerEmail: "ada@example.com",
		TotalCents:    8500,
		Status:        enums.PaymentStatusPending,
		Items:         []models.OrderLineItem{{Quantity: 2}, {Quantity: 1}},
	}
	repo := &stubStoreRepo{orderByID: order, transitionRows: 1}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_order",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "order", "orderId": orderID.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_order")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if !result.NewlyCompleted || result.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected fresh completion, got %+v", result)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventOrderCompleted {
		t.Fatalf("expected order.completed event")
	}
}

func TestVerifyPaymentRepeatIsIdempotent(t *testing.T) {
	orderID := uuid.New()
	order := &models.StoreOrder{ID: orderID, Status: enums.PaymentStatusCompleted}
	repo := &stubStoreRepo{orderByID: order, transitionRows: 0}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_order",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "order", "orderId": orderID.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_order")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if result.NewlyCompleted || len(emitter.events) != 0 {
		t.Fatalf("repeat verification must be a no-op")
	}
}

func TestVerifyPaymentExpiredSessionExpiresOrderAndRestocks(t *testing.T) {
	orderID := uuid.New()
	shirtID := uuid.New()
	mugID := uuid.New()
	order := &models.StoreOrder{ID: orderID, Status: enums.PaymentStatusPending}
	repo := &stubStoreRepo{
		orderByID:      order,
		transitionRows: 1,
		lineItems: []models.OrderLineItem{
			{StoreItemID: shirtID, Quantity: 2},
			{StoreItemID: mugID, Quantity: 1},
		},
	}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_lapsed",
			Status:    "expired",
			PayStatus: "unpaid",
			Metadata:  map[string]string{"type": "order", "orderId": orderID.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_lapsed")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if result.Status != enums.PaymentStatusExpired {
		t.Fatalf("expected expired, got %s", result.Status)
	}
	if repo.lastTransition != enums.PaymentStatusExpired {
		t.Fatalf("expected expired transition, got %s", repo.lastTransition)
	}
	if repo.restored[shirtID] != 2 || repo.restored[mugID] != 1 {
		t.Fatalf("expected reserved stock returned, got %v", repo.restored)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventRecordExpired {
		t.Fatalf("expected record.expired event, got %v", emitter.events)
	}
}

func TestVerifyPaymentProviderOutage(t *testing.T) {
	repo := &stubStoreRepo{}
	provider := &stubProvider{getErr: errors.New("stripe unreachable")}
	service := newTestService(t, repo, provider, &stubEmitter{})

	_, err := service.VerifyPayment(context.Background(), "cs_down")
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.transitionCalls != 0 {
		t.Fatalf("provider outage must never mutate state")
	}
}

type stubStoreRepo struct {
	items           []models.StoreItem
	orderByID       *models.StoreOrder
	orders          []*models.StoreOrder
	lineItems       []models.OrderLineItem
	decrements      map[uuid.UUID]int
	restored        map[uuid.UUID]int
	understocked    bool
	transitionRows  int64
	transitionCalls int
	lastTransition  enums.PaymentStatus
}

func (s *stubStoreRepo) ListItems(ctx context.Context, category string, inStockOnly bool) ([]models.StoreItem, error) {
	return s.items, nil
}

func (s *stubStoreRepo) FindItemByID(ctx context.Context, id uuid.UUID) (*models.StoreItem, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStoreRepo) FindItemsByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]models.StoreItem, error) {
	var out []models.StoreItem
	for _, id := range ids {
		for i := range s.items {
			if s.items[i].ID == id {
				out = append(out, s.items[i])
			}
		}
	}
	return out, nil
}

func (s *stubStoreRepo) DecrementStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) (int64, error) {
	if s.understocked {
		return 0, nil
	}
	if s.decrements == nil {
		s.decrements = make(map[uuid.UUID]int)
	}
	s.decrements[itemID] += quantity
	return 1, nil
}

func (s *stubStoreRepo) CreateItem(ctx context.Context, item *models.StoreItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items = append(s.items, *item)
	return nil
}

func (s *stubStoreRepo) UpdateItem(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return nil
}

func (s *stubStoreRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubStoreRepo) CreateOrderTx(tx *gorm.DB, order *models.StoreOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders = append(s.orders, order)
	s.orderByID = order
	return nil
}

func (s *stubStoreRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error) {
	if s.orderByID == nil || s.orderByID.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.orderByID, nil
}

func (s *stubStoreRepo) FindOrderLineItemsTx(tx *gorm.DB, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	return s.lineItems, nil
}

func (s *stubStoreRepo) TransitionOrderTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error) {
	s.transitionCalls++
	s.lastTransition = to
	return s.transitionRows, nil
}

func (s *stubStoreRepo) RestoreStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) error {
	if s.restored == nil {
		s.restored = make(map[uuid.UUID]int)
	}
	s.restored[itemID] += quantity
	return nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProvider struct {
	createResp *stripeclient.CheckoutSession
	createErr  error
	getResp    *stripeclient.CheckoutSession
	getErr     error
	lastCreate stripeclient.CheckoutSessionParams
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, p stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error) {
	s.lastCreate = p
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResp, nil
}

func (s *stubProvider) GetCheckoutSession(ctx context.Context, id string) (*stripeclient.CheckoutSession, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getResp, nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}
