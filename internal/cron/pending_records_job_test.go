package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/outbox"
	"github.com/sobacalgary/backoffice/pkg/outbox/payloads"
)

func TestPendingRecordsJob_expiresStaleDonation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	donation := models.Donation{ID: uuid.New(), Status: enums.PaymentStatusPending}
	donations := &fakeDonationStore{stale: []models.Donation{donation}, transitionRows: 1}
	emitter := &fakeEmitter{}
	job := newPendingRecordsJob(t, donations, &fakeOrderStore{}, emitter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(donations.transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(donations.transitions))
	}
	if donations.transitions[0].to != enums.PaymentStatusExpired {
		t.Fatalf("expected expired, got %s", donations.transitions[0].to)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventRecordExpired {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.RecordExpiredEvent)
	if !ok {
		t.Fatal("expected record expired payload")
	}
	if payload.RecordID != donation.ID || payload.RecordType != enums.RecordTypeDonation {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPendingRecordsJob_skipsDonationWonByVerifier(t *testing.T) {
	donation := models.Donation{ID: uuid.New(), Status: enums.PaymentStatusPending}
	// The conditional update reports zero rows when a concurrent verify
	// completed the donation after the stale query ran.
	donations := &fakeDonationStore{stale: []models.Donation{donation}, transitionRows: 0}
	emitter := &fakeEmitter{}
	job := newPendingRecordsJob(t, donations, &fakeOrderStore{}, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no event expected, got %d", len(emitter.events))
	}
}

func TestPendingRecordsJob_expiredOrderRestoresStock(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	orders := &fakeOrderStore{
		stale:          []models.StoreOrder{{ID: orderID, Status: enums.PaymentStatusPending}},
		lines:          []models.OrderLineItem{{OrderID: orderID, StoreItemID: itemID, Quantity: 3}},
		transitionRows: 1,
	}
	emitter := &fakeEmitter{}
	job := newPendingRecordsJob(t, &fakeDonationStore{}, orders, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(orders.restores) != 1 {
		t.Fatalf("expected 1 stock restore, got %d", len(orders.restores))
	}
	restore := orders.restores[0]
	if restore.itemID != itemID || restore.quantity != 3 {
		t.Fatalf("unexpected restore: %+v", restore)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	payload, ok := emitter.events[0].Data.(payloads.RecordExpiredEvent)
	if !ok {
		t.Fatal("expected record expired payload")
	}
	if payload.RecordType != enums.RecordTypeOrder {
		t.Fatalf("unexpected record type: %s", payload.RecordType)
	}
}

func TestPendingRecordsJob_raceLostOrderKeepsStock(t *testing.T) {
	orders := &fakeOrderStore{
		stale:          []models.StoreOrder{{ID: uuid.New(), Status: enums.PaymentStatusPending}},
		transitionRows: 0,
	}
	emitter := &fakeEmitter{}
	job := newPendingRecordsJob(t, &fakeDonationStore{}, orders, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(orders.restores) != 0 {
		t.Fatalf("stock must not be restored for a completed order")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no event expected, got %d", len(emitter.events))
	}
}

func newPendingRecordsJob(t *testing.T, donations *fakeDonationStore, orders *fakeOrderStore, emitter *fakeEmitter) *pendingRecordsJob {
	t.Helper()
	jobIface, err := NewPendingRecordsJob(PendingRecordsJobParams{
		Logger:    logger.New(logger.Options{Output: io.Discard}),
		DB:        fakeTxRunner{},
		Donations: donations,
		Orders:    orders,
		Outbox:    emitter,
	})
	if err != nil {
		t.Fatalf("NewPendingRecordsJob: %v", err)
	}
	job, ok := jobIface.(*pendingRecordsJob)
	if !ok {
		t.Fatalf("expected pendingRecordsJob, got %T", jobIface)
	}
	return job
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type transitionCall struct {
	id uuid.UUID
	to enums.PaymentStatus
}

type fakeDonationStore struct {
	stale          []models.Donation
	transitionRows int64
	transitions    []transitionCall
}

func (f *fakeDonationStore) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Donation, error) {
	return f.stale, nil
}

func (f *fakeDonationStore) TransitionTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error) {
	f.transitions = append(f.transitions, transitionCall{id: id, to: to})
	return f.transitionRows, nil
}

type restoreCall struct {
	itemID   uuid.UUID
	quantity int
}

type fakeOrderStore struct {
	stale          []models.StoreOrder
	lines          []models.OrderLineItem
	transitionRows int64
	transitions    []transitionCall
	restores       []restoreCall
}

func (f *fakeOrderStore) FindStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.StoreOrder, error) {
	return f.stale, nil
}

func (f *fakeOrderStore) FindOrderLineItemsTx(tx *gorm.DB, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	return f.lines, nil
}

func (f *fakeOrderStore) TransitionOrderTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error) {
	f.transitions = append(f.transitions, transitionCall{id: id, to: to})
	return f.transitionRows, nil
}

func (f *fakeOrderStore) RestoreStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) error {
	f.restores = append(f.restores, restoreCall{itemID: itemID, quantity: quantity})
	return nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}
