package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/metrics"
	"github.com/sobacalgary/backoffice/pkg/outbox"
	"github.com/sobacalgary/backoffice/pkg/outbox/payloads"
)

const (
	defaultPendingTTL = 24 * time.Hour
	sweepBatchSize    = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type staleDonationStore interface {
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Donation, error)
	TransitionTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error)
}

type staleOrderStore interface {
	FindStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.StoreOrder, error)
	FindOrderLineItemsTx(tx *gorm.DB, orderID uuid.UUID) ([]models.OrderLineItem, error)
	TransitionOrderTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error)
	RestoreStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) error
}

// PendingRecordsJobParams configure the stale pending record sweeper.
type PendingRecordsJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Donations  staleDonationStore
	Orders     staleOrderStore
	Outbox     outboxEmitter
	Metrics    *metrics.CronJobMetrics
	PendingTTL time.Duration
}

// NewPendingRecordsJob builds the cron job that expires donations and store
// orders stuck in pending longer than the TTL. Expired orders return their
// reserved stock to the catalog.
func NewPendingRecordsJob(params PendingRecordsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Donations == nil {
		return nil, fmt.Errorf("donation store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &pendingRecordsJob{
		logg:      params.Logger,
		db:        params.DB,
		donations: params.Donations,
		orders:    params.Orders,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

type pendingRecordsJob struct {
	logg      *logger.Logger
	db        txRunner
	donations staleDonationStore
	orders    staleOrderStore
	outbox    outboxEmitter
	metrics   *metrics.CronJobMetrics
	ttl       time.Duration
	now       func() time.Time
}

func (j *pendingRecordsJob) Name() string { return "pending-records" }

func (j *pendingRecordsJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var errs []error
	if err := j.expireDonations(ctx, cutoff); err != nil {
		errs = append(errs, err)
	}
	if err := j.expireOrders(ctx, cutoff); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *pendingRecordsJob) expireDonations(ctx context.Context, cutoff time.Time) error {
	stale, err := j.donations.FindStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("query stale donations: %w", err)
	}
	var swept int64
	for _, donation := range stale {
		expired, err := j.expireDonation(ctx, donation.ID)
		if err != nil {
			return err
		}
		if expired {
			swept++
		}
	}
	j.metrics.AddSwept(j.Name(), string(enums.RecordTypeDonation), swept)
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "swept": swept})
	j.logg.Info(logCtx, "donation sweep complete")
	return nil
}

func (j *pendingRecordsJob) expireDonation(ctx context.Context, id uuid.UUID) (bool, error) {
	var expired bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.donations.TransitionTx(tx, id, enums.PaymentStatusExpired)
		if err != nil {
			return fmt.Errorf("expire donation %s: %w", id, err)
		}
		if rows == 0 {
			// Completed or refunded between the query and this update.
			return nil
		}
		expired = true
		return j.emitExpired(ctx, tx, enums.AggregateDonation, id, enums.RecordTypeDonation)
	})
	return expired, err
}

func (j *pendingRecordsJob) expireOrders(ctx context.Context, cutoff time.Time) error {
	stale, err := j.orders.FindStalePendingOrders(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("query stale orders: %w", err)
	}
	var swept int64
	for _, order := range stale {
		expired, err := j.expireOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if expired {
			swept++
		}
	}
	j.metrics.AddSwept(j.Name(), string(enums.RecordTypeOrder), swept)
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "swept": swept})
	j.logg.Info(logCtx, "order sweep complete")
	return nil
}

func (j *pendingRecordsJob) expireOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	var expired bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.orders.TransitionOrderTx(tx, id, enums.PaymentStatusExpired)
		if err != nil {
			return fmt.Errorf("expire order %s: %w", id, err)
		}
		if rows == 0 {
			return nil
		}
		// The transition owns the expiry, so the stock reserved at order
		// creation is handed back exactly once.
		lines, err := j.orders.FindOrderLineItemsTx(tx, id)
		if err != nil {
			return fmt.Errorf("load lines for order %s: %w", id, err)
		}
		for _, line := range lines {
			if err := j.orders.RestoreStockTx(tx, line.StoreItemID, line.Quantity); err != nil {
				return fmt.Errorf("restore stock for item %s: %w", line.StoreItemID, err)
			}
		}
		expired = true
		return j.emitExpired(ctx, tx, enums.AggregateOrder, id, enums.RecordTypeOrder)
	})
	return expired, err
}

func (j *pendingRecordsJob) emitExpired(ctx context.Context, tx *gorm.DB, aggregate enums.OutboxAggregateType, id uuid.UUID, recordType enums.RecordType) error {
	now := j.now().UTC()
	return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRecordExpired,
		AggregateType: aggregate,
		AggregateID:   id,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.RecordExpiredEvent{
			RecordID:   id,
			RecordType: recordType,
			ExpiredAt:  now,
		},
	})
}
