package donations

import (
	"context"
	"fmt"
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
	successPath = "donate/success"
	cancelPath  = "donate/cancelled"
)

type donationRepo interface {
	Create(ctx context.Context, donation *models.Donation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error)
	TransitionTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the donations service.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     donationRepo
	Provider checkout.Provider
	Outbox   outboxEmitter
	Metrics  *metrics.PaymentMetrics
	Checkout config.CheckoutConfig
	Timeout  time.Duration
	BaseURL  string
}

// Service opens donation checkout sessions and verifies their payment.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	repo     donationRepo
	provider checkout.Provider
	outbox   outboxEmitter
	metrics  *metrics.PaymentMetrics
	checkout config.CheckoutConfig
	timeout  time.Duration
	baseURL  string
}

// NewService builds the donations service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "donation repo required")
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

// CreateCheckout records a pending donation and opens a hosted checkout
// session for it.
func (s *Service) CreateCheckout(ctx context.Context, input DonateInput) (*CheckoutResponse, error) {
	amountCents, err := input.AmountCents()
	if err != nil {
		return nil, err
	}
	if amountCents < s.checkout.DonationMinimumCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("donation minimum is %d cents", s.checkout.DonationMinimumCents))
	}

	method, err := enums.ParsePaymentMethod(string(input.PaymentMethod))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment method")
	}

	donation := &models.Donation{
		DonorName:     input.DonorName,
		DonorEmail:    input.DonorEmail,
		AmountCents:   amountCents,
		Category:      input.Category,
		Status:        enums.PaymentStatusPending,
		PaymentMethod: method,
	}
	if err := s.repo.Create(ctx, donation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create donation")
	}

	email := ""
	if input.DonorEmail != nil {
		email = *input.DonorEmail
	}

	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.provider.CreateCheckoutSession(sessionCtx, stripeclient.CheckoutSessionParams{
		ProductName:   "Donation",
		Description:   fmt.Sprintf("SOBA Calgary donation (%s)", input.Category),
		AmountCents:   amountCents,
		Currency:      s.checkout.Currency,
		CustomerEmail: email,
		SuccessURL:    checkout.SuccessURL(s.baseURL, successPath),
		CancelURL:     checkout.CancelURL(s.baseURL, cancelPath),
		PaymentMethod: method,
		Metadata:      checkout.BuildMetadata(enums.RecordTypeDonation, donation.ID),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout session")
	}

	s.metrics.IncSessionCreated(string(enums.RecordTypeDonation))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"donation_id": donation.ID.String(),
		"session_id":  session.ID,
	})
	s.logg.Info(logCtx, "donation checkout session opened")

	return &CheckoutResponse{
		DonationID: donation.ID,
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}

// VerifyPayment resolves the provider session and settles the donation
// exactly once. Repeat calls for a settled session are idempotent no-ops.
func (s *Service) VerifyPayment(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.provider.GetCheckoutSession(sessionCtx, sessionID)
	if err != nil {
		s.metrics.IncVerification(string(enums.RecordTypeDonation), "dependency_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	ref, err := checkout.ParseMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	if ref.Type != enums.RecordTypeDonation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session does not belong to a donation")
	}

	if !session.Paid() {
		return s.resolveUnpaid(ctx, ref.ID, session)
	}

	result := &VerifyResult{DonationID: ref.ID, Status: enums.PaymentStatusCompleted}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.TransitionTx(tx, ref.ID, enums.PaymentStatusCompleted)
		if err != nil {
			return err
		}
		if rows == 0 {
			donation, err := s.repo.FindByID(ctx, ref.ID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "donation not found")
				}
				return err
			}
			result.Status = donation.Status
			return nil
		}

		result.NewlyCompleted = true
		donation, err := s.repo.FindByID(ctx, ref.ID)
		if err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDonationCompleted,
			AggregateType: enums.AggregateDonation,
			AggregateID:   donation.ID,
			Data: payloads.DonationCompletedEvent{
				DonationID:  donation.ID,
				DonorEmail:  donation.DonorEmail,
				AmountCents: donation.AmountCents,
				Category:    donation.Category,
				CompletedAt: time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm donation payment")
	}

	outcome := "already_completed"
	if result.NewlyCompleted {
		outcome = "completed"
		logCtx := s.logg.WithField(ctx, "donation_id", ref.ID.String())
		s.logg.Info(logCtx, "donation payment confirmed")
	}
	s.metrics.IncVerification(string(enums.RecordTypeDonation), outcome)

	return result, nil
}

// resolveUnpaid reports the donation's state for an unsettled session. An
// expired session moves the pending record to expired so it cannot settle
// later.
func (s *Service) resolveUnpaid(ctx context.Context, id uuid.UUID, session *stripeclient.CheckoutSession) (*VerifyResult, error) {
	donation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "donation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load donation")
	}

	if donation.Status != enums.PaymentStatusPending {
		return &VerifyResult{DonationID: donation.ID, Status: donation.Status}, nil
	}

	if !session.Expired() {
		return &VerifyResult{DonationID: donation.ID, Status: enums.PaymentStatusPending}, nil
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.TransitionTx(tx, id, enums.PaymentStatusExpired)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stale donation")
	}
	return &VerifyResult{DonationID: donation.ID, Status: enums.PaymentStatusExpired}, nil
}
