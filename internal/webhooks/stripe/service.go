package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/sobacalgary/backoffice/internal/checkout"
	"github.com/sobacalgary/backoffice/internal/donations"
	"github.com/sobacalgary/backoffice/internal/membership"
	"github.com/sobacalgary/backoffice/internal/store"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

type membershipVerifier interface {
	VerifyPayment(ctx context.Context, sessionID string) (*membership.VerifyResult, error)
}

type donationVerifier interface {
	VerifyPayment(ctx context.Context, sessionID string) (*donations.VerifyResult, error)
}

type orderVerifier interface {
	VerifyPayment(ctx context.Context, sessionID string) (*store.VerifyResult, error)
}

// ServiceParams bundle the verifiers the webhook dispatches to.
type ServiceParams struct {
	Logger     *logger.Logger
	Membership membershipVerifier
	Donations  donationVerifier
	Orders     orderVerifier
}

// Service routes checkout session events to the record type named in the
// session metadata. Verification itself is delegated to the same services
// the success-page confirmation uses, so both paths share one transition.
type Service struct {
	logg       *logger.Logger
	membership membershipVerifier
	donations  donationVerifier
	orders     orderVerifier
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Membership == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership verifier required")
	}
	if params.Donations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "donation verifier required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order verifier required")
	}
	return &Service{
		logg:       params.Logger,
		membership: params.Membership,
		donations:  params.Donations,
		orders:     params.Orders,
	}, nil
}

// HandleEvent processes a verified Stripe event. Event types outside the
// checkout session lifecycle are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.verifySession(ctx, event.Type, &session)
	default:
		s.logg.Info(s.logg.WithField(ctx, "event_type", string(event.Type)), "ignoring unhandled stripe event")
		return nil
	}
}

func (s *Service) verifySession(ctx context.Context, eventType stripe.EventType, session *stripe.CheckoutSession) error {
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	ref, err := checkout.ParseMetadata(session.Metadata)
	if err != nil {
		// Sessions created outside this platform land here; ack them.
		s.logg.Warn(s.logg.WithField(ctx, "session_id", session.ID), "checkout session without record metadata")
		return nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_type":  string(eventType),
		"session_id":  session.ID,
		"record_type": string(ref.Type),
		"record_id":   ref.ID.String(),
	})

	switch ref.Type {
	case enums.RecordTypeMembership:
		_, err = s.membership.VerifyPayment(ctx, session.ID)
	case enums.RecordTypeDonation:
		_, err = s.donations.VerifyPayment(ctx, session.ID)
	case enums.RecordTypeOrder:
		_, err = s.orders.VerifyPayment(ctx, session.ID)
	default:
		s.logg.Warn(logCtx, "unknown record type in session metadata")
		return nil
	}
	if err != nil {
		return err
	}
	s.logg.Info(logCtx, "stripe session event verified")
	return nil
}
