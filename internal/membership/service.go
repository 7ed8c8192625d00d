package membership

import (
	"context"
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
	"github.com/sobacalgary/backoffice/pkg/security"
	stripeclient "github.com/sobacalgary/backoffice/pkg/stripe"
)

const (
	successPath = "membership/success"
	cancelPath  = "membership/cancelled"
)

type memberRepo interface {
	CreateTx(tx *gorm.DB, member *models.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	MarkPaidTx(tx *gorm.DB, id uuid.UUID) (int64, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the membership service.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     memberRepo
	Provider checkout.Provider
	Outbox   outboxEmitter
	Metrics  *metrics.PaymentMetrics
	Checkout config.CheckoutConfig
	Password config.PasswordConfig
	Timeout  time.Duration
	BaseURL  string
}

// Service opens registration checkout sessions and verifies their payment.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	repo     memberRepo
	provider checkout.Provider
	outbox   outboxEmitter
	metrics  *metrics.PaymentMetrics
	checkout config.CheckoutConfig
	password config.PasswordConfig
	timeout  time.Duration
	baseURL  string
}

// NewService builds the membership service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "member repo required")
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
		password: params.Password,
		timeout:  params.Timeout,
		baseURL:  params.BaseURL,
	}, nil
}

// CreateCheckout records an unpaid registration and opens a hosted checkout
// session for the membership fee. Re-registering an unpaid email reuses the
// existing row so at most one pending registration exists per address.
func (s *Service) CreateCheckout(ctx context.Context, input RegisterInput) (*CheckoutResponse, error) {
	if err := security.ValidatePasswordStrength(input.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "password")
	}

	email := strings.ToLower(strings.TrimSpace(input.EmailAddress))

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup member")
	}
	if existing != nil && existing.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	member := existing
	if member == nil {
		member = &models.Member{
			FullName:             strings.TrimSpace(input.FullName),
			EmailAddress:         email,
			TelephoneNumber:      strings.TrimSpace(input.TelephoneNumber),
			ResidentialAddress:   strings.TrimSpace(input.ResidentialAddress),
			YearOfEntry:          input.YearOfEntry,
			PotentialMembers:     input.PotentialMembers,
			PasswordHash:         hash,
			Role:                 enums.MemberRoleMember,
			RegistrationFeeCents: s.checkout.MembershipFeeCents,
		}
		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.CreateTx(tx, member)
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
		}
	} else {
		fields := map[string]any{
			"full_name":              strings.TrimSpace(input.FullName),
			"telephone_number":       strings.TrimSpace(input.TelephoneNumber),
			"residential_address":    strings.TrimSpace(input.ResidentialAddress),
			"year_of_entry":          input.YearOfEntry,
			"password_hash":          hash,
			"registration_fee_cents": s.checkout.MembershipFeeCents,
		}
		if input.PotentialMembers != nil {
			fields["potential_members"] = *input.PotentialMembers
		}
		if err := s.repo.UpdateProfile(ctx, member.ID, fields); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh pending registration")
		}
	}

	method, err := enums.ParsePaymentMethod(string(input.PaymentMethod))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment method")
	}

	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.provider.CreateCheckoutSession(sessionCtx, stripeclient.CheckoutSessionParams{
		ProductName:   "Annual Membership",
		Description:   "SOBA Calgary membership registration fee",
		AmountCents:   s.checkout.MembershipFeeCents,
		Currency:      s.checkout.Currency,
		CustomerEmail: email,
		SuccessURL:    checkout.SuccessURL(s.baseURL, successPath),
		CancelURL:     checkout.CancelURL(s.baseURL, cancelPath),
		PaymentMethod: method,
		Metadata:      checkout.BuildMetadata(enums.RecordTypeMembership, member.ID),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout session")
	}

	s.metrics.IncSessionCreated(string(enums.RecordTypeMembership))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"member_id":  member.ID.String(),
		"session_id": session.ID,
	})
	s.logg.Info(logCtx, "membership checkout session opened")

	return &CheckoutResponse{
		MemberID:   member.ID,
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}

// VerifyPayment resolves the provider session and, if it settled, flips the
// member to paid exactly once. Repeat calls for a settled session are
// idempotent no-ops. Provider outages surface as dependency errors and never
// change local state.
func (s *Service) VerifyPayment(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.provider.GetCheckoutSession(sessionCtx, sessionID)
	if err != nil {
		s.metrics.IncVerification(string(enums.RecordTypeMembership), "dependency_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	ref, err := checkout.ParseMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	if ref.Type != enums.RecordTypeMembership {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session does not belong to a membership registration")
	}

	if !session.Paid() {
		member, err := s.repo.FindByID(ctx, ref.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}
		if member.IsPaid {
			// An earlier session already settled this registration.
			s.metrics.IncVerification(string(enums.RecordTypeMembership), "already_completed")
			return &VerifyResult{MemberID: member.ID, Status: enums.PaymentStatusCompleted}, nil
		}
		status := enums.PaymentStatusPending
		if session.Expired() {
			status = enums.PaymentStatusExpired
		}
		return &VerifyResult{MemberID: member.ID, Status: status}, nil
	}

	result := &VerifyResult{MemberID: ref.ID, Status: enums.PaymentStatusCompleted}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.MarkPaidTx(tx, ref.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			member, err := s.repo.FindByID(ctx, ref.ID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
				}
				return err
			}
			if !member.IsPaid {
				return pkgerrors.New(pkgerrors.CodeInternal, "member transition lost")
			}
			return nil
		}

		result.NewlyCompleted = true
		member, err := s.repo.FindByID(ctx, ref.ID)
		if err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberActivated,
			AggregateType: enums.AggregateMember,
			AggregateID:   member.ID,
			Data: payloads.MemberActivatedEvent{
				MemberID:     member.ID,
				EmailAddress: member.EmailAddress,
				FullName:     member.FullName,
				AmountCents:  member.RegistrationFeeCents,
				ActivatedAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm membership payment")
	}

	outcome := "already_completed"
	if result.NewlyCompleted {
		outcome = "completed"
		logCtx := s.logg.WithMemberID(ctx, ref.ID.String())
		s.logg.Info(logCtx, "membership payment confirmed")
	}
	s.metrics.IncVerification(string(enums.RecordTypeMembership), outcome)

	return result, nil
}
