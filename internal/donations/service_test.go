package donations

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

func newTestService(t *testing.T, repo *stubDonationRepo, provider *stubProvider, emitter *stubEmitter) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{Output: io.Discard}),
		DB:       &stubTxRunner{},
		Repo:     repo,
		Provider: provider,
		Outbox:   emitter,
		Checkout: config.CheckoutConfig{
			Currency:             "cad",
			DonationMinimumCents: 500,
		},
		BaseURL: "https://sobacalgary.org",
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func TestCreateCheckoutParsesDollarsToCents(t *testing.T) {
	repo := &stubDonationRepo{}
	provider := &stubProvider{
		createResp: &stripeclient.CheckoutSession{ID: "cs_don", URL: "https://checkout.stripe.com/cs_don"},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	name := "Ngozi"
	resp, err := service.CreateCheckout(context.Background(), DonateInput{
		DonorName: &name,
		Amount:    "25.50",
		Category:  "scholarship",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one donation created")
	}
	if repo.created[0].AmountCents != 2550 {
		t.Fatalf("expected 2550 cents, got %d", repo.created[0].AmountCents)
	}
	if repo.created[0].Status != enums.PaymentStatusPending {
		t.Fatalf("new donation must start pending")
	}
	if provider.lastCreate.Metadata["type"] != "donation" {
		t.Fatalf("missing donation metadata")
	}
	if resp.SessionID != "cs_don" {
		t.Fatalf("unexpected session id %q", resp.SessionID)
	}
}

func TestCreateCheckoutEnforcesMinimumAndPrecision(t *testing.T) {
	service := newTestService(t, &stubDonationRepo{}, &stubProvider{}, &stubEmitter{})

	for _, amount := range []string{"4.99", "0", "-10", "1.005", "abc"} {
		_, err := service.CreateCheckout(context.Background(), DonateInput{Amount: amount, Category: "general"})
		coded := pkgerrors.As(err)
		if coded == nil || coded.Code() != pkgerrors.CodeValidation {
			t.Fatalf("amount %q: expected validation error, got %v", amount, err)
		}
	}
}

func TestCreateCheckoutAllowsAnonymousDonor(t *testing.T) {
	repo := &stubDonationRepo{}
	provider := &stubProvider{
		createResp: &stripeclient.CheckoutSession{ID: "cs_anon", URL: "https://checkout.stripe.com/cs_anon"},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	_, err := service.CreateCheckout(context.Background(), DonateInput{Amount: "100", Category: "general"})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if repo.created[0].DonorName != nil || repo.created[0].DonorEmail != nil {
		t.Fatalf("anonymous donation should keep donor fields nil")
	}
}

func TestVerifyPaymentCompletesOnceAndEmits(t *testing.T) {
	id := uuid.New()
	donation := &models.Donation{ID: id, AmountCents: 2550, Category: "scholarship", Status: enums.PaymentStatusPending}
	repo := &stubDonationRepo{byID: donation, transitionRows: 1}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_don",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "donation", "donationId": id.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_don")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if !result.NewlyCompleted || result.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected fresh completion, got %+v", result)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventDonationCompleted {
		t.Fatalf("expected donation.completed event, got %+v", emitter.events)
	}
	if repo.lastTransition != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed transition, got %s", repo.lastTransition)
	}
}

func TestVerifyPaymentRepeatIsIdempotent(t *testing.T) {
	id := uuid.New()
	donation := &models.Donation{ID: id, Status: enums.PaymentStatusCompleted}
	repo := &stubDonationRepo{byID: donation, transitionRows: 0}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_don",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "donation", "donationId": id.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_don")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if result.NewlyCompleted {
		t.Fatalf("repeat verification must not report a transition")
	}
	if result.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("repeat verification must not emit events")
	}
}

func TestVerifyPaymentExpiredSessionExpiresDonation(t *testing.T) {
	id := uuid.New()
	donation := &models.Donation{ID: id, Status: enums.PaymentStatusPending}
	repo := &stubDonationRepo{byID: donation, transitionRows: 1}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_late",
			Status:    "expired",
			PayStatus: "unpaid",
			Metadata:  map[string]string{"type": "donation", "donationId": id.String()},
		},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	result, err := service.VerifyPayment(context.Background(), "cs_late")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if result.Status != enums.PaymentStatusExpired {
		t.Fatalf("expected expired, got %s", result.Status)
	}
	if repo.lastTransition != enums.PaymentStatusExpired {
		t.Fatalf("expected expired transition, got %s", repo.lastTransition)
	}
}

func TestVerifyPaymentUnknownDonationIsNotFound(t *testing.T) {
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_missing",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "donation", "donationId": uuid.NewString()},
		},
	}
	service := newTestService(t, &stubDonationRepo{}, provider, &stubEmitter{})

	_, err := service.VerifyPayment(context.Background(), "cs_missing")
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPaymentProviderOutage(t *testing.T) {
	repo := &stubDonationRepo{}
	provider := &stubProvider{getErr: errors.New("stripe timeout")}
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

type stubDonationRepo struct {
	byID            *models.Donation
	created         []*models.Donation
	transitionRows  int64
	transitionCalls int
	lastTransition  enums.PaymentStatus
}

func (s *stubDonationRepo) Create(ctx context.Context, donation *models.Donation) error {
	if donation.ID == uuid.Nil {
		donation.ID = uuid.New()
	}
	s.created = append(s.created, donation)
	s.byID = donation
	return nil
}

func (s *stubDonationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	if s.byID == nil || s.byID.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byID, nil
}

func (s *stubDonationRepo) TransitionTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error) {
	s.transitionCalls++
	s.lastTransition = to
	return s.transitionRows, nil
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
