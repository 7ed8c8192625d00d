package membership

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

func newTestService(t *testing.T, repo *stubMemberRepo, provider *stubProvider, emitter *stubEmitter) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{Output: io.Discard}),
		DB:       &stubTxRunner{},
		Repo:     repo,
		Provider: provider,
		Outbox:   emitter,
		Checkout: config.CheckoutConfig{
			Currency:             "cad",
			MembershipFeeCents:   10000,
			DonationMinimumCents: 500,
		},
		Password: config.PasswordConfig{},
		BaseURL:  "https://sobacalgary.org",
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		FullName:           "Ada Lovelace",
		EmailAddress:       "Ada@Example.COM",
		TelephoneNumber:    "+1 403 555 0100",
		ResidentialAddress: "100 Main St SW, Calgary",
		YearOfEntry:        2004,
		Password:           "Sup3rSecret",
	}
}

func TestCreateCheckoutOpensSessionWithMetadata(t *testing.T) {
	repo := &stubMemberRepo{}
	provider := &stubProvider{
		createResp: &stripeclient.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/cs_test_123"},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	resp, err := service.CreateCheckout(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one member created, got %d", len(repo.created))
	}
	member := repo.created[0]
	if member.EmailAddress != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", member.EmailAddress)
	}
	if member.IsPaid {
		t.Fatalf("new registration must start unpaid")
	}
	if member.RegistrationFeeCents != 10000 {
		t.Fatalf("expected fee snapshot 10000, got %d", member.RegistrationFeeCents)
	}
	if resp.SessionID != "cs_test_123" {
		t.Fatalf("unexpected session id %q", resp.SessionID)
	}
	if provider.lastCreate.Metadata["type"] != "membership" {
		t.Fatalf("session metadata missing type, got %v", provider.lastCreate.Metadata)
	}
	if provider.lastCreate.Metadata["memberId"] != member.ID.String() {
		t.Fatalf("session metadata missing memberId")
	}
	if provider.lastCreate.AmountCents != 10000 {
		t.Fatalf("expected fee amount, got %d", provider.lastCreate.AmountCents)
	}
}

func TestCreateCheckoutRejectsPaidEmail(t *testing.T) {
	existing := &models.Member{ID: uuid.New(), EmailAddress: "ada@example.com", IsPaid: true}
	repo := &stubMemberRepo{byEmail: existing}
	service := newTestService(t, repo, &stubProvider{}, &stubEmitter{})

	_, err := service.CreateCheckout(context.Background(), validRegisterInput())
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("no member should be created on conflict")
	}
}

func TestCreateCheckoutReusesUnpaidRegistration(t *testing.T) {
	existing := &models.Member{ID: uuid.New(), EmailAddress: "ada@example.com", IsPaid: false}
	repo := &stubMemberRepo{byEmail: existing}
	provider := &stubProvider{
		createResp: &stripeclient.CheckoutSession{ID: "cs_retry", URL: "https://checkout.stripe.com/cs_retry"},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	resp, err := service.CreateCheckout(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("existing unpaid row must be reused, not duplicated")
	}
	if len(repo.profileUpdates) != 1 {
		t.Fatalf("expected profile refresh on reuse")
	}
	if resp.MemberID != existing.ID {
		t.Fatalf("expected existing member id")
	}
}

func TestCreateCheckoutRejectsWeakPassword(t *testing.T) {
	service := newTestService(t, &stubMemberRepo{}, &stubProvider{}, &stubEmitter{})

	input := validRegisterInput()
	input.Password = "alllowercase1"
	_, err := service.CreateCheckout(context.Background(), input)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCheckoutProviderOutageKeepsPendingRecord(t *testing.T) {
	repo := &stubMemberRepo{}
	provider := &stubProvider{createErr: errors.New("stripe unreachable")}
	service := newTestService(t, repo, provider, &stubEmitter{})

	_, err := service.CreateCheckout(context.Background(), validRegisterInput())
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("pending record should survive a provider outage")
	}
}

func TestVerifyPaymentTransitionsOnce(t *testing.T) {
	memberID := uuid.New()
	member := &models.Member{ID: memberID, EmailAddress: "ada@example.com", FullName: "Ada", RegistrationFeeCents: 10000}
	repo := &stubMemberRepo{byID: member, markPaidRows: 1}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_done",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "membership", "memberId": memberID.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_done")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if !result.NewlyCompleted {
		t.Fatalf("first verification must report the transition")
	}
	if result.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one activation event, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType != enums.EventMemberActivated {
		t.Fatalf("unexpected event type %s", emitter.events[0].EventType)
	}
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	memberID := uuid.New()
	member := &models.Member{ID: memberID, IsPaid: true, IsActive: true}
	repo := &stubMemberRepo{byID: member, markPaidRows: 0}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_done",
			Status:    "complete",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "membership", "memberId": memberID.String()},
		},
	}
	emitter := &stubEmitter{}
	service := newTestService(t, repo, provider, emitter)

	result, err := service.VerifyPayment(context.Background(), "cs_done")
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

func TestVerifyPaymentUnpaidSessionLeavesStateAlone(t *testing.T) {
	memberID := uuid.New()
	member := &models.Member{ID: memberID}
	repo := &stubMemberRepo{byID: member}
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_open",
			Status:    "open",
			PayStatus: "unpaid",
			Metadata:  map[string]string{"type": "membership", "memberId": memberID.String()},
		},
	}
	service := newTestService(t, repo, provider, &stubEmitter{})

	result, err := service.VerifyPayment(context.Background(), "cs_open")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if result.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", result.Status)
	}
	if repo.markPaidCalls != 0 {
		t.Fatalf("unpaid session must not attempt a transition")
	}
}

func TestVerifyPaymentProviderOutageIsDependencyError(t *testing.T) {
	repo := &stubMemberRepo{}
	provider := &stubProvider{getErr: errors.New("stripe timeout")}
	service := newTestService(t, repo, provider, &stubEmitter{})

	_, err := service.VerifyPayment(context.Background(), "cs_down")
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.markPaidCalls != 0 {
		t.Fatalf("provider outage must never mutate state")
	}
}

func TestVerifyPaymentRejectsForeignSession(t *testing.T) {
	provider := &stubProvider{
		getResp: &stripeclient.CheckoutSession{
			ID:        "cs_donation",
			PayStatus: "paid",
			Metadata:  map[string]string{"type": "donation", "donationId": uuid.NewString()},
		},
	}
	service := newTestService(t, &stubMemberRepo{}, provider, &stubEmitter{})

	_, err := service.VerifyPayment(context.Background(), "cs_donation")
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type stubMemberRepo struct {
	byEmail        *models.Member
	byID           *models.Member
	created        []*models.Member
	profileUpdates []map[string]any
	markPaidRows   int64
	markPaidCalls  int
}

func (s *stubMemberRepo) CreateTx(tx *gorm.DB, member *models.Member) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	s.created = append(s.created, member)
	s.byID = member
	return nil
}

func (s *stubMemberRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if s.byID == nil || s.byID.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byID, nil
}

func (s *stubMemberRepo) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	if s.byEmail == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byEmail, nil
}

func (s *stubMemberRepo) MarkPaidTx(tx *gorm.DB, id uuid.UUID) (int64, error) {
	s.markPaidCalls++
	return s.markPaidRows, nil
}

func (s *stubMemberRepo) UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	s.profileUpdates = append(s.profileUpdates, fields)
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
