package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client carries the validated Stripe configuration. Calls go through the
// SDK's package-level session API, keyed once at construction.
type Client struct {
	environment   string
	signingSecret string
}

// CheckoutSessionParams describes a hosted checkout session to open.
type CheckoutSessionParams struct {
	ProductName   string
	Description   string
	AmountCents   int64
	Currency      string
	Quantity      int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	PaymentMethod enums.PaymentMethod
	Metadata      map[string]string
}

// CheckoutSession is the subset of the provider session the verifier needs.
type CheckoutSession struct {
	ID          string
	URL         string
	Status      string
	PayStatus   string
	AmountTotal int64
	Metadata    map[string]string
}

// Paid reports whether the provider settled the session.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PayStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// Expired reports whether the hosted session lapsed before payment.
func (s *CheckoutSession) Expired() bool {
	return s != nil && s.Status == string(stripe.CheckoutSessionStatusExpired)
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// CreateCheckoutSession opens a hosted checkout session for a single line item.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	if p.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	quantity := p.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.ProductName),
						Description: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}

	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	switch p.PaymentMethod {
	case enums.PaymentMethodInterac:
		params.PaymentMethodTypes = stripe.StringSlice([]string{"acss_debit"})
		params.PaymentMethodOptions = &stripe.CheckoutSessionPaymentMethodOptionsParams{
			ACSSDebit: &stripe.CheckoutSessionPaymentMethodOptionsACSSDebitParams{
				MandateOptions: &stripe.CheckoutSessionPaymentMethodOptionsACSSDebitMandateOptionsParams{
					PaymentSchedule: stripe.String("sporadic"),
					TransactionType: stripe.String("personal"),
				},
				VerificationMethod: stripe.String("automatic"),
			},
		}
	default:
		params.PaymentMethodTypes = stripe.StringSlice([]string{"card"})
	}

	for key, value := range p.Metadata {
		params.AddMetadata(key, value)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

// GetCheckoutSession retrieves the current provider state of a session.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	sess, err := checkoutsession.Get(id, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	if sess == nil {
		return nil
	}
	return &CheckoutSession{
		ID:          sess.ID,
		URL:         sess.URL,
		Status:      string(sess.Status),
		PayStatus:   string(sess.PaymentStatus),
		AmountTotal: sess.AmountTotal,
		Metadata:    sess.Metadata,
	}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
