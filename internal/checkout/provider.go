package checkout

import (
	"context"

	stripeclient "github.com/sobacalgary/backoffice/pkg/stripe"
)

// Provider is the payment-provider surface the checkout services depend on.
// *stripe.Client satisfies it; tests substitute stubs.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, p stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripeclient.CheckoutSession, error)
}
