package payment

import (
	"context"
	"errors"
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
)

// ErrProviderUnavailable signals that an outbound provider call could not
// complete after retries. The order is left pending and the caller may retry
// checkout creation safely.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// CheckoutResult is returned to the order-placement flow so it can redirect
// the user into the provider-hosted checkout.
type CheckoutResult struct {
	CheckoutURL  string `json:"checkout_url"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// ProviderSubscription is the provider-agnostic view of a provider-side
// subscription object, as retrieved from the provider API.
type ProviderSubscription struct {
	ID               string
	Status           string
	Active           bool
	CurrentPeriodEnd *time.Time
}

// Provider is the payment provider capability consumed by the order-placement
// flow and the webhook endpoint.
//
// CreateCheckout requires a pending order with its product loaded. It never
// changes the order status; it stamps provider_ref and the typed meta fields
// once the provider session exists.
//
// VerifyWebhook is a pure signature check over the raw payload bytes. It must
// run before any payload parsing.
//
// HandleWebhook dispatches an already verified, decoded event. Unknown event
// kinds and events referencing entities that no longer exist locally are
// acknowledged without error.
type Provider interface {
	CreateCheckout(ctx context.Context, order *models.Order) (*CheckoutResult, error)
	VerifyWebhook(payload []byte, signatureHeader string) bool
	HandleWebhook(ctx context.Context, event *Event) error
}

// SubscriptionFetcher retrieves a provider-side subscription object by its
// provider reference. Implemented by the concrete provider adapter.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, providerRef string) (*ProviderSubscription, error)
}
