package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/FitForgeApp/FitForge/internal/pkg/audit"
	"github.com/FitForgeApp/FitForge/internal/pkg/env"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"gorm.io/gorm"
)

// StripeConfig carries the credentials and redirect targets for the Stripe
// adapter.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// StripeProvider implements Provider against the Stripe API. It owns a
// dedicated API client instance; nothing is bound through the SDK's global
// key.
type StripeProvider struct {
	cfg      StripeConfig
	api      *client.API
	recorder *audit.Recorder
	service  *Service
}

// NewStripeProvider wires the adapter and its reconciliation service from an
// injected repository and audit recorder.
func NewStripeProvider(cfg StripeConfig, repo Repository, recorder *audit.Recorder) *StripeProvider {
	p := &StripeProvider{
		cfg:      cfg,
		api:      client.New(cfg.APIKey, nil),
		recorder: recorder,
	}
	p.service = NewService(repo, recorder, p)
	return p
}

// NewStripeProviderFromEnv builds the adapter from environment configuration.
func NewStripeProviderFromEnv(db *gorm.DB, recorder *audit.Recorder) *StripeProvider {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("CHECKOUT_SUCCESS_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := strings.TrimSpace(env.GetEnv("CHECKOUT_CANCEL_URL", ""))
	if cancelURL == "" && base != "" {
		cancelURL = base + "/checkout/cancelled"
	}

	return NewStripeProvider(StripeConfig{
		APIKey:        strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}, NewRepository(db), recorder)
}

// Service exposes the reconciliation service for webhook bookkeeping.
func (p *StripeProvider) Service() *Service {
	return p.service
}

// CreateCheckout builds a provider-hosted checkout session for a pending
// order. One-time products become a payment-mode session priced inline from
// the order snapshot; recurring products get an ad-hoc price object and a
// subscription-mode session. The order status is never touched here, only
// provider_ref and the typed meta are stamped.
func (p *StripeProvider) CreateCheckout(ctx context.Context, order *models.Order) (*CheckoutResult, error) {
	if order == nil || order.Product == nil {
		return nil, errors.New("order with loaded product is required")
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %s is %s, checkout requires a pending order", order.PublicID, order.Status)
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(p.cfg.SuccessURL),
		CancelURL:         stripe.String(p.cfg.CancelURL),
		ClientReferenceID: stripe.String(order.PublicID),
		Metadata:          map[string]string{MetadataOrderKey: order.PublicID},
	}
	params.Context = ctx

	if order.Product.IsRecurring() {
		if isLossyInterval(order.Product.Interval) {
			// Known billing defect: these intervals bill monthly at the
			// quarterly/semiannual price. Surfaced to operators on every
			// affected checkout until the mapping is migrated.
			log.Printf("payment: WARNING product %s interval %q maps to provider period \"month\" without a multiplier, order %s will be mis-billed",
				order.Product.Slug, order.Product.Interval, order.PublicID)
		}
		price, err := p.createRecurringPrice(ctx, order)
		if err != nil {
			return nil, err
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(price.ID),
			Quantity: stripe.Int64(1),
		}}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataOrderKey: order.PublicID},
		}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(order.Currency)),
				UnitAmount: stripe.Int64(order.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(order.Product.Name),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	var sess *stripe.CheckoutSession
	err := withRetry(ctx, providerMaxAttempts, providerRetryDelay, func() error {
		var err error
		sess, err = p.api.CheckoutSessions.New(params)
		return err
	})
	if err != nil {
		return nil, wrapProviderError("create checkout session", err)
	}

	meta := order.Meta
	meta.CheckoutSessionID = sess.ID
	if err := p.service.repo.StampOrderCheckout(order.ID, sess.ID, meta); err != nil {
		return nil, err
	}
	ref := sess.ID
	order.ProviderRef = &ref
	order.Meta = meta

	p.recorder.Record(ctx, audit.Entry{
		Actor:      &order.UserID,
		Action:     models.AuditActionCheckoutCreated,
		EntityType: entityOrder,
		EntityID:   order.ID,
		Meta:       meta,
	})

	return &CheckoutResult{
		CheckoutURL:  sess.URL,
		ClientSecret: sess.ClientSecret,
	}, nil
}

// createRecurringPrice registers a throwaway provider-side price from the
// order's amount snapshot. The catalog holds no pre-registered provider
// prices, which avoids a price-sync problem at the cost of one price object
// per recurring checkout.
func (p *StripeProvider) createRecurringPrice(ctx context.Context, order *models.Order) (*stripe.Price, error) {
	priceParams := &stripe.PriceParams{
		Currency:   stripe.String(strings.ToLower(order.Currency)),
		UnitAmount: stripe.Int64(order.AmountCents),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(providerInterval(order.Product.Interval)),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(order.Product.Name),
		},
	}
	priceParams.Context = ctx

	var price *stripe.Price
	err := withRetry(ctx, providerMaxAttempts, providerRetryDelay, func() error {
		var err error
		price, err = p.api.Prices.New(priceParams)
		return err
	})
	if err != nil {
		return nil, wrapProviderError("create recurring price", err)
	}
	return price, nil
}

// VerifyWebhook checks the provider signature over the raw payload. Pure, no
// side effects.
func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) bool {
	return VerifyStripeWebhookSignature(payload, signatureHeader, p.cfg.WebhookSecret)
}

// HandleWebhook routes a verified event into the reconciliation service.
func (p *StripeProvider) HandleWebhook(ctx context.Context, event *Event) error {
	return p.service.ProcessEvent(ctx, event)
}

// FetchSubscription retrieves and normalizes a provider-side subscription.
func (p *StripeProvider) FetchSubscription(ctx context.Context, providerRef string) (*ProviderSubscription, error) {
	subParams := &stripe.SubscriptionParams{}
	subParams.Context = ctx

	var sub *stripe.Subscription
	err := withRetry(ctx, providerMaxAttempts, providerRetryDelay, func() error {
		var err error
		sub, err = p.api.Subscriptions.Get(providerRef, subParams)
		return err
	})
	if err != nil {
		return nil, wrapProviderError("retrieve subscription", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func normalizeStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
		Active: isActiveProviderStatus(string(sub.Status)),
	}
	if sub.Items != nil {
		var end int64
		for _, item := range sub.Items.Data {
			if item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
		if end > 0 {
			t := time.Unix(end, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
	}
	return out
}

// providerInterval maps catalog intervals to provider billing periods. The
// mapping is lossy: quarterly and semiannual map to "month" without an
// interval multiplier, so those products are billed monthly at the
// quarterly/semiannual price. Kept as-is until existing provider-side prices
// can be migrated; CreateCheckout warns operators per affected order.
func providerInterval(interval string) string {
	switch interval {
	case models.IntervalAnnual:
		return "year"
	default:
		return "month"
	}
}

func isLossyInterval(interval string) bool {
	return interval == models.IntervalQuarterly || interval == models.IntervalSemiannual
}

// wrapProviderError classifies an exhausted provider call: transient failures
// surface as ErrProviderUnavailable (caller may retry, order stays pending),
// client errors surface as-is.
func wrapProviderError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode < http.StatusInternalServerError &&
		stripeErr.HTTPStatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
}
