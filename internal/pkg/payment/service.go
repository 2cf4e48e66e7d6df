package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/FitForgeApp/FitForge/internal/pkg/audit"
	"gorm.io/gorm"
)

const (
	entityOrder        = "order"
	entitySubscription = "subscription"
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// Service is the reconciliation core: it turns verified provider events into
// idempotent Order and Subscription mutations. All state transitions go
// through the repository's conditional-update/upsert contracts, so redelivered
// or concurrent events converge on the same end state.
type Service struct {
	repo     Repository
	recorder *audit.Recorder
	fetcher  SubscriptionFetcher
}

// NewService creates a reconciliation service. The fetcher is the provider
// adapter used to retrieve provider-side subscription objects; it may be nil
// in tests that never process subscription-mode checkouts.
func NewService(repo Repository, recorder *audit.Recorder, fetcher SubscriptionFetcher) *Service {
	return &Service{repo: repo, recorder: recorder, fetcher: fetcher}
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without a provider event id are deduplicated by payload hash.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ProcessEvent dispatches a verified event to its handler. Unknown kinds are
// logged and acknowledged so the provider never retries events we
// intentionally ignore.
func (s *Service) ProcessEvent(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, ev)
	case EventPaymentSucceeded:
		log.Printf("payment: payment_intent %s succeeded (informational, order state follows checkout completion)", ev.PaymentIntent.ID)
		return nil
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.handleSubscriptionSync(ctx, ev)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, ev)
	default:
		log.Printf("payment: ignoring unhandled webhook event type %q (id=%s)", ev.Type, ev.ID)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, ev *Event) error {
	cs := ev.CheckoutSession
	if cs.OrderID == "" {
		log.Printf("payment: checkout session %s carries no order reference, dropping", cs.ID)
		return nil
	}

	order, err := s.repo.FindOrderByPublicID(cs.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("payment: checkout session %s references unknown order %s, dropping", cs.ID, cs.OrderID)
			return nil
		}
		return err
	}

	meta := order.Meta
	meta.CheckoutSessionID = cs.ID
	if cs.PaymentIntentID != "" {
		meta.PaymentIntentID = cs.PaymentIntentID
	}
	if cs.SubscriptionID != "" {
		meta.SubscriptionID = cs.SubscriptionID
	}

	// Checkout creation stamps provider_ref; if that write was lost the
	// session id in the event is the same reference, so backfill it here.
	if order.ProviderRef == nil && cs.ID != "" {
		if err := s.repo.StampOrderCheckout(order.ID, cs.ID, meta); err != nil {
			return err
		}
	}

	transitioned, err := s.repo.MarkOrderStatus(order.ID, models.OrderStatusPending, models.OrderStatusPaid, &meta)
	if err != nil {
		return err
	}
	if !transitioned {
		// Redelivery or a concurrent delivery won; the order already left pending.
		log.Printf("payment: order %s already reconciled, checkout session %s is a no-op", order.PublicID, cs.ID)
		return nil
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditActionOrderPaid,
		EntityType: entityOrder,
		EntityID:   order.ID,
		Meta:       meta,
	})

	if cs.Mode == "subscription" && cs.SubscriptionID != "" {
		return s.syncFetchedSubscription(ctx, ev, order, cs.SubscriptionID)
	}
	return nil
}

// syncFetchedSubscription retrieves the provider-side subscription referenced
// by a completed subscription-mode checkout and upserts the local row.
func (s *Service) syncFetchedSubscription(ctx context.Context, ev *Event, order *models.Order, providerRef string) error {
	if s.fetcher == nil {
		return errors.New("no subscription fetcher configured")
	}
	ps, err := s.fetcher.FetchSubscription(ctx, providerRef)
	if err != nil {
		// The subscription-created event will sync this row independently.
		return err
	}

	status := models.SubscriptionStatusInactive
	if ps.Active {
		status = models.SubscriptionStatusActive
	}
	return s.upsertSubscription(ctx, &models.Subscription{
		UserID:      order.UserID,
		ProductID:   order.ProductID,
		Status:      status,
		StartedAt:   ev.Created,
		EndsAt:      ps.CurrentPeriodEnd,
		Provider:    order.Provider,
		ProviderRef: ps.ID,
		LastEventAt: &ev.Created,
	})
}

func (s *Service) handleSubscriptionSync(ctx context.Context, ev *Event) error {
	sp := ev.Subscription
	if sp.ID == "" {
		log.Printf("payment: subscription event %s carries no provider ref, dropping", ev.ID)
		return nil
	}

	userID, productID, ok, err := s.resolveSubscriptionOwner(sp)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("payment: subscription %s cannot be correlated to a local order or row, dropping", sp.ID)
		return nil
	}

	status := models.SubscriptionStatusInactive
	if isActiveProviderStatus(sp.Status) {
		status = models.SubscriptionStatusActive
	}
	return s.upsertSubscription(ctx, &models.Subscription{
		UserID:      userID,
		ProductID:   productID,
		Status:      status,
		StartedAt:   ev.Created,
		EndsAt:      sp.CurrentPeriodEnd,
		Provider:    models.ProviderStripe,
		ProviderRef: sp.ID,
		LastEventAt: &ev.Created,
	})
}

// resolveSubscriptionOwner finds the user/product a provider subscription
// belongs to: an existing local row wins, otherwise the order referenced in
// the subscription metadata.
func (s *Service) resolveSubscriptionOwner(sp *SubscriptionPayload) (uint, uint, bool, error) {
	existing, err := s.repo.FindSubscriptionByProviderRef(models.ProviderStripe, sp.ID)
	if err == nil {
		return existing.UserID, existing.ProductID, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, false, err
	}

	if sp.OrderID == "" {
		return 0, 0, false, nil
	}
	order, err := s.repo.FindOrderByPublicID(sp.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return order.UserID, order.ProductID, true, nil
}

func (s *Service) upsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := s.repo.UpsertSubscriptionByProviderRef(sub); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditActionSubscriptionSynced,
		EntityType: entitySubscription,
		EntityID:   sub.ID,
		Meta: map[string]interface{}{
			"provider_ref": sub.ProviderRef,
			"status":       sub.Status,
			"ends_at":      sub.EndsAt,
		},
	})
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev *Event) error {
	sp := ev.Subscription
	existing, err := s.repo.FindSubscriptionByProviderRef(models.ProviderStripe, sp.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("payment: subscription-deleted for unknown ref %s, dropping", sp.ID)
			return nil
		}
		return err
	}

	cancelled, err := s.repo.CancelSubscriptionByProviderRef(models.ProviderStripe, sp.ID, ev.Created)
	if err != nil {
		return err
	}
	if !cancelled {
		// A newer event already touched this row; the delete arrived stale.
		log.Printf("payment: stale subscription-deleted for %s (event %s), keeping current state", sp.ID, ev.ID)
		return nil
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditActionSubscriptionCancelled,
		EntityType: entitySubscription,
		EntityID:   existing.ID,
		Meta:       map[string]interface{}{"provider_ref": sp.ID},
	})
	return nil
}

// isActiveProviderStatus reports whether the provider considers the
// subscription entitled. Trialing counts as active; everything else
// (past_due, canceled, incomplete, unpaid, paused) does not.
func isActiveProviderStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return true
	default:
		return false
	}
}
