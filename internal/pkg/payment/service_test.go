package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/FitForgeApp/FitForge/internal/pkg/audit"
	"gorm.io/gorm"
)

// fakeRepository implements Repository in memory and mirrors the atomicity
// contracts of the GORM implementation: conditional status transitions,
// unique-key subscription upserts and the last_event_at cancellation guard.
type fakeRepository struct {
	orders        map[string]*models.Order
	subscriptions map[string]*models.Subscription
	webhookEvents map[string]*models.BillingWebhookEvent
	nextSubID     uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		orders:        make(map[string]*models.Order),
		subscriptions: make(map[string]*models.Subscription),
		webhookEvents: make(map[string]*models.BillingWebhookEvent),
		nextSubID:     1,
	}
}

func subKey(provider, providerRef string) string {
	return provider + "/" + providerRef
}

func (r *fakeRepository) FindOrderByPublicID(publicID string) (*models.Order, error) {
	order, ok := r.orders[publicID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *fakeRepository) FindProductByID(id uint) (*models.Product, error) {
	for _, order := range r.orders {
		if order.Product != nil && order.Product.ID == id {
			copied := *order.Product
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) StampOrderCheckout(orderID uint, providerRef string, meta models.OrderMeta) error {
	for _, order := range r.orders {
		if order.ID == orderID && order.ProviderRef == nil {
			ref := providerRef
			order.ProviderRef = &ref
			order.Meta = meta
		}
	}
	return nil
}

func (r *fakeRepository) MarkOrderStatus(orderID uint, fromStatus, toStatus string, meta *models.OrderMeta) (bool, error) {
	for _, order := range r.orders {
		if order.ID == orderID && order.Status == fromStatus {
			order.Status = toStatus
			if meta != nil {
				order.Meta = *meta
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) FindSubscriptionByProviderRef(provider, providerRef string) (*models.Subscription, error) {
	sub, ok := r.subscriptions[subKey(provider, providerRef)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeRepository) UpsertSubscriptionByProviderRef(sub *models.Subscription) error {
	key := subKey(sub.Provider, sub.ProviderRef)
	if existing, ok := r.subscriptions[key]; ok {
		existing.Status = sub.Status
		existing.EndsAt = sub.EndsAt
		existing.LastEventAt = sub.LastEventAt
		*sub = *existing
		return nil
	}
	sub.ID = r.nextSubID
	r.nextSubID++
	copied := *sub
	r.subscriptions[key] = &copied
	return nil
}

func (r *fakeRepository) CancelSubscriptionByProviderRef(provider, providerRef string, eventAt time.Time) (bool, error) {
	sub, ok := r.subscriptions[subKey(provider, providerRef)]
	if !ok {
		return false, nil
	}
	if sub.LastEventAt != nil && sub.LastEventAt.After(eventAt) {
		return false, nil
	}
	sub.Status = models.SubscriptionStatusCancelled
	at := eventAt
	sub.LastEventAt = &at
	return true, nil
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := r.webhookEvents[key]; ok {
		copied := *existing
		return false, &copied, nil
	}
	event.ID = uint(len(r.webhookEvents) + 1)
	copied := *event
	r.webhookEvents[key] = &copied
	stored := copied
	return true, &stored, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range r.webhookEvents {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
		}
	}
	return nil
}

// fakeFetcher returns a canned provider subscription or an error.
type fakeFetcher struct {
	sub   *ProviderSubscription
	err   error
	calls int
}

func (f *fakeFetcher) FetchSubscription(ctx context.Context, providerRef string) (*ProviderSubscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

type discardStore struct{}

func (discardStore) CreateAuditLog(*models.AuditLog) error { return nil }

func newTestService(repo Repository, fetcher SubscriptionFetcher) *Service {
	return NewService(repo, audit.NewRecorderWithStore(discardStore{}), fetcher)
}

func pendingOrder(repo *fakeRepository, publicID string) *models.Order {
	order := &models.Order{
		ID:          uint(len(repo.orders) + 1),
		PublicID:    publicID,
		UserID:      7,
		ProductID:   3,
		AmountCents: 4900,
		Currency:    "EUR",
		Status:      models.OrderStatusPending,
		Provider:    models.ProviderStripe,
	}
	repo.orders[publicID] = order
	return order
}

func checkoutEvent(orderID, sessionID, mode, subscriptionID string) *Event {
	return &Event{
		ID:      "evt_" + sessionID,
		Type:    "checkout.session.completed",
		Kind:    EventCheckoutCompleted,
		Created: time.Now().UTC(),
		CheckoutSession: &CheckoutSessionPayload{
			ID:             sessionID,
			Mode:           mode,
			SubscriptionID: subscriptionID,
			OrderID:        orderID,
		},
	}
}

func subscriptionEvent(kind EventKind, ref, status, orderID string, created time.Time) *Event {
	return &Event{
		ID:      "evt_sub_" + ref,
		Kind:    kind,
		Created: created,
		Subscription: &SubscriptionPayload{
			ID:      ref,
			Status:  status,
			OrderID: orderID,
		},
	}
}

func TestCheckoutCompletedMarksOrderPaidOnce(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)
	order := pendingOrder(repo, "ord-1")

	ev := checkoutEvent(order.PublicID, "cs_1", "payment", "")
	ev.CheckoutSession.PaymentIntentID = "pi_1"
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if got := repo.orders["ord-1"].Status; got != models.OrderStatusPaid {
		t.Fatalf("expected order paid, got %q", got)
	}
	if got := repo.orders["ord-1"].Meta.PaymentIntentID; got != "pi_1" {
		t.Fatalf("expected payment intent stored in meta, got %q", got)
	}

	// Redelivery of the same event must be a clean no-op.
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if got := repo.orders["ord-1"].Status; got != models.OrderStatusPaid {
		t.Fatalf("redelivery changed status to %q", got)
	}
}

func TestCheckoutCompletedBackfillsProviderRef(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)
	order := pendingOrder(repo, "ord-ref")
	// Checkout creation normally stamps provider_ref; simulate that write
	// having been lost.
	if order.ProviderRef != nil {
		t.Fatalf("precondition: expected unstamped order")
	}

	ev := checkoutEvent(order.PublicID, "cs_ref", "payment", "")
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	stored := repo.orders["ord-ref"]
	if stored.ProviderRef == nil || *stored.ProviderRef != "cs_ref" {
		t.Fatalf("expected provider_ref backfilled with session id, got %v", stored.ProviderRef)
	}
	if stored.Status != models.OrderStatusPaid {
		t.Fatalf("expected order paid, got %q", stored.Status)
	}

	// An already-stamped order keeps its original reference.
	pendingOrder(repo, "ord-stamped")
	ref := "cs_original"
	repo.orders["ord-stamped"].ProviderRef = &ref
	ev2 := checkoutEvent("ord-stamped", "cs_other", "payment", "")
	if err := svc.ProcessEvent(context.Background(), ev2); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if got := *repo.orders["ord-stamped"].ProviderRef; got != "cs_original" {
		t.Fatalf("expected original provider_ref kept, got %q", got)
	}
}

func TestCheckoutCompletedUnknownOrderAcknowledged(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)

	ev := checkoutEvent("does-not-exist", "cs_ghost", "payment", "")
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("unknown order reference must not error: %v", err)
	}
}

func TestCheckoutCompletedSubscriptionModeSyncs(t *testing.T) {
	repo := newFakeRepository()
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC()
	fetcher := &fakeFetcher{sub: &ProviderSubscription{
		ID:               "sub_1",
		Status:           "active",
		Active:           true,
		CurrentPeriodEnd: &periodEnd,
	}}
	svc := newTestService(repo, fetcher)
	order := pendingOrder(repo, "ord-sub")

	ev := checkoutEvent(order.PublicID, "cs_sub", "subscription", "sub_1")
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("subscription checkout failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one provider fetch, got %d", fetcher.calls)
	}

	sub, ok := repo.subscriptions[subKey(models.ProviderStripe, "sub_1")]
	if !ok {
		t.Fatalf("expected local subscription row for sub_1")
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("expected active subscription, got %q", sub.Status)
	}
	if sub.UserID != order.UserID || sub.ProductID != order.ProductID {
		t.Fatalf("subscription owner mismatch: user %d product %d", sub.UserID, sub.ProductID)
	}
	if sub.EndsAt == nil || !sub.EndsAt.Equal(periodEnd) {
		t.Fatalf("expected ends_at %v, got %v", periodEnd, sub.EndsAt)
	}
}

func TestSubscriptionEventsUpsertSingleRow(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)
	pendingOrder(repo, "ord-sub")

	created := subscriptionEvent(EventSubscriptionCreated, "sub_42", "trialing", "ord-sub", time.Now().UTC())
	if err := svc.ProcessEvent(context.Background(), created); err != nil {
		t.Fatalf("created event failed: %v", err)
	}
	updated := subscriptionEvent(EventSubscriptionUpdated, "sub_42", "active", "", time.Now().UTC().Add(time.Minute))
	if err := svc.ProcessEvent(context.Background(), updated); err != nil {
		t.Fatalf("updated event failed: %v", err)
	}

	if len(repo.subscriptions) != 1 {
		t.Fatalf("expected a single subscription row, got %d", len(repo.subscriptions))
	}
	sub := repo.subscriptions[subKey(models.ProviderStripe, "sub_42")]
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("expected active after update, got %q", sub.Status)
	}
}

func TestSubscriptionPastDueBecomesInactive(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)
	pendingOrder(repo, "ord-sub")

	created := subscriptionEvent(EventSubscriptionCreated, "sub_pd", "active", "ord-sub", time.Now().UTC())
	if err := svc.ProcessEvent(context.Background(), created); err != nil {
		t.Fatalf("created event failed: %v", err)
	}
	pastDue := subscriptionEvent(EventSubscriptionUpdated, "sub_pd", "past_due", "", time.Now().UTC().Add(time.Minute))
	if err := svc.ProcessEvent(context.Background(), pastDue); err != nil {
		t.Fatalf("past_due event failed: %v", err)
	}

	sub := repo.subscriptions[subKey(models.ProviderStripe, "sub_pd")]
	if sub.Status != models.SubscriptionStatusInactive {
		t.Fatalf("expected inactive for past_due, got %q", sub.Status)
	}
}

func TestSubscriptionWithoutOwnerDropped(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)

	// No local row and no order metadata: nothing to correlate against.
	ev := subscriptionEvent(EventSubscriptionCreated, "sub_orphan", "active", "", time.Now().UTC())
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("uncorrelatable subscription must not error: %v", err)
	}
	if len(repo.subscriptions) != 0 {
		t.Fatalf("expected no subscription rows, got %d", len(repo.subscriptions))
	}
}

func TestSubscriptionDeletedCancels(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)
	pendingOrder(repo, "ord-sub")

	base := time.Now().UTC()
	created := subscriptionEvent(EventSubscriptionCreated, "sub_del", "active", "ord-sub", base)
	if err := svc.ProcessEvent(context.Background(), created); err != nil {
		t.Fatalf("created event failed: %v", err)
	}
	deleted := subscriptionEvent(EventSubscriptionDeleted, "sub_del", "canceled", "", base.Add(time.Hour))
	if err := svc.ProcessEvent(context.Background(), deleted); err != nil {
		t.Fatalf("deleted event failed: %v", err)
	}

	sub := repo.subscriptions[subKey(models.ProviderStripe, "sub_del")]
	if sub.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled, got %q", sub.Status)
	}
}

func TestSubscriptionDeletedUnknownRefAcknowledged(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)

	ev := subscriptionEvent(EventSubscriptionDeleted, "sub_missing", "canceled", "", time.Now().UTC())
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("delete for unknown ref must not error: %v", err)
	}
}

func TestStaleSubscriptionDeleteIgnored(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)
	pendingOrder(repo, "ord-sub")

	base := time.Now().UTC()
	update := subscriptionEvent(EventSubscriptionUpdated, "sub_race", "active", "ord-sub", base.Add(time.Hour))
	if err := svc.ProcessEvent(context.Background(), update); err != nil {
		t.Fatalf("update event failed: %v", err)
	}

	// The delete was emitted before the update but arrives after it.
	stale := subscriptionEvent(EventSubscriptionDeleted, "sub_race", "canceled", "", base)
	if err := svc.ProcessEvent(context.Background(), stale); err != nil {
		t.Fatalf("stale delete must not error: %v", err)
	}

	sub := repo.subscriptions[subKey(models.ProviderStripe, "sub_race")]
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("stale delete overwrote newer state: %q", sub.Status)
	}
}

func TestUnhandledEventKindAcknowledged(t *testing.T) {
	svc := newTestService(newFakeRepository(), nil)
	ev := &Event{ID: "evt_x", Type: "invoice.finalized", Kind: EventUnhandled, Created: time.Now().UTC()}
	if err := svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("unhandled kind must not error: %v", err)
	}
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)

	in := WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}
	created, first, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if !created {
		t.Fatalf("expected first delivery to create the event")
	}

	createdAgain, second, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if createdAgain {
		t.Fatalf("expected redelivery to be deduplicated")
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same stored event, got ids %d and %d", first.ID, second.ID)
	}
}

func TestRecordWebhookEventHashFallback(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, nil)

	in := WebhookEventInput{
		Provider:    "stripe",
		EventType:   "checkout.session.completed",
		PayloadJSON: `{"type":"checkout.session.completed"}`,
	}
	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !created {
		t.Fatalf("expected creation")
	}
	if len(stored.ProviderEventID) == 0 || stored.ProviderEventID[:5] != "hash:" {
		t.Fatalf("expected hash fallback id, got %q", stored.ProviderEventID)
	}

	// The identical payload without an id dedupes against the same hash.
	createdAgain, _, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if createdAgain {
		t.Fatalf("expected hash-based deduplication")
	}
}

func TestSubscriptionFetchFailurePropagates(t *testing.T) {
	repo := newFakeRepository()
	fetchErr := errors.New("provider timeout")
	svc := newTestService(repo, &fakeFetcher{err: fetchErr})
	order := pendingOrder(repo, "ord-fail")

	ev := checkoutEvent(order.PublicID, "cs_fail", "subscription", "sub_fail")
	err := svc.ProcessEvent(context.Background(), ev)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
	// The order transition itself already happened and must survive.
	if got := repo.orders["ord-fail"].Status; got != models.OrderStatusPaid {
		t.Fatalf("expected order paid despite fetch failure, got %q", got)
	}
}
