package payment

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventKind is the closed set of webhook event kinds this system reacts to.
// Everything else decodes to EventUnhandled and is acknowledged untouched, so
// a new provider event type requires a deliberate change here instead of
// silently falling through a string switch.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventCheckoutCompleted
	EventPaymentSucceeded
	EventSubscriptionCreated
	EventSubscriptionUpdated
	EventSubscriptionDeleted
)

const (
	eventTypeCheckoutCompleted   = "checkout.session.completed"
	eventTypePaymentSucceeded    = "payment_intent.succeeded"
	eventTypeSubscriptionCreated = "customer.subscription.created"
	eventTypeSubscriptionUpdated = "customer.subscription.updated"
	eventTypeSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is a verified, decoded webhook event. Exactly one payload field is
// populated, matching Kind.
type Event struct {
	ID      string
	Type    string
	Kind    EventKind
	Created time.Time

	CheckoutSession *CheckoutSessionPayload
	PaymentIntent   *PaymentIntentPayload
	Subscription    *SubscriptionPayload
}

// CheckoutSessionPayload carries the fields used from a completed checkout
// session. OrderID is the local order public id embedded in the session
// metadata at checkout-creation time.
type CheckoutSessionPayload struct {
	ID              string
	Mode            string
	PaymentIntentID string
	SubscriptionID  string
	OrderID         string
}

// PaymentIntentPayload is informational only; the checkout-completed event is
// the authoritative payment trigger.
type PaymentIntentPayload struct {
	ID          string
	Status      string
	AmountCents int64
}

// SubscriptionPayload carries provider-side subscription state. OrderID comes
// from the subscription metadata when the checkout flow set it.
type SubscriptionPayload struct {
	ID               string
	Status           string
	CurrentPeriodEnd *time.Time
	OrderID          string
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type rawCheckoutSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	PaymentIntent string            `json:"payment_intent"`
	Subscription  string            `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type rawPaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type rawSubscription struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// MetadataOrderKey is the metadata key under which checkout sessions and
// subscriptions carry the local order public id.
const MetadataOrderKey = "order_id"

// DecodeEvent parses a verified webhook payload into a typed Event. It only
// errors on malformed JSON or a missing envelope; unknown event types decode
// successfully as EventUnhandled.
func DecodeEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, errors.New("webhook payload missing event type")
	}

	ev := &Event{
		ID:      strings.TrimSpace(env.ID),
		Type:    env.Type,
		Created: time.Unix(env.Created, 0).UTC(),
	}

	switch env.Type {
	case eventTypeCheckoutCompleted:
		var raw rawCheckoutSession
		if err := json.Unmarshal(env.Data.Object, &raw); err != nil {
			return nil, err
		}
		ev.Kind = EventCheckoutCompleted
		ev.CheckoutSession = &CheckoutSessionPayload{
			ID:              raw.ID,
			Mode:            raw.Mode,
			PaymentIntentID: raw.PaymentIntent,
			SubscriptionID:  raw.Subscription,
			OrderID:         strings.TrimSpace(raw.Metadata[MetadataOrderKey]),
		}
	case eventTypePaymentSucceeded:
		var raw rawPaymentIntent
		if err := json.Unmarshal(env.Data.Object, &raw); err != nil {
			return nil, err
		}
		ev.Kind = EventPaymentSucceeded
		ev.PaymentIntent = &PaymentIntentPayload{
			ID:          raw.ID,
			Status:      raw.Status,
			AmountCents: raw.Amount,
		}
	case eventTypeSubscriptionCreated, eventTypeSubscriptionUpdated, eventTypeSubscriptionDeleted:
		var raw rawSubscription
		if err := json.Unmarshal(env.Data.Object, &raw); err != nil {
			return nil, err
		}
		switch env.Type {
		case eventTypeSubscriptionCreated:
			ev.Kind = EventSubscriptionCreated
		case eventTypeSubscriptionUpdated:
			ev.Kind = EventSubscriptionUpdated
		default:
			ev.Kind = EventSubscriptionDeleted
		}
		ev.Subscription = &SubscriptionPayload{
			ID:               raw.ID,
			Status:           raw.Status,
			CurrentPeriodEnd: subscriptionPeriodEnd(raw),
			OrderID:          strings.TrimSpace(raw.Metadata[MetadataOrderKey]),
		}
	default:
		ev.Kind = EventUnhandled
	}

	return ev, nil
}

// subscriptionPeriodEnd reads current_period_end from the subscription object
// or, for newer API versions that moved the field, from the first item.
func subscriptionPeriodEnd(raw rawSubscription) *time.Time {
	end := raw.CurrentPeriodEnd
	if end == 0 {
		for _, item := range raw.Items.Data {
			if item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
	}
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}
