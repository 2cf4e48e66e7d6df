package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/FitForgeApp/FitForge/app/repository"
	"github.com/FitForgeApp/FitForge/internal/pkg/payment"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const webhookProviderStripe = "stripe"

// BillingController exposes checkout creation and the provider webhook
// endpoint. All collaborators are injected; nothing resolves through a
// process-wide registry.
type BillingController struct {
	provider payment.Provider
	service  *payment.Service
	orders   repository.OrderRepository
	validate *validator.Validate
}

// NewBillingController wires the billing endpoints.
func NewBillingController(provider payment.Provider, service *payment.Service, orders repository.OrderRepository) *BillingController {
	return &BillingController{
		provider: provider,
		service:  service,
		orders:   orders,
		validate: validator.New(),
	}
}

type createCheckoutRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

// HandleCreateCheckout converts a pending order into a provider checkout
// session and returns the redirect URL. The order stays pending; a failed
// provider call is safe to retry.
func (ctrl *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := ctrl.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}

	order, err := ctrl.orders.GetByPublicID(req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}
	if order.Status != models.OrderStatusPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "order_not_pending", "status": order.Status})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := ctrl.provider.CreateCheckout(ctx, order)
	if err != nil {
		if errors.Is(err, payment.ErrProviderUnavailable) {
			// Order is untouched; the client may retry.
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "provider_unavailable"})
		}
		log.Printf("billing: checkout creation for order %s failed: %v", order.PublicID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleWebhook receives provider event deliveries. Signature verification
// runs over the raw bytes before anything is parsed. Verified, parseable
// events are always acknowledged 200 — handled, intentionally ignored,
// duplicate, or referencing entities that no longer exist locally — so the
// provider never retries events we will not act on. Handler failures are
// contained: logged and stored on the event record, not surfaced as 5xx.
func (ctrl *BillingController) HandleWebhook(c *fiber.Ctx) error {
	if c.Params("provider") != webhookProviderStripe {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_provider"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	if !ctrl.provider.VerifyWebhook(rawBody, signature) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := payment.DecodeEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := ctrl.service.RecordWebhookEvent(ctx, payment.WebhookEventInput{
		Provider:        webhookProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	handleErr := ctrl.provider.HandleWebhook(ctx, event)
	if handleErr != nil {
		log.Printf("billing: webhook %s (%s) handler failed: %v", event.ID, event.Type, handleErr)
	}
	if err := ctrl.service.MarkWebhookProcessed(ctx, stored.ID, handleErr); err != nil {
		log.Printf("billing: failed to mark webhook %s processed: %v", event.ID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
