package router

import (
	"github.com/FitForgeApp/FitForge/app/controllers"
	"github.com/gofiber/fiber/v2"
)

// WebhookRouter exposes the provider callback endpoint. No rate limiter
// here: deliveries authenticate via signature and throttling them would only
// trigger provider-side retry backoff.
type WebhookRouter struct {
	billing *controllers.BillingController
}

func NewWebhookRouter(billing *controllers.BillingController) *WebhookRouter {
	return &WebhookRouter{billing: billing}
}

func (h *WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/v1/webhooks/:provider", h.billing.HandleWebhook)
}
