package router

import (
	"github.com/FitForgeApp/FitForge/app/controllers"
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers all route groups. Controllers arrive fully wired;
// the router only maps paths onto them.
func InstallRouter(app *fiber.App, billing *controllers.BillingController, products *controllers.ProductController, orders *controllers.OrderController, subscriptions *controllers.SubscriptionController) {
	setup(app, NewApiRouter(billing, products, orders, subscriptions), NewWebhookRouter(billing))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
