package router

import (
	"github.com/FitForgeApp/FitForge/app/controllers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	billing       *controllers.BillingController
	products      *controllers.ProductController
	orders        *controllers.OrderController
	subscriptions *controllers.SubscriptionController
}

func NewApiRouter(billing *controllers.BillingController, products *controllers.ProductController, orders *controllers.OrderController, subscriptions *controllers.SubscriptionController) *ApiRouter {
	return &ApiRouter{
		billing:       billing,
		products:      products,
		orders:        orders,
		subscriptions: subscriptions,
	}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Get("/products", h.products.HandleListProducts)
	v1.Get("/orders/:public_id", h.orders.HandleGetOrder)
	v1.Get("/orders/:public_id/audit", h.orders.HandleGetOrderAudit)
	v1.Get("/users/:user_id/subscriptions", h.subscriptions.HandleListUserSubscriptions)
	v1.Post("/checkout", h.billing.HandleCreateCheckout)
}
