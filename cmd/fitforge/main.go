package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/FitForgeApp/FitForge/app/controllers"
	"github.com/FitForgeApp/FitForge/app/repository"
	"github.com/FitForgeApp/FitForge/internal/pkg/audit"
	"github.com/FitForgeApp/FitForge/internal/pkg/cache"
	"github.com/FitForgeApp/FitForge/internal/pkg/database"
	"github.com/FitForgeApp/FitForge/internal/pkg/env"
	"github.com/FitForgeApp/FitForge/internal/pkg/payment"
	"github.com/FitForgeApp/FitForge/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repos := repository.NewFactory(db).GetRepositories()

	// Billing wiring: one Stripe adapter instance, passed explicitly to the
	// controllers that need it.
	recorder := audit.NewRecorder(db)
	provider := payment.NewStripeProviderFromEnv(db, recorder)

	billing := controllers.NewBillingController(provider, provider.Service(), repos.Order)
	products := controllers.NewProductController(repos.Product)
	orders := controllers.NewOrderController(repos.Order, repos.AuditLog)
	subscriptions := controllers.NewSubscriptionController(repos.User, repos.Subscription)

	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // 1 MiB, webhook payloads stay small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app, billing, products, orders, subscriptions)

	return app
}
