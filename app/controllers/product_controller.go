package controllers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/FitForgeApp/FitForge/app/repository"
	"github.com/FitForgeApp/FitForge/internal/pkg/cache"
	"github.com/gofiber/fiber/v2"
)

const productCacheKey = "catalog:active_products"
const productCacheTTL = 5 * time.Minute

// ProductController serves the purchasable catalog.
type ProductController struct {
	products repository.ProductRepository
}

// NewProductController wires the catalog endpoints.
func NewProductController(products repository.ProductRepository) *ProductController {
	return &ProductController{products: products}
}

// HandleListProducts returns all active products, cached in Redis. A cache
// miss or unreachable cache falls through to the database.
func (ctrl *ProductController) HandleListProducts(c *fiber.Ctx) error {
	if cached, err := cache.Get(productCacheKey); err == nil && cached != "" {
		var products []models.Product
		if err := json.Unmarshal([]byte(cached), &products); err == nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"products": products})
		}
	}

	products, err := ctrl.products.GetActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "catalog_unavailable"})
	}

	if encoded, err := json.Marshal(products); err == nil {
		if err := cache.Set(productCacheKey, string(encoded), productCacheTTL); err != nil {
			log.Printf("catalog: failed to cache product list: %v", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"products": products})
}
