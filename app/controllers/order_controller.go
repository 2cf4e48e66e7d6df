package controllers

import (
	"errors"

	"github.com/FitForgeApp/FitForge/app/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderController serves order status lookups, used by the post-checkout
// redirect page to poll until the webhook reconciles the order.
type OrderController struct {
	orders repository.OrderRepository
	audit  repository.AuditLogRepository
}

// NewOrderController wires the order endpoints.
func NewOrderController(orders repository.OrderRepository, audit repository.AuditLogRepository) *OrderController {
	return &OrderController{orders: orders, audit: audit}
}

// HandleGetOrder returns the order identified by its public UUID.
func (ctrl *OrderController) HandleGetOrder(c *fiber.Ctx) error {
	publicID := c.Params("public_id")
	if _, err := uuid.Parse(publicID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}

	order, err := ctrl.orders.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"order_id":     order.PublicID,
		"status":       order.Status,
		"amount_cents": order.AmountCents,
		"currency":     order.Currency,
	})
}

const orderAuditLimit = 50

// HandleGetOrderAudit returns the audit trail of an order, newest first.
func (ctrl *OrderController) HandleGetOrderAudit(c *fiber.Ctx) error {
	publicID := c.Params("public_id")
	if _, err := uuid.Parse(publicID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}

	order, err := ctrl.orders.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	entries, err := ctrl.audit.GetByEntity("order", order.ID, orderAuditLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "audit_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"order_id": order.PublicID,
		"audit":    entries,
	})
}
