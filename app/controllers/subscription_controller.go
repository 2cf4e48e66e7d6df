package controllers

import (
	"errors"
	"strconv"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/FitForgeApp/FitForge/app/repository"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SubscriptionController serves subscription reads for the coaching app,
// which gates plan access on an active subscription.
type SubscriptionController struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
}

// NewSubscriptionController wires the subscription read endpoints.
func NewSubscriptionController(users repository.UserRepository, subscriptions repository.SubscriptionRepository) *SubscriptionController {
	return &SubscriptionController{users: users, subscriptions: subscriptions}
}

// HandleListUserSubscriptions returns all subscriptions of a user, newest
// first.
func (ctrl *SubscriptionController) HandleListUserSubscriptions(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("user_id"), 10, 32)
	if err != nil || userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}

	if _, err := ctrl.users.GetByID(uint(userID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	subs, err := ctrl.subscriptions.GetByUserID(uint(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_lookup_failed"})
	}

	active := false
	for _, sub := range subs {
		if sub.Status == models.SubscriptionStatusActive {
			active = true
			break
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id":       userID,
		"active":        active,
		"subscriptions": subs,
	})
}
