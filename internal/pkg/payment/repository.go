package payment

import (
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the reconciliation service.
// The conditional update and the unique-key upserts are the only concurrency
// guards for concurrent webhook deliveries, so they must stay atomic at the
// data layer.
type Repository interface {
	FindOrderByPublicID(publicID string) (*models.Order, error)
	FindProductByID(id uint) (*models.Product, error)
	StampOrderCheckout(orderID uint, providerRef string, meta models.OrderMeta) error
	MarkOrderStatus(orderID uint, fromStatus, toStatus string, meta *models.OrderMeta) (bool, error)
	FindSubscriptionByProviderRef(provider, providerRef string) (*models.Subscription, error)
	UpsertSubscriptionByProviderRef(sub *models.Subscription) error
	CancelSubscriptionByProviderRef(provider, providerRef string, eventAt time.Time) (bool, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindOrderByPublicID(publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Product").Where("public_id = ?", publicID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) FindProductByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// StampOrderCheckout sets provider_ref exactly once: a second stamp attempt
// against an already-referenced order changes nothing.
func (r *gormRepository) StampOrderCheckout(orderID uint, providerRef string, meta models.OrderMeta) error {
	return r.db.Model(&models.Order{}).
		Where("id = ? AND provider_ref IS NULL", orderID).
		Select("provider_ref", "meta").
		Updates(&models.Order{ProviderRef: &providerRef, Meta: meta}).Error
}

// MarkOrderStatus performs the conditional transition `WHERE status = from`.
// It reports whether this call won the transition; a false return with nil
// error means another delivery already applied it.
func (r *gormRepository) MarkOrderStatus(orderID uint, fromStatus, toStatus string, meta *models.OrderMeta) (bool, error) {
	tx := r.db.Model(&models.Order{}).Where("id = ? AND status = ?", orderID, fromStatus)
	if meta != nil {
		tx = tx.Select("status", "meta").Updates(&models.Order{Status: toStatus, Meta: *meta})
	} else {
		tx = tx.Update("status", toStatus)
	}
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) FindSubscriptionByProviderRef(provider, providerRef string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider = ? AND provider_ref = ?", provider, providerRef).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscriptionByProviderRef creates or updates the single row keyed by
// (provider, provider_ref). The unique index makes concurrent upserts for the
// same reference converge on one row.
func (r *gormRepository) UpsertSubscriptionByProviderRef(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_ref"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"ends_at",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND provider_ref = ?", sub.Provider, sub.ProviderRef).
		First(sub).Error
}

// CancelSubscriptionByProviderRef marks the referenced subscription cancelled
// unless a newer event has already been applied to it. No-op (false, nil)
// when no row matches.
func (r *gormRepository) CancelSubscriptionByProviderRef(provider, providerRef string, eventAt time.Time) (bool, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("provider = ? AND provider_ref = ?", provider, providerRef).
		Where("last_event_at IS NULL OR last_event_at <= ?", eventAt).
		Updates(map[string]interface{}{
			"status":        models.SubscriptionStatusCancelled,
			"last_event_at": eventAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
