package models

import "time"

// Audit actions emitted by the billing subsystem.
const (
	AuditActionCheckoutCreated       = "order.checkout_created"
	AuditActionOrderPaid             = "order.paid"
	AuditActionSubscriptionSynced    = "subscription.synced"
	AuditActionSubscriptionCancelled = "subscription.cancelled"
)

// AuditLog is an append-only record of a billing state transition. Actor is
// nil for transitions triggered by provider webhooks.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Actor      *uint     `gorm:"default:null;index" json:"actor,omitempty"`
	Action     string    `gorm:"type:varchar(60);not null;index" json:"action"`
	EntityType string    `gorm:"type:varchar(40);not null;index:idx_audit_logs_entity,priority:1" json:"entity_type"`
	EntityID   uint      `gorm:"not null;index:idx_audit_logs_entity,priority:2" json:"entity_id"`
	MetaJSON   string    `gorm:"type:text" json:"meta_json"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
