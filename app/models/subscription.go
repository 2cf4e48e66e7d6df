package models

import "time"

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusInactive  = "inactive"
	SubscriptionStatusCancelled = "cancelled"
)

// Billing provider constants used across billing-related models.
const (
	ProviderStripe = "stripe"
)

// Subscription mirrors a provider-side subscription. ProviderRef is unique
// per provider: every created/updated event upserts against it, so at most
// one row exists per provider subscription. LastEventAt holds the envelope
// timestamp of the last applied subscription event and guards against stale
// out-of-order cancellations.
type Subscription struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	ProductID   uint       `gorm:"not null;index" json:"product_id"`
	Status      string     `gorm:"type:varchar(16);not null;default:'inactive';index" json:"status"`
	StartedAt   time.Time  `gorm:"type:timestamp;not null" json:"started_at"`
	EndsAt      *time.Time `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	Provider    string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_provider_ref,unique,priority:1" json:"provider"`
	ProviderRef string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_provider_ref,unique,priority:2" json:"provider_ref"`
	LastEventAt *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
