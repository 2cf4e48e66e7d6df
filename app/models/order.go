package models

import "time"

const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusFailed   = "failed"
	OrderStatusRefunded = "refunded"
)

// OrderMeta is the fixed set of provider correlation keys stored on an order.
// Handlers must go through these fields instead of ad-hoc map lookups.
type OrderMeta struct {
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	SubscriptionID    string `json:"subscription_id,omitempty"`
}

// Order records a purchase intent and its lifecycle status. AmountCents is a
// snapshot of the product price at creation time and never tracks later price
// changes. ProviderRef is set exactly once, when the provider checkout is
// created, and is the sole correlation key for incoming webhook events.
type Order struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PublicID    string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ProductID   uint      `gorm:"not null;index" json:"product_id"`
	Product     *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status      string    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Provider    string    `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderRef *string   `gorm:"type:varchar(191);default:null;index" json:"provider_ref,omitempty"`
	Meta        OrderMeta `gorm:"serializer:json;type:text" json:"meta"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
