package models

import "time"

// Billing intervals a product can be sold at. OneTime products go through a
// one-off checkout; all other intervals create a recurring subscription.
const (
	IntervalOneTime    = "one_time"
	IntervalMonthly    = "monthly"
	IntervalQuarterly  = "quarterly"
	IntervalSemiannual = "semiannual"
	IntervalAnnual     = "annual"
)

// Product is an immutable catalog entry (coaching plan, program bundle).
// Billing reads it, the admin panel owns it.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Slug        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug" validate:"required,min=2,max=100"`
	Name        string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description string    `gorm:"type:text" json:"description"`
	PriceCents  int64     `gorm:"not null" json:"price_cents" validate:"gte=0"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'usd'" json:"currency" validate:"len=3"`
	Interval    string    `gorm:"type:varchar(16);not null;default:'one_time'" json:"interval" validate:"oneof=one_time monthly quarterly semiannual annual"`
	Active      bool      `gorm:"default:true;index" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRecurring reports whether the product bills on a repeating interval.
func (p *Product) IsRecurring() bool {
	return p.Interval != "" && p.Interval != IntervalOneTime
}
