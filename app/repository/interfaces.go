package repository

import (
	"github.com/FitForgeApp/FitForge/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// ProductRepository defines the interface for catalog operations. Billing
// only reads products; create/update exist for the admin surface.
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	GetActive() ([]models.Product, error)
	Update(product *models.Product) error
	Count() (int64, error)
}

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByPublicID(publicID string) (*models.Order, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Order, error)
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
}

// SubscriptionRepository defines the interface for subscription reads used by
// the API and admin surfaces. Mutations go through the payment package's
// conditional-update/upsert contracts exclusively.
type SubscriptionRepository interface {
	GetByID(id uint) (*models.Subscription, error)
	GetByProviderRef(provider, providerRef string) (*models.Subscription, error)
	GetByUserID(userID uint) ([]models.Subscription, error)
	Count() (int64, error)
}

// AuditLogRepository defines read access to the append-only audit trail.
type AuditLogRepository interface {
	GetByEntity(entityType string, entityID uint, limit int) ([]models.AuditLog, error)
	List(offset, limit int) ([]models.AuditLog, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Product      ProductRepository
	Order        OrderRepository
	Subscription SubscriptionRepository
	AuditLog     AuditLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Product:      NewProductRepository(db),
		Order:        NewOrderRepository(db),
		Subscription: NewSubscriptionRepository(db),
		AuditLog:     NewAuditLogRepository(db),
	}
}
