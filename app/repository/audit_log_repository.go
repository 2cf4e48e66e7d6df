package repository

import (
	"github.com/FitForgeApp/FitForge/app/models"
	"gorm.io/gorm"
)

// auditLogRepository implements the AuditLogRepository interface. The trail
// is append-only; writes happen through the audit package recorder.
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository instance
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// GetByEntity retrieves the most recent audit entries for one entity
func (r *auditLogRepository) GetByEntity(entityType string, entityID uint, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// List retrieves audit entries with pagination, newest first
func (r *auditLogRepository) List(offset, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, err
}
