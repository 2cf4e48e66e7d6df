package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/FitForgeApp/FitForge/app/models"
	"gorm.io/gorm"
)

// Store persists audit entries. Satisfied by *gorm.DB through gormStore.
type Store interface {
	CreateAuditLog(entry *models.AuditLog) error
}

type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) CreateAuditLog(entry *models.AuditLog) error {
	return s.db.Create(entry).Error
}

// Entry describes one state transition. Actor is nil for webhook-triggered
// transitions; Meta is snapshotted to JSON at record time.
type Entry struct {
	Actor      *uint
	Action     string
	EntityType string
	EntityID   uint
	Meta       interface{}
}

// Recorder writes append-only audit records. Record is best-effort by
// contract: an audit write failure never blocks or rolls back the billing
// transition that triggered it, it is only logged.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder backed by the given GORM handle.
func NewRecorder(db *gorm.DB) *Recorder {
	return NewRecorderWithStore(&gormStore{db: db})
}

// NewRecorderWithStore creates a recorder with an injected store.
func NewRecorderWithStore(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists the entry. Failures are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	_ = ctx
	metaJSON := ""
	if entry.Meta != nil {
		if b, err := json.Marshal(entry.Meta); err == nil {
			metaJSON = string(b)
		} else {
			log.Printf("audit: failed to marshal meta for %s %s/%d: %v",
				entry.Action, entry.EntityType, entry.EntityID, err)
		}
	}

	record := &models.AuditLog{
		Actor:      entry.Actor,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		MetaJSON:   metaJSON,
	}
	if err := r.store.CreateAuditLog(record); err != nil {
		log.Printf("audit: failed to record %s %s/%d: %v",
			entry.Action, entry.EntityType, entry.EntityID, err)
	}
}
