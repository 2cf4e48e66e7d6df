package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/FitForgeApp/FitForge/app/models"
)

type memStore struct {
	entries []*models.AuditLog
	err     error
}

func (s *memStore) CreateAuditLog(entry *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecordPersistsEntry(t *testing.T) {
	store := &memStore{}
	rec := NewRecorderWithStore(store)

	actor := uint(12)
	rec.Record(context.Background(), Entry{
		Actor:      &actor,
		Action:     models.AuditActionOrderPaid,
		EntityType: "order",
		EntityID:   9,
		Meta:       map[string]string{"checkout_session_id": "cs_1"},
	})

	if len(store.entries) != 1 {
		t.Fatalf("expected one audit record, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.Action != models.AuditActionOrderPaid || got.EntityID != 9 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Actor == nil || *got.Actor != actor {
		t.Fatalf("expected actor %d, got %v", actor, got.Actor)
	}
	if got.MetaJSON != `{"checkout_session_id":"cs_1"}` {
		t.Fatalf("unexpected meta json %q", got.MetaJSON)
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("db gone")}
	rec := NewRecorderWithStore(store)

	// Must not panic or surface the error to the caller.
	rec.Record(context.Background(), Entry{
		Action:     models.AuditActionSubscriptionSynced,
		EntityType: "subscription",
		EntityID:   1,
	})
}

func TestRecordNilMeta(t *testing.T) {
	store := &memStore{}
	rec := NewRecorderWithStore(store)

	rec.Record(context.Background(), Entry{
		Action:     models.AuditActionCheckoutCreated,
		EntityType: "order",
		EntityID:   3,
	})

	if len(store.entries) != 1 {
		t.Fatalf("expected one audit record, got %d", len(store.entries))
	}
	if store.entries[0].MetaJSON != "" {
		t.Fatalf("expected empty meta json, got %q", store.entries[0].MetaJSON)
	}
}
