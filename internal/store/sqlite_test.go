package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/avtotest/chekbot/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sessions.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetSession("12345")
	if err != nil {
		t.Fatalf("GetSession on empty store failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent session, got %+v", got)
	}

	now := time.Now().UTC().Truncate(time.Second)
	sess := models.Session{
		UserID:       "12345",
		State:        models.StateAwaitingCheck,
		PendingEmail: "user@example.com",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err = s.GetSession("12345")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.State != models.StateAwaitingCheck || got.PendingEmail != "user@example.com" {
		t.Errorf("unexpected session: %+v", got)
	}

	// Upsert clears the pending email via NULL.
	sess.State = models.StateCompleted
	sess.PendingEmail = ""
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession update failed: %v", err)
	}
	got, err = s.GetSession("12345")
	if err != nil {
		t.Fatalf("GetSession after update failed: %v", err)
	}
	if got.State != models.StateCompleted || got.PendingEmail != "" {
		t.Errorf("expected updated session, got %+v", got)
	}

	if err := s.DeleteSession("12345"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	got, _ = s.GetSession("12345")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error without DSN")
	}
}

func TestSQLiteStoreIsolatesUsers(t *testing.T) {
	s := newTestSQLiteStore(t)

	now := time.Now().UTC()
	_ = s.SaveSession(models.Session{UserID: "a", State: models.StateIdle, CreatedAt: now, UpdatedAt: now})
	_ = s.SaveSession(models.Session{UserID: "b", State: models.StateCompleted, CreatedAt: now, UpdatedAt: now})

	a, err := s.GetSession("a")
	if err != nil || a == nil {
		t.Fatalf("GetSession(a) failed: %v %v", a, err)
	}
	b, err := s.GetSession("b")
	if err != nil || b == nil {
		t.Fatalf("GetSession(b) failed: %v %v", b, err)
	}
	if a.State != models.StateIdle || b.State != models.StateCompleted {
		t.Errorf("sessions leaked across users: a=%+v b=%+v", a, b)
	}
}
