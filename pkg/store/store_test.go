package store

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/kornella/anywaa/pkg/core/types"
)

func TestPurgeExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := types.ChatSession{ID: "a", UpdatedAt: now.AddDate(0, 0, -2).UnixMilli()}
	stale := types.ChatSession{ID: "b", UpdatedAt: now.AddDate(0, 0, -40).UnixMilli()}
	sessions := []types.ChatSession{fresh, stale}

	kept := PurgeExpired(sessions, 30, now)
	if len(kept) != 1 || kept[0].ID != "a" {
		t.Fatalf("kept = %+v, want only session a", kept)
	}
}

func TestPurgeExpired_Disabled(t *testing.T) {
	sessions := []types.ChatSession{{ID: "a", UpdatedAt: 1}}
	if kept := PurgeExpired(sessions, 0, time.Now()); len(kept) != 1 {
		t.Fatalf("purge disabled but dropped sessions: %+v", kept)
	}
}

// The remaining tests need a database; they skip unless DATABASE_URL is set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := Open(context.Background(), url, slog.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_GetPutDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const key = "test_blob"

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, key, "one"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, key, "two"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	value, ok, err := s.Get(ctx, key)
	if err != nil || !ok || value != "two" {
		t.Fatalf("get = %q ok=%v err=%v, want two", value, ok, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestStore_SessionsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := []types.ChatSession{{
		ID:        "quantum_1",
		Title:     "Neural Evolution Initiated",
		Messages:  []types.Message{{ID: "m1", Role: types.RoleUser, Text: "hi", Timestamp: time.Now().UnixMilli()}},
		UpdatedAt: time.Now().UnixMilli(),
	}}
	if err := s.SaveSessions(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadSessions(ctx, types.DefaultPrivacySettings())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != want[0].ID || len(got[0].Messages) != 1 {
		t.Fatalf("round trip = %+v", got)
	}
}
