// Package store persists chat state as key-value text blobs. Persistence is
// best effort: an absent key means "no prior state", and callers treat
// write failures as advisory, never fatal to the chat flow.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kornella/anywaa/pkg/core/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Storage keys for the persisted blobs.
const (
	KeySessions = "anywaa_quantum_sessions"
	KeyPrivacy  = "anywaa_quantum_privacy"
)

// Store is a Postgres-backed blob store.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open connects, runs pending migrations and returns a ready store.
func Open(ctx context.Context, databaseURL string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &Store{pool: pool, log: log.With("component", "store")}, nil
}

func migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Get returns the blob for key; ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts the blob for key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes the blob for key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// LoadSessions reads the stored session list, applying the auto-purge
// window from settings. An absent key yields an empty list.
func (s *Store) LoadSessions(ctx context.Context, settings types.PrivacySettings) ([]types.ChatSession, error) {
	blob, ok, err := s.Get(ctx, KeySessions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var sessions []types.ChatSession
	if err := json.Unmarshal([]byte(blob), &sessions); err != nil {
		// A corrupt cache is discarded rather than breaking startup.
		s.log.Warn("discarding unreadable session cache", "error", err)
		return nil, nil
	}
	return PurgeExpired(sessions, settings.AutoPurgeDays, time.Now()), nil
}

// SaveSessions writes the session list.
func (s *Store) SaveSessions(ctx context.Context, sessions []types.ChatSession) error {
	blob, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return s.Put(ctx, KeySessions, string(blob))
}

// LoadPrivacySettings reads stored settings, falling back to defaults when
// absent or unreadable.
func (s *Store) LoadPrivacySettings(ctx context.Context) (types.PrivacySettings, error) {
	blob, ok, err := s.Get(ctx, KeyPrivacy)
	if err != nil {
		return types.DefaultPrivacySettings(), err
	}
	if !ok {
		return types.DefaultPrivacySettings(), nil
	}

	settings := types.DefaultPrivacySettings()
	if err := json.Unmarshal([]byte(blob), &settings); err != nil {
		s.log.Warn("discarding unreadable privacy settings", "error", err)
		return types.DefaultPrivacySettings(), nil
	}
	return settings, nil
}

// SavePrivacySettings writes the settings blob.
func (s *Store) SavePrivacySettings(ctx context.Context, settings types.PrivacySettings) error {
	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode privacy settings: %w", err)
	}
	return s.Put(ctx, KeyPrivacy, string(blob))
}

// PurgeExpired drops sessions untouched for more than purgeDays. Zero
// disables purging.
func PurgeExpired(sessions []types.ChatSession, purgeDays int, now time.Time) []types.ChatSession {
	if purgeDays <= 0 {
		return sessions
	}
	cutoff := now.AddDate(0, 0, -purgeDays).UnixMilli()
	kept := sessions[:0]
	for _, session := range sessions {
		if session.UpdatedAt >= cutoff {
			kept = append(kept, session)
		}
	}
	return kept
}
