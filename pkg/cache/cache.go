package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/umputun/bilifeed/pkg/domain"
)

// Store is a keyed, TTL-bounded cache for normalized feed posts. It is the
// only component allowed to write cache entries; everything else reads.
type Store struct {
	conn *sqlx.DB
}

// Entry is one cached fetch result
type Entry struct {
	Key        string    `db:"key"`
	FetchedAt  time.Time `db:"fetched_at"`
	TTLMinutes int       `db:"ttl_minutes"`
	Posts      []domain.Post
}

// Valid reports whether the entry is still usable at the given time.
// TTLMinutes <= 0 means the entry never expires.
func (e *Entry) Valid(now time.Time) bool {
	if e.TTLMinutes <= 0 {
		return true
	}
	return now.Before(e.FetchedAt.Add(time.Duration(e.TTLMinutes) * time.Minute))
}

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	fetched_at  TIMESTAMP NOT NULL,
	ttl_minutes INTEGER NOT NULL,
	payload     TEXT NOT NULL
)`

// New opens the cache database and initializes its schema
func New(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "file:bilifeed-cache.db?cache=shared&mode=rwc"
	}

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	// single-user tool, one writer is plenty
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the cache database
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the entry for the key or nil when absent. A stored payload
// that cannot be decoded is treated as a miss: logged, deleted and nil
// returned so the caller refetches and overwrites it.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	var row struct {
		Key        string    `db:"key"`
		FetchedAt  time.Time `db:"fetched_at"`
		TTLMinutes int       `db:"ttl_minutes"`
		Payload    string    `db:"payload"`
	}
	err := s.conn.GetContext(ctx, &row, "SELECT key, fetched_at, ttl_minutes, payload FROM cache_entries WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	entry := &Entry{Key: row.Key, FetchedAt: row.FetchedAt, TTLMinutes: row.TTLMinutes}
	if err := json.Unmarshal([]byte(row.Payload), &entry.Posts); err != nil {
		corrupt := domain.NewError(domain.ErrCacheCorrupt, "decode cache payload", err)
		lgr.Printf("[WARN] cache entry %s treated as miss: %v", key, corrupt)
		if delErr := s.Delete(ctx, key); delErr != nil {
			lgr.Printf("[WARN] failed to drop corrupted cache entry %s: %v", key, delErr)
		}
		return nil, nil
	}
	return entry, nil
}

// Put stores posts under the key, fully replacing any prior entry
func (s *Store) Put(ctx context.Context, key string, posts []domain.Post, ttlMinutes int) error {
	payload, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}

	// retry on busy database
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		_, execErr := s.conn.ExecContext(ctx, `
			INSERT INTO cache_entries (key, fetched_at, ttl_minutes, payload) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				fetched_at = excluded.fetched_at,
				ttl_minutes = excluded.ttl_minutes,
				payload = excluded.payload
		`, key, time.Now().UTC(), ttlMinutes, string(payload))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for the key, absent keys are not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		_, execErr := s.conn.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Key derives a cache key from the request shape: feed type, pagination
// extent, endpoint and the authenticated principal. Same inputs always
// produce the same key, credentials never appear in it verbatim.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}
