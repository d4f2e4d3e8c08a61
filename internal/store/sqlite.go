// Package store persists resolution history and the advisory TTL caches
// in a local SQLite database.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Cache kinds. Each kind carries its own freshness bound.
const (
	KindGeocode = "geocode"
	KindParcel  = "parcel"
	KindZoning  = "zoning"
)

// Store wraps a SQLite database via modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS resolutions (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	report     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CacheKey returns SHA-256 hex of the normalized lookup key.
func CacheKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}

// GetCached returns the cached payload for (kind, key), or a miss when
// absent or past its freshness bound.
func (s *Store) GetCached(ctx context.Context, kind, key string) ([]byte, bool) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM lookup_cache WHERE kind = ? AND key = ? AND expires_at > ?`,
		kind, key, time.Now().UTC(),
	).Scan(&payload)
	if err != nil {
		return nil, false
	}
	return []byte(payload), true
}

// PutCached stores a payload under (kind, key) with the given TTL,
// replacing any previous entry.
func (s *Store) PutCached(ctx context.Context, kind, key string, payload []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (kind, key, payload, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, key) DO UPDATE SET
			payload = excluded.payload,
			expires_at = excluded.expires_at`,
		kind, key, string(payload), time.Now().UTC().Add(ttl),
	)
	return eris.Wrap(err, "store: put cached")
}

// Resolution is one stored resolution report.
type Resolution struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveResolution records a completed resolution and returns its id.
func (s *Store) SaveResolution(ctx context.Context, address string, report []byte) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (id, address, report, created_at) VALUES (?, ?, ?, ?)`,
		id, address, string(report), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "store: save resolution")
	}
	return id, nil
}

// ListResolutions returns the most recent resolutions, newest first.
func (s *Store) ListResolutions(ctx context.Context, limit int) ([]Resolution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, address, report, created_at FROM resolutions ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list resolutions")
	}
	defer rows.Close() //nolint:errcheck

	var out []Resolution
	for rows.Next() {
		var r Resolution
		var report string
		if err := rows.Scan(&r.ID, &r.Address, &report, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan resolution")
		}
		r.Report = json.RawMessage(report)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate resolutions")
	}
	return out, nil
}

// PruneExpired removes cache rows past their freshness bound.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookup_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "store: prune expired")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
