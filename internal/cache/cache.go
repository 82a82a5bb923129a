// Package cache memoizes whole-run propagation results keyed by a
// content hash of the analyzed image and the configuration that
// produced them, so re-running the analyzer against an unchanged image
// during iterative development skips the fixpoint computation entirely.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Cache is a sqlite-backed store of (image digest -> result JSON)
// entries.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database under dir,
// named classflow.db. An empty dir disables the cache: Open returns
// nil, nil and every method on a nil *Cache is a harmless no-op.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "classflow.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrating %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	digest     TEXT PRIMARY KEY,
	result     BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Close releases the underlying database handle. Safe to call on nil.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Digest computes the cache key for a given bytecode image and
// megamorphic threshold -- the only config knob that changes the
// computed result.
func Digest(bytecodes []byte, megamorphicThreshold int) string {
	h := sha256.New()
	h.Write(bytecodes)
	fmt.Fprintf(h, "\x00threshold=%d", megamorphicThreshold)
	return hex.EncodeToString(h.Sum(nil))
}

// ErrMiss is returned by Lookup when digest has no cached entry.
var ErrMiss = errors.New("cache: miss")

// Lookup returns the cached result JSON for digest, or ErrMiss if the
// cache is disabled (nil receiver) or has no entry for it.
func (c *Cache) Lookup(digest string) ([]byte, error) {
	if c == nil {
		return nil, ErrMiss
	}
	var result []byte
	err := c.db.QueryRow(`SELECT result FROM runs WHERE digest = ?`, digest).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: looking up %s: %w", digest, err)
	}
	return result, nil
}

// Store records result under digest, overwriting any previous entry.
// A nil receiver silently discards the write.
func (c *Cache) Store(digest string, result []byte) error {
	if c == nil {
		return nil
	}
	_, err := c.db.Exec(`INSERT INTO runs(digest, result) VALUES (?, ?)
		ON CONFLICT(digest) DO UPDATE SET result = excluded.result, created_at = CURRENT_TIMESTAMP`,
		digest, result)
	if err != nil {
		return fmt.Errorf("cache: storing %s: %w", digest, err)
	}
	return nil
}
