// Package store persists fetched rule documents in SQLite, keyed by
// normalized site, with the time they were fetched.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/elderly/dbopen"
)

// Schema creates the cache table.
const Schema = `
CREATE TABLE IF NOT EXISTS rule_cache (
	site       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rule_cache_fetched ON rule_cache(fetched_at);
`

// ErrNotFound is returned by Get for an unknown site.
var ErrNotFound = errors.New("store: not found")

// Entry is one cached document.
type Entry struct {
	Site      string
	Body      []byte
	FetchedAt time.Time
}

// Store is the rule cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an open database. The schema is applied.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the entry for site.
func (s *Store) Get(ctx context.Context, site string) (Entry, error) {
	var (
		e  = Entry{Site: site}
		ms int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM rule_cache WHERE site = ?`, site,
	).Scan(&e.Body, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store: get %s: %w", site, err)
	}
	e.FetchedAt = time.UnixMilli(ms)
	return e, nil
}

// Put inserts or replaces the entry for site.
func (s *Store) Put(ctx context.Context, e Entry) error {
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO rule_cache (site, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(site) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		e.Site, e.Body, e.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: put %s: %w", e.Site, err)
	}
	return nil
}

// Delete removes the entry for site. Deleting a missing site is not an
// error.
func (s *Store) Delete(ctx context.Context, site string) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM rule_cache WHERE site = ?`, site); err != nil {
		return fmt.Errorf("store: delete %s: %w", site, err)
	}
	return nil
}

// Purge drops entries fetched before cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, s.db, `DELETE FROM rule_cache WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: purge: %w", err)
	}
	return res.RowsAffected()
}

// Sites lists cached sites in name order.
func (s *Store) Sites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT site FROM rule_cache ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("store: sites: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, rows.Err()
}
