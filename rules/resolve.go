package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/elderly/rules/internal/store"
	"github.com/hazyhaar/elderly/safeurl"
)

// Source tells where a resolved document came from.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceCache   Source = "cache"
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
)

// DefaultBaseURL is the public rule repository.
const DefaultBaseURL = "https://stanh123h.github.io/elderly-mode"

// Config tunes a Resolver.
type Config struct {
	// BaseURL of the remote repository; documents live at
	// {BaseURL}/rules/{site}.json. Empty disables remote lookups.
	BaseURL string
	// CachePath is the SQLite cache file. Empty disables caching.
	CachePath string
	// CacheTTL is how long a cached document is trusted. Default: 7 days.
	CacheTTL time.Duration
	// Fetcher performs the remote GET. Default: a safeurl.Fetcher.
	Fetcher *safeurl.Fetcher
	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 7 * 24 * time.Hour
	}
	if c.Fetcher == nil {
		c.Fetcher = &safeurl.Fetcher{UserAgent: "elderly-rules/1"}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Resolver finds the document for a site. It never fails: every lookup
// error falls through to the next source and ends at Default.
type Resolver struct {
	cfg    Config
	cache  *store.Store
	logger *slog.Logger
}

// NewResolver opens the cache, if configured.
func NewResolver(cfg Config, logger *slog.Logger) (*Resolver, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{cfg: cfg, logger: logger.With("component", "rules")}
	if cfg.CachePath != "" {
		st, err := store.Open(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("rules: cache: %w", err)
		}
		r.cache = st
	}
	return r, nil
}

// Close releases the cache.
func (r *Resolver) Close() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Close()
}

// Resolve returns the document for site (already normalized).
func (r *Resolver) Resolve(ctx context.Context, site string) (Document, Source) {
	if d, ok := Builtin(site); ok {
		r.logger.Debug("rules: builtin", "site", site)
		return d, SourceBuiltin
	}
	if d, ok := r.fromCache(ctx, site); ok {
		return d, SourceCache
	}
	if d, ok := r.fromRemote(ctx, site); ok {
		return d, SourceRemote
	}
	r.logger.Debug("rules: default", "site", site)
	return Default(), SourceDefault
}

func (r *Resolver) fromCache(ctx context.Context, site string) (Document, bool) {
	if r.cache == nil {
		return Document{}, false
	}
	e, err := r.cache.Get(ctx, site)
	if errors.Is(err, store.ErrNotFound) {
		return Document{}, false
	}
	if err != nil {
		r.logger.Warn("rules: cache read failed", "site", site, "error", err)
		return Document{}, false
	}
	if age := r.cfg.Now().Sub(e.FetchedAt); age >= r.cfg.CacheTTL {
		r.logger.Debug("rules: cache expired", "site", site, "age", age)
		return Document{}, false
	}
	d, err := decode(e.Body)
	if err != nil {
		r.logger.Warn("rules: cached document unreadable", "site", site, "error", err)
		return Document{}, false
	}
	r.logger.Debug("rules: cache hit", "site", site)
	return d, true
}

func (r *Resolver) fromRemote(ctx context.Context, site string) (Document, bool) {
	if r.cfg.BaseURL == "" {
		return Document{}, false
	}
	u := r.cfg.BaseURL + "/rules/" + site + ".json"
	body, err := r.cfg.Fetcher.Get(ctx, u)
	if err != nil {
		r.logger.Debug("rules: no remote document", "site", site, "error", err)
		return Document{}, false
	}
	d, err := decode(body)
	if err != nil {
		r.logger.Warn("rules: remote document unreadable", "site", site, "error", err)
		return Document{}, false
	}
	if r.cache != nil {
		e := store.Entry{Site: site, Body: body, FetchedAt: r.cfg.Now()}
		if err := r.cache.Put(ctx, e); err != nil {
			r.logger.Warn("rules: cache write failed", "site", site, "error", err)
		}
	}
	r.logger.Info("rules: remote document loaded", "site", site)
	return d, true
}

// Cached lists the sites present in the cache.
func (r *Resolver) Cached(ctx context.Context) ([]string, error) {
	if r.cache == nil {
		return nil, nil
	}
	return r.cache.Sites(ctx)
}

// Purge drops cache entries older than the TTL.
func (r *Resolver) Purge(ctx context.Context) (int64, error) {
	if r.cache == nil {
		return 0, nil
	}
	return r.cache.Purge(ctx, r.cfg.Now().Add(-r.cfg.CacheTTL))
}

func decode(b []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("rules: decode: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Document{}, err
	}
	return d, nil
}
