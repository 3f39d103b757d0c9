// Package pagesource obtains the HTML the engine works on: either the raw
// document over HTTP or the outerHTML of the page after a headless browser
// has run its scripts.
package pagesource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/safeurl"
)

// Page is fetched markup.
type Page struct {
	URL      string
	HTML     []byte
	Rendered bool // produced by a browser rather than a plain GET
}

// Parse turns the page into a live document on loop.
func (p Page) Parse(loop *livedom.Loop) (*livedom.Document, error) {
	return livedom.Parse(p.HTML, p.URL, loop)
}

// Source fetches pages.
type Source interface {
	Fetch(ctx context.Context, pageURL string) (Page, error)
}

// Config selects and tunes a Source.
type Config struct {
	// Headless renders pages in a browser. Default: false (plain HTTP).
	Headless bool
	// BrowserURL is the DevTools WebSocket of an external browser. Empty
	// launches a local one.
	BrowserURL string
	// Timeout bounds one fetch or navigation. Default: 30s.
	Timeout time.Duration
	// MaxBody caps plain HTTP bodies. Default: 5 MiB.
	MaxBody int64
	// AllowPrivate permits private and loopback targets.
	AllowPrivate bool
	UserAgent    string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 5 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; elderly/1)"
	}
}

// New returns the configured Source. A headless Source must be closed.
func New(cfg Config, logger *slog.Logger) Source {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Headless {
		return &Browser{cfg: cfg, logger: logger.With("component", "pagesource")}
	}
	return NewHTTP(cfg)
}

// HTTP fetches raw documents.
type HTTP struct {
	f *safeurl.Fetcher
}

// NewHTTP returns a plain HTTP Source.
func NewHTTP(cfg Config) *HTTP {
	cfg.defaults()
	return &HTTP{f: &safeurl.Fetcher{
		Timeout:      cfg.Timeout,
		MaxBody:      cfg.MaxBody,
		AllowPrivate: cfg.AllowPrivate,
		UserAgent:    cfg.UserAgent,
	}}
}

// Fetch GETs pageURL.
func (h *HTTP) Fetch(ctx context.Context, pageURL string) (Page, error) {
	body, err := h.f.Get(ctx, pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("pagesource: %w", err)
	}
	return Page{URL: pageURL, HTML: body}, nil
}
