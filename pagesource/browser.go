package pagesource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/elderly/safeurl"
)

// Browser renders pages in headless Chrome through Rod, with stealth
// patches applied to every tab. The browser starts on first use.
type Browser struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Fetch navigates a fresh tab to pageURL, waits for load and returns the
// serialized document element.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (Page, error) {
	if !b.cfg.AllowPrivate {
		if err := safeurl.Validate(pageURL); err != nil {
			return Page{}, fmt.Errorf("pagesource: %w", err)
		}
	}
	br, err := b.connect()
	if err != nil {
		return Page{}, err
	}
	page, err := stealth.Page(br)
	if err != nil {
		return Page{}, fmt.Errorf("pagesource: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return Page{}, fmt.Errorf("pagesource: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		b.logger.Warn("pagesource: wait load", "url", pageURL, "error", err)
	}
	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return Page{}, fmt.Errorf("pagesource: get DOM: %w", err)
	}
	info, err := p.Info()
	finalURL := pageURL
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return Page{URL: finalURL, HTML: []byte(res.Value.Str()), Rendered: true}, nil
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	wsURL := b.cfg.BrowserURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("pagesource: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.logger.Info("pagesource: launched local chrome", "url", wsURL)
	}
	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("pagesource: connect: %w", err)
	}
	b.browser = br
	return br, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch = nil
	}
	return err
}
