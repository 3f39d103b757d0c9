// Package engine runs the elderly mode on one page view. An Engine is bound
// to a document through a page global, so there is exactly one per view.
// Activate runs the whole pipeline; calling it again tears everything down
// first and starts over. Teardown undoes every change the engine made.
//
//	e := engine.Attach(doc, engine.Config{}, engine.Deps{Rules: resolver})
//	rep, err := e.Activate(ctx)
//	...
//	e.Exit() // teardown + reload
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/elderly/actionzone"
	"github.com/hazyhaar/elderly/chrome"
	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/livewatch"
	"github.com/hazyhaar/elderly/rules"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

// ActiveFlag is the page global set before the first mutation of an
// activation. Only a reload clears it.
const ActiveFlag = "elderlyModeActive"

const engineKey = "elderly.engine"

// ErrFatal wraps failures that left the page without any treatment.
var ErrFatal = errors.New("engine: fatal")

// State is the engine lifecycle.
type State int

const (
	Uninitialized State = iota
	Active
	TornDown
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case TornDown:
		return "torn-down"
	}
	return "uninitialized"
}

// Generation selects the treatment pipeline.
type Generation string

const (
	// GenerationSemantic classifies the live tree (default).
	GenerationSemantic Generation = "semantic"
	// GenerationRules applies the site's rule document.
	GenerationRules Generation = "rules"
)

// ParseGeneration validates a configured generation. Empty means semantic.
func ParseGeneration(s string) (Generation, error) {
	switch Generation(s) {
	case "", GenerationSemantic:
		return GenerationSemantic, nil
	case GenerationRules:
		return GenerationRules, nil
	}
	return "", fmt.Errorf("engine: unknown generation %q", s)
}

// Config tunes an engine.
type Config struct {
	Generation   Generation
	Policy       semantic.Policy
	Materializer actionzone.Materializer
	// PollInterval is the mirror refresh period. Default: 100ms.
	PollInterval time.Duration
	// Debounce is the watcher quiet period. Default: 300ms.
	Debounce time.Duration
	// NoticeTTL is how long the degraded notice stays. Default: 5s.
	NoticeTTL time.Duration
	Tuning    styles.Tuning
	// Confirm asks before exiting. Nil exits without asking.
	Confirm chrome.Confirm
}

func (c *Config) defaults() {
	if c.Generation == "" {
		c.Generation = GenerationSemantic
	}
	if c.Policy == "" {
		c.Policy = semantic.PolicyBaseline
	}
	if c.Materializer == "" {
		c.Materializer = actionzone.Proxy
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = 5 * time.Second
	}
}

// RuleSource finds the rule document of a site.
type RuleSource interface {
	Resolve(ctx context.Context, site string) (rules.Document, rules.Source)
}

// Deps are the engine's collaborators. All are optional.
type Deps struct {
	Rules  RuleSource
	Logger *slog.Logger
	NewID  idgen.Generator
}

// Engine is the per-page controller.
type Engine struct {
	doc    *livedom.Document
	cfg    Config
	deps   Deps
	logger *slog.Logger

	state   State
	ledger  ledger
	zone    *actionzone.Zone
	watch   *livewatch.Watcher
	toggle  *chrome.Toggle
	notices []*chrome.Notice
	last    *Report

	// failAt injects a failure before the named step; tests only.
	failAt func(step string) error
}

// Attach returns the engine bound to doc, creating it on first use. cfg and
// deps are ignored when an engine already exists.
func Attach(doc *livedom.Document, cfg Config, deps Deps) *Engine {
	if v, ok := doc.Global(engineKey); ok {
		if e, ok := v.(*Engine); ok {
			return e
		}
	}
	cfg.defaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewID == nil {
		deps.NewID = idgen.Prefixed("run_", idgen.Default)
	}
	e := &Engine{
		doc:    doc,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "engine", "url", doc.URL),
	}
	doc.SetGlobal(engineKey, e)
	return e
}

// IsActive reports whether the page-wide flag is set.
func IsActive(doc *livedom.Document) bool {
	v, ok := doc.Global(ActiveFlag)
	b, _ := v.(bool)
	return ok && b
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Zone returns the mounted action zone, if any.
func (e *Engine) Zone() *actionzone.Zone { return e.zone }

// Watcher returns the armed watcher, if any.
func (e *Engine) Watcher() *livewatch.Watcher { return e.watch }

// Notices returns the notices currently shown.
func (e *Engine) Notices() []*chrome.Notice {
	var out []*chrome.Notice
	for _, n := range e.notices {
		if n.Visible() {
			out = append(out, n)
		}
	}
	return out
}

// LastReport returns the report of the latest activation.
func (e *Engine) LastReport() *Report { return e.last }

// Teardown stops the watcher and pollers, removes every injected node and
// restores every touched attribute and class. The page flag stays set.
func (e *Engine) Teardown() {
	if e.watch != nil {
		e.watch.Stop()
		e.watch = nil
	}
	if e.zone != nil {
		e.zone.Teardown()
		e.zone = nil
	}
	if e.toggle != nil {
		e.toggle.Unmount()
		e.toggle = nil
	}
	for _, n := range e.notices {
		n.Dismiss()
	}
	e.notices = nil
	undone := e.ledger.len()
	e.ledger.rollback()
	if e.state != Uninitialized {
		e.state = TornDown
	}
	e.logger.Debug("engine: torn down", "undone", undone)
}

// Exit is the user's way out: teardown, then a reload of the page, which
// clears the page flag and detaches this engine.
func (e *Engine) Exit() error {
	e.Teardown()
	e.logger.Info("engine: exit requested, reloading")
	if err := e.doc.Reload(); err != nil {
		return fmt.Errorf("engine: exit: %w", err)
	}
	return nil
}

func (e *Engine) check(step string) error {
	if e.failAt == nil {
		return nil
	}
	return e.failAt(step)
}

// safely runs fn, turning a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
