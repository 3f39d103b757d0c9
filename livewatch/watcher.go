// Package livewatch keeps the action zone in step with single-page
// applications. A mutation observer on <body> collects the controls found
// in newly inserted subtrees; once the page has been quiet for the
// debounce window, those still attached and unbound are handed to the
// zone, which appends them after the existing entries. Controls that were
// already in the page are never picked up by a re-run.
package livewatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/elderly/actionzone"
	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/livedom/mutation"
	"github.com/hazyhaar/elderly/semantic"
)

// Extender receives the controls discovered by a re-run.
type Extender interface {
	Extend(nodes []*livedom.Node) []*actionzone.Binding
}

// Config controls a Watcher.
type Config struct {
	// Debounce is the quiet period before a re-run. Default: 300ms.
	Debounce time.Duration
	// MaxPending forces a re-run after this many triggering batches
	// without a quiet period. Default: 1000.
	MaxPending int
	// OnExtend, if set, is called after each re-run with the new bindings.
	OnExtend func([]*actionzone.Binding)
}

// Stats counts what a Watcher has done.
type Stats struct {
	Batches  int // mutation batches received
	Triggers int // batches that carried an unbound control
	Runs     int // debounced re-runs
	Bound    int // bindings created by re-runs
}

// Watcher observes one document for inserted controls.
type Watcher struct {
	doc    *livedom.Document
	zone   Extender
	cfg    Config
	logger *slog.Logger

	obs     *livedom.MutationObserver
	deb     *debouncer
	pending []*livedom.Node // inserted candidates awaiting the next run
	stats   Stats
	done    bool
}

// Start arms a watcher on doc's body.
func Start(doc *livedom.Document, zone Extender, cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	body := doc.Body()
	if body == nil {
		return nil, errors.New("livewatch: document has no body")
	}
	w := &Watcher{
		doc:    doc,
		zone:   zone,
		cfg:    cfg,
		logger: logger.With("component", "livewatch"),
	}
	w.deb = newDebouncer(debounceConfig{Window: cfg.Debounce, MaxPending: cfg.MaxPending}, doc.Loop, w.run)
	w.obs = doc.NewMutationObserver(w.handle)
	w.obs.Observe(body, livedom.ObserveOptions{ChildList: true, Subtree: true})
	w.logger.Debug("livewatch: started", "debounce", w.deb.cfg.Window)
	return w, nil
}

// Stop disconnects the observer and drops any scheduled re-run.
func (w *Watcher) Stop() {
	if w.done {
		return
	}
	w.done = true
	w.obs.Disconnect()
	w.deb.stop()
	w.pending = nil
	w.logger.Debug("livewatch: stopped", "runs", w.stats.Runs, "bound", w.stats.Bound)
}

// Active reports whether the watcher is still observing.
func (w *Watcher) Active() bool { return !w.done && w.obs.Connected() }

// Scheduled reports whether a re-run is waiting for its window.
func (w *Watcher) Scheduled() bool { return w.deb.armed() }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats { return w.stats }

func (w *Watcher) handle(b *mutation.Batch) {
	if w.done {
		return
	}
	w.stats.Batches++
	found := w.inserted(b)
	if len(found) == 0 {
		return
	}
	w.pending = append(w.pending, found...)
	w.stats.Triggers++
	if w.deb.trigger() {
		w.logger.Warn("livewatch: pending limit reached, running now", "max_pending", w.deb.cfg.MaxPending)
	}
}

// inserted returns the unbound interactive nodes of the batch's inserted
// subtrees, roots included. It is empty unless one of them is a native
// control: click-handler elements alone do not trigger a run.
func (w *Watcher) inserted(b *mutation.Batch) []*livedom.Node {
	unbound := func(n *livedom.Node) bool {
		return semantic.IsInteractive(n) && !actionzone.IsMarked(n)
	}
	var out []*livedom.Node
	for _, raw := range b.Inserted() {
		n := w.doc.Wrap(raw)
		if !n.IsElement() {
			continue
		}
		if unbound(n) {
			out = append(out, n)
		}
		out = append(out, n.QueryAll(unbound)...)
	}
	for _, n := range out {
		if semantic.IsControl(n) {
			return out
		}
	}
	return nil
}

// run is the partial re-run: the nodes collected since the last run that
// are still attached go to the zone, which assigns indices after the
// current maximum.
func (w *Watcher) run() {
	if w.done {
		return
	}
	w.stats.Runs++
	cands := w.pending
	w.pending = nil

	var live []*livedom.Node
	seen := make(map[*livedom.Node]bool, len(cands))
	for _, n := range cands {
		if seen[n] || !n.IsConnected() {
			continue
		}
		seen[n] = true
		live = append(live, n)
	}
	fresh := actionzone.Targets(inDocumentOrder(w.doc, live))
	if len(fresh) == 0 {
		return
	}
	added := w.zone.Extend(fresh)
	w.stats.Bound += len(added)
	w.logger.Info("livewatch: extended action zone", "candidates", len(fresh), "bound", len(added))
	if w.cfg.OnExtend != nil && len(added) > 0 {
		w.cfg.OnExtend(added)
	}
}

// inDocumentOrder sorts nodes by their position in the body. Batches can
// insert into earlier parts of the page after later ones.
func inDocumentOrder(doc *livedom.Document, nodes []*livedom.Node) []*livedom.Node {
	body := doc.Body()
	if len(nodes) < 2 || body == nil {
		return nodes
	}
	want := make(map[*livedom.Node]bool, len(nodes))
	for _, n := range nodes {
		want[n] = true
	}
	return body.QueryAll(func(n *livedom.Node) bool { return want[n] })
}
