// Package actionzone builds the action surface of the split layout: a
// panel of large, purpose-built controls that stand in for the page's own
// interactive elements. Originals are never moved or removed. They are
// marked with an index, visually hidden, and kept in sync with their
// stand-ins through event forwarding and a short poll.
//
// Usage:
//
//	z, err := actionzone.Mount(doc, actionzone.Config{}, logger)
//	z.Materialize(analysis.Zones.Action)
//	z.Extend(newControls) // later, from the watcher
//	z.Teardown()
package actionzone

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

// Markers written into the page.
const (
	MarkerAttr   = "data-elderly-ref"
	MarkerPrefix = "elderly-ref-"
	ProxyAttr    = "data-elderly-proxy"
	AreaID       = "elderly-action-area"
	zoneAttr     = "data-elderly-zone"
)

// Materializer selects how blocks are reproduced in the zone.
type Materializer string

const (
	// Proxy builds one new minimal control per original.
	Proxy Materializer = "proxy"
	// Clone copies the block subtree and forwards by descendant position.
	Clone Materializer = "clone"
)

// ParseMaterializer validates a configured name. Empty means Proxy.
func ParseMaterializer(s string) (Materializer, error) {
	switch Materializer(s) {
	case "", Proxy:
		return Proxy, nil
	case Clone:
		return Clone, nil
	}
	return "", fmt.Errorf("actionzone: unknown materializer %q", s)
}

// Config tunes a zone.
type Config struct {
	Materializer Materializer
	// PollInterval is the original→mirror refresh period. Default: 100ms.
	PollInterval time.Duration
	// Title heads the zone. Default: "Actions".
	Title string
	// EmptyMessage is shown by ShowPlaceholder.
	EmptyMessage string
	// NewControlsTitle heads the group that collects controls added after
	// the first pass. Default: "New controls".
	NewControlsTitle string
}

func (c *Config) defaults() {
	if c.Materializer == "" {
		c.Materializer = Proxy
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.Title == "" {
		c.Title = "Actions"
	}
	if c.EmptyMessage == "" {
		c.EmptyMessage = "No inputs or buttons were detected on this page."
	}
	if c.NewControlsTitle == "" {
		c.NewControlsTitle = "New controls"
	}
}

// Zone is the mounted action surface and its binding registry.
type Zone struct {
	doc    *livedom.Document
	cfg    Config
	logger *slog.Logger

	area        *livedom.Node
	extra       *livedom.Node
	placeholder *livedom.Node

	bindings map[int]*Binding
	hidden   []*restore // block roots hidden by the clone materializer
	torn     bool
}

// Mount appends an empty zone to <html>, after <body>. A stale zone left
// in the document is replaced.
func Mount(doc *livedom.Document, cfg Config, logger *slog.Logger) (*Zone, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	root := doc.DocumentElement()
	if root == nil {
		return nil, fmt.Errorf("actionzone: mount: document has no root element")
	}
	if stale := doc.GetElementByID(AreaID); stale != nil {
		stale.Remove()
	}

	area := doc.CreateElement("aside")
	area.SetAttr("id", AreaID)
	area.SetAttr("class", styles.ClassActionArea)
	area.SetAttr("aria-label", cfg.Title)
	area.SetAttr(zoneAttr, "action")
	h := doc.CreateElement("h2")
	h.SetAttr("class", styles.ClassActionHeading)
	h.SetText(cfg.Title)
	area.AppendChild(h)
	root.AppendChild(area)

	return &Zone{
		doc:      doc,
		cfg:      cfg,
		logger:   logger.With("component", "actionzone"),
		area:     area,
		bindings: make(map[int]*Binding),
	}, nil
}

// Area returns the zone's root element.
func (z *Zone) Area() *livedom.Node { return z.area }

// Config returns the effective configuration.
func (z *Zone) Config() Config { return z.cfg }

// Materialize adds one group per block, in order. Blocks without any
// unbound visible control add nothing. It returns the number of new
// bindings.
func (z *Zone) Materialize(blocks []semantic.Block) int {
	if z.torn {
		return 0
	}
	total := 0
	for _, b := range blocks {
		var n int
		if z.cfg.Materializer == Clone {
			n = z.materializeClone(b)
		} else {
			n = z.materializeProxy(b)
		}
		total += n
	}
	z.logger.Debug("actionzone: materialized",
		"blocks", len(blocks), "bindings", total, "materializer", string(z.cfg.Materializer))
	return total
}

func (z *Zone) materializeProxy(b semantic.Block) int {
	targets := blockTargets(b)
	if len(targets) == 0 {
		return 0
	}
	group := z.newGroup(b.Kind, groupTitle(b))
	n := 0
	for _, t := range targets {
		if z.bindProxy(t, group, b.Kind) != nil {
			n++
		}
	}
	if n == 0 {
		group.Remove()
	}
	return n
}

// Extend binds controls discovered after the first pass. Already-marked or
// invisible nodes are skipped. New items go to a dedicated group appended
// to the zone through the configured materializer; existing entries are
// left untouched.
func (z *Zone) Extend(nodes []*livedom.Node) []*Binding {
	if z.torn {
		return nil
	}
	var out []*Binding
	for _, n := range nodes {
		if IsMarked(n) || !n.IsVisible() {
			continue
		}
		if z.extra == nil || !z.extra.IsConnected() {
			z.extra = z.newGroup(semantic.Action, z.cfg.NewControlsTitle)
		}
		if z.cfg.Materializer == Clone {
			// Elements the copy cannot pair, such as click-handler divs,
			// fall through to a proxy.
			blk := semantic.Block{Node: n, Kind: semantic.Action, Atomic: true}
			if bs := z.cloneInto(blk, z.extra); len(bs) > 0 {
				out = append(out, bs...)
				continue
			}
		}
		if b := z.bindProxy(n, z.extra, semantic.Action); b != nil {
			out = append(out, b)
		}
	}
	if len(out) > 0 {
		z.clearPlaceholder()
		z.logger.Debug("actionzone: extended", "bindings", len(out), "next_index", z.NextIndex())
	}
	return out
}

// ShowPlaceholder shows the empty-zone message when nothing is bound.
func (z *Zone) ShowPlaceholder() {
	if len(z.bindings) > 0 || z.placeholder != nil {
		return
	}
	p := z.doc.CreateElement("p")
	p.SetAttr("class", styles.ClassPlaceholder)
	p.SetText(z.cfg.EmptyMessage)
	z.area.AppendChild(p)
	z.placeholder = p
}

func (z *Zone) clearPlaceholder() {
	if z.placeholder != nil {
		z.placeholder.Remove()
		z.placeholder = nil
	}
}

func (z *Zone) newGroup(kind semantic.Kind, title string) *livedom.Node {
	g := z.doc.CreateElement("div")
	g.SetAttr("class", styles.ClassActionGroup)
	g.SetAttr("data-block-kind", kind.String())
	h := z.doc.CreateElement("h3")
	h.SetText(title)
	g.AppendChild(h)
	z.area.AppendChild(g)
	return g
}

func groupTitle(b semantic.Block) string {
	switch b.Kind {
	case semantic.Form:
		if b.Meta.HasLogin {
			return "Sign in"
		}
		return "Form"
	case semantic.Search:
		return "Search"
	case semantic.Navigation:
		return "Navigation"
	case semantic.Action:
		return "Actions"
	}
	return "Controls"
}

// blockTargets lists the unbound visible controls a block contributes, in
// document order. Navigation blocks contribute their links as well.
func blockTargets(b semantic.Block) []*livedom.Node {
	pred := semantic.IsInteractive
	if b.Kind == semantic.Navigation {
		pred = livedom.Any(semantic.IsInteractive, semantic.IsLink)
	}
	var cands []*livedom.Node
	if pred(b.Node) {
		cands = append(cands, b.Node)
	}
	return Targets(append(cands, b.Node.QueryAll(pred)...))
}

// Targets narrows candidates, given in document order, to the nodes that
// get a binding. Marked and invisible nodes are dropped. Native controls
// always qualify. A click-handler or role=button element qualifies only
// when it holds no native control, and then only if no earlier target
// contains it.
func Targets(cands []*livedom.Node) []*livedom.Node {
	var out []*livedom.Node
	for _, n := range cands {
		if IsMarked(n) || !n.IsVisible() {
			continue
		}
		if !semantic.IsControl(n) {
			if n.Query(semantic.IsControl) != nil {
				continue
			}
			nested := false
			for _, o := range out {
				if o.Contains(n) {
					nested = true
					break
				}
			}
			if nested {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// NextIndex is one more than the largest index in use, counting markers
// present in the tree as well as the registry. The first index is 1.
func (z *Zone) NextIndex() int {
	hi := 0
	for i := range z.bindings {
		if i > hi {
			hi = i
		}
	}
	marked, err := z.doc.QueryXPath("//*[@" + MarkerAttr + "]")
	if err == nil {
		for _, n := range marked {
			if i, ok := MarkerIndex(n); ok && i > hi {
				hi = i
			}
		}
	}
	return hi + 1
}

// Bindings returns the registry ordered by index.
func (z *Zone) Bindings() []*Binding {
	out := make([]*Binding, 0, len(z.bindings))
	for _, b := range z.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Binding looks up a binding by index.
func (z *Zone) Binding(index int) (*Binding, bool) {
	b, ok := z.bindings[index]
	return b, ok
}

// BindingFor resolves the binding of an original through its marker.
func (z *Zone) BindingFor(original *livedom.Node) (*Binding, bool) {
	i, ok := MarkerIndex(original)
	if !ok {
		return nil, false
	}
	b, ok := z.bindings[i]
	if !ok || b.Original != original {
		return nil, false
	}
	return b, true
}

// Len returns the number of bindings.
func (z *Zone) Len() int { return len(z.bindings) }

// Teardown cancels every subscription and poll, restores every original
// and removes the zone. The zone cannot be reused.
func (z *Zone) Teardown() {
	if z.torn {
		return
	}
	z.torn = true
	for _, b := range z.Bindings() {
		b.release(z.doc)
	}
	for _, r := range z.hidden {
		r.apply()
	}
	z.hidden = nil
	z.bindings = make(map[int]*Binding)
	z.area.Remove()
	z.logger.Debug("actionzone: torn down")
}

// IsMarked reports whether n carries the processed marker.
func IsMarked(n *livedom.Node) bool { return n.HasAttr(MarkerAttr) }

// MarkerIndex parses the index out of n's marker.
func MarkerIndex(n *livedom.Node) (int, bool) {
	v, ok := n.AttrOK(MarkerAttr)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(v, MarkerPrefix))
	if err != nil || i <= 0 {
		return 0, false
	}
	return i, true
}

func marker(i int) string { return MarkerPrefix + strconv.Itoa(i) }
