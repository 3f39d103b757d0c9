package actionzone

import (
	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

// Binding ties one original control to its stand-in. At most one binding
// exists per original; the marker attribute on the original carries the
// index under which the registry holds it.
type Binding struct {
	Index    int
	Original *livedom.Node
	Mirror   *livedom.Node
	// Item is the zone entry holding the mirror (proxy materializer only).
	Item  *livedom.Node
	Block semantic.Kind
	Label string

	subs     []*livedom.Subscription
	poll     livedom.TimerID
	detached bool
	restore  *restore
}

// Polling reports whether the original→mirror refresh is still running.
func (b *Binding) Polling(doc *livedom.Document) bool {
	return b.poll != 0 && doc.Loop.Armed(b.poll)
}

// Detached reports whether the poll stopped because the original left the
// tree.
func (b *Binding) Detached() bool { return b.detached }

func (b *Binding) release(doc *livedom.Document) {
	for _, s := range b.subs {
		s.Cancel()
	}
	b.subs = nil
	if b.poll != 0 {
		doc.Loop.ClearTimer(b.poll)
		b.poll = 0
	}
	b.Original.RemoveAttr(MarkerAttr)
	if b.restore != nil {
		b.restore.apply()
	}
}

// restore remembers what hiding changed on a foreign node.
type restore struct {
	node       *livedom.Node
	addedClass bool
	aria       string
	hadAria    bool
	tab        string
	hadTab     bool
}

// hide suppresses n visually and from assistive technology and the tab
// order, keeping it in the tree.
func hide(n *livedom.Node) *restore {
	r := &restore{node: n}
	r.aria, r.hadAria = n.AttrOK("aria-hidden")
	r.tab, r.hadTab = n.AttrOK("tabindex")
	r.addedClass = n.AddClass(styles.ClassOriginal)
	n.SetAttr("aria-hidden", "true")
	n.SetAttr("tabindex", "-1")
	return r
}

func (r *restore) apply() {
	n := r.node
	if r.addedClass {
		n.RemoveClass(styles.ClassOriginal)
	}
	if r.hadAria {
		n.SetAttr("aria-hidden", r.aria)
	} else {
		n.RemoveAttr("aria-hidden")
	}
	if r.hadTab {
		n.SetAttr("tabindex", r.tab)
	} else {
		n.RemoveAttr("tabindex")
	}
}

// startPoll pushes original state into the mirror every interval until the
// original is detached or the binding is released.
func (z *Zone) startPoll(b *Binding, sync func()) {
	b.poll = z.doc.Loop.SetInterval(z.cfg.PollInterval, func() {
		if !b.Original.IsConnected() {
			z.doc.Loop.ClearTimer(b.poll)
			b.poll = 0
			b.detached = true
			z.logger.Debug("actionzone: original detached, poll stopped", "index", b.Index)
			return
		}
		sync()
	})
}

// register marks the original and records the binding.
func (z *Zone) register(b *Binding) {
	b.Original.SetAttr(MarkerAttr, marker(b.Index))
	z.bindings[b.Index] = b
}
