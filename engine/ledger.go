package engine

import (
	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/styles"
)

// ledger records every change the engine makes to foreign nodes so
// teardown can undo them in reverse order.
type ledger struct {
	undo   []func()
	hidden int
}

func (l *ledger) addClass(n *livedom.Node, class string) {
	if n.AddClass(class) {
		l.undo = append(l.undo, func() { n.RemoveClass(class) })
	}
}

func (l *ledger) hide(n *livedom.Node) {
	if n.AddClass(styles.ClassHidden) {
		l.hidden++
		l.undo = append(l.undo, func() { n.RemoveClass(styles.ClassHidden) })
	}
}

func (l *ledger) style(doc *livedom.Document, s styles.Set) error {
	el, created, err := styles.Apply(doc, s)
	if err != nil {
		return err
	}
	if created {
		l.undo = append(l.undo, el.Remove)
	}
	return nil
}

func (l *ledger) rollback() {
	for i := len(l.undo) - 1; i >= 0; i-- {
		l.undo[i]()
	}
	l.undo = nil
	l.hidden = 0
}

func (l *ledger) len() int { return len(l.undo) }
