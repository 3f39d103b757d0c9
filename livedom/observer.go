package livedom

import (
	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/livedom/mutation"
)

// ObserveOptions selects which mutations an observer receives.
type ObserveOptions struct {
	ChildList  bool // insertions and removals of children
	Attributes bool // attribute changes
	Subtree    bool // extend to every descendant of the observed node
}

type observation struct {
	root *Node
	opts ObserveOptions
}

// MutationObserver queues the mutations inside its observed scopes and
// delivers them as one batch per loop turn.
type MutationObserver struct {
	doc       *Document
	cb        func(*mutation.Batch)
	targets   []observation
	queue     []mutation.Record
	scheduled bool
	connected bool
	seq       uint64
	newID     idgen.Generator
}

// NewMutationObserver creates a disconnected observer.
func (d *Document) NewMutationObserver(cb func(*mutation.Batch)) *MutationObserver {
	return &MutationObserver{doc: d, cb: cb, newID: idgen.Prefixed("mut_", idgen.Default)}
}

// Observe adds a scope. Observing the same node again replaces its options.
func (o *MutationObserver) Observe(target *Node, opts ObserveOptions) {
	for i := range o.targets {
		if o.targets[i].root == target {
			o.targets[i].opts = opts
			o.attach()
			return
		}
	}
	o.targets = append(o.targets, observation{root: target, opts: opts})
	o.attach()
}

func (o *MutationObserver) attach() {
	if o.connected {
		return
	}
	o.connected = true
	o.doc.observers = append(o.doc.observers, o)
}

// Disconnect stops delivery and drops queued records.
func (o *MutationObserver) Disconnect() {
	if !o.connected {
		return
	}
	o.connected = false
	o.targets = nil
	o.queue = nil
	obs := o.doc.observers
	for i, x := range obs {
		if x == o {
			o.doc.observers = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
}

// Connected reports whether the observer is attached.
func (o *MutationObserver) Connected() bool { return o.connected }

// TakeRecords returns and clears the queued records.
func (o *MutationObserver) TakeRecords() []mutation.Record {
	q := o.queue
	o.queue = nil
	return q
}

func (o *MutationObserver) wants(rec mutation.Record) bool {
	for _, t := range o.targets {
		switch rec.Op {
		case mutation.OpInsert, mutation.OpRemove:
			if !t.opts.ChildList {
				continue
			}
		case mutation.OpAttr, mutation.OpAttrDel:
			if !t.opts.Attributes {
				continue
			}
		default:
			continue
		}
		if rec.Target == t.root.n {
			return true
		}
		if t.opts.Subtree && t.root.Contains(o.doc.Wrap(rec.Target)) {
			return true
		}
	}
	return false
}

func (o *MutationObserver) enqueue(rec mutation.Record) {
	if !o.connected || !o.wants(rec) {
		return
	}
	o.queue = append(o.queue, rec)
	if o.scheduled {
		return
	}
	o.scheduled = true
	o.doc.Loop.Post(o.deliver)
}

func (o *MutationObserver) deliver() {
	o.scheduled = false
	if !o.connected || len(o.queue) == 0 {
		return
	}
	o.seq++
	b := &mutation.Batch{
		ID:        o.newID(),
		PageURL:   o.doc.URL,
		Seq:       o.seq,
		Records:   o.TakeRecords(),
		Timestamp: o.doc.Loop.Now().UnixMilli(),
	}
	o.cb(b)
}
