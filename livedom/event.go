package livedom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Event is dispatched on a node and, when it bubbles, on each ancestor up
// to the document node.
type Event struct {
	Type    string
	Bubbles bool
	// Target is the node the event was dispatched on.
	Target *Node
	// CurrentTarget is the node whose listener is running.
	CurrentTarget *Node
	Detail        any

	defaultPrevented bool
	stopped          bool
}

// NewEvent returns a bubbling event.
func NewEvent(typ string) *Event { return &Event{Type: typ, Bubbles: true} }

// PreventDefault cancels the default action that follows dispatch.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a listener cancelled the default action.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles an event.
type Listener func(*Event)

type listener struct {
	id  uint64
	typ string
	fn  Listener
}

// Subscription is a registered listener. Cancel removes it.
type Subscription struct {
	doc *Document
	n   *html.Node
	id  uint64
}

// Cancel unregisters the listener. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.doc == nil {
		return
	}
	ls := s.doc.listeners[s.n]
	for i, l := range ls {
		if l.id == s.id {
			s.doc.listeners[s.n] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	s.doc = nil
}

// AddEventListener registers fn for events of type typ on n.
func (n *Node) AddEventListener(typ string, fn Listener) *Subscription {
	n.doc.nextSub++
	id := n.doc.nextSub
	n.doc.listeners[n.n] = append(n.doc.listeners[n.n], &listener{id: id, typ: typ, fn: fn})
	return &Subscription{doc: n.doc, n: n.n, id: id}
}

// ListenerCount returns how many listeners of type typ are registered on n.
func (n *Node) ListenerCount(typ string) int {
	c := 0
	for _, l := range n.doc.listeners[n.n] {
		if l.typ == typ {
			c++
		}
	}
	return c
}

// Dispatch sends ev to n's listeners and, when it bubbles, to each
// ancestor's. It reports false if a listener called PreventDefault.
func (n *Node) Dispatch(ev *Event) bool {
	ev.Target = n
	for x := n.n; x != nil; x = x.Parent {
		ev.CurrentTarget = n.doc.Wrap(x)
		ls := append([]*listener(nil), n.doc.listeners[x]...)
		for _, l := range ls {
			if l.typ == ev.Type {
				l.fn(ev)
			}
		}
		if ev.stopped || !ev.Bubbles {
			break
		}
	}
	ev.CurrentTarget = nil
	return !ev.defaultPrevented
}

// Disabled reports whether a form control is disabled.
func (n *Node) Disabled() bool {
	switch n.n.DataAtom {
	case atom.Input, atom.Button, atom.Select, atom.Textarea:
		return n.HasAttr("disabled")
	}
	return false
}

// Focus makes n the active element and fires a non-bubbling focus event.
func (n *Node) Focus() {
	if n.doc.active == n {
		return
	}
	n.doc.active = n
	n.Dispatch(&Event{Type: "focus"})
}

// Click performs a user-equivalent activation: focus, a bubbling click
// event, then the element's default action unless a listener prevented it.
// Checkboxes toggle before dispatch and revert if the click is cancelled.
func (n *Node) Click() {
	if n.Disabled() {
		return
	}
	if isFocusable(n) {
		n.Focus()
	}

	typ := n.InputType()
	var wasChecked bool
	if typ == "checkbox" || typ == "radio" {
		wasChecked = n.Checked()
		if typ == "checkbox" {
			n.SetChecked(!wasChecked)
		} else {
			n.SetChecked(true)
		}
	}

	if !n.Dispatch(NewEvent("click")) {
		if typ == "checkbox" || typ == "radio" {
			n.stateFor().checked = wasChecked
		}
		return
	}

	switch {
	case typ == "checkbox" || typ == "radio":
		if n.Checked() != wasChecked {
			n.Dispatch(NewEvent("input"))
			n.Dispatch(NewEvent("change"))
		}
	case isSubmitter(n):
		if f := n.Form(); f != nil {
			f.RequestSubmit()
		}
	case n.n.DataAtom == atom.A && n.HasAttr("href"):
		n.doc.navigations = append(n.doc.navigations, n.Attr("href"))
	}
}

// RequestSubmit fires a bubbling submit event on a form and, unless it is
// cancelled, records the submission with the form's current values.
func (n *Node) RequestSubmit() bool {
	if n.n.DataAtom != atom.Form {
		return false
	}
	if !n.Dispatch(NewEvent("submit")) {
		return false
	}
	n.doc.submissions = append(n.doc.submissions, Submission{Form: n, Values: n.FormValues()})
	return true
}

func isSubmitter(n *Node) bool {
	switch n.n.DataAtom {
	case atom.Button:
		t := n.Attr("type")
		return t == "" || t == "submit"
	case atom.Input:
		t := n.InputType()
		return t == "submit" || t == "image"
	}
	return false
}

func isFocusable(n *Node) bool {
	switch n.n.DataAtom {
	case atom.Input, atom.Button, atom.Select, atom.Textarea:
		return true
	case atom.A:
		return n.HasAttr("href")
	}
	return n.HasAttr("tabindex")
}
