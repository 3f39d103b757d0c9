package livedom

import (
	"strings"

	"golang.org/x/net/html/atom"
)

// elementState is the form-control state a browser keeps outside the
// markup. It lives in the document's registry keyed by raw node.
type elementState struct {
	value      string
	valueSet   bool
	checked    bool
	checkedSet bool
}

func (n *Node) stateFor() *elementState {
	s, ok := n.doc.state[n.n]
	if !ok {
		s = &elementState{}
		n.doc.state[n.n] = s
	}
	return s
}

// Option is one choice of a <select>.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// InputType returns the lowercase type of an input, defaulting to "text".
// Non-input elements return "".
func (n *Node) InputType() string {
	if n.n.DataAtom != atom.Input {
		return ""
	}
	t := strings.ToLower(strings.TrimSpace(n.Attr("type")))
	if t == "" {
		return "text"
	}
	return t
}

// Value returns the current control value: the dirty value if one was set,
// else the markup default (value attribute, textarea text, selected option).
func (n *Node) Value() string {
	if s, ok := n.doc.state[n.n]; ok && s.valueSet {
		return s.value
	}
	switch n.n.DataAtom {
	case atom.Textarea:
		return n.Text()
	case atom.Select:
		opts := n.Options()
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if len(opts) > 0 {
			return opts[0].Value
		}
		return ""
	case atom.Input:
		v := n.Attr("value")
		if v == "" && (n.InputType() == "checkbox" || n.InputType() == "radio") && !n.HasAttr("value") {
			return "on"
		}
		return v
	case atom.Button, atom.Option:
		if v, ok := n.AttrOK("value"); ok {
			return v
		}
		if n.n.DataAtom == atom.Option {
			return strings.TrimSpace(n.Text())
		}
	}
	return n.Attr("value")
}

// SetValue sets the control value without firing events, as a script
// assignment would. Selects only accept values of existing options.
func (n *Node) SetValue(v string) {
	if n.n.DataAtom == atom.Select {
		found := false
		for _, o := range n.Options() {
			if o.Value == v {
				found = true
				break
			}
		}
		if !found {
			return
		}
	}
	s := n.stateFor()
	s.value = v
	s.valueSet = true
}

// Checked returns the checkedness of a checkbox or radio.
func (n *Node) Checked() bool {
	if s, ok := n.doc.state[n.n]; ok && s.checkedSet {
		return s.checked
	}
	return n.HasAttr("checked")
}

// SetChecked sets checkedness without firing events. Checking a radio
// unchecks the other radios of its group.
func (n *Node) SetChecked(on bool) {
	s := n.stateFor()
	s.checked = on
	s.checkedSet = true
	if on && n.InputType() == "radio" {
		for _, r := range n.radioGroup() {
			if r != n {
				rs := r.stateFor()
				rs.checked = false
				rs.checkedSet = true
			}
		}
	}
}

func (n *Node) radioGroup() []*Node {
	name := n.Attr("name")
	if name == "" {
		return nil
	}
	scope := n.Form()
	if scope == nil {
		scope = n.doc.Root()
	}
	return scope.QueryAll(func(x *Node) bool {
		return x.InputType() == "radio" && x.Attr("name") == name
	})
}

// Options lists the <option> children of a select, including those inside
// <optgroup>. The selected flag reflects the current value.
func (n *Node) Options() []Option {
	if n.n.DataAtom != atom.Select {
		return nil
	}
	nodes := n.QueryAll(func(x *Node) bool { return x.n.DataAtom == atom.Option })
	cur, dirty := "", false
	if s, ok := n.doc.state[n.n]; ok && s.valueSet {
		cur, dirty = s.value, true
	}
	out := make([]Option, 0, len(nodes))
	for _, o := range nodes {
		val := o.Value()
		sel := o.HasAttr("selected")
		if dirty {
			sel = val == cur
		}
		out = append(out, Option{Value: val, Label: strings.TrimSpace(o.Text()), Selected: sel})
	}
	return out
}

// Form returns the form owning a control: the form named by its form
// attribute, else its closest form ancestor.
func (n *Node) Form() *Node {
	if id := n.Attr("form"); id != "" {
		if f := n.doc.GetElementByID(id); f != nil && f.n.DataAtom == atom.Form {
			return f
		}
	}
	return n.Closest(func(x *Node) bool { return x.n.DataAtom == atom.Form })
}

// FormValues collects the successful controls of a form by name.
func (n *Node) FormValues() map[string]string {
	vals := make(map[string]string)
	for _, c := range n.QueryAll(func(x *Node) bool { return x.Attr("name") != "" }) {
		if c.HasAttr("disabled") {
			continue
		}
		switch c.n.DataAtom {
		case atom.Input:
			switch c.InputType() {
			case "submit", "button", "reset", "image", "file":
				continue
			case "checkbox", "radio":
				if !c.Checked() {
					continue
				}
			}
		case atom.Textarea, atom.Select:
		default:
			continue
		}
		vals[c.Attr("name")] = c.Value()
	}
	return vals
}
