package actionzone

import (
	"strconv"
	"strings"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

type controlKind int

const (
	controlText controlKind = iota
	controlToggle
	controlSelect
	controlButton
)

func classify(n *livedom.Node) controlKind {
	switch n.Tag() {
	case "textarea":
		return controlText
	case "select":
		return controlSelect
	case "input":
		switch n.InputType() {
		case "checkbox", "radio":
			return controlToggle
		case "submit", "button", "reset", "image":
			return controlButton
		}
		return controlText
	}
	return controlButton
}

// bindProxy builds a new minimal control standing in for original, places
// it in group, wires forwarding and polling, and hides the original.
func (z *Zone) bindProxy(original *livedom.Node, group *livedom.Node, kind semantic.Kind) *Binding {
	if IsMarked(original) {
		return nil
	}
	idx := z.NextIndex()
	b := &Binding{Index: idx, Original: original, Block: kind, Label: Label(original)}

	item := z.doc.CreateElement("div")
	item.SetAttr("class", styles.ClassActionItem)

	ck := classify(original)
	switch ck {
	case controlText:
		b.Mirror = z.textMirror(original)
	case controlToggle:
		b.Mirror = z.toggleMirror(original)
	case controlSelect:
		b.Mirror = z.selectMirror(original)
	default:
		b.Mirror = z.buttonMirror(original)
	}
	proxyID := "elderly-proxy-" + strconv.Itoa(idx)
	b.Mirror.SetAttr("id", proxyID)
	b.Mirror.SetAttr(ProxyAttr, strconv.Itoa(idx))
	b.Mirror.AddClass(styles.ClassProxy)
	if original.Disabled() {
		b.Mirror.SetAttr("disabled", "")
	}

	if ck != controlButton {
		label := z.doc.CreateElement("label")
		label.SetAttr("for", proxyID)
		label.SetAttr("class", styles.ClassActionCaption)
		label.SetText(b.Label)
		item.AppendChild(label)
	}
	item.AppendChild(b.Mirror)
	group.AppendChild(item)
	b.Item = item

	z.wire(b, ck)
	b.restore = hide(original)
	z.register(b)
	z.clearPlaceholder()
	z.logger.Debug("actionzone: bound", "index", idx, "tag", original.Tag(), "label", b.Label)
	return b
}

// wire installs mirror→original forwarding and the original→mirror poll.
func (z *Zone) wire(b *Binding, ck controlKind) {
	orig, mirror := b.Original, b.Mirror
	switch ck {
	case controlButton:
		b.subs = append(b.subs, mirror.AddEventListener("click", func(ev *livedom.Event) {
			ev.PreventDefault()
			ev.StopPropagation()
			orig.Click()
		}))
		z.startPoll(b, func() { syncDisabled(orig, mirror) })
		return
	}

	forward := func(ev *livedom.Event) {
		if ev.Target != mirror {
			return
		}
		pushToOriginal(ck, orig, mirror)
		// Re-emit on the original so its own listeners see their node as
		// the target.
		orig.Dispatch(livedom.NewEvent(ev.Type))
	}
	b.subs = append(b.subs,
		mirror.AddEventListener("input", forward),
		mirror.AddEventListener("change", forward),
	)
	z.startPoll(b, func() {
		pullFromOriginal(ck, orig, mirror)
		syncDisabled(orig, mirror)
	})
}

func pushToOriginal(ck controlKind, orig, mirror *livedom.Node) {
	if ck == controlToggle {
		orig.SetChecked(mirror.Checked())
		return
	}
	orig.SetValue(mirror.Value())
}

func pullFromOriginal(ck controlKind, orig, mirror *livedom.Node) {
	switch ck {
	case controlToggle:
		if orig.Checked() != mirror.Checked() {
			mirror.SetChecked(orig.Checked())
		}
	default:
		if v := orig.Value(); v != mirror.Value() {
			mirror.SetValue(v)
		}
	}
}

func syncDisabled(orig, mirror *livedom.Node) {
	switch {
	case orig.Disabled() && !mirror.HasAttr("disabled"):
		mirror.SetAttr("disabled", "")
	case !orig.Disabled() && mirror.HasAttr("disabled"):
		mirror.RemoveAttr("disabled")
	}
}

func (z *Zone) textMirror(orig *livedom.Node) *livedom.Node {
	tag := "input"
	if orig.Tag() == "textarea" {
		tag = "textarea"
	}
	m := z.doc.CreateElement(tag)
	if tag == "input" {
		m.SetAttr("type", orig.InputType())
	}
	for _, a := range []string{"placeholder", "name", "autocomplete", "inputmode", "maxlength"} {
		if v, ok := orig.AttrOK(a); ok {
			m.SetAttr(a, v)
		}
	}
	m.SetValue(orig.Value())
	return m
}

func (z *Zone) toggleMirror(orig *livedom.Node) *livedom.Node {
	m := z.doc.CreateElement("input")
	m.SetAttr("type", orig.InputType())
	if v, ok := orig.AttrOK("value"); ok {
		m.SetAttr("value", v)
	}
	m.SetChecked(orig.Checked())
	return m
}

func (z *Zone) selectMirror(orig *livedom.Node) *livedom.Node {
	m := z.doc.CreateElement("select")
	for _, o := range orig.Options() {
		opt := z.doc.CreateElement("option")
		opt.SetAttr("value", o.Value)
		if o.Selected {
			opt.SetAttr("selected", "")
		}
		opt.SetText(o.Label)
		m.AppendChild(opt)
	}
	m.SetValue(orig.Value())
	return m
}

func (z *Zone) buttonMirror(orig *livedom.Node) *livedom.Node {
	m := z.doc.CreateElement("button")
	m.SetAttr("type", "button")
	m.AddClass(styles.ClassProxyButton)
	m.SetText(buttonText(orig))
	return m
}

// buttonText is the caption of a button-like proxy.
func buttonText(n *livedom.Node) string {
	if t := semantic.CleanText(n.Text()); t != "" {
		return t
	}
	for _, a := range []string{"value", "aria-label", "title", "alt"} {
		if v := strings.TrimSpace(n.Attr(a)); v != "" {
			return v
		}
	}
	if semantic.IsButtonLike(n) || n.Tag() == "a" {
		return "Button"
	}
	return "Interactive element"
}
