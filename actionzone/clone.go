package actionzone

import (
	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

// materializeClone copies the whole block into the zone and pairs each
// input-like and button-like descendant of the copy with the original at
// the same traversal position. The pairing is only as good as the two
// subtrees' agreement: conditional rendering that reorders descendants
// after the copy breaks it.
func (z *Zone) materializeClone(b semantic.Block) int {
	if IsMarked(b.Node) || !b.Node.IsVisible() {
		return 0
	}
	group := z.newGroup(b.Kind, groupTitle(b))
	bs := z.cloneInto(b, group)
	if len(bs) == 0 {
		group.Remove()
	}
	return len(bs)
}

// cloneInto appends a scrubbed copy of b to group, binds the paired
// descendants and hides the block root. Nothing is left in group when no
// pair could be bound.
func (z *Zone) cloneInto(b semantic.Block, group *livedom.Node) []*Binding {
	cp := b.Node.Clone(true)
	scrubClone(cp)
	cp.AddClass(styles.ClassCloneContainer)
	if cp.Tag() == "form" {
		cp.AddEventListener("submit", func(ev *livedom.Event) { ev.PreventDefault() })
	}

	inputs := pairs(b.Node, cp, semantic.IsInputLike)
	buttons := pairs(b.Node, cp, livedom.Any(semantic.IsButtonLike, semantic.IsLink))
	if len(inputs)+len(buttons) == 0 {
		return nil
	}
	group.AppendChild(cp)

	var out []*Binding
	for _, p := range inputs {
		if IsMarked(p[0]) {
			continue
		}
		bd := &Binding{Index: z.NextIndex(), Original: p[0], Mirror: p[1], Block: b.Kind, Label: Label(p[0])}
		p[1].SetValue(p[0].Value())
		p[1].SetChecked(p[0].Checked())
		z.wire(bd, classify(p[0]))
		z.register(bd)
		out = append(out, bd)
	}
	for _, p := range buttons {
		if IsMarked(p[0]) {
			continue
		}
		bd := &Binding{Index: z.NextIndex(), Original: p[0], Mirror: p[1], Block: b.Kind, Label: Label(p[0])}
		z.wire(bd, controlButton)
		z.register(bd)
		out = append(out, bd)
	}
	if len(out) == 0 {
		cp.Remove()
		return nil
	}
	z.hidden = append(z.hidden, hide(b.Node))
	z.clearPlaceholder()
	return out
}

// pairs matches descendants of orig and its copy by traversal index. The
// roots themselves take part when they match.
func pairs(orig, cp *livedom.Node, pred livedom.Predicate) [][2]*livedom.Node {
	collect := func(root *livedom.Node) []*livedom.Node {
		var out []*livedom.Node
		if pred(root) {
			out = append(out, root)
		}
		return append(out, root.QueryAll(pred)...)
	}
	a, c := collect(orig), collect(cp)
	if len(c) < len(a) {
		a = a[:len(c)]
	}
	out := make([][2]*livedom.Node, 0, len(a))
	for i := range a {
		out = append(out, [2]*livedom.Node{a[i], c[i]})
	}
	return out
}

// scrubClone renames ids so the copy cannot shadow the original in id
// lookups, and drops markers copied from the original.
func scrubClone(n *livedom.Node) {
	fix := func(x *livedom.Node) {
		if id, ok := x.AttrOK("id"); ok {
			x.RemoveAttr("id")
			x.SetAttr("data-elderly-orig-id", id)
		}
		x.RemoveAttr(MarkerAttr)
		if f, ok := x.AttrOK("for"); ok && x.Tag() == "label" {
			x.RemoveAttr("for")
			x.SetAttr("data-elderly-orig-for", f)
		}
	}
	fix(n)
	for _, x := range n.QueryAll(func(*livedom.Node) bool { return true }) {
		fix(x)
	}
}
