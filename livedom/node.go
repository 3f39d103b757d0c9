package livedom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/elderly/livedom/mutation"
)

// Node is a handle on an element or text node of a Document. The tree owns
// the node; handles only reference it.
type Node struct {
	doc *Document
	n   *html.Node
}

// Raw exposes the underlying parse node.
func (n *Node) Raw() *html.Node { return n.n }

// Document returns the owning document.
func (n *Node) Document() *Document { return n.doc }

// IsElement reports whether n is an element.
func (n *Node) IsElement() bool { return n != nil && n.n.Type == html.ElementNode }

// Tag returns the lowercase tag name, or "" for non-elements.
func (n *Node) Tag() string {
	if !n.IsElement() {
		return ""
	}
	return strings.ToLower(n.n.Data)
}

// Attr returns the attribute value, or "".
func (n *Node) Attr(key string) string {
	v, _ := n.AttrOK(key)
	return v
}

// AttrOK returns the attribute value and whether it is present.
func (n *Node) AttrOK(key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(key string) bool {
	_, ok := n.AttrOK(key)
	return ok
}

// SetAttr sets an attribute, replacing any previous value.
func (n *Node) SetAttr(key, val string) {
	key = strings.ToLower(key)
	old, had := n.AttrOK(key)
	if had && old == val {
		return
	}
	if had {
		for i := range n.n.Attr {
			if n.n.Attr[i].Namespace == "" && strings.EqualFold(n.n.Attr[i].Key, key) {
				n.n.Attr[i].Val = val
				break
			}
		}
	} else {
		n.n.Attr = append(n.n.Attr, html.Attribute{Key: key, Val: val})
	}
	n.doc.notify(mutation.Record{
		Op: mutation.OpAttr, Target: n.n, Tag: n.Tag(),
		Name: key, Value: val, OldValue: old,
	})
}

// RemoveAttr deletes an attribute.
func (n *Node) RemoveAttr(key string) {
	old, had := n.AttrOK(key)
	if !had {
		return
	}
	kept := n.n.Attr[:0]
	for _, a := range n.n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		kept = append(kept, a)
	}
	n.n.Attr = kept
	n.doc.notify(mutation.Record{
		Op: mutation.OpAttrDel, Target: n.n, Tag: n.Tag(),
		Name: strings.ToLower(key), OldValue: old,
	})
}

// ID returns the id attribute.
func (n *Node) ID() string { return n.Attr("id") }

// Classes returns the class list.
func (n *Node) Classes() []string { return strings.Fields(n.Attr("class")) }

// HasClass reports whether the class list contains c.
func (n *Node) HasClass(c string) bool {
	for _, k := range n.Classes() {
		if k == c {
			return true
		}
	}
	return false
}

// AddClass adds c to the class list. It reports whether the list changed.
func (n *Node) AddClass(c string) bool {
	if n.HasClass(c) {
		return false
	}
	n.SetAttr("class", strings.TrimSpace(n.Attr("class")+" "+c))
	return true
}

// RemoveClass removes c from the class list. An emptied list drops the
// attribute.
func (n *Node) RemoveClass(c string) bool {
	if !n.HasClass(c) {
		return false
	}
	var kept []string
	for _, k := range n.Classes() {
		if k != c {
			kept = append(kept, k)
		}
	}
	if len(kept) == 0 {
		n.RemoveAttr("class")
	} else {
		n.SetAttr("class", strings.Join(kept, " "))
	}
	return true
}

// Text returns the concatenated text of n and its descendants, skipping
// script, style and template content.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		switch x.Type {
		case html.TextNode:
			b.WriteString(x.Data)
			return
		case html.ElementNode:
			switch x.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n.n)
	return b.String()
}

// SetText replaces every child with a single text node.
func (n *Node) SetText(s string) {
	for c := n.n.FirstChild; c != nil; {
		next := c.NextSibling
		n.doc.Wrap(c).Remove()
		c = next
	}
	if s != "" {
		n.AppendChild(n.doc.CreateText(s))
	}
}

// Parent returns the parent element, or nil at the top of the tree.
func (n *Node) Parent() *Node {
	if n == nil || n.n.Parent == nil || n.n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.doc.Wrap(n.n.Parent)
}

// Children returns the element children in order.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, n.doc.Wrap(c))
		}
	}
	return out
}

// Closest returns n or its nearest ancestor element satisfying p.
func (n *Node) Closest(p Predicate) *Node {
	for x := n.n; x != nil; x = x.Parent {
		if x.Type != html.ElementNode {
			continue
		}
		if h := n.doc.Wrap(x); p(h) {
			return h
		}
	}
	return nil
}

// QueryAll returns every descendant element satisfying p, in document
// order. n itself is not considered.
func (n *Node) QueryAll(p Predicate) []*Node {
	var out []*Node
	n.walk(func(h *Node) bool {
		if p(h) {
			out = append(out, h)
		}
		return true
	})
	return out
}

// Query returns the first descendant element satisfying p.
func (n *Node) Query(p Predicate) *Node {
	var found *Node
	n.walk(func(h *Node) bool {
		if p(h) {
			found = h
			return false
		}
		return true
	})
	return found
}

// walk visits descendant elements depth-first until fn returns false.
func (n *Node) walk(fn func(*Node) bool) {
	var rec func(*html.Node) bool
	rec = func(x *html.Node) bool {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if !fn(n.doc.Wrap(c)) {
					return false
				}
			}
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(n.n)
}

// Contains reports whether o is n or a descendant of n.
func (n *Node) Contains(o *Node) bool {
	if n == nil || o == nil {
		return false
	}
	for x := o.n; x != nil; x = x.Parent {
		if x == n.n {
			return true
		}
	}
	return false
}

// IsConnected reports whether n is attached to its document.
func (n *Node) IsConnected() bool {
	if n == nil {
		return false
	}
	for x := n.n; x != nil; x = x.Parent {
		if x == n.doc.root {
			return true
		}
	}
	return false
}

// AppendChild appends child, detaching it from any previous parent.
func (n *Node) AppendChild(child *Node) {
	n.insert(child, nil)
}

// InsertBefore inserts child before ref. A nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) {
	var r *html.Node
	if ref != nil {
		r = ref.n
	}
	n.insert(child, r)
}

func (n *Node) insert(child *Node, ref *html.Node) {
	if child.n.Parent != nil {
		child.Remove()
	}
	n.n.InsertBefore(child.n, ref)
	rec := mutation.Record{
		Op: mutation.OpInsert, Target: n.n, Tag: child.Tag(),
		Added: []*html.Node{child.n},
	}
	if len(n.doc.observers) > 0 {
		rec.XPath = mutation.XPath(child.n)
		rec.HTML = renderNode(child.n)
	}
	n.doc.notify(rec)
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	p := n.n.Parent
	if p == nil {
		return
	}
	xp := ""
	if len(n.doc.observers) > 0 {
		xp = mutation.XPath(n.n)
	}
	p.RemoveChild(n.n)
	n.doc.notify(mutation.Record{
		Op: mutation.OpRemove, Target: p, Tag: n.Tag(), XPath: xp,
		Removed: []*html.Node{n.n},
	})
}

// Clone returns a detached copy of n. A deep clone copies descendants.
// Element state (value, checked) and listeners are not copied.
func (n *Node) Clone(deep bool) *Node {
	return n.doc.Wrap(cloneRaw(n.n, deep))
}

func cloneRaw(x *html.Node, deep bool) *html.Node {
	c := &html.Node{
		Type:      x.Type,
		DataAtom:  x.DataAtom,
		Data:      x.Data,
		Namespace: x.Namespace,
		Attr:      append([]html.Attribute(nil), x.Attr...),
	}
	if deep {
		for k := x.FirstChild; k != nil; k = k.NextSibling {
			c.AppendChild(cloneRaw(k, true))
		}
	}
	return c
}

// OuterHTML serialises n.
func (n *Node) OuterHTML() string { return renderNode(n.n) }

func renderNode(x *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, x); err != nil {
		return ""
	}
	return buf.String()
}
