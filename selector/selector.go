// Package selector compiles the structural predicate strings used by rule
// documents (a CSS selector subset) into matchers over parsed HTML.
//
// Supported:
//   - tag, *, #id, .class
//   - [attr], [attr=v], [attr*=v], [attr^=v], [attr$=v], [attr~=v], [attr|=v]
//   - :not(compound)
//   - descendant (space) and child (>) combinators
//   - comma-separated groups
//
// A malformed selector fails to compile with an error wrapping ErrSyntax;
// callers skip that selector only.
package selector

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrSyntax is wrapped by every compile error.
var ErrSyntax = errors.New("selector: syntax error")

// Selector is a compiled selector group.
type Selector struct {
	src    string
	groups []complexSel
}

type complexSel struct {
	parts []compound
	combs []byte // combs[i] joins parts[i] and parts[i+1]: ' ' or '>'
}

type compound struct {
	tag     string // "" or "*" match any
	ids     []string
	classes []string
	attrs   []attrSel
	nots    []compound
}

type attrSel struct {
	key string
	op  string // "" (presence), "=", "*=", "^=", "$=", "~=", "|="
	val string
}

// Compile parses s.
func Compile(s string) (*Selector, error) {
	p := &parser{src: s}
	groups, err := p.parseGroups()
	if err != nil {
		return nil, err
	}
	return &Selector{src: s, groups: groups}, nil
}

// MustCompile is Compile that panics on error. For package-level tables.
func MustCompile(s string) *Selector {
	sel, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// CompileAll compiles each string, returning the valid selectors in order
// and one error per malformed entry.
func CompileAll(list []string) ([]*Selector, []error) {
	var sels []*Selector
	var errs []error
	for _, s := range list {
		sel, err := Compile(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sels = append(sels, sel)
	}
	return sels, errs
}

// String returns the source text.
func (s *Selector) String() string { return s.src }

// Match reports whether n matches any group.
func (s *Selector) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, g := range s.groups {
		if g.matchAt(len(g.parts)-1, n) {
			return true
		}
	}
	return false
}

// MatchAll returns every descendant of root matching s, in document order.
// root itself is not considered.
func (s *Selector) MatchAll(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if s.Match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func (g complexSel) matchAt(i int, n *html.Node) bool {
	if !g.parts[i].match(n) {
		return false
	}
	if i == 0 {
		return true
	}
	switch g.combs[i-1] {
	case '>':
		p := n.Parent
		return p != nil && p.Type == html.ElementNode && g.matchAt(i-1, p)
	default:
		for a := n.Parent; a != nil; a = a.Parent {
			if a.Type == html.ElementNode && g.matchAt(i-1, a) {
				return true
			}
		}
		return false
	}
}

func (c compound) match(n *html.Node) bool {
	if c.tag != "" && c.tag != "*" && !strings.EqualFold(n.Data, c.tag) {
		return false
	}
	for _, id := range c.ids {
		if getAttr(n, "id") != id {
			return false
		}
	}
	if len(c.classes) > 0 {
		have := strings.Fields(getAttr(n, "class"))
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		if !a.match(n) {
			return false
		}
	}
	for _, not := range c.nots {
		if not.match(n) {
			return false
		}
	}
	return true
}

func (a attrSel) match(n *html.Node) bool {
	val, ok := lookupAttr(n, a.key)
	if !ok {
		return false
	}
	switch a.op {
	case "":
		return true
	case "=":
		return val == a.val
	case "*=":
		return a.val != "" && strings.Contains(val, a.val)
	case "^=":
		return a.val != "" && strings.HasPrefix(val, a.val)
	case "$=":
		return a.val != "" && strings.HasSuffix(val, a.val)
	case "~=":
		return contains(strings.Fields(val), a.val)
	case "|=":
		return val == a.val || strings.HasPrefix(val, a.val+"-")
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func syntaxErr(src string, pos int, msg string) error {
	return fmt.Errorf("%w: %q at %d: %s", ErrSyntax, src, pos, msg)
}
