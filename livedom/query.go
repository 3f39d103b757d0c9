package livedom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
)

// Predicate is a structural test on a node.
type Predicate func(*Node) bool

// ByTag matches elements with any of the given tag names.
func ByTag(tags ...string) Predicate {
	return func(n *Node) bool {
		t := n.Tag()
		for _, x := range tags {
			if strings.EqualFold(t, x) {
				return true
			}
		}
		return false
	}
}

// ByAttr matches elements carrying the attribute.
func ByAttr(name string) Predicate {
	return func(n *Node) bool { return n.HasAttr(name) }
}

// Any matches when at least one predicate does.
func Any(ps ...Predicate) Predicate {
	return func(n *Node) bool {
		for _, p := range ps {
			if p(n) {
				return true
			}
		}
		return false
	}
}

// All matches when every predicate does.
func All(ps ...Predicate) Predicate {
	return func(n *Node) bool {
		for _, p := range ps {
			if !p(n) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(n *Node) bool { return !p(n) }
}

// QueryXPath evaluates an XPath expression with n as context node.
func (n *Node) QueryXPath(expr string) ([]*Node, error) {
	raw, err := htmlquery.QueryAll(n.n, expr)
	if err != nil {
		return nil, fmt.Errorf("livedom: xpath %q: %w", expr, err)
	}
	out := make([]*Node, 0, len(raw))
	for _, r := range raw {
		out = append(out, n.doc.Wrap(r))
	}
	return out, nil
}

// QueryXPath evaluates an XPath expression over the whole document.
func (d *Document) QueryXPath(expr string) ([]*Node, error) {
	return d.Root().QueryXPath(expr)
}

// XPathLiteral quotes s for use inside an XPath expression.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
