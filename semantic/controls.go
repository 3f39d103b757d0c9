package semantic

import (
	"strings"

	"github.com/hazyhaar/elderly/livedom"
)

// IsInputLike matches data-entry controls: text-ish inputs, checkboxes,
// radios, selects and textareas. Hidden inputs and input buttons are not
// input-like.
func IsInputLike(n *livedom.Node) bool {
	switch n.Tag() {
	case "select", "textarea":
		return true
	case "input":
		switch n.InputType() {
		case "hidden", "submit", "button", "reset", "image":
			return false
		}
		return true
	}
	return false
}

// IsButtonLike matches controls activated by clicking.
func IsButtonLike(n *livedom.Node) bool {
	switch n.Tag() {
	case "button":
		return true
	case "input":
		switch n.InputType() {
		case "submit", "button", "reset", "image":
			return true
		}
	}
	return strings.EqualFold(n.Attr("role"), "button")
}

// IsControl is the structural-change trigger: inputs, buttons, selects and
// textareas.
func IsControl(n *livedom.Node) bool {
	switch n.Tag() {
	case "button", "select", "textarea":
		return true
	case "input":
		return n.InputType() != "hidden"
	}
	return false
}

// IsInteractive matches everything the action zone can stand in for:
// controls, in-page anchors, role=button elements and elements carrying
// inline click handlers.
func IsInteractive(n *livedom.Node) bool {
	if IsControl(n) {
		return true
	}
	if n.Tag() == "a" && strings.HasPrefix(n.Attr("href"), "#") {
		return true
	}
	return strings.EqualFold(n.Attr("role"), "button") || n.HasAttr("onclick")
}

// IsLink matches anchors with a target.
func IsLink(n *livedom.Node) bool {
	return n.Tag() == "a" && n.HasAttr("href")
}

// identity is the lowercased identifying attribute text of n: id and class.
func identity(n *livedom.Node) string {
	return strings.ToLower(n.Attr("id") + " " + n.Attr("class"))
}

// identityTokens splits identity into its id and class tokens.
func identityTokens(n *livedom.Node) []string {
	return strings.Fields(identity(n))
}

func identityContains(n *livedom.Node, needles ...string) bool {
	id := identity(n)
	for _, s := range needles {
		if strings.Contains(id, s) {
			return true
		}
	}
	return false
}

func hasRole(n *livedom.Node, roles ...string) bool {
	r := strings.ToLower(strings.TrimSpace(n.Attr("role")))
	for _, x := range roles {
		if r == x {
			return true
		}
	}
	return false
}

// outermost drops every node contained by another node of the list. Input
// order is preserved.
func outermost(nodes []*livedom.Node) []*livedom.Node {
	out := make([]*livedom.Node, 0, len(nodes))
	for i, n := range nodes {
		nested := false
		for j, o := range nodes {
			if i != j && o != n && o.Contains(n) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}
	return out
}

func visibleOnly(nodes []*livedom.Node) []*livedom.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n.IsVisible() {
			out = append(out, n)
		}
	}
	return out
}

// insideAny reports whether n is contained by (or is) one of the nodes.
func insideAny(n *livedom.Node, containers []*livedom.Node) bool {
	for _, c := range containers {
		if c.Contains(n) {
			return true
		}
	}
	return false
}
