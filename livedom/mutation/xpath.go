package mutation

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// XPath computes a sibling-indexed location path for n. Text and comment
// nodes get a trailing text() / comment() step. Detached nodes yield a path
// rooted at their topmost ancestor.
func XPath(n *html.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case html.DocumentNode:
		return ""
	case html.TextNode:
		return XPath(n.Parent) + "/text()"
	case html.CommentNode:
		return XPath(n.Parent) + "/comment()"
	case html.ElementNode:
	default:
		return XPath(n.Parent)
	}

	name := strings.ToLower(n.Data)
	switch name {
	case "html":
		return "/html"
	case "head", "body":
		if n.Parent != nil && n.Parent.Data == "html" {
			return "/html/" + name
		}
	}

	parentPath := XPath(n.Parent)
	if n.Parent == nil {
		return "/" + name
	}

	idx, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || strings.ToLower(c.Data) != name {
			continue
		}
		total++
		if c == n {
			idx = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s/%s[%d]", parentPath, name, idx)
	}
	return parentPath + "/" + name
}
