package livedom

import (
	"regexp"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var classSelector = regexp.MustCompile(`^\.[A-Za-z0-9_-]+$`)

// sheetCache holds the classes that in-document stylesheets hide, rebuilt
// when the tree version changes.
type sheetCache struct {
	version uint64
	hidden  map[string]bool
}

// HiddenClasses returns the classes that a <style> rule sets to
// display:none or visibility:hidden. Only bare class selectors count.
func (d *Document) HiddenClasses() map[string]bool {
	if d.sheet.hidden != nil && d.sheet.version == d.version {
		return d.sheet.hidden
	}
	hidden := make(map[string]bool)
	styles := d.Root().QueryAll(func(n *Node) bool { return n.n.DataAtom == atom.Style })
	for _, s := range styles {
		sheet, err := parser.Parse(s.Text())
		if err != nil {
			continue
		}
		for _, r := range sheet.Rules {
			if r.Kind != css.QualifiedRule || !hidesBox(r.Declarations) {
				continue
			}
			for _, sel := range r.Selectors {
				sel = strings.TrimSpace(sel)
				if classSelector.MatchString(sel) {
					hidden[sel[1:]] = true
				}
			}
		}
	}
	d.sheet = sheetCache{version: d.version, hidden: hidden}
	return hidden
}

func hidesBox(decls []*css.Declaration) bool {
	for _, d := range decls {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		val := strings.ToLower(strings.TrimSpace(d.Value))
		if (prop == "display" && val == "none") || (prop == "visibility" && val == "hidden") {
			return true
		}
	}
	return false
}

// InlineHidden reports whether n's own style attribute hides it.
func (n *Node) InlineHidden() bool {
	style := n.Attr("style")
	if style == "" {
		return false
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return false
	}
	return hidesBox(decls)
}

// IsVisible reports whether n would be rendered: it is connected, outside
// <head> and non-rendered containers, and neither it nor an ancestor is
// hidden by attribute, inline style or a hiding stylesheet class.
func (n *Node) IsVisible() bool {
	if n == nil || !n.IsConnected() {
		return false
	}
	if n.InputType() == "hidden" {
		return false
	}
	hiddenClasses := n.doc.HiddenClasses()
	for x := n.n; x != nil; x = x.Parent {
		if x.Type != html.ElementNode {
			continue
		}
		switch x.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
			return false
		}
		h := n.doc.Wrap(x)
		if h.HasAttr("hidden") || h.InlineHidden() {
			return false
		}
		for _, c := range h.Classes() {
			if hiddenClasses[c] {
				return false
			}
		}
	}
	return true
}
