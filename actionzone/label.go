package actionzone

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/semantic"
)

// Label finds a human caption for a control, in order: an explicit
// label[for], the enclosing label minus the control's own text, the
// placeholder, the text of a button or link, aria-label, the name with
// separators as spaces, the title-cased input type, and finally
// "Input Field".
func Label(n *livedom.Node) string {
	if id := n.ID(); id != "" {
		labels, err := n.Document().QueryXPath("//label[@for=" + livedom.XPathLiteral(id) + "]")
		if err == nil {
			for _, l := range labels {
				if t := semantic.CleanText(l.Text()); t != "" {
					return t
				}
			}
		}
	}
	if l := n.Closest(livedom.ByTag("label")); l != nil && l != n {
		t := l.Text()
		if own := n.Text(); own != "" {
			t = strings.Replace(t, own, "", 1)
		}
		if t = semantic.CleanText(t); t != "" {
			return t
		}
	}
	if p := strings.TrimSpace(n.Attr("placeholder")); p != "" {
		return p
	}
	if n.Tag() == "button" || n.Tag() == "a" || semantic.IsButtonLike(n) {
		if t := semantic.CleanText(n.Text()); t != "" {
			return t
		}
	}
	if a := strings.TrimSpace(n.Attr("aria-label")); a != "" {
		return a
	}
	if name := strings.TrimSpace(n.Attr("name")); name != "" {
		return strings.NewReplacer("-", " ", "_", " ").Replace(name)
	}
	if t := n.InputType(); t != "" {
		return cases.Title(language.English).String(t)
	}
	return "Input Field"
}
