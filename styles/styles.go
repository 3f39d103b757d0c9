// Package styles holds the visual directive sets the engine injects. Each
// set is a <style> element with a stable id, so applying a set twice is a
// no-op and teardown can find and remove it.
package styles

import (
	"fmt"

	"github.com/hazyhaar/elderly/livedom"
)

// Class names shared by the engine and the directive sets.
const (
	ClassActive         = "elderly-mode-active"
	ClassSplit          = "elderly-split-layout"
	ClassContentBlock   = "elderly-content-block"
	ClassHidden         = "elderly-hidden"
	ClassOriginal       = "elderly-original-element"
	ClassActionArea     = "elderly-action-area"
	ClassActionGroup    = "elderly-action-group"
	ClassActionItem     = "elderly-action-item"
	ClassProxy          = "elderly-proxy-element"
	ClassProxyButton    = "elderly-proxy-button"
	ClassControlPanel   = "elderly-control-panel"
	ClassNotice         = "elderly-notice"
	ClassPlaceholder    = "elderly-empty-zone"
	ClassHighContrast   = "elderly-high-contrast"
	ClassActionHeading  = "elderly-action-heading"
	ClassActionCaption  = "elderly-action-label"
	ClassNoticeDismiss  = "elderly-notice-leaving"
	ClassCloneContainer = "elderly-clone"
)

// Set is a named, idempotent block of style rules.
type Set struct {
	Key string
	CSS string
}

// Tuning of the base set.
type Tuning struct {
	FontSizePx     int
	LineHeight     float64
	MinTouchPx     int
	ContentPercent int // split ratio; the action zone gets the rest
}

// DefaultTuning is 20px text, 1.8 line height, 48px touch targets, 70/30.
var DefaultTuning = Tuning{FontSizePx: 20, LineHeight: 1.8, MinTouchPx: 48, ContentPercent: 70}

func (t *Tuning) defaults() {
	if t.FontSizePx <= 0 {
		t.FontSizePx = DefaultTuning.FontSizePx
	}
	if t.LineHeight <= 0 {
		t.LineHeight = DefaultTuning.LineHeight
	}
	if t.MinTouchPx <= 0 {
		t.MinTouchPx = DefaultTuning.MinTouchPx
	}
	if t.ContentPercent <= 0 || t.ContentPercent >= 100 {
		t.ContentPercent = DefaultTuning.ContentPercent
	}
}

// Base returns the always-on set: enlarged text, large touch targets, the
// hiding classes and engine chrome.
func Base(t Tuning) Set {
	t.defaults()
	return Set{Key: "elderly-mode-base-styles", CSS: fmt.Sprintf(`
.%[1]s body { font-size: %[2]dpx !important; line-height: %[3]g !important; }
.%[1]s button, .%[1]s input, .%[1]s select, .%[1]s textarea, .%[1]s a {
  min-height: %[4]dpx; min-width: %[4]dpx; font-size: %[2]dpx;
}
.%[5]s { display: none !important; }
.%[6]s {
  position: absolute !important; left: -9999px !important; top: auto !important;
  width: 1px !important; height: 1px !important; overflow: hidden !important;
}
.%[7]s {
  position: fixed; bottom: 16px; right: 16px; z-index: 2147483647;
  padding: 12px 20px; border-radius: 24px; background: #1a73e8; color: #fff;
}
.%[8]s {
  position: fixed; top: 16px; left: 50%%; transform: translateX(-50%%);
  z-index: 2147483647; padding: 12px 20px; background: #333; color: #fff;
  transition: opacity 0.5s;
}
.%[9]s { opacity: 0; }
`, ClassActive, t.FontSizePx, t.LineHeight, t.MinTouchPx, ClassHidden, ClassOriginal,
		ClassControlPanel, ClassNotice, ClassNoticeDismiss)}
}

// SplitLayout returns the two-zone layout set.
func SplitLayout(t Tuning) Set {
	t.defaults()
	return Set{Key: "elderly-mode-split-styles", CSS: fmt.Sprintf(`
html.%[1]s { display: flex; flex-direction: row; }
html.%[1]s > body { flex: 0 0 %[2]d%%; max-width: %[2]d%%; overflow-y: auto; }
.%[3]s {
  flex: 0 0 %[4]d%%; max-width: %[4]d%%; overflow-y: auto; padding: 16px;
  background: #f7f7f7; border-left: 2px solid #ccc; box-sizing: border-box;
}
.%[5]s { margin-bottom: 24px; }
.%[6]s { display: flex; flex-direction: column; margin: 12px 0; }
.%[7]s { width: 100%%; min-height: %[8]dpx; font-size: %[9]dpx; }
.%[10]s { max-width: 48em; margin: 0 auto; }
`, ClassSplit, t.ContentPercent, ClassActionArea, 100-t.ContentPercent, ClassActionGroup,
		ClassActionItem, ClassProxy, t.MinTouchPx, t.FontSizePx, ClassContentBlock)}
}

// HighContrast returns the high contrast set.
func HighContrast() Set {
	return Set{Key: "elderly-mode-high-contrast", CSS: fmt.Sprintf(`
.%[1]s body, .%[1]s body * { background-color: #000 !important; color: #fff !important; }
.%[1]s a { color: #ff0 !important; text-decoration: underline !important; }
.%[1]s button, .%[1]s input, .%[1]s select, .%[1]s textarea { border: 2px solid #fff !important; }
`, ClassHighContrast)}
}

// Apply injects s into the document head (or the root element when there
// is no head). It returns the style element and whether it was created.
func Apply(doc *livedom.Document, s Set) (*livedom.Node, bool, error) {
	if el := doc.GetElementByID(s.Key); el != nil {
		return el, false, nil
	}
	parent := doc.Head()
	if parent == nil {
		parent = doc.DocumentElement()
	}
	if parent == nil {
		return nil, false, fmt.Errorf("styles: %s: document has no root element", s.Key)
	}
	el := doc.CreateElement("style")
	el.SetAttr("id", s.Key)
	el.SetAttr("data-elderly-style", "")
	el.SetText(s.CSS)
	parent.AppendChild(el)
	return el, true, nil
}

// Remove deletes the set from the document if present.
func Remove(doc *livedom.Document, s Set) bool {
	el := doc.GetElementByID(s.Key)
	if el == nil {
		return false
	}
	el.Remove()
	return true
}
