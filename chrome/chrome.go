// Package chrome renders the engine's own UI: the floating toggle that lets
// the user leave the mode and the notice banners that report degraded or
// failed starts. Chrome nodes live under <html>, outside <body>, so they are
// never mistaken for page controls.
package chrome

import (
	"fmt"
	"time"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/styles"
)

// User-facing text.
const (
	ToggleLabel   = "👴 Elderly Mode ON"
	ExitPrompt    = "Do you want to exit Elderly Mode and restore the original page?"
	MsgDegraded   = "Some features failed to load, basic mode enabled"
	MsgFatal      = "Elderly Mode failed to start, please reload the page"
	ToggleID      = "elderly-control-panel"
	chromeAttr    = "data-elderly-chrome"
	fadeOutPeriod = 500 * time.Millisecond
)

// Confirm asks the user a yes/no question.
type Confirm func(question string) bool

// Toggle is the mounted exit control.
type Toggle struct {
	node *livedom.Node
	sub  *livedom.Subscription
}

// MountToggle adds the toggle, or returns the one already mounted. A click
// asks confirm (nil means yes) and then calls onExit.
func MountToggle(doc *livedom.Document, confirm Confirm, onExit func()) (*Toggle, error) {
	root := doc.DocumentElement()
	if root == nil {
		return nil, fmt.Errorf("chrome: toggle: document has no root element")
	}
	if el := doc.GetElementByID(ToggleID); el != nil {
		el.Remove()
	}
	btn := doc.CreateElement("button")
	btn.SetAttr("id", ToggleID)
	btn.SetAttr("type", "button")
	btn.SetAttr("class", styles.ClassControlPanel)
	btn.SetAttr("aria-label", "Exit Elderly Mode")
	btn.SetAttr(chromeAttr, "toggle")
	btn.SetText(ToggleLabel)

	t := &Toggle{node: btn}
	t.sub = btn.AddEventListener("click", func(ev *livedom.Event) {
		ev.PreventDefault()
		ev.StopPropagation()
		if confirm == nil || confirm(ExitPrompt) {
			onExit()
		}
	})
	root.AppendChild(btn)
	return t, nil
}

// Node returns the toggle element.
func (t *Toggle) Node() *livedom.Node { return t.node }

// Unmount removes the toggle and its listener.
func (t *Toggle) Unmount() {
	if t == nil {
		return
	}
	t.sub.Cancel()
	t.node.Remove()
}

// Notice is a banner message.
type Notice struct {
	doc    *livedom.Document
	node   *livedom.Node
	timers []livedom.TimerID
}

// ShowNotice displays msg. With ttl > 0 the banner fades and removes itself
// after ttl; otherwise it stays until dismissed.
func ShowNotice(doc *livedom.Document, msg string, ttl time.Duration) (*Notice, error) {
	root := doc.DocumentElement()
	if root == nil {
		return nil, fmt.Errorf("chrome: notice: document has no root element")
	}
	el := doc.CreateElement("div")
	el.SetAttr("class", styles.ClassNotice)
	el.SetAttr("role", "alert")
	el.SetAttr(chromeAttr, "notice")
	el.SetText(msg)
	root.AppendChild(el)

	n := &Notice{doc: doc, node: el}
	if ttl > 0 {
		n.timers = append(n.timers, doc.Loop.SetTimeout(ttl, func() {
			el.AddClass(styles.ClassNoticeDismiss)
			n.timers = append(n.timers, doc.Loop.SetTimeout(fadeOutPeriod, n.Dismiss))
		}))
	}
	return n, nil
}

// Node returns the banner element.
func (n *Notice) Node() *livedom.Node { return n.node }

// Visible reports whether the banner is still in the document.
func (n *Notice) Visible() bool { return n.node.IsConnected() }

// Dismiss removes the banner and cancels its timers.
func (n *Notice) Dismiss() {
	if n == nil {
		return
	}
	for _, id := range n.timers {
		n.doc.Loop.ClearTimer(id)
	}
	n.timers = nil
	n.node.Remove()
}
