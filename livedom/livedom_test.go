package livedom

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hazyhaar/elderly/livedom/mutation"
)

func newDoc(t *testing.T, src string) *Document {
	t.Helper()
	d, err := ParseString(src, "https://example.com/", NewLoop(clock.NewMock()))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func byID(t *testing.T, d *Document, id string) *Node {
	t.Helper()
	n := d.GetElementByID(id)
	if n == nil {
		t.Fatalf("no element #%s", id)
	}
	return n
}

func TestWrapIdentity(t *testing.T) {
	d := newDoc(t, `<div id="a"><span id="b">x</span></div>`)
	a := byID(t, d, "a")
	b := byID(t, d, "b")
	if b.Parent() != a {
		t.Fatal("Parent handle differs from GetElementByID handle")
	}
	if d.Wrap(a.Raw()) != a {
		t.Fatal("Wrap is not stable")
	}
}

func TestClassToggle(t *testing.T) {
	d := newDoc(t, `<p id="p" class="one">x</p>`)
	p := byID(t, d, "p")
	if !p.AddClass("two") || p.AddClass("two") {
		t.Fatal("AddClass should report change once")
	}
	if p.Attr("class") != "one two" {
		t.Fatalf("class = %q", p.Attr("class"))
	}
	p.RemoveClass("one")
	p.RemoveClass("two")
	if p.HasAttr("class") {
		t.Fatal("emptied class list should drop the attribute")
	}
}

func TestEventBubblingAndStop(t *testing.T) {
	d := newDoc(t, `<div id="outer"><div id="inner"><button id="btn">Go</button></div></div>`)
	btn := byID(t, d, "btn")
	var seen []string
	byID(t, d, "outer").AddEventListener("click", func(e *Event) {
		seen = append(seen, "outer")
	})
	inner := byID(t, d, "inner")
	sub := inner.AddEventListener("click", func(e *Event) {
		if e.Target != btn {
			t.Errorf("Target = %v, want button", e.Target.Tag())
		}
		if e.CurrentTarget != inner {
			t.Error("CurrentTarget should be inner")
		}
		seen = append(seen, "inner")
		e.StopPropagation()
	})

	btn.Dispatch(NewEvent("click"))
	if len(seen) != 1 || seen[0] != "inner" {
		t.Fatalf("seen = %v, want [inner]", seen)
	}

	sub.Cancel()
	sub.Cancel()
	seen = nil
	btn.Dispatch(NewEvent("click"))
	if len(seen) != 1 || seen[0] != "outer" {
		t.Fatalf("after cancel seen = %v, want [outer]", seen)
	}
}

func TestClickSubmitsForm(t *testing.T) {
	d := newDoc(t, `<form id="f"><input name="q" id="q"><button id="go">Go</button></form>`)
	byID(t, d, "q").SetValue("hello")
	byID(t, d, "go").Click()

	subs := d.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Values["q"] != "hello" {
		t.Fatalf("q = %q", subs[0].Values["q"])
	}
	if d.ActiveElement() != byID(t, d, "go") {
		t.Fatal("click should focus the button")
	}
}

func TestClickPreventedSkipsSubmit(t *testing.T) {
	d := newDoc(t, `<form id="f"><button id="go">Go</button></form>`)
	byID(t, d, "f").AddEventListener("submit", func(e *Event) { e.PreventDefault() })
	byID(t, d, "go").Click()
	if len(d.Submissions()) != 0 {
		t.Fatal("prevented submit was recorded")
	}
}

func TestCheckboxClick(t *testing.T) {
	d := newDoc(t, `<input type="checkbox" id="c">`)
	c := byID(t, d, "c")
	changes := 0
	c.AddEventListener("change", func(*Event) { changes++ })
	c.Click()
	if !c.Checked() || changes != 1 {
		t.Fatalf("checked=%v changes=%d", c.Checked(), changes)
	}

	c.AddEventListener("click", func(e *Event) { e.PreventDefault() })
	c.Click()
	if !c.Checked() || changes != 1 {
		t.Fatal("cancelled click must revert the toggle")
	}
}

func TestSelectValue(t *testing.T) {
	d := newDoc(t, `<select id="s"><option value="a">A</option><option selected>B</option></select>`)
	s := byID(t, d, "s")
	if s.Value() != "B" {
		t.Fatalf("Value = %q, want B", s.Value())
	}
	s.SetValue("a")
	if s.Value() != "a" || !s.Options()[0].Selected {
		t.Fatal("SetValue did not select a")
	}
	s.SetValue("zzz")
	if s.Value() != "a" {
		t.Fatal("unknown option must be ignored")
	}
}

func TestVisibility(t *testing.T) {
	d := newDoc(t, `<html><head><style>.gone{display:none}</style></head><body>
		<div id="plain">x</div>
		<div class="gone"><span id="inside">y</span></div>
		<div id="inline" style="visibility: hidden">z</div>
		<div hidden><p id="attr">w</p></div>
		<input type="hidden" id="hid">
	</body></html>`)
	cases := map[string]bool{"plain": true, "inside": false, "inline": false, "attr": false, "hid": false}
	for id, want := range cases {
		if got := byID(t, d, id).IsVisible(); got != want {
			t.Errorf("%s visible = %v, want %v", id, got, want)
		}
	}

	plain := byID(t, d, "plain")
	plain.AddClass("gone")
	if plain.IsVisible() {
		t.Error("stylesheet class added later should hide")
	}
	plain.Remove()
	if plain.IsVisible() {
		t.Error("detached node reported visible")
	}
}

func TestObserverBatchesPerTurn(t *testing.T) {
	d := newDoc(t, `<html><body><main id="m"></main><aside id="a"></aside></body></html>`)
	var batches []*mutation.Batch
	obs := d.NewMutationObserver(func(b *mutation.Batch) { batches = append(batches, b) })
	obs.Observe(byID(t, d, "m"), ObserveOptions{ChildList: true, Subtree: true})

	m := byID(t, d, "m")
	m.AppendChild(d.CreateElement("button"))
	m.AppendChild(d.CreateElement("input"))
	byID(t, d, "a").AppendChild(d.CreateElement("button"))

	if len(batches) != 0 {
		t.Fatal("delivery must wait for the loop")
	}
	d.Loop.RunPending()
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	ins := batches[0].Inserted()
	if len(ins) != 2 || ins[0].Data != "button" || ins[1].Data != "input" {
		t.Fatalf("inserted = %v", ins)
	}

	obs.Disconnect()
	m.AppendChild(d.CreateElement("p"))
	d.Loop.RunPending()
	if len(batches) != 1 {
		t.Fatal("disconnected observer received records")
	}
}

func TestLoopVirtualTime(t *testing.T) {
	mock := clock.NewMock()
	l := NewLoop(mock)
	var order []string
	l.SetTimeout(300*time.Millisecond, func() { order = append(order, "t300") })
	ticks := 0
	iv := l.SetInterval(100*time.Millisecond, func() { ticks++ })
	cleared := l.SetTimeout(50*time.Millisecond, func() { order = append(order, "never") })
	l.ClearTimer(cleared)

	start := mock.Now()
	l.Advance(250 * time.Millisecond)
	if ticks != 2 || len(order) != 0 {
		t.Fatalf("at 250ms ticks=%d order=%v", ticks, order)
	}
	l.Advance(50 * time.Millisecond)
	if ticks != 3 || len(order) != 1 {
		t.Fatalf("at 300ms ticks=%d order=%v", ticks, order)
	}
	if got := mock.Now().Sub(start); got != 300*time.Millisecond {
		t.Fatalf("clock advanced %v", got)
	}
	l.ClearTimer(iv)
	l.Advance(time.Second)
	if ticks != 3 {
		t.Fatal("cleared interval kept firing")
	}
	if l.PendingTimers() != 0 {
		t.Fatalf("pending = %d", l.PendingTimers())
	}
}

func TestReloadRestoresSource(t *testing.T) {
	d := newDoc(t, `<html><body><p id="p">x</p></body></html>`)
	byID(t, d, "p").SetAttr("data-x", "1")
	d.SetGlobal("flag", true)
	d.Loop.SetInterval(time.Millisecond, func() {})
	if err := d.Reload(); err != nil {
		t.Fatal(err)
	}
	if byID(t, d, "p").HasAttr("data-x") {
		t.Fatal("reload kept a mutation")
	}
	if _, ok := d.Global("flag"); ok {
		t.Fatal("reload kept a global")
	}
	if d.Loop.PendingTimers() != 0 || d.Reloads() != 1 {
		t.Fatal("reload kept timers")
	}
}

func TestQueryXPath(t *testing.T) {
	d := newDoc(t, `<label for="e">Email address</label><input id="e">`)
	got, err := d.QueryXPath("//label[@for=" + XPathLiteral("e") + "]")
	if err != nil || len(got) != 1 || got[0].Text() != "Email address" {
		t.Fatalf("got %v err %v", got, err)
	}
	if _, err := d.QueryXPath("//label[@for="); err == nil {
		t.Fatal("malformed xpath should fail")
	}
	if XPathLiteral(`it's`) != `"it's"` {
		t.Fatal("literal quoting")
	}
}
