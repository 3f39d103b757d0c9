package semantic

import (
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/elderly/livedom"
)

func parse(t *testing.T, body string) *livedom.Document {
	t.Helper()
	d, err := livedom.ParseString("<html><head></head><body>"+body+"</body></html>", "https://example.com/", livedom.NewLoop(clock.NewMock()))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func kinds(blocks []Block) []Kind {
	out := make([]Kind, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Kind)
	}
	return out
}

const loginPage = `
<div class="wrapper">
  <form id="login" action="/session" method="post">
    <label for="email">Email</label><input type="email" id="email" name="email">
    <label for="pw">Password</label><input type="password" id="pw" name="password">
    <button type="submit">Sign in</button>
  </form>
</div>`

func TestScenarioLoginPage(t *testing.T) {
	d := parse(t, loginPage)
	a := Analyze(d, PolicyBaseline)

	if diff := cmp.Diff([]Kind{Form}, kinds(a.Blocks)); diff != "" {
		t.Fatalf("blocks (-want +got):\n%s", diff)
	}
	f := a.Blocks[0]
	if !f.Meta.HasLogin || f.Meta.InputCount != 2 || !f.Atomic || f.Priority != 100 {
		t.Fatalf("form metadata = %+v atomic=%v prio=%d", f.Meta, f.Atomic, f.Priority)
	}
	if a.Stats != (Stats{Forms: 1, ContentContainers: 0}) {
		t.Fatalf("stats = %+v", a.Stats)
	}
	if a.Strategy != EnlargeOnly {
		t.Fatalf("strategy = %s, want enlarge-only", a.Strategy)
	}
}

func articleWithSearch() string {
	return `
<header>
  <div class="search-box"><input type="text" placeholder="Search"><button>Go</button></div>
</header>
<article><h1>Title</h1><p>` + strings.Repeat("word ", 500) + `</p></article>`
}

func TestScenarioArticleWithSearchHeader(t *testing.T) {
	d := parse(t, articleWithSearch())
	a := Analyze(d, PolicyBaseline)

	if diff := cmp.Diff([]Kind{Search, Content}, kinds(a.Blocks)); diff != "" {
		t.Fatalf("blocks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Kind{Search}, kinds(a.Zones.Action)); diff != "" {
		t.Errorf("action zone (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Kind{Content}, kinds(a.Zones.Content)); diff != "" {
		t.Errorf("content zone (-want +got):\n%s", diff)
	}
	if a.Zones.Content[0].Atomic {
		t.Error("content blocks are non-atomic")
	}
	if a.Strategy != Split {
		t.Fatalf("strategy = %s, want split", a.Strategy)
	}
}

func TestScenarioDuplicateSearch(t *testing.T) {
	d := parse(t, `
<div class="search-top" id="first"><input name="q" placeholder="Search site"></div>
<div class="search-bottom" id="second"><input name="q2" type="search"></div>`)
	blocks, _ := Identify(d)
	if got := len(blocks); got != 2 {
		t.Fatalf("identified %d search blocks, want 2", got)
	}
	kept := Dedupe(blocks)
	if len(kept) != 1 || kept[0].Kind != Search || kept[0].Node.ID() != "first" {
		t.Fatalf("dedupe kept %v", kept)
	}
}

func TestSearchFormTakesSearchSlot(t *testing.T) {
	d := parse(t, `
<form role="search" id="f"><input type="search" name="q"><button>Go</button></form>
<div class="site-search"><input placeholder="Search again"><button>Go</button></div>`)
	blocks, _ := Identify(d)
	if diff := cmp.Diff([]Kind{Form, Search}, kinds(blocks)); diff != "" {
		t.Fatalf("identified (-want +got):\n%s", diff)
	}
	if !blocks[0].Meta.HasSearch {
		t.Fatal("form should report hasSearch")
	}
	kept := Dedupe(blocks)
	if diff := cmp.Diff([]Kind{Form}, kinds(kept)); diff != "" {
		t.Fatalf("dedupe (-want +got):\n%s", diff)
	}
}

func TestSearchInsideFormIsAbsorbed(t *testing.T) {
	d := parse(t, `<form><div class="search"><input name="search"><button>Go</button></div><input name="email"></form>`)
	blocks, _ := Identify(d)
	if diff := cmp.Diff([]Kind{Form}, kinds(blocks)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestSearchFallsBackToParentWithButton(t *testing.T) {
	d := parse(t, `<div id="p"><input aria-label="Search products"><span role="button">Go</span></div>
		<div id="lonely"><input placeholder="search"></div>`)
	blocks, _ := Identify(d)
	if len(blocks) != 1 || blocks[0].Node.ID() != "p" {
		t.Fatalf("blocks = %v", blocks)
	}
}

func TestImplicitForms(t *testing.T) {
	d := parse(t, `
<div class="signup-form" id="outer"><div class="form-row" id="inner"><input name="name"></div></div>
<form><div class="form-group"><input name="x"></div></form>
<div class="form" id="empty"><p>no inputs</p></div>
<div class="platform-x" id="platform"><input name="y"></div>`)
	blocks, st := Identify(d)
	var ids []string
	for _, b := range blocks {
		if b.Kind == Form {
			ids = append(ids, b.Node.ID()+":"+map[bool]string{true: "implicit", false: "explicit"}[b.Meta.Implicit])
		}
	}
	want := []string{"outer:implicit", ":explicit", "platform:implicit"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("forms (-want +got):\n%s", diff)
	}
	if st.Forms != 3 {
		t.Fatalf("stats.Forms = %d", st.Forms)
	}
}

func TestHiddenFormsSkipped(t *testing.T) {
	d := parse(t, `<form style="display:none"><input name="a"></form><div hidden><form><input></form></div>`)
	blocks, st := Identify(d)
	if len(blocks) != 0 || st.Forms != 0 {
		t.Fatalf("blocks=%v stats=%+v", blocks, st)
	}
}

func TestActionGroupsDedupedByText(t *testing.T) {
	d := parse(t, `
<div class="post-actions" id="a1"><button>Like</button><button>Share</button></div>
<div class="post-actions" id="a2"><button>like</button><button>Share!</button></div>
<div class="actions" id="a3"><button>Reply</button></div>
<div class="toolbar" id="a4"><button>Bold</button><a role="button">Italic</a></div>`)
	blocks, _ := Identify(d)
	var ids []string
	for _, b := range Dedupe(blocks) {
		ids = append(ids, b.Node.ID())
	}
	if diff := cmp.Diff([]string{"a1", "a4"}, ids); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestNavigationAndSidebarAndAds(t *testing.T) {
	var many strings.Builder
	for i := 0; i < 11; i++ {
		many.WriteString(`<a href="/p">p</a>`)
	}
	d := parse(t, `
<nav id="small"><a href="/">Home</a><a href="/about">About</a></nav>
<div role="navigation" id="big">`+many.String()+`</div>
<aside id="side"><p>related</p></aside>
<div class="page-header" id="hdr">head</div>
<div class="ad-slot" id="ad1"><div class="ad-inner">x</div></div>
<ins class="adsbygoogle" id="ad2"></ins>
<div data-ad-slot="123" id="ad3"></div>
<main><p>text</p></main>`)
	blocks, _ := Identify(d)
	z := Classify(Dedupe(blocks))

	ids := func(bs []Block) []string {
		var out []string
		for _, b := range bs {
			out = append(out, b.Node.ID())
		}
		return out
	}
	if diff := cmp.Diff([]string{"small"}, ids(z.Action)); diff != "" {
		t.Errorf("action (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"big"}, ids(z.Keep)); diff != "" {
		t.Errorf("keep (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"side", "ad1", "ad2", "ad3"}, ids(z.Remove)); diff != "" {
		t.Errorf("remove (-want +got):\n%s", diff)
	}
	if z.Keep[0].Meta.LinkCount != 11 {
		t.Errorf("link count = %d", z.Keep[0].Meta.LinkCount)
	}
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name string
		b    Block
		want Zone
	}{
		{"login form", Block{Kind: Form, Meta: Metadata{HasLogin: true, InputCount: 9}}, ZoneAction},
		{"short form", Block{Kind: Form, Meta: Metadata{InputCount: 5}}, ZoneAction},
		{"survey", Block{Kind: Form, Meta: Metadata{InputCount: 6}}, ZoneKeep},
		{"search", Block{Kind: Search}, ZoneAction},
		{"action", Block{Kind: Action}, ZoneAction},
		{"content", Block{Kind: Content}, ZoneContent},
		{"nav 10", Block{Kind: Navigation, Meta: Metadata{LinkCount: 10}}, ZoneAction},
		{"nav 11", Block{Kind: Navigation, Meta: Metadata{LinkCount: 11}}, ZoneKeep},
		{"sidebar", Block{Kind: Sidebar}, ZoneRemove},
		{"ad", Block{Kind: Ad}, ZoneRemove},
		{"mixed", Block{Kind: Mixed}, ZoneKeep},
		{"unknown", Block{Kind: Unknown}, ZoneKeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ZoneOf(tt.b); got != tt.want {
				t.Errorf("ZoneOf = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestZonePartitionTotality(t *testing.T) {
	d := parse(t, loginPage+articleWithSearch()+`<aside>x</aside><div class="ad-box"></div><nav><a href="/">h</a></nav>`)
	blocks := Dedupe(func() []Block { b, _ := Identify(d); return b }())
	z := Classify(blocks)

	all := z.All()
	if len(all) != len(blocks) {
		t.Fatalf("zones hold %d blocks, deduped set has %d", len(all), len(blocks))
	}
	seen := make(map[*livedom.Node]int)
	for _, b := range all {
		seen[b.Node]++
	}
	for _, b := range blocks {
		if seen[b.Node] != 1 {
			t.Errorf("block %s on %s appears %d times", b.Kind, b.Node.Tag(), seen[b.Node])
		}
	}
}

func TestDecideStrategy(t *testing.T) {
	c := Block{Kind: Content}
	a := Block{Kind: Action}
	tests := []struct {
		name string
		z    Zones
		st   Stats
		p    Policy
		want Strategy
	}{
		{"form only page", Zones{Action: []Block{a}}, Stats{Forms: 1}, PolicyBaseline, EnlargeOnly},
		{"both zones", Zones{Content: []Block{c}, Action: []Block{a}}, Stats{Forms: 1, ContentContainers: 1}, PolicyBaseline, Split},
		{"content only", Zones{Content: []Block{c}}, Stats{ContentContainers: 1}, PolicyBaseline, Split},
		{"actions only", Zones{Action: []Block{a, a}}, Stats{}, PolicyBaseline, EnlargeOnly},
		{"empty", Zones{}, Stats{}, PolicyBaseline, EnlargeOnly},
		{"always split", Zones{}, Stats{Forms: 1}, PolicyAlwaysSplit, Split},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := DecideStrategy(tt.z, tt.st, tt.p)
			if first != tt.want {
				t.Fatalf("DecideStrategy = %s, want %s", first, tt.want)
			}
			if again := DecideStrategy(tt.z, tt.st, tt.p); again != first {
				t.Fatal("not deterministic")
			}
		})
	}
}

func TestAnalyzeIsRepeatable(t *testing.T) {
	d := parse(t, articleWithSearch())
	before, _ := d.Render()
	r1 := Analyze(d, PolicyBaseline).Report()
	r2 := Analyze(d, PolicyBaseline).Report()
	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Fatalf("reports differ:\n%s", diff)
	}
	after, _ := d.Render()
	if before != after {
		t.Fatal("analysis mutated the tree")
	}
	if got := r1.Zones[ZoneAction][0].XPath; got != "/html/body/header/div" {
		t.Fatalf("search xpath = %q", got)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyBaseline {
		t.Fatal("empty policy should be baseline")
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatal("unknown policy accepted")
	}
}
