package retrofit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/elderly/actionzone"
	"github.com/hazyhaar/elderly/dbopen"
	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/rules"
	"github.com/hazyhaar/elderly/semantic"
)

const articlePage = `<html><head><title>Daily</title></head><body>
<header><div class="search-box"><input type="text" name="q" placeholder="Search"><button>Go</button></div></header>
<aside class="sidebar"><p>related</p><button>More</button></aside>
<article><h1>Story</h1><p>lorem ipsum dolor</p></article>
</body></html>`

func newService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Rules.Offline = true
	s, err := New(cfg, nil, WithIDs(idgen.Sequence("run_")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pageServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, articlePage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRenderInline(t *testing.T) {
	s := newService(t, nil)
	res, err := s.Render(context.Background(), &RenderRequest{
		PageRequest: PageRequest{URL: "https://news.example/a", HTML: articlePage},
		Reader:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.RunID != "run_1" || res.Report.Strategy != semantic.Split {
		t.Fatalf("report = %+v", res.Report)
	}
	if res.Report.Bindings != 2 {
		t.Fatalf("bindings = %d, want 2", res.Report.Bindings)
	}
	if !strings.Contains(res.HTML, `id="`+actionzone.AreaID+`"`) {
		t.Fatal("rendered HTML has no action zone")
	}
	if res.Reader == nil || !strings.Contains(res.Reader.Markdown, "Story") || res.Reader.Title != "Daily" {
		t.Fatalf("reader = %+v", res.Reader)
	}
	if strings.Contains(res.Reader.Markdown, "elderly") {
		t.Fatal("engine markup leaked into the reader export")
	}
}

func TestRenderOverrides(t *testing.T) {
	s := newService(t, nil)
	_, err := s.Render(context.Background(), &RenderRequest{
		PageRequest: PageRequest{HTML: articlePage},
		Generation:  "magic",
	})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
	res, err := s.Render(context.Background(), &RenderRequest{
		PageRequest: PageRequest{HTML: `<html><body><p>nothing</p></body></html>`},
		Policy:      string(semantic.PolicyAlwaysSplit),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Strategy != semantic.Split || !strings.Contains(res.HTML, "No inputs or buttons") {
		t.Fatalf("always-split placeholder missing: %+v", res.Report)
	}
}

func TestHTTPRender(t *testing.T) {
	page := pageServer(t)
	s := newService(t, &Config{Fetch: FetchConfig{AllowPrivate: true}})
	h := s.Handler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/render?url="+page.URL+"/a", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Header().Get("X-Elderly-Strategy") != "split" {
		t.Fatalf("strategy header = %q", rec.Header().Get("X-Elderly-Strategy"))
	}
	if !strings.Contains(rec.Body.String(), actionzone.AreaID) {
		t.Fatal("no action zone in body")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/render?format=json&url="+page.URL, nil))
	var res struct {
		Report struct {
			RunID    string `json:"run_id"`
			Bindings int    `json:"bindings"`
		} `json:"report"`
		HTML string `json:"html"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Report.Bindings != 2 || res.HTML == "" {
		t.Fatalf("json render = %+v", res.Report)
	}
}

func TestHTTPRenderErrors(t *testing.T) {
	page := pageServer(t)
	s := newService(t, nil)
	h := s.Handler(nil)

	for _, tc := range []struct {
		path string
		code int
	}{
		{"/render", 400},
		{"/render?url=" + page.URL, 400}, // loopback refused
		{"/render?url=ftp://example.com/", 400},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
		if rec.Code != tc.code {
			t.Errorf("%s: status = %d, want %d", tc.path, rec.Code, tc.code)
		}
	}
}

func TestHTTPAnalyze(t *testing.T) {
	s := newService(t, nil)
	h := s.Handler(nil)

	body, _ := json.Marshal(AnalyzeRequest{PageRequest: PageRequest{URL: "https://www.amazon.com/dp/1", HTML: articlePage}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/analyze", strings.NewReader(string(body))))
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Site       string `json:"site"`
		RuleSource string `json:"rule_source"`
		Analysis   struct {
			Strategy string                       `json:"strategy"`
			Zones    map[string][]json.RawMessage `json:"zones"`
		} `json:"analysis"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Site != "amazon-com" || res.RuleSource != string(rules.SourceBuiltin) {
		t.Fatalf("site = %q source = %q", res.Site, res.RuleSource)
	}
	if res.Analysis.Strategy != "split" {
		t.Fatalf("strategy = %q", res.Analysis.Strategy)
	}
	for _, z := range []string{"content", "action", "remove"} {
		if len(res.Analysis.Zones[z]) == 0 {
			t.Errorf("zone %s empty", z)
		}
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/analyze", strings.NewReader("{")))
	if rec.Code != 400 {
		t.Fatalf("bad body: status = %d", rec.Code)
	}
}

func TestHTTPRules(t *testing.T) {
	s := newService(t, &Config{DBPath: filepath.Join(t.TempDir(), "rules.db")})
	h := s.Handler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/rules/www.cnn.com", nil))
	var res struct {
		Site     string         `json:"site"`
		Source   string         `json:"source"`
		Document rules.Document `json:"document"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Site != "cnn-com" || res.Source != "builtin" || !res.Document.Split() {
		t.Fatalf("rules = %+v", res)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/rules/unknown.example", nil))
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "default" {
		t.Fatalf("offline unknown site source = %q", res.Source)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/rules", nil))
	var sites SitesResult
	if err := json.NewDecoder(rec.Body).Decode(&sites); err != nil {
		t.Fatal(err)
	}
	if len(sites.Builtin) != 2 || sites.Builtin[0] != "amazon-com" {
		t.Fatalf("builtin = %v", sites.Builtin)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/rules/purge", nil))
	if rec.Code != 200 {
		t.Fatalf("purge: status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newService(t, nil).Handler(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("healthz: %d %v", rec.Code, rec.Header())
	}
}

func mcpSession(t *testing.T, s *Service) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "elderly-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	s.RegisterMCP(srv)
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	cs, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args any) string {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) tool error: %+v", name, res.Content)
	}
	return res.Content[0].(*mcp.TextContent).Text
}

func TestMCPTools(t *testing.T) {
	cs := mcpSession(t, newService(t, nil))

	tools, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tl := range tools.Tools {
		names[tl.Name] = true
	}
	for _, n := range []string{"elderly_analyze", "elderly_render", "elderly_rules"} {
		if !names[n] {
			t.Errorf("tool %s not registered", n)
		}
	}

	var rr struct {
		Site   string `json:"site"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(callTool(t, cs, "elderly_rules", map[string]any{"site": "https://www.amazon.com/x"})), &rr); err != nil {
		t.Fatal(err)
	}
	if rr.Site != "amazon-com" || rr.Source != "builtin" {
		t.Fatalf("rules = %+v", rr)
	}

	var render struct {
		Report struct {
			Strategy string `json:"strategy"`
		} `json:"report"`
		HTML string `json:"html"`
	}
	text := callTool(t, cs, "elderly_render", map[string]any{"html": articlePage, "url": "https://news.example/"})
	if err := json.Unmarshal([]byte(text), &render); err != nil {
		t.Fatal(err)
	}
	if render.Report.Strategy != "split" || !strings.Contains(render.HTML, actionzone.AreaID) {
		t.Fatalf("render strategy = %q", render.Report.Strategy)
	}

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "elderly_analyze", Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("analyze without a page should be a tool error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elderly.yaml")
	os.WriteFile(path, []byte(`
listen: ":9000"
engine:
  generation: rules
  materializer: clone
  debounce: 500ms
rules:
  offline: true
fetch:
  headless: false
  timeout: 5s
`), 0o644)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.defaults()
	if cfg.Listen != ":9000" || cfg.Rules.BaseURL != "" || cfg.Engine.PollInterval.Milliseconds() != 100 {
		t.Fatalf("config = %+v", cfg)
	}
	ec, err := cfg.engineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if ec.Generation != "rules" || ec.Materializer != actionzone.Clone || ec.Debounce.Milliseconds() != 500 {
		t.Fatalf("engine config = %+v", ec)
	}

	if _, err := New(&Config{Engine: EngineConfig{Policy: "sometimes"}}, nil); err == nil {
		t.Fatal("invalid policy accepted")
	}
}

func TestAuditTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elderly.db")
	s, err := New(&Config{DBPath: path, Rules: RulesConfig{Offline: true}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := s.Handler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/rules/www.cnn.com", nil))
	if rec.Code != 200 {
		t.Fatalf("rules: status = %d", rec.Code)
	}
	// Direct calls bypass the endpoint chain and are not audited.
	if _, err := s.Render(context.Background(), &RenderRequest{PageRequest: PageRequest{HTML: articlePage}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := dbopen.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var action, transport, params string
	if err := db.QueryRow("SELECT action, transport, parameters FROM audit_log").Scan(&action, &transport, &params); err != nil {
		t.Fatal(err)
	}
	if action != "rules" || transport != "http" || !strings.Contains(params, "www.cnn.com") {
		t.Fatalf("entry = %s %s %s", action, transport, params)
	}
}
