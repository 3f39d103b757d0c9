package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/elderly/dbopen"
	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/kit"
)

func newLogger(t *testing.T, opts ...Option) *Logger {
	t.Helper()
	db := dbopen.OpenMemory(t)
	l, err := New(db, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLog_Sync(t *testing.T) {
	l := newLogger(t)
	defer l.Close()

	e := &Entry{Action: "render", Parameters: `{"url":"https://example.com/"}`}
	if err := l.Log(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if e.EntryID == "" || e.Timestamp.IsZero() {
		t.Fatal("defaults not filled")
	}
	if e.Status != "success" || e.Transport != "http" {
		t.Fatalf("status=%q transport=%q", e.Status, e.Transport)
	}

	got, err := l.Recent(context.Background(), "render", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EntryID != e.EntryID || got[0].Parameters != e.Parameters {
		t.Fatalf("recent = %+v", got)
	}
}

func TestLogAsync_FlushedOnClose(t *testing.T) {
	l := newLogger(t)
	for i := 0; i < 50; i++ {
		l.LogAsync(&Entry{Action: "analyze"})
	}
	l.Close()

	var n int
	l.db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='analyze'").Scan(&n)
	if n != 50 {
		t.Fatalf("count = %d, want 50", n)
	}
}

type bigResult struct{ HTML string }

func (b *bigResult) AuditSummary() any { return map[string]int{"html_bytes": len(b.HTML)} }

func TestMiddleware(t *testing.T) {
	l := newLogger(t, WithIDGenerator(idgen.Sequence("a")))

	ok := Middleware(l, "render")(func(context.Context, any) (any, error) {
		return &bigResult{HTML: strings.Repeat("x", 10000)}, nil
	})
	fail := Middleware(l, "rules")(func(context.Context, any) (any, error) {
		return nil, errors.New("no site")
	})

	ctx := kit.WithRequestID(kit.WithTransport(context.Background(), "mcp"), "req_1")
	if _, err := ok(ctx, map[string]string{"url": "https://example.com/"}); err != nil {
		t.Fatal(err)
	}
	if _, err := fail(context.Background(), nil); err == nil {
		t.Fatal("error swallowed")
	}
	l.Close()

	got, err := l.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	byAction := map[string]Entry{}
	for _, e := range got {
		byAction[e.Action] = e
	}
	r := byAction["render"]
	if r.Transport != "mcp" || r.RequestID != "req_1" || r.Result != `{"html_bytes":10000}` {
		t.Fatalf("render entry = %+v", r)
	}
	if r.Parameters != `{"url":"https://example.com/"}` {
		t.Fatalf("parameters = %q", r.Parameters)
	}
	f := byAction["rules"]
	if f.Status != "error" || f.ErrorMessage != "no site" {
		t.Fatalf("rules entry = %+v", f)
	}
}

func TestCleanup(t *testing.T) {
	l := newLogger(t)
	defer l.Close()
	ctx := context.Background()
	l.Log(ctx, &Entry{Action: "old", Timestamp: time.Now().Add(-48 * time.Hour)})
	l.Log(ctx, &Entry{Action: "new"})

	n, err := l.Cleanup(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
}
