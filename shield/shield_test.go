package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/kit"
)

func TestRequestID(t *testing.T) {
	var got string
	h := RequestID(nil, idgen.Sequence("req_"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = kit.GetRequestID(r.Context())
		if GetLogger(r.Context()) == nil {
			t.Error("no request logger")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if got != "req_1" || rec.Header().Get("X-Request-ID") != "req_1" {
		t.Fatalf("generated id: ctx=%q header=%q", got, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "upstream-7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "upstream-7" {
		t.Fatalf("incoming id not kept: %q", got)
	}
}

func TestDefaultStack(t *testing.T) {
	var r http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Body != nil {
			if _, err := io.ReadAll(r.Body); err != nil {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	stack := DefaultStack(nil)
	for i := len(stack) - 1; i >= 0; i-- {
		r = stack[i](r)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD: got %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" || !!strings.HasPrefix(rec.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Fatalf("headers: %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	big := strings.NewReader(strings.Repeat("x", MaxBody+1))
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", big))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: got %d", rec.Code)
	}
}

func TestPagePolicyNarrowsStack(t *testing.T) {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h = Headers(APIPolicy())(Headers(PagePolicy())(h))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/render", nil))
	csp := rec.Header().Get("Content-Security-Policy")
	for _, want := range []string{"script-src 'none'", "form-action 'none'", "style-src 'unsafe-inline'"} {
		if !strings.Contains(csp, want) {
			t.Errorf("page csp %q lacks %q", csp, want)
		}
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("common headers lost")
	}
}

func TestPolicyWith(t *testing.T) {
	p := APIPolicy().With("x-frame-options", "SAMEORIGIN").With("Referrer-Policy", "")
	if len(p) != len(APIPolicy())-1 {
		t.Fatalf("policy = %v", p)
	}
	rec := httptest.NewRecorder()
	Headers(p)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" || rec.Header().Get("Referrer-Policy") != "" {
		t.Fatalf("headers: %v", rec.Header())
	}
	if len(APIPolicy()) != 5 {
		t.Fatal("With mutated the shared base")
	}
}
