package retrofit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/elderly/audit"
	"github.com/hazyhaar/elderly/engine"
	"github.com/hazyhaar/elderly/kit"
	"github.com/hazyhaar/elderly/safeurl"
	"github.com/hazyhaar/elderly/shield"
)

// Handler returns the HTTP routes:
//
//	GET  /healthz
//	GET  /render?url=...[&format=json][&reader=1][&generation=rules][&policy=always-split]
//	POST /analyze        {"url": "...", "html": "..."}
//	GET  /rules          built-in and cached sites
//	GET  /rules/{site}
//	POST /rules/purge
//	GET  /audit?action=render&limit=50
//	     /mcp            MCP streamable HTTP endpoint, when srv is non-nil
func (s *Service) Handler(srv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.logger) {
		r.Use(mw)
	}

	render := s.endpoint("render", func(ctx context.Context, req any) (any, error) {
		return s.Render(ctx, req.(*RenderRequest))
	})
	analyze := s.endpoint("analyze", func(ctx context.Context, req any) (any, error) {
		return s.Analyze(ctx, req.(*AnalyzeRequest))
	})
	lookup := s.endpoint("rules", func(ctx context.Context, req any) (any, error) {
		return s.Rules(ctx, req.(*RulesRequest))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.With(shield.Headers(shield.PagePolicy())).Get("/render", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := &RenderRequest{
			PageRequest: PageRequest{URL: q.Get("url")},
			Generation:  q.Get("generation"),
			Policy:      q.Get("policy"),
			Reader:      q.Get("reader") == "1" || q.Get("reader") == "true",
		}
		resp, err := render(r.Context(), req)
		res, _ := resp.(*RenderResult)
		if err != nil && (res == nil || !errors.Is(err, engine.ErrFatal)) {
			writeError(w, statusOf(err), err)
			return
		}
		if q.Get("format") == "json" {
			code := 200
			if err != nil {
				code = http.StatusInternalServerError
			}
			writeJSON(w, code, res)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.Report != nil {
			w.Header().Set("X-Elderly-Run", res.Report.RunID)
			w.Header().Set("X-Elderly-Strategy", string(res.Report.Strategy))
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
		w.Write([]byte(res.HTML))
	})

	r.Post("/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		resp, err := analyze(r.Context(), &req)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, 200, resp)
	})

	r.Get("/audit", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := s.AuditTrail(r.Context(), r.URL.Query().Get("action"), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		writeJSON(w, 200, entries)
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			resp, err := s.Sites(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, resp)
		})
		r.Post("/purge", func(w http.ResponseWriter, r *http.Request) {
			n, err := s.PurgeRules(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]int64{"purged": n})
		})
		r.Get("/{site}", func(w http.ResponseWriter, r *http.Request) {
			resp, err := lookup(r.Context(), &RulesRequest{Site: chi.URLParam(r, "site")})
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, 200, resp)
		})
	})

	if srv != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}
	return r
}

func (s *Service) endpoint(op string, ep kit.Endpoint) kit.Endpoint {
	mws := []kit.Middleware{kit.WithRequestIDs(nil), kit.Logging(s.logger, op)}
	if s.audit != nil {
		mws = append(mws, audit.Middleware(s.audit, op))
	}
	return kit.Chain(mws...)(ep)
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	var se *safeurl.StatusError
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, safeurl.ErrSSRF),
		errors.Is(err, safeurl.ErrUnsafeScheme):
		return http.StatusBadRequest
	case errors.As(err, &se), errors.Is(err, safeurl.ErrTooLarge):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
