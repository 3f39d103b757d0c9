// Package retrofit serves the engine: it fetches a page, applies the
// treatment to a live copy and returns the activation report together with
// the re-laid-out HTML, the page analysis, rule lookups and a reader
// export of the main content. The same operations back the HTTP routes,
// the MCP tools and the CLI.
package retrofit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hazyhaar/elderly/audit"
	"github.com/hazyhaar/elderly/dbopen"
	"github.com/hazyhaar/elderly/engine"
	"github.com/hazyhaar/elderly/idgen"
	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/pagesource"
	"github.com/hazyhaar/elderly/reader"
	"github.com/hazyhaar/elderly/rules"
	"github.com/hazyhaar/elderly/semantic"
)

// ErrBadRequest marks caller mistakes.
var ErrBadRequest = errors.New("bad request")

// Service runs the engine on fetched pages.
type Service struct {
	cfg    *Config
	engine engine.Config
	source pagesource.Source
	rules  *rules.Resolver
	reader *reader.Exporter
	audit  *audit.Logger
	// auditDB is owned by the service; the rule cache opens its own handle.
	auditDB *sql.DB
	newID   idgen.Generator
	logger  *slog.Logger
}

// Option tweaks a Service.
type Option func(*Service)

// WithSource replaces the configured page source.
func WithSource(src pagesource.Source) Option {
	return func(s *Service) { s.source = src }
}

// WithIDs replaces the run id generator.
func WithIDs(gen idgen.Generator) Option {
	return func(s *Service) { s.newID = gen }
}

// New validates cfg and opens the rule cache.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	ec, err := cfg.engineConfig()
	if err != nil {
		return nil, fmt.Errorf("retrofit: %w", err)
	}
	rs, err := rules.NewResolver(cfg.rulesConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("retrofit: %w", err)
	}
	s := &Service{
		cfg:    cfg,
		engine: ec,
		rules:  rs,
		reader: reader.New(),
		newID:  idgen.Prefixed("run_", idgen.Default),
		logger: logger.With("component", "retrofit"),
	}
	for _, o := range opts {
		o(s)
	}
	if cfg.DBPath != "" {
		db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
		if err != nil {
			rs.Close()
			return nil, fmt.Errorf("retrofit: audit db: %w", err)
		}
		al, err := audit.New(db, audit.WithLogger(s.logger))
		if err != nil {
			db.Close()
			rs.Close()
			return nil, fmt.Errorf("retrofit: %w", err)
		}
		s.audit = al
		s.auditDB = db
	}
	if s.source == nil {
		s.source = pagesource.New(cfg.sourceConfig(), logger)
	}
	return s, nil
}

// Close releases the rule cache and the browser, if any.
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.source.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close(), s.auditDB.Close())
	}
	errs = append(errs, s.rules.Close())
	return errors.Join(errs...)
}

// PageRequest names a page: a URL to fetch, or inline HTML with the URL it
// came from.
type PageRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

// AuditSummary keeps inline HTML out of the audit trail.
func (r PageRequest) AuditSummary() any {
	return map[string]any{"url": r.URL, "html_bytes": len(r.HTML)}
}

func (s *Service) page(ctx context.Context, r PageRequest) (pagesource.Page, error) {
	if r.HTML != "" {
		return pagesource.Page{URL: r.URL, HTML: []byte(r.HTML)}, nil
	}
	if strings.TrimSpace(r.URL) == "" {
		return pagesource.Page{}, fmt.Errorf("%w: url or html required", ErrBadRequest)
	}
	return s.source.Fetch(ctx, r.URL)
}

// RenderRequest asks for the treated page.
type RenderRequest struct {
	PageRequest
	// Generation overrides the configured generation.
	Generation string `json:"generation,omitempty"`
	// Policy overrides the configured strategy policy.
	Policy string `json:"policy,omitempty"`
	// Reader adds a Markdown export of the content zone.
	Reader bool `json:"reader,omitempty"`
}

// AuditSummary keeps inline HTML out of the audit trail.
func (r *RenderRequest) AuditSummary() any {
	m := r.PageRequest.AuditSummary().(map[string]any)
	m["generation"], m["policy"], m["reader"] = r.Generation, r.Policy, r.Reader
	return m
}

// RenderResult is a treated page.
type RenderResult struct {
	URL      string           `json:"url"`
	Rendered bool             `json:"rendered"`
	Report   *engine.Report   `json:"report"`
	HTML     string           `json:"html"`
	Reader   *reader.Document `json:"reader,omitempty"`
}

// AuditSummary records the report without the page.
func (r *RenderResult) AuditSummary() any {
	if r == nil {
		return nil
	}
	return r.Report
}

// Render applies the engine to the page. A fatal activation still returns
// the result, with the untouched page and the error.
func (s *Service) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	cfg := s.engine
	if req.Generation != "" {
		g, err := engine.ParseGeneration(req.Generation)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		cfg.Generation = g
	}
	if req.Policy != "" {
		p, err := semantic.ParsePolicy(req.Policy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		cfg.Policy = p
	}
	page, err := s.page(ctx, req.PageRequest)
	if err != nil {
		return nil, err
	}
	doc, err := page.Parse(livedom.NewLoop(nil))
	if err != nil {
		return nil, fmt.Errorf("retrofit: parse: %w", err)
	}

	res := &RenderResult{URL: page.URL, Rendered: page.Rendered}
	if req.Reader {
		// Export from the untouched tree so no engine markup leaks in.
		d, err := s.reader.Export(doc, semantic.Analyze(doc, cfg.Policy).Zones.Content)
		if err != nil {
			return nil, fmt.Errorf("retrofit: reader: %w", err)
		}
		res.Reader = &d
	}

	eng := engine.Attach(doc, cfg, engine.Deps{Rules: s.rules, Logger: s.logger, NewID: s.newID})
	rep, actErr := eng.Activate(ctx)
	res.Report = rep
	html, err := doc.Render()
	if err != nil {
		return nil, fmt.Errorf("retrofit: render: %w", err)
	}
	res.HTML = html
	if actErr != nil {
		return res, actErr
	}
	return res, nil
}

// AnalyzeRequest asks for the read-only analysis of a page.
type AnalyzeRequest struct {
	PageRequest
	Policy string `json:"policy,omitempty"`
}

// AnalyzeResult is the analysis of a page and the rules its site would use.
type AnalyzeResult struct {
	URL        string          `json:"url"`
	Site       string          `json:"site"`
	Rendered   bool            `json:"rendered"`
	RuleSource rules.Source    `json:"rule_source"`
	Analysis   semantic.Report `json:"analysis"`
}

// Analyze identifies and classifies blocks without touching the page.
func (s *Service) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResult, error) {
	pol := s.engine.Policy
	if req.Policy != "" {
		p, err := semantic.ParsePolicy(req.Policy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		pol = p
	}
	page, err := s.page(ctx, req.PageRequest)
	if err != nil {
		return nil, err
	}
	doc, err := page.Parse(livedom.NewLoop(nil))
	if err != nil {
		return nil, fmt.Errorf("retrofit: parse: %w", err)
	}
	res := &AnalyzeResult{
		URL:      page.URL,
		Rendered: page.Rendered,
		Analysis: semantic.Analyze(doc, pol).Report(),
	}
	if site := rules.NormalizeSite(page.URL); site != "" {
		res.Site = site
		_, res.RuleSource = s.rules.Resolve(ctx, site)
	}
	return res, nil
}

// RulesRequest names a site, as a host or a URL.
type RulesRequest struct {
	Site string `json:"site"`
}

// RulesResult is the resolved rule document of a site.
type RulesResult struct {
	Site     string         `json:"site"`
	Source   rules.Source   `json:"source"`
	Document rules.Document `json:"document"`
}

// Rules resolves the rule document of a site.
func (s *Service) Rules(ctx context.Context, req *RulesRequest) (*RulesResult, error) {
	site := rules.NormalizeSite(req.Site)
	if site == "" {
		return nil, fmt.Errorf("%w: site required", ErrBadRequest)
	}
	d, src := s.rules.Resolve(ctx, site)
	return &RulesResult{Site: site, Source: src, Document: d}, nil
}

// SitesResult lists the sites with known rules.
type SitesResult struct {
	Builtin []string `json:"builtin"`
	Cached  []string `json:"cached"`
}

// Sites lists built-in and cached sites.
func (s *Service) Sites(ctx context.Context) (*SitesResult, error) {
	cached, err := s.rules.Cached(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrofit: %w", err)
	}
	return &SitesResult{Builtin: rules.BuiltinSites(), Cached: cached}, nil
}

// PurgeRules drops expired cache entries.
func (s *Service) PurgeRules(ctx context.Context) (int64, error) {
	return s.rules.Purge(ctx)
}

// AuditTrail lists recent calls. It is empty when no database is configured.
func (s *Service) AuditTrail(ctx context.Context, action string, limit int) ([]audit.Entry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.Recent(ctx, action, limit)
}
