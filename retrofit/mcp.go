package retrofit

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/elderly/kit"
)

// RegisterMCP registers the elderly_* tools on srv.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	page := map[string]any{
		"url":  map[string]any{"type": "string", "description": "Page URL to fetch, or the base URL of inline html"},
		"html": map[string]any{"type": "string", "description": "Inline HTML; skips fetching"},
	}
	with := func(extra map[string]any) map[string]any {
		m := make(map[string]any, len(page)+len(extra))
		for k, v := range page {
			m[k] = v
		}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}
	policy := map[string]any{"type": "string", "enum": []string{"baseline", "always-split"}}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "elderly_analyze",
		Description: "Identify a page's blocks (forms, search, navigation, sidebars, content, actions, ads), group them into content/action/remove/keep zones and report the layout strategy.",
		InputSchema: kit.InputSchema(with(map[string]any{"policy": policy}), nil),
	}, s.endpoint("analyze", func(ctx context.Context, req any) (any, error) {
		return s.Analyze(ctx, req.(*AnalyzeRequest))
	}), kit.DecodeArgs[AnalyzeRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "elderly_render",
		Description: "Apply elderly mode to a page and return the activation report, the re-laid-out HTML and optionally a Markdown reader export of the main content.",
		InputSchema: kit.InputSchema(with(map[string]any{
			"generation": map[string]any{"type": "string", "enum": []string{"semantic", "rules"}},
			"policy":     policy,
			"reader":     map[string]any{"type": "boolean"},
		}), nil),
	}, s.endpoint("render", func(ctx context.Context, req any) (any, error) {
		return s.Render(ctx, req.(*RenderRequest))
	}), kit.DecodeArgs[RenderRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "elderly_rules",
		Description: "Resolve the rule document of a site (built-in table, cache, remote repository, or the default).",
		InputSchema: kit.InputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Host name or URL"},
		}, []string{"site"}),
	}, s.endpoint("rules", func(ctx context.Context, req any) (any, error) {
		return s.Rules(ctx, req.(*RulesRequest))
	}), kit.DecodeArgs[RulesRequest]())
}
