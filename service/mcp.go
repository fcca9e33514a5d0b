package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xul8tr/shadowquery/htmldom"
	"github.com/xul8tr/shadowquery/kit"
	"github.com/xul8tr/shadowquery/query"
)

// RegisterMCP registers the query tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerQueryTool(srv, "shadowquery_first",
		"Find the first element matching a CSS selector, piercing open shadow roots. Light DOM matches win over shadow matches.", "first")
	s.registerQueryTool(srv, "shadowquery_all",
		"Find all elements matching a CSS selector across light DOM and open shadow roots.", "all")
	s.registerClosestTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

func (s *Service) registerQueryTool(srv *mcp.Server, name, desc, op string) {
	tool := &mcp.Tool{
		Name:        name,
		Description: desc,
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Page URL to query (requires the browser backend)"},
			"html":     map[string]any{"type": "string", "description": "Inline HTML to query instead of a URL"},
			"selector": map[string]any{"type": "string", "description": "CSS selector, optionally carrying a :shadow or >>> marker"},
			"mode":     map[string]any{"type": "string", "enum": []any{"implicit", "marker-gated"}, "description": "Shadow traversal mode (default from config)"},
			"format":   map[string]any{"type": "string", "enum": []any{"html", "markdown"}, "description": "Match rendering (default html)"},
		}, []string{"selector"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*QueryRequest)
		r.Op = op
		return s.Query(ctx, r)
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(s.logger, name))(endpoint), kit.DecodeJSON[QueryRequest]())
}

// ClosestRequest walks upward from the element matching From, crossing
// shadow boundaries through hosts, looking for Selector.
type ClosestRequest struct {
	HTML     string `json:"html"`
	From     string `json:"from"`
	Selector string `json:"selector"`
	Mode     string `json:"mode,omitempty"`
}

func (s *Service) registerClosestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "shadowquery_closest",
		Description: "Find the nearest ancestor (or the element itself) matching a CSS selector, walking out of shadow trees through their hosts.",
		InputSchema: inputSchema(map[string]any{
			"html":     map[string]any{"type": "string", "description": "Inline HTML to query"},
			"from":     map[string]any{"type": "string", "description": "Selector for the starting element, resolved with shadow piercing"},
			"selector": map[string]any{"type": "string", "description": "Ancestor selector to look for"},
			"mode":     map[string]any{"type": "string", "enum": []any{"implicit", "marker-gated"}, "description": "Shadow traversal mode for resolving `from`"},
		}, []string{"html", "from", "selector"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*ClosestRequest)
		return s.closest(r)
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(s.logger, "shadowquery_closest"))(endpoint), kit.DecodeJSON[ClosestRequest]())
}

func (s *Service) closest(r *ClosestRequest) (*QueryResponse, error) {
	if strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.Selector) == "" {
		return nil, fmt.Errorf("from and selector are required")
	}

	doc, err := htmldom.ParseString(r.HTML)
	if err != nil {
		return nil, err
	}
	mode := s.cfg.Mode()
	if r.Mode != "" {
		m, ok := query.ParseMode(r.Mode)
		if !ok {
			return nil, fmt.Errorf("unknown mode %q", r.Mode)
		}
		mode = m
	}
	restore := doc.Install(mode)
	defer restore()

	start, err := doc.Query(r.From)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, fmt.Errorf("no element matches %q", r.From)
	}

	resp := &QueryResponse{
		Source:   "inline",
		Selector: r.Selector,
		Op:       "closest",
		Mode:     mode.String(),
	}
	found, err := query.Closest(r.Selector, start)
	if err != nil {
		return nil, err
	}
	if el, ok := found.(*htmldom.Element); ok {
		m, err := s.renderElement(el, "html")
		if err != nil {
			return nil, err
		}
		resp.Count = 1
		resp.Matches = []Match{m}
	}
	return resp, nil
}
