// Package service exposes shadow-piercing DOM queries over HTTP and MCP.
// Inline HTML is handled by the htmldom adapter; live pages go through the
// optional Chrome-backed browser manager. Runs are logged to the optional
// SQLite store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/xul8tr/shadowquery/browser"
	"github.com/xul8tr/shadowquery/config"
	"github.com/xul8tr/shadowquery/htmldom"
	"github.com/xul8tr/shadowquery/query"
	"github.com/xul8tr/shadowquery/store"
)

// Service answers query requests against inline HTML or live pages.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	browser *browser.Manager // nil when the live-page path is disabled
	store   *store.Store     // nil when run logging is disabled
	policy  *bluemonday.Policy
	md      *converter.Converter
}

// New creates a Service. Browser and store are optional; wire them with
// SetBrowser and SetStore before serving.
func New(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// SetBrowser enables the live-page path.
func (s *Service) SetBrowser(m *browser.Manager) { s.browser = m }

// SetStore enables query-run logging.
func (s *Service) SetStore(st *store.Store) { s.store = st }

// QueryRequest is a single query against inline HTML or a live page URL.
// Exactly one of URL and HTML must be set.
type QueryRequest struct {
	URL      string `json:"url,omitempty"`
	HTML     string `json:"html,omitempty"`
	Selector string `json:"selector"`
	Op       string `json:"op,omitempty"`     // first | all | all-level (default all)
	Mode     string `json:"mode,omitempty"`   // implicit | marker-gated (default from config)
	Format   string `json:"format,omitempty"` // html | markdown (default html)
}

// Match is one matched element, rendered for transport.
type Match struct {
	Tag      string   `json:"tag"`
	ID       string   `json:"id,omitempty"`
	Classes  []string `json:"classes,omitempty"`
	Text     string   `json:"text,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Markdown string   `json:"markdown,omitempty"`
}

// QueryResponse is the result of one query run.
type QueryResponse struct {
	Source     string  `json:"source"` // "inline" or the page URL
	Selector   string  `json:"selector"`
	Op         string  `json:"op"`
	Mode       string  `json:"mode"`
	Count      int     `json:"count"`
	Matches    []Match `json:"matches"`
	DurationUs int64   `json:"duration_us"`
}

func (r *QueryRequest) validate() error {
	if strings.TrimSpace(r.Selector) == "" {
		return fmt.Errorf("selector is required")
	}
	if (r.URL == "") == (r.HTML == "") {
		return fmt.Errorf("exactly one of url and html must be set")
	}
	switch r.Op {
	case "", "first", "all", "all-level":
	default:
		return fmt.Errorf("unknown op %q", r.Op)
	}
	switch r.Format {
	case "", "html", "markdown":
	default:
		return fmt.Errorf("unknown format %q", r.Format)
	}
	if r.Mode != "" {
		if _, ok := query.ParseMode(r.Mode); !ok {
			return fmt.Errorf("unknown mode %q", r.Mode)
		}
	}
	return nil
}

func (r *QueryRequest) op() string {
	if r.Op == "" {
		return "all"
	}
	return r.Op
}

func (s *Service) mode(r *QueryRequest) query.Mode {
	if r.Mode != "" {
		m, _ := query.ParseMode(r.Mode)
		return m
	}
	return s.cfg.Mode()
}

// Query runs one query request and records the run.
func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	mode := s.mode(req)
	start := time.Now()

	var (
		resp *QueryResponse
		err  error
	)
	if req.HTML != "" {
		resp, err = s.queryHTML(req, mode)
	} else {
		resp, err = s.queryURL(ctx, req, mode)
	}

	elapsed := time.Since(start).Microseconds()
	s.record(req, mode, resp, err, elapsed)
	if err != nil {
		return nil, err
	}
	resp.DurationUs = elapsed
	return resp, nil
}

func (s *Service) record(req *QueryRequest, mode query.Mode, resp *QueryResponse, err error, elapsed int64) {
	if s.store == nil {
		return
	}
	run := &store.Run{
		Source:     "inline",
		Selector:   req.Selector,
		Mode:       mode.String(),
		DurationUs: elapsed,
	}
	if req.URL != "" {
		run.Source = req.URL
	}
	if resp != nil {
		run.Matches = resp.Count
	}
	if err != nil {
		run.Error = err.Error()
	}
	s.store.Record(run)
}

// queryHTML parses inline HTML and resolves the query through the document's
// engine, so the selected mode governs marker handling exactly as a patched
// page would.
func (s *Service) queryHTML(req *QueryRequest, mode query.Mode) (*QueryResponse, error) {
	doc, err := htmldom.ParseString(req.HTML)
	if err != nil {
		return nil, err
	}
	restore := doc.Install(mode)
	defer restore()

	resp := &QueryResponse{
		Source:   "inline",
		Selector: req.Selector,
		Op:       req.op(),
		Mode:     mode.String(),
	}

	var nodes []query.Node
	switch req.op() {
	case "first":
		n, err := doc.Query(req.Selector)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = []query.Node{n}
		}
	case "all":
		nodes, err = doc.QueryAll(req.Selector)
		if err != nil {
			return nil, err
		}
	case "all-level":
		clean, _ := query.CutMarker(req.Selector)
		nodes, err = query.AllLevelOrder(clean, doc)
		if err != nil {
			return nil, err
		}
	}

	resp.Count = len(nodes)
	resp.Matches = make([]Match, 0, len(nodes))
	for _, n := range nodes {
		el, ok := n.(*htmldom.Element)
		if !ok {
			continue
		}
		m, err := s.renderElement(el, req.Format)
		if err != nil {
			return nil, err
		}
		resp.Matches = append(resp.Matches, m)
	}
	return resp, nil
}

func (s *Service) renderElement(el *htmldom.Element, format string) (Match, error) {
	m := Match{
		Tag:     el.Tag(),
		ID:      el.ID(),
		Classes: el.ClassList(),
		Text:    strings.TrimSpace(el.TextContent()),
	}
	outer, err := el.OuterHTML()
	if err != nil {
		return m, fmt.Errorf("render %s: %w", m.Tag, err)
	}
	m.HTML = s.policy.Sanitize(outer)
	if format == "markdown" {
		md, err := s.md.ConvertString(outer)
		if err != nil {
			return m, fmt.Errorf("markdown %s: %w", m.Tag, err)
		}
		m.Markdown = strings.TrimSpace(md)
	}
	return m, nil
}

// queryURL opens the page in Chrome and resolves the query over the live
// composed tree.
func (s *Service) queryURL(ctx context.Context, req *QueryRequest, mode query.Mode) (*QueryResponse, error) {
	if s.browser == nil {
		return nil, fmt.Errorf("live-page queries are disabled")
	}

	page, err := s.browser.OpenPage(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	resp := &QueryResponse{
		Source:   req.URL,
		Selector: req.Selector,
		Op:       req.op(),
		Mode:     mode.String(),
	}

	clean, marked := query.CutMarker(req.Selector)
	pierce := mode == query.ModeImplicit || marked
	root := page.Document()

	var nodes []query.Node
	switch req.op() {
	case "first":
		var n query.Node
		if pierce {
			n, err = query.First(clean, root)
		} else {
			n, err = root.QuerySelector(req.Selector)
		}
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = []query.Node{n}
		}
	case "all":
		if pierce {
			nodes, err = query.All(clean, root)
		} else {
			nodes, err = root.QuerySelectorAll(req.Selector)
		}
		if err != nil {
			return nil, err
		}
	case "all-level":
		nodes, err = query.AllLevelOrder(clean, root)
		if err != nil {
			return nil, err
		}
	}

	resp.Count = len(nodes)
	resp.Matches = make([]Match, 0, len(nodes))
	for _, n := range nodes {
		el, ok := n.(*browser.Element)
		if !ok {
			continue
		}
		m, err := s.renderLive(el, req.Format)
		if err != nil {
			return nil, err
		}
		resp.Matches = append(resp.Matches, m)
	}
	return resp, nil
}

func (s *Service) renderLive(el *browser.Element, format string) (Match, error) {
	var m Match
	res, err := el.Rod().Eval(`() => ({
		tag: this.tagName.toLowerCase(),
		id: this.id,
		classes: [...this.classList],
		text: this.textContent,
	})`)
	if err != nil {
		return m, fmt.Errorf("describe element: %w", err)
	}
	m.Tag = res.Value.Get("tag").Str()
	m.ID = res.Value.Get("id").Str()
	for _, c := range res.Value.Get("classes").Arr() {
		m.Classes = append(m.Classes, c.Str())
	}
	m.Text = strings.TrimSpace(res.Value.Get("text").Str())

	outer, err := el.Rod().HTML()
	if err != nil {
		return m, fmt.Errorf("outer html: %w", err)
	}
	m.HTML = s.policy.Sanitize(outer)
	if format == "markdown" {
		md, err := s.md.ConvertString(outer)
		if err != nil {
			return m, fmt.Errorf("markdown: %w", err)
		}
		m.Markdown = strings.TrimSpace(md)
	}
	return m, nil
}
