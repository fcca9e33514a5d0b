package browser

import (
	"github.com/go-rod/rod"

	"github.com/xul8tr/shadowquery/query"
)

// Document returns the page's document as a traversal root. The wrappers
// hold live CDP handles: accessors that cannot fail per the query.Node
// contract (Children, ShadowRoot, Parent) report absence on protocol
// errors, consistent with snapshot-at-visit behavior under concurrent
// page mutation.
func (p *Page) Document() query.Node {
	return &docNode{page: p.page}
}

// First runs a shadow-piercing first-match query against the live page.
func (p *Page) First(selector string) (query.Node, error) {
	return query.First(selector, p.Document())
}

// All runs a shadow-piercing all-matches query against the live page.
func (p *Page) All(selector string) ([]query.Node, error) {
	return query.All(selector, p.Document())
}

// docNode adapts the page's document.
type docNode struct {
	page *rod.Page
}

func (d *docNode) Matches(string) (bool, error) { return false, nil }

func (d *docNode) QuerySelector(selector string) (query.Node, error) {
	found, el, err := d.page.Has(selector)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &Element{el: el, page: d.page}, nil
}

func (d *docNode) QuerySelectorAll(selector string) ([]query.Node, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(d.page, els), nil
}

func (d *docNode) Children() []query.Node {
	els, err := d.page.Elements(":scope > *")
	if err != nil {
		return nil
	}
	return wrapAll(d.page, els)
}

func (d *docNode) ShadowRoot() query.Node { return nil }
func (d *docNode) Parent() query.Node     { return nil }
func (d *docNode) Root() query.Node       { return d }
func (d *docNode) Host() query.Node       { return nil }

// Element adapts a live element handle.
type Element struct {
	el   *rod.Element
	page *rod.Page
}

// Rod exposes the underlying Rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) Matches(selector string) (bool, error) {
	return e.el.Matches(selector)
}

func (e *Element) QuerySelector(selector string) (query.Node, error) {
	found, el, err := e.el.Has(selector)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &Element{el: el, page: e.page}, nil
}

func (e *Element) QuerySelectorAll(selector string) ([]query.Node, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(e.page, els), nil
}

func (e *Element) Children() []query.Node {
	els, err := e.el.Elements(":scope > *")
	if err != nil {
		return nil
	}
	return wrapAll(e.page, els)
}

func (e *Element) ShadowRoot() query.Node {
	sr, err := e.el.ShadowRoot()
	if err != nil || sr == nil {
		return nil
	}
	return &shadowNode{el: sr, page: e.page}
}

func (e *Element) Parent() query.Node {
	p, err := e.el.Parent()
	if err != nil || p == nil {
		return nil
	}
	return &Element{el: p, page: e.page}
}

// Root returns a handle on the tree containing the element. The handle is
// resolved lazily through getRootNode, so crossing out of a shadow tree
// costs one evaluation.
func (e *Element) Root() query.Node {
	return &rootNode{of: e}
}

func (e *Element) Host() query.Node { return nil }

// shadowNode adapts a shadow-root handle. Shadow roots have the flat query
// surface but no match capability.
type shadowNode struct {
	el   *rod.Element
	page *rod.Page
}

func (s *shadowNode) Matches(string) (bool, error) { return false, nil }

func (s *shadowNode) QuerySelector(selector string) (query.Node, error) {
	found, el, err := s.el.Has(selector)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &Element{el: el, page: s.page}, nil
}

func (s *shadowNode) QuerySelectorAll(selector string) ([]query.Node, error) {
	els, err := s.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(s.page, els), nil
}

func (s *shadowNode) Children() []query.Node {
	els, err := s.el.Elements(":scope > *")
	if err != nil {
		return nil
	}
	return wrapAll(s.page, els)
}

func (s *shadowNode) ShadowRoot() query.Node { return nil }
func (s *shadowNode) Parent() query.Node     { return nil }
func (s *shadowNode) Root() query.Node       { return s }

func (s *shadowNode) Host() query.Node {
	host, err := s.page.ElementByJS(
		rod.Eval(`() => this.host`).This(s.el.Object))
	if err != nil || host == nil {
		return nil
	}
	return &Element{el: host, page: s.page}
}

// rootNode is a lazy handle on an element's containing tree, used by the
// upward walk when an element's parent chain runs out.
type rootNode struct {
	of *Element
}

func (r *rootNode) Matches(string) (bool, error) { return false, nil }

func (r *rootNode) QuerySelector(selector string) (query.Node, error) {
	all, err := r.QuerySelectorAll(selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *rootNode) QuerySelectorAll(selector string) ([]query.Node, error) {
	els, err := r.of.page.ElementsByJS(
		rod.Eval(`s => Array.from(this.getRootNode().querySelectorAll(s))`, selector).
			This(r.of.el.Object))
	if err != nil {
		return nil, err
	}
	return wrapAll(r.of.page, els), nil
}

func (r *rootNode) Children() []query.Node {
	els, err := r.of.page.ElementsByJS(
		rod.Eval(`() => Array.from(this.getRootNode().children)`).
			This(r.of.el.Object))
	if err != nil {
		return nil
	}
	return wrapAll(r.of.page, els)
}

func (r *rootNode) ShadowRoot() query.Node { return nil }
func (r *rootNode) Parent() query.Node     { return nil }
func (r *rootNode) Root() query.Node       { return r }

func (r *rootNode) Host() query.Node {
	host, err := r.of.page.ElementByJS(
		rod.Eval(`() => { const t = this.getRootNode(); return t.host || null }`).
			This(r.of.el.Object))
	if err != nil || host == nil {
		return nil
	}
	return &Element{el: host, page: r.of.page}
}

func wrapAll(page *rod.Page, els rod.Elements) []query.Node {
	out := make([]query.Node, len(els))
	for i, el := range els {
		out[i] = &Element{el: el, page: page}
	}
	return out
}
