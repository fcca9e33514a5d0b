// Package htmldom adapts parsed HTML documents (golang.org/x/net/html) to
// the query.Node composed-tree surface. Declarative shadow DOM is honored at
// build time: a <template shadowrootmode="open"> child becomes its host
// element's shadow root and disappears from the light tree. Closed roots are
// dropped entirely, mirroring their inaccessibility in a live page.
//
// The wrapper tree is built once per parse, so node identity is stable
// across queries.
package htmldom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xul8tr/shadowquery/query"
)

// Document is a parsed HTML document. Its Query/QueryAll surface dispatches
// through an Engine, so query.Install can make it shadow-piercing and hand
// back a disposer.
type Document struct {
	src      *html.Node
	engine   *query.Engine
	children []*Element
}

// Element is an element node with any declarative shadow root split out of
// its light children.
type Element struct {
	src       *html.Node
	doc       *Document
	parent    *Element
	children  []*Element
	shadow    *ShadowRoot
	container query.Node // containing tree root: the Document or a ShadowRoot
}

// ShadowRoot is an open shadow tree attached to exactly one host element.
type ShadowRoot struct {
	host     *Element
	children []*Element
}

// Parse builds a Document from HTML.
func Parse(r io.Reader) (*Document, error) {
	n, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	d := &Document{src: n, engine: query.NewEngine()}
	d.children = buildChildren(d, n, nil, d)
	return d, nil
}

// ParseString builds a Document from an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// buildChildren constructs Element wrappers for the element children of src,
// splitting out declarative shadow templates onto parent (the host). parent
// is nil for top-of-tree children; container is the tree root they belong to.
func buildChildren(d *Document, src *html.Node, parent *Element, container query.Node) []*Element {
	var out []*Element
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if mode, ok := shadowTemplateMode(c); ok && parent != nil {
			if mode == "open" && parent.shadow == nil {
				sr := &ShadowRoot{host: parent}
				sr.children = buildChildren(d, c, nil, sr)
				parent.shadow = sr
			}
			// Closed roots and repeated declarations are dropped.
			continue
		}
		el := &Element{src: c, doc: d, parent: parent, container: container}
		el.children = buildChildren(d, c, el, container)
		out = append(out, el)
	}
	return out
}

// shadowTemplateMode reports whether n is a declarative shadow template and
// returns its shadowrootmode value.
func shadowTemplateMode(n *html.Node) (string, bool) {
	if n.DataAtom != atom.Template {
		return "", false
	}
	mode, ok := lookupAttr(n, "shadowrootmode")
	if !ok {
		return "", false
	}
	return strings.ToLower(mode), true
}

// --- Document: query surface ---

// Engine returns the dispatch engine for this document, the handle
// query.Install operates on.
func (d *Document) Engine() *query.Engine { return d.engine }

// Install swaps the document's query dispatch to shadow-piercing in the
// given mode. The returned function restores the previous dispatch.
func (d *Document) Install(mode query.Mode) (restore func()) {
	return query.Install(d.engine, mode)
}

// Query runs a first-match query from the document root through the engine.
func (d *Document) Query(selector string) (query.Node, error) {
	return d.engine.First(selector, d)
}

// QueryAll runs an all-matches query from the document root through the
// engine.
func (d *Document) QueryAll(selector string) ([]query.Node, error) {
	return d.engine.All(selector, d)
}

// --- Document: query.Node ---

func (d *Document) Matches(string) (bool, error) { return false, nil }

func (d *Document) QuerySelector(selector string) (query.Node, error) {
	return flatFirst(d.children, selector)
}

func (d *Document) QuerySelectorAll(selector string) ([]query.Node, error) {
	return flatAll(d.children, selector)
}

func (d *Document) Children() []query.Node { return asNodes(d.children) }
func (d *Document) ShadowRoot() query.Node { return nil }
func (d *Document) Parent() query.Node     { return nil }
func (d *Document) Root() query.Node       { return d }
func (d *Document) Host() query.Node       { return nil }

// --- Element: query surface ---

// Query runs a first-match query scoped to this element through the
// document's engine.
func (e *Element) Query(selector string) (query.Node, error) {
	return e.doc.engine.First(selector, e)
}

// QueryAll runs an all-matches query scoped to this element through the
// document's engine.
func (e *Element) QueryAll(selector string) ([]query.Node, error) {
	return e.doc.engine.All(selector, e)
}

// Closest walks upward from this element, crossing shadow boundaries
// through hosts.
func (e *Element) Closest(selector string) (query.Node, error) {
	return query.Closest(selector, e)
}

// --- Element: query.Node ---

func (e *Element) Matches(selector string) (bool, error) {
	list, err := parseSelectorList(selector)
	if err != nil {
		return false, err
	}
	return matchAny(e, list), nil
}

func (e *Element) QuerySelector(selector string) (query.Node, error) {
	return flatFirst(e.children, selector)
}

func (e *Element) QuerySelectorAll(selector string) ([]query.Node, error) {
	return flatAll(e.children, selector)
}

func (e *Element) Children() []query.Node { return asNodes(e.children) }

func (e *Element) ShadowRoot() query.Node {
	if e.shadow == nil {
		return nil
	}
	return e.shadow
}

func (e *Element) Parent() query.Node {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func (e *Element) Root() query.Node { return e.container }
func (e *Element) Host() query.Node { return nil }

// --- Element: accessors ---

// Tag returns the lowercase tag name.
func (e *Element) Tag() string { return e.src.Data }

// ID returns the id attribute, empty when absent.
func (e *Element) ID() string { return getAttr(e.src, "id") }

// ClassList returns the element's classes.
func (e *Element) ClassList() []string {
	return strings.Fields(getAttr(e.src, "class"))
}

// Attr returns the value of an attribute and whether it is present.
func (e *Element) Attr(key string) (string, bool) { return lookupAttr(e.src, key) }

// OuterHTML serialises the element subtree. Declarative shadow templates
// reappear here: serialisation reflects the source markup, not the built
// composed tree.
func (e *Element) OuterHTML() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, e.src); err != nil {
		return "", fmt.Errorf("htmldom: render: %w", err)
	}
	return sb.String(), nil
}

// TextContent returns the concatenated text of the element's light subtree.
func (e *Element) TextContent() string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.src)
	return strings.TrimSpace(sb.String())
}

// --- ShadowRoot: query.Node ---

func (s *ShadowRoot) Matches(string) (bool, error) { return false, nil }

func (s *ShadowRoot) QuerySelector(selector string) (query.Node, error) {
	return flatFirst(s.children, selector)
}

func (s *ShadowRoot) QuerySelectorAll(selector string) ([]query.Node, error) {
	return flatAll(s.children, selector)
}

func (s *ShadowRoot) Children() []query.Node { return asNodes(s.children) }
func (s *ShadowRoot) ShadowRoot() query.Node { return nil }
func (s *ShadowRoot) Parent() query.Node     { return nil }
func (s *ShadowRoot) Root() query.Node       { return s }

func (s *ShadowRoot) Host() query.Node { return s.host }

// --- flat walks ---

func flatAll(kids []*Element, selector string) ([]query.Node, error) {
	list, err := parseSelectorList(selector)
	if err != nil {
		return nil, err
	}
	var out []query.Node
	var walk func(els []*Element)
	walk = func(els []*Element) {
		for _, el := range els {
			if matchAny(el, list) {
				out = append(out, el)
			}
			walk(el.children)
		}
	}
	walk(kids)
	return out, nil
}

func flatFirst(kids []*Element, selector string) (query.Node, error) {
	all, err := flatAll(kids, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func asNodes(els []*Element) []query.Node {
	out := make([]query.Node, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out
}
