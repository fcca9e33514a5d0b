// Package query implements shadow-piercing DOM traversal over an abstract
// composed-tree node. The native selector matcher is never reimplemented
// here: every Node carries its host environment's own match predicate and
// flat-tree query, and the traversal only decides where to apply them.
//
// All operations are free functions taking an explicit root. Not-found is a
// nil result or an empty slice, never an error.
package query

import "errors"

// ErrNilRoot is returned when a traversal is invoked without a root node.
var ErrNilRoot = errors.New("query: nil root")

// Node is the composed-tree surface the traversal needs from a host
// environment. Adapters (htmldom for parsed documents, browser for live
// pages) implement it; the traversal never looks past it.
//
// A shadow root is itself a Node: it is a valid traversal root, reports
// false from Matches (a container is never a query result), and exposes its
// host through Host. All accessors return nil interfaces for "absent", never
// typed nil pointers.
type Node interface {
	// Matches reports whether the node matches the selector using the host
	// environment's native predicate. Nodes without match capability
	// (shadow roots, documents) report false with no error.
	Matches(selector string) (bool, error)

	// QuerySelector is the native flat-tree first-match query, restricted
	// to the node's own light subtree. Returns nil when nothing matches.
	QuerySelector(selector string) (Node, error)

	// QuerySelectorAll is the native flat-tree query. It never crosses a
	// shadow boundary and never includes the node itself.
	QuerySelectorAll(selector string) ([]Node, error)

	// Children returns the node's element children in document order.
	Children() []Node

	// ShadowRoot returns the attached open shadow root, or nil.
	ShadowRoot() Node

	// Parent returns the parent element within the same tree, or nil.
	Parent() Node

	// Root returns the root of the tree containing the node (the document
	// or a shadow root), the getRootNode analogue.
	Root() Node

	// Host returns the host element when the node is a shadow root, nil
	// otherwise.
	Host() Node
}

// First returns the first node under root matching selector, searching the
// light subtree first and then descending into every attached shadow root,
// depth-first in document order of the owning hosts. Returns nil when no
// match exists anywhere in the composed tree.
//
// The light-first pass means a light-DOM match never pays for shadow
// traversal. Recursion depth equals shadow nesting depth; no artificial
// limit is imposed.
func First(selector string, root Node) (Node, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	n, err := root.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	if n != nil {
		return n, nil
	}

	roots, err := shadowRoots(root)
	if err != nil {
		return nil, err
	}
	for _, sr := range roots {
		n, err := First(selector, sr)
		if err != nil {
			return nil, err
		}
		if n != nil {
			return n, nil
		}
	}
	return nil, nil
}

// shadowRoots returns every shadow root directly reachable from root: its
// own attached one first, then those of its flat-tree descendants in
// document order. Root's own shadow tree is part of the composed tree
// reachable from it, so it participates even though root itself is excluded
// from match eligibility.
func shadowRoots(root Node) ([]Node, error) {
	var out []Node
	if sr := root.ShadowRoot(); sr != nil {
		out = append(out, sr)
	}
	els, err := root.QuerySelectorAll("*")
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if sr := el.ShadowRoot(); sr != nil {
			out = append(out, sr)
		}
	}
	return out, nil
}

// All returns every node in the composed tree under root matching selector.
// Root itself is never included, even when it matches.
//
// Ordering contract: light-first recursive. Root's own flat matches come
// first in document order; then, per shadow host in document order, that
// shadow tree's matches (same contract applied recursively). This is not
// strict composed-tree document order when a matching host has matching
// shadow descendants; callers needing level-order use AllLevelOrder.
func All(selector string, root Node) ([]Node, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	out, err := root.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}

	roots, err := shadowRoots(root)
	if err != nil {
		return nil, err
	}
	for _, sr := range roots {
		sub, err := All(selector, sr)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// AllLevelOrder returns every matching node in the composed tree under root
// using a breadth-first walk with an explicit frontier: per visited node its
// shadow root is enqueued first, then its children. Results come out in
// level order, not document order. Root itself is never tested.
//
// Every matching node appears exactly once; the tree structure guarantees a
// single enqueue per node, including the one enqueue per shadow root from
// its host.
func AllLevelOrder(selector string, root Node) ([]Node, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	frontier := []Node{root}
	var out []Node

	for len(frontier) > 0 {
		n := frontier[0]
		frontier = frontier[1:]

		if n != root {
			ok, err := n.Matches(selector)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, n)
			}
		}

		if sr := n.ShadowRoot(); sr != nil {
			frontier = append(frontier, sr)
		}
		frontier = append(frontier, n.Children()...)
	}
	return out, nil
}

// Closest walks upward from start (inclusive) looking for a node matching
// selector. When the parent chain of a tree is exhausted and that tree is a
// shadow root, the walk continues from the shadow host. Returns nil when no
// ancestor matches. This is the only operation that crosses shadow
// boundaries upward.
func Closest(selector string, start Node) (Node, error) {
	if start == nil {
		return nil, ErrNilRoot
	}

	for n := start; n != nil; {
		ok, err := n.Matches(selector)
		if err != nil {
			return nil, err
		}
		if ok {
			return n, nil
		}

		if p := n.Parent(); p != nil {
			n = p
			continue
		}

		// Top of the containing tree: cross to the host if it is a
		// shadow root, otherwise the walk is over.
		r := n.Root()
		if r == nil {
			return nil, nil
		}
		n = r.Host()
	}
	return nil, nil
}
