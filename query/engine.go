package query

// Mode selects how an Engine dispatches queries after Install.
type Mode int

const (
	// ModeImplicit makes every query shadow-piercing unconditionally.
	ModeImplicit Mode = iota

	// ModeMarkerGated keeps the previous behavior unless the selector
	// carries a :shadow or >>> marker; the marker is stripped and the
	// shadow-piercing traversal used for that query.
	ModeMarkerGated
)

func (m Mode) String() string {
	switch m {
	case ModeImplicit:
		return "implicit"
	case ModeMarkerGated:
		return "marker-gated"
	}
	return "unknown"
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "implicit":
		return ModeImplicit, true
	case "marker-gated", "marker":
		return ModeMarkerGated, true
	}
	return 0, false
}

// Engine is the dispatch point an adapter routes its exposed query surface
// through. A fresh Engine dispatches to the native flat-tree methods;
// Install swaps in shadow-piercing behavior and returns a disposer, the
// replacement for irreversible prototype patching.
type Engine struct {
	first func(selector string, root Node) (Node, error)
	all   func(selector string, root Node) ([]Node, error)
}

// NewEngine returns an Engine with native dispatch.
func NewEngine() *Engine {
	e := &Engine{}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.first = func(selector string, root Node) (Node, error) {
		if root == nil {
			return nil, ErrNilRoot
		}
		return root.QuerySelector(selector)
	}
	e.all = func(selector string, root Node) ([]Node, error) {
		if root == nil {
			return nil, ErrNilRoot
		}
		return root.QuerySelectorAll(selector)
	}
}

// First dispatches a first-match query through the engine.
func (e *Engine) First(selector string, root Node) (Node, error) {
	return e.first(selector, root)
}

// All dispatches an all-matches query through the engine.
func (e *Engine) All(selector string, root Node) ([]Node, error) {
	return e.all(selector, root)
}

// Install replaces the engine's dispatch with the shadow-piercing traversal
// in the given mode and returns a restore function undoing exactly this
// installation. Installing twice layers: the second install wraps whatever
// the first left in place, and each restore peels its own layer. Restore
// order is the caller's responsibility; there is no guard against
// out-of-order disposal.
func Install(e *Engine, mode Mode) (restore func()) {
	prevFirst, prevAll := e.first, e.all

	switch mode {
	case ModeMarkerGated:
		e.first = func(selector string, root Node) (Node, error) {
			if clean, ok := CutMarker(selector); ok {
				return First(clean, root)
			}
			return prevFirst(selector, root)
		}
		e.all = func(selector string, root Node) ([]Node, error) {
			if clean, ok := CutMarker(selector); ok {
				return All(clean, root)
			}
			return prevAll(selector, root)
		}
	default: // ModeImplicit
		// Markers are harmless here: stripped, with piercing already on.
		e.first = func(selector string, root Node) (Node, error) {
			clean, _ := CutMarker(selector)
			return First(clean, root)
		}
		e.all = func(selector string, root Node) ([]Node, error) {
			clean, _ := CutMarker(selector)
			return All(clean, root)
		}
	}

	return func() {
		e.first, e.all = prevFirst, prevAll
	}
}
