package browser

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xul8tr/shadowquery/query"
)

//go:embed patch.js
var patchJS string

// patchScript returns the in-page patch with the mode baked in.
func patchScript(mode query.Mode) string {
	return strings.ReplaceAll(patchJS, "%MODE%", mode.String())
}

// InstallPatch patches the page's query prototypes in the given mode, for
// the current document and every future navigation. The returned restore
// function unpatches the current document and stops injecting into new
// ones. Installing twice layers inside the page exactly as the engine-side
// Install does; restore order is the caller's concern.
func (p *Page) InstallPatch(mode query.Mode) (restore func() error, err error) {
	js := patchScript(mode)

	// EvalOnNewDocument takes a raw script, Eval a function definition;
	// self-invoke for the former.
	removeInject, err := p.page.EvalOnNewDocument(";(" + js + ")();")
	if err != nil {
		return nil, fmt.Errorf("browser: inject patch: %w", err)
	}

	// Patch the already-loaded document too.
	if _, err := p.page.Eval(js); err != nil {
		removeInject()
		return nil, fmt.Errorf("browser: apply patch: %w", err)
	}

	p.logger.Debug("browser: query patch installed", "url", p.url, "mode", mode.String())

	return func() error {
		if err := removeInject(); err != nil {
			return fmt.Errorf("browser: remove injection: %w", err)
		}
		_, err := p.page.Eval(`() => { if (window.__shadowQuery) window.__shadowQuery.uninstall() }`)
		if err != nil {
			return fmt.Errorf("browser: unpatch: %w", err)
		}
		return nil
	}, nil
}
