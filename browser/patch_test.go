package browser

import (
	"strings"
	"testing"

	"github.com/xul8tr/shadowquery/query"
)

func TestPatchScript_ModeSubstitution(t *testing.T) {
	js := patchScript(query.ModeImplicit)
	if !strings.Contains(js, `const MODE = 'implicit';`) {
		t.Error("implicit mode not baked into script")
	}
	if strings.Contains(js, "%MODE%") {
		t.Error("placeholder left in script")
	}

	js = patchScript(query.ModeMarkerGated)
	if !strings.Contains(js, `const MODE = 'marker-gated';`) {
		t.Error("marker-gated mode not baked into script")
	}
}

func TestPatchScript_IsFunctionDefinition(t *testing.T) {
	// Page.Eval needs a function definition, not a self-executing script.
	js := strings.TrimSpace(stripLineComments(patchScript(query.ModeImplicit)))
	if !strings.HasPrefix(js, "() =>") {
		t.Errorf("script must start with a function definition, got %q", js[:20])
	}
	if !strings.HasSuffix(js, "};") {
		t.Errorf("script must end as a definition, got %q", js[len(js)-8:])
	}
}

func stripLineComments(js string) string {
	var out []string
	for _, line := range strings.Split(js, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
