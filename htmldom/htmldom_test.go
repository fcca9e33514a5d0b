package htmldom

import (
	"testing"

	"github.com/xul8tr/shadowquery/query"
)

const widgetPage = `<html><head></head><body>
<article class="page">
  <x-widget class="go">
    <template shadowrootmode="open">
      <button class="go">run</button>
    </template>
  </x-widget>
</article>
</body></html>`

func parsePage(t *testing.T, s string) *Document {
	t.Helper()
	d, err := ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestParse_DeclarativeShadowRoot(t *testing.T) {
	d := parsePage(t, widgetPage)

	host, err := d.QuerySelector("x-widget")
	if err != nil {
		t.Fatal(err)
	}
	if host == nil {
		t.Fatal("x-widget not found")
	}
	sr := host.ShadowRoot()
	if sr == nil {
		t.Fatal("expected shadow root on x-widget")
	}
	btn, err := sr.QuerySelector("button")
	if err != nil {
		t.Fatal(err)
	}
	if btn == nil {
		t.Fatal("button not found inside shadow root")
	}
	if btn.(*Element).TextContent() != "run" {
		t.Errorf("TextContent: got %q, want %q", btn.(*Element).TextContent(), "run")
	}

	// The template is gone from the light tree.
	if kids := host.Children(); len(kids) != 0 {
		t.Errorf("light children of host: got %d, want 0", len(kids))
	}
}

func TestParse_ClosedShadowRootDropped(t *testing.T) {
	d := parsePage(t, `<html><body><x-sealed><template shadowrootmode="closed"><i class="hidden"></i></template></x-sealed></body></html>`)

	host, err := d.QuerySelector("x-sealed")
	if err != nil {
		t.Fatal(err)
	}
	if host.ShadowRoot() != nil {
		t.Error("closed shadow root must not be attached")
	}
	if n, err := query.First(".hidden", d); err != nil || n != nil {
		t.Errorf("First(.hidden): got (%v, %v), want nothing reachable", n, err)
	}
}

func TestParse_PlainTemplateKept(t *testing.T) {
	d := parsePage(t, `<html><body><div><template><span class="t"></span></template></div></body></html>`)

	// A template without shadowrootmode stays a regular element; its content
	// is part of the flat tree as parsed.
	tmpl, err := d.QuerySelector("template")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl == nil {
		t.Fatal("plain template should remain in the light tree")
	}
}

func TestFlatQuery_DoesNotPierce(t *testing.T) {
	d := parsePage(t, widgetPage)

	all, err := d.QuerySelectorAll(".go")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("flat .go: got %d matches, want 1 (host only)", len(all))
	}
}

func TestTraversal_PiercesShadow(t *testing.T) {
	d := parsePage(t, widgetPage)

	n, err := query.First("button", d)
	if err != nil {
		t.Fatal(err)
	}
	if n == nil {
		t.Fatal("First(button): no match through shadow boundary")
	}

	all, err := query.All(".go", d)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("All(.go): got %d matches, want 2", len(all))
	}
}

func TestTraversal_NestedShadow(t *testing.T) {
	d := parsePage(t, `<html><body>
<x-outer><template shadowrootmode="open">
  <x-inner><template shadowrootmode="open">
    <em class="deep">core</em>
  </template></x-inner>
</template></x-outer>
</body></html>`)

	n, err := query.First(".deep", d)
	if err != nil {
		t.Fatal(err)
	}
	if n == nil {
		t.Fatal("First(.deep): no match through nested shadow roots")
	}
	if n.(*Element).Tag() != "em" {
		t.Errorf("Tag: got %q, want em", n.(*Element).Tag())
	}
}

func TestClosest_CrossesBoundaryUpward(t *testing.T) {
	d := parsePage(t, widgetPage)

	btn, err := query.First("button", d)
	if err != nil || btn == nil {
		t.Fatalf("setup: First(button) = (%v, %v)", btn, err)
	}

	got, err := btn.(*Element).Closest(".page")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Closest(.page): no match across the shadow boundary")
	}
	if got.(*Element).Tag() != "article" {
		t.Errorf("Closest: got <%s>, want <article>", got.(*Element).Tag())
	}
}

func TestInstall_OnDocument(t *testing.T) {
	d := parsePage(t, widgetPage)

	// Native dispatch before install.
	if all, err := d.QueryAll(".go"); err != nil || len(all) != 1 {
		t.Fatalf("pre-install QueryAll: got (%d, %v), want 1 match", len(all), err)
	}

	restore := d.Install(query.ModeMarkerGated)
	defer restore()

	all, err := d.QueryAll(":shadow .go")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("marked QueryAll: got %d matches, want 2", len(all))
	}
	all, err = d.QueryAll(".go")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("unmarked QueryAll: got %d matches, want 1 (native)", len(all))
	}
}

func TestElementQuery_ScopedToElement(t *testing.T) {
	d := parsePage(t, widgetPage)
	d.Install(query.ModeImplicit)

	host, err := d.Query("x-widget")
	if err != nil || host == nil {
		t.Fatalf("Query(x-widget) = (%v, %v)", host, err)
	}

	// The host matches .go itself but is excluded from its own results.
	all, err := host.(*Element).QueryAll(".go")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("scoped QueryAll: got %d matches, want 1", len(all))
	}
	if all[0].(*Element).Tag() != "button" {
		t.Errorf("scoped match: got <%s>, want <button>", all[0].(*Element).Tag())
	}
}

func TestOuterHTML(t *testing.T) {
	d := parsePage(t, `<html><body><p class="x">hi <b>there</b></p></body></html>`)
	p, err := d.QuerySelector("p.x")
	if err != nil || p == nil {
		t.Fatalf("QuerySelector(p.x) = (%v, %v)", p, err)
	}
	out, err := p.(*Element).OuterHTML()
	if err != nil {
		t.Fatal(err)
	}
	if out != `<p class="x">hi <b>there</b></p>` {
		t.Errorf("OuterHTML: got %q", out)
	}
}
