package htmldom

import "testing"

// matchDoc parses a snippet and returns the document for matcher tests.
func matchDoc(t *testing.T, body string) *Document {
	t.Helper()
	d, err := ParseString("<html><head></head><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func firstTag(t *testing.T, d *Document, selector string) string {
	t.Helper()
	n, err := d.QuerySelector(selector)
	if err != nil {
		t.Fatalf("QuerySelector(%q): %v", selector, err)
	}
	if n == nil {
		return ""
	}
	return n.(*Element).Tag()
}

func TestMatch_TagClassID(t *testing.T) {
	d := matchDoc(t, `<div id="main" class="content wide"><span class="content"></span></div>`)

	cases := []struct {
		sel     string
		wantTag string
	}{
		{"div", "div"},
		{".content", "div"},
		{"#main", "div"},
		{"div.content", "div"},
		{"span.content", "span"},
		{"div#main.wide", "div"},
		{".content.wide", "div"},
		{"em", ""},
		{".missing", ""},
	}
	for _, c := range cases {
		if got := firstTag(t, d, c.sel); got != c.wantTag {
			t.Errorf("QuerySelector(%q): got %q, want %q", c.sel, got, c.wantTag)
		}
	}
}

func TestMatch_Attributes(t *testing.T) {
	d := matchDoc(t, `<div role="main" data-x></div><p role="note"></p>`)

	if got := firstTag(t, d, "[role]"); got != "div" {
		t.Errorf("[role]: got %q, want div", got)
	}
	if got := firstTag(t, d, `[role="note"]`); got != "p" {
		t.Errorf(`[role="note"]: got %q, want p`, got)
	}
	if got := firstTag(t, d, "div[data-x]"); got != "div" {
		t.Errorf("div[data-x]: got %q, want div", got)
	}
	if got := firstTag(t, d, `[role=absent]`); got != "" {
		t.Errorf("[role=absent]: got %q, want no match", got)
	}
}

func TestMatch_DescendantCombinator(t *testing.T) {
	d := matchDoc(t, `<article class="a"><section><b class="x"></b></section></article><b class="x" id="outside"></b>`)

	all, err := d.QuerySelectorAll("article .x")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("article .x: got %d matches, want 1", len(all))
	}
	if all[0].(*Element).ID() == "outside" {
		t.Error("matched the element outside the article")
	}
}

func TestMatch_Groups(t *testing.T) {
	d := matchDoc(t, `<h1></h1><p></p><aside></aside>`)

	all, err := d.QuerySelectorAll("h1, aside")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("h1, aside: got %d matches, want 2", len(all))
	}
}

func TestMatch_Universal(t *testing.T) {
	d := matchDoc(t, `<div><span></span></div>`)

	all, err := d.QuerySelectorAll("*")
	if err != nil {
		t.Fatal(err)
	}
	// html, head, body, div, span
	if len(all) != 5 {
		t.Fatalf("*: got %d matches, want 5", len(all))
	}
}

func TestMatch_MalformedSelectorErrors(t *testing.T) {
	d := matchDoc(t, `<div></div>`)

	for _, sel := range []string{"", "  ", "div[role", "div.", "#", "div > span", "p:hover", "a, "} {
		if _, err := d.QuerySelectorAll(sel); err == nil {
			t.Errorf("QuerySelectorAll(%q): expected error", sel)
		}
	}
}

func TestMatch_CaseInsensitiveTag(t *testing.T) {
	d := matchDoc(t, `<DIV class="x"></DIV>`)
	if got := firstTag(t, d, "DIV.x"); got != "div" {
		t.Errorf("DIV.x: got %q, want div", got)
	}
}
