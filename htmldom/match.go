package htmldom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// The flat-tree matcher. Supported syntax:
//   - tag, *, .class, #id, [attr], [attr=val]
//   - compounds: tag.class#id[attr=val], .a.b
//   - descendant combinator (whitespace)
//   - selector groups separated by commas
// Combinators beyond descendant (>, +, ~) and pseudo-classes are not
// supported and surface as parse errors.

type attrMatch struct {
	key    string
	val    string
	hasVal bool
}

// compound is one simple-selector sequence, e.g. "div.content[role=main]".
type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

// complexSel is a descendant chain of compounds, left to right.
type complexSel []compound

// parseSelectorList parses a comma-separated selector group.
func parseSelectorList(s string) ([]complexSel, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("htmldom: empty selector")
	}
	var list []complexSel
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("htmldom: empty selector in group %q", s)
		}
		var cs complexSel
		for _, tok := range strings.Fields(part) {
			c, err := parseCompound(tok)
			if err != nil {
				return nil, err
			}
			cs = append(cs, c)
		}
		list = append(list, cs)
	}
	return list, nil
}

func parseCompound(tok string) (compound, error) {
	var c compound
	s := tok

	// Leading type selector or universal.
	i := 0
	for i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' {
		i++
	}
	switch head := s[:i]; head {
	case "", "*":
		// Universal; matches any element.
	default:
		if strings.ContainsAny(head, ">+~:()") {
			return c, fmt.Errorf("htmldom: unsupported selector %q", tok)
		}
		c.tag = strings.ToLower(head)
	}
	s = s[i:]

	for len(s) > 0 {
		switch s[0] {
		case '.':
			name, rest := cutName(s[1:])
			if name == "" {
				return c, fmt.Errorf("htmldom: empty class in %q", tok)
			}
			c.classes = append(c.classes, name)
			s = rest
		case '#':
			name, rest := cutName(s[1:])
			if name == "" {
				return c, fmt.Errorf("htmldom: empty id in %q", tok)
			}
			c.id = name
			s = rest
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return c, fmt.Errorf("htmldom: unterminated attribute selector in %q", tok)
			}
			body := s[1:end]
			if body == "" {
				return c, fmt.Errorf("htmldom: empty attribute selector in %q", tok)
			}
			var am attrMatch
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				am.key = strings.ToLower(body[:eq])
				am.val = strings.Trim(body[eq+1:], `"'`)
				am.hasVal = true
			} else {
				am.key = strings.ToLower(body)
			}
			if am.key == "" {
				return c, fmt.Errorf("htmldom: empty attribute name in %q", tok)
			}
			c.attrs = append(c.attrs, am)
			s = s[end+1:]
		default:
			return c, fmt.Errorf("htmldom: unexpected %q in selector %q", s[0], tok)
		}
	}
	return c, nil
}

// cutName splits a class or id name from the remainder of a compound token.
func cutName(s string) (name, rest string) {
	i := 0
	for i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' {
		i++
	}
	return s[:i], s[i:]
}

// matchCompound checks a single element node against one compound.
func matchCompound(n *html.Node, c compound) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && getAttr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(getAttr(n, "class"))
		for _, want := range c.classes {
			found := false
			for _, h := range have {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, am := range c.attrs {
		val, ok := lookupAttr(n, am.key)
		if !ok {
			return false
		}
		if am.hasVal && val != am.val {
			return false
		}
	}
	return true
}

// matchComplex checks an element against a descendant chain, right to left,
// walking the parent links within the element's own tree. The chain never
// crosses a shadow boundary: that is what makes the flat matcher flat.
func matchComplex(e *Element, cs complexSel) bool {
	if len(cs) == 0 {
		return false
	}
	if !matchCompound(e.src, cs[len(cs)-1]) {
		return false
	}
	i := len(cs) - 2
	for a := e.parent; a != nil && i >= 0; a = a.parent {
		if matchCompound(a.src, cs[i]) {
			i--
		}
	}
	return i < 0
}

func matchAny(e *Element, list []complexSel) bool {
	for _, cs := range list {
		if matchComplex(e, cs) {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
