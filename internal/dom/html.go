package dom

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true,
	"track": true, "wbr": true,
}

// selfClosing matches `<tag ... />` so custom elements written self-closed do
// not swallow their following siblings under HTML parsing rules.
var selfClosing = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9-]*)((?:\s+[^<>]*?)?)\s*/>`)

func expandSelfClosing(src string) string {
	return selfClosing.ReplaceAllStringFunc(src, func(m string) string {
		sub := selfClosing.FindStringSubmatch(m)
		tag := strings.ToLower(sub[1])
		if voidElements[tag] {
			return m
		}
		return "<" + sub[1] + sub[2] + "></" + sub[1] + ">"
	})
}

// ParseFragment parses an HTML fragment into detached nodes owned by t. Every
// created node records origin as the file it came from.
func (t *Tree) ParseFragment(src, origin string) ([]NodeID, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(expandSelfClosing(src)), context)
	if err != nil {
		return nil, err
	}
	out := make([]NodeID, 0, len(parsed))
	for _, n := range parsed {
		if id := t.importNode(n, origin); id != None {
			out = append(out, id)
		}
	}
	return out, nil
}

// ParseInto parses src and appends the result to parent.
func (t *Tree) ParseInto(parent NodeID, src, origin string) error {
	ids, err := t.ParseFragment(src, origin)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.AppendChild(parent, id)
	}
	return nil
}

func (t *Tree) importNode(n *html.Node, origin string) NodeID {
	var id NodeID
	switch n.Type {
	case html.ElementNode:
		attrs := make([]Attr, 0, len(n.Attr))
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			attrs = append(attrs, Attr{Key: key, Val: a.Val})
		}
		id = t.NewElement(n.Data, attrs, origin)
	case html.TextNode:
		return t.NewText(n.Data, origin)
	case html.CommentNode:
		return t.NewComment(n.Data)
	default:
		return None
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if cid := t.importNode(c, origin); cid != None {
			t.AppendChild(id, cid)
		}
	}
	return id
}

func (t *Tree) exportNode(id NodeID) *html.Node {
	n := &t.nodes[id]
	var out *html.Node
	switch n.typ {
	case TextNode:
		return &html.Node{Type: html.TextNode, Data: n.data}
	case CommentNode:
		return &html.Node{Type: html.CommentNode, Data: n.data}
	case DocumentNode:
		out = &html.Node{Type: html.DocumentNode}
	default:
		attrs := make([]html.Attribute, 0, len(n.attrs))
		for _, a := range n.attrs {
			attrs = append(attrs, html.Attribute{Key: a.Key, Val: a.Val})
		}
		out = &html.Node{Type: html.ElementNode, Data: n.tag, DataAtom: atom.Lookup([]byte(n.tag)), Attr: attrs}
	}
	for _, c := range n.children {
		out.AppendChild(t.exportNode(c))
	}
	return out
}

// OuterHTML serializes id including its own tag.
func (t *Tree) OuterHTML(id NodeID) string {
	var buf bytes.Buffer
	if t.nodes[id].typ == DocumentNode {
		return t.InnerHTML(id)
	}
	_ = html.Render(&buf, t.exportNode(id))
	return buf.String()
}

// InnerHTML serializes id's children.
func (t *Tree) InnerHTML(id NodeID) string {
	var buf bytes.Buffer
	for _, c := range t.nodes[id].children {
		_ = html.Render(&buf, t.exportNode(c))
	}
	return buf.String()
}
