// Package dom is an arena-backed element tree.
//
// Nodes are addressed by NodeID and link to each other through index lists, so
// moving a subtree is a matter of reassigning child lists. A Tree is owned by a
// single page generation and is not safe for concurrent use.
package dom

import (
	"slices"
	"strings"
)

// NodeID addresses a node inside a Tree.
type NodeID int32

// None is the absent node.
const None NodeID = -1

// NodeType distinguishes element, text and comment nodes.
type NodeType uint8

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
)

// Attr is an element attribute.
type Attr struct {
	Key string
	Val string
}

type node struct {
	typ      NodeType
	tag      string
	attrs    []Attr
	data     string
	origin   string
	parent   NodeID
	children []NodeID
}

// Tree is an arena of nodes rooted at a document node.
type Tree struct {
	nodes []node
}

// New returns a tree holding only its document root.
func New() *Tree {
	return &Tree{nodes: []node{{typ: DocumentNode, parent: None}}}
}

// Root returns the document node.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of allocated nodes, attached or not.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) add(n node) NodeID {
	n.parent = None
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// NewElement allocates a detached element.
func (t *Tree) NewElement(tag string, attrs []Attr, origin string) NodeID {
	return t.add(node{typ: ElementNode, tag: strings.ToLower(tag), attrs: slices.Clone(attrs), origin: origin})
}

// NewText allocates a detached text node.
func (t *Tree) NewText(text, origin string) NodeID {
	return t.add(node{typ: TextNode, data: text, origin: origin})
}

// NewComment allocates a detached comment node.
func (t *Tree) NewComment(text string) NodeID {
	return t.add(node{typ: CommentNode, data: text})
}

func (t *Tree) Type(id NodeID) NodeType { return t.nodes[id].typ }
func (t *Tree) Tag(id NodeID) string     { return t.nodes[id].tag }
func (t *Tree) Kind(id NodeID) Kind {
	if t.nodes[id].typ != ElementNode {
		return KindOther
	}
	return KindOf(t.nodes[id].tag)
}
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].parent }
func (t *Tree) Data(id NodeID) string   { return t.nodes[id].data }
func (t *Tree) Origin(id NodeID) string { return t.nodes[id].origin }

// IsElement reports whether id is an element with the given tag.
func (t *Tree) IsElement(id NodeID, tag string) bool {
	return t.nodes[id].typ == ElementNode && t.nodes[id].tag == tag
}

// SetTag renames an element.
func (t *Tree) SetTag(id NodeID, tag string) { t.nodes[id].tag = strings.ToLower(tag) }

// SetData replaces a text or comment node's content.
func (t *Tree) SetData(id NodeID, data string) { t.nodes[id].data = data }

// SetOrigin records the source file a subtree was parsed from.
func (t *Tree) SetOrigin(id NodeID, origin string) { t.nodes[id].origin = origin }

// Children returns a copy of id's child list.
func (t *Tree) Children(id NodeID) []NodeID { return slices.Clone(t.nodes[id].children) }

// FirstChild returns the first child or None.
func (t *Tree) FirstChild(id NodeID) NodeID {
	if c := t.nodes[id].children; len(c) > 0 {
		return c[0]
	}
	return None
}

// Attr returns an attribute value.
func (t *Tree) Attr(id NodeID, key string) (string, bool) {
	for _, a := range t.nodes[id].attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether an attribute is present.
func (t *Tree) HasAttr(id NodeID, key string) bool {
	_, ok := t.Attr(id, key)
	return ok
}

// Attrs returns a copy of id's attributes in document order.
func (t *Tree) Attrs(id NodeID) []Attr { return slices.Clone(t.nodes[id].attrs) }

// SetAttr sets or replaces an attribute, keeping its position if present.
func (t *Tree) SetAttr(id NodeID, key, val string) {
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Val = val
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present.
func (t *Tree) RemoveAttr(id NodeID, key string) {
	n := &t.nodes[id]
	n.attrs = slices.DeleteFunc(n.attrs, func(a Attr) bool { return a.Key == key })
}

// RenameAttr moves an attribute value to a new key unless the new key already exists.
func (t *Tree) RenameAttr(id NodeID, from, to string) bool {
	val, ok := t.Attr(id, from)
	if !ok || t.HasAttr(id, to) {
		return false
	}
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Key == from {
			n.attrs[i] = Attr{Key: to, Val: val}
		}
	}
	return true
}

// Detach removes id from its parent's child list. The subtree stays allocated.
func (t *Tree) Detach(id NodeID) {
	p := t.nodes[id].parent
	if p == None {
		return
	}
	pn := &t.nodes[p]
	if i := slices.Index(pn.children, id); i >= 0 {
		pn.children = slices.Delete(pn.children, i, i+1)
	}
	t.nodes[id].parent = None
}

// AppendChild detaches child from any previous parent and appends it to parent.
func (t *Tree) AppendChild(parent, child NodeID) {
	t.Detach(child)
	t.nodes[parent].children = append(t.nodes[parent].children, child)
	t.nodes[child].parent = parent
}

// PrependChild detaches child and inserts it as parent's first child.
func (t *Tree) PrependChild(parent, child NodeID) {
	t.Detach(child)
	t.nodes[parent].children = slices.Insert(t.nodes[parent].children, 0, child)
	t.nodes[child].parent = parent
}

// SetChildren replaces parent's child list. Previous children become detached.
func (t *Tree) SetChildren(parent NodeID, children []NodeID) {
	for _, c := range t.nodes[parent].children {
		t.nodes[c].parent = None
	}
	t.nodes[parent].children = nil
	for _, c := range children {
		t.AppendChild(parent, c)
	}
}

// Replace puts replacement at old's position in old's parent. old becomes detached.
func (t *Tree) Replace(old, replacement NodeID) {
	p := t.nodes[old].parent
	if p == None {
		return
	}
	t.Detach(replacement)
	pn := &t.nodes[p]
	i := slices.Index(pn.children, old)
	pn.children[i] = replacement
	t.nodes[replacement].parent = p
	t.nodes[old].parent = None
}

// Unwrap replaces id with its own children.
func (t *Tree) Unwrap(id NodeID) {
	p := t.nodes[id].parent
	if p == None {
		return
	}
	kids := t.nodes[id].children
	t.nodes[id].children = nil
	pn := &t.nodes[p]
	i := slices.Index(pn.children, id)
	pn.children = slices.Replace(pn.children, i, i+1, kids...)
	for _, c := range kids {
		t.nodes[c].parent = p
	}
	t.nodes[id].parent = None
}

// TextContent concatenates all descendant text.
func (t *Tree) TextContent(id NodeID) string {
	var b strings.Builder
	var rec func(NodeID)
	rec = func(n NodeID) {
		if t.nodes[n].typ == TextNode {
			b.WriteString(t.nodes[n].data)
			return
		}
		for _, c := range t.nodes[n].children {
			rec(c)
		}
	}
	rec(id)
	return b.String()
}

// FindByID returns the first element below root (inclusive) whose id attribute equals id.
func (t *Tree) FindByID(root NodeID, id string) NodeID {
	found := None
	t.Walk(root, func(n NodeID) WalkAction {
		if found != None {
			return SkipChildren
		}
		if v, ok := t.Attr(n, "id"); ok && t.nodes[n].typ == ElementNode && v == id {
			found = n
			return SkipChildren
		}
		return Continue
	}, nil)
	return found
}

// WalkAction tells Walk how to proceed after a pre-order visit.
type WalkAction uint8

const (
	Continue WalkAction = iota
	SkipChildren
)

// Walk visits id and its descendants depth first. pre runs before a node's
// children and post after them. Child lists are snapshotted before descent so
// visitors may detach or replace nodes they are visiting.
func (t *Tree) Walk(id NodeID, pre func(NodeID) WalkAction, post func(NodeID)) {
	action := Continue
	if pre != nil {
		action = pre(id)
	}
	if action == Continue {
		for _, c := range t.Children(id) {
			if t.nodes[c].parent != id {
				continue
			}
			t.Walk(c, pre, post)
		}
	}
	if post != nil {
		post(id)
	}
}
