// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"iter"

	sitter "github.com/smacker/go-tree-sitter"
)

// NodeID identifies a node within a Tree. IDs are dense indexes into the
// tree's arena; InvalidNode marks absence.
type NodeID int

// InvalidNode is returned by lookups that find no node.
const InvalidNode NodeID = -1

// DefaultMaxTreeNodes caps how many syntax nodes are copied into the arena.
// Trees larger than this are truncated rather than rejected, so extraction
// still yields partial results for pathological inputs.
const DefaultMaxTreeNodes = 500_000

// Span is a zero-based source span. EndLine and EndCol are inclusive of the
// last character's position.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

type nodeData struct {
	kind      string
	field     string
	parent    NodeID
	children  []NodeID
	startByte uint32
	endByte   uint32
	span      Span
	named     bool
}

// Tree is an immutable arena copy of a parsed syntax tree.
//
// Description:
//
//	Tree decouples extraction from the parser's lifetime: the underlying
//	tree-sitter tree owns C memory and must be closed after parsing, so the
//	nodes the extractor walks are copied into a flat Go arena first. The
//	copy stores kind strings, spans, field names, and parent/child links;
//	node text is sliced out of the retained source bytes on demand.
//
// Thread Safety: Tree is immutable after construction and safe for
// concurrent reads.
type Tree struct {
	src       []byte
	nodes     []nodeData
	truncated bool
}

// NewTree returns an empty tree over the given source. Used when parsing
// failed entirely but slicing still needs the line count.
func NewTree(src []byte) *Tree {
	return &Tree{src: src}
}

// FromSitter copies a tree-sitter parse tree into an arena Tree.
//
// Inputs:
//   - tree: the parsed tree. May be nil, yielding an empty Tree.
//   - src: the source bytes the tree was parsed from. Retained.
//   - maxNodes: arena size cap; <= 0 means DefaultMaxTreeNodes.
//
// Outputs:
//   - A Tree ready for extraction. Truncated() reports whether the cap was
//     hit.
//
// Complexity: O(n) in the number of syntax nodes, single pass.
func FromSitter(tree *sitter.Tree, src []byte, maxNodes int) *Tree {
	t := &Tree{src: src}
	if tree == nil {
		return t
	}
	root := tree.RootNode()
	if root == nil {
		return t
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxTreeNodes
	}

	type frame struct {
		node   *sitter.Node
		field  string
		parent NodeID
	}
	// Pre-order DFS with an explicit stack; recursion risks overflow on
	// deeply nested inputs.
	stack := []frame{{node: root, parent: InvalidNode}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(t.nodes) >= maxNodes {
			t.truncated = true
			break
		}
		id := NodeID(len(t.nodes))
		t.nodes = append(t.nodes, nodeData{
			kind:      f.node.Type(),
			field:     f.field,
			parent:    f.parent,
			startByte: f.node.StartByte(),
			endByte:   f.node.EndByte(),
			span: Span{
				StartLine: int(f.node.StartPoint().Row),
				StartCol:  int(f.node.StartPoint().Column),
				EndLine:   int(f.node.EndPoint().Row),
				EndCol:    int(f.node.EndPoint().Column),
			},
			named: f.node.IsNamed(),
		})
		if f.parent != InvalidNode {
			t.nodes[f.parent].children = append(t.nodes[f.parent].children, id)
		}

		// Push children in reverse so they pop in source order.
		n := int(f.node.ChildCount())
		for i := n - 1; i >= 0; i-- {
			child := f.node.Child(i)
			if child == nil {
				continue
			}
			stack = append(stack, frame{
				node:   child,
				field:  f.node.FieldNameForChild(i),
				parent: id,
			})
		}
	}
	return t
}

// Empty reports whether the tree has no nodes.
func (t *Tree) Empty() bool { return len(t.nodes) == 0 }

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Truncated reports whether the arena hit its node cap during construction.
func (t *Tree) Truncated() bool { return t.truncated }

// Root returns the root node, or InvalidNode for an empty tree.
func (t *Tree) Root() NodeID {
	if len(t.nodes) == 0 {
		return InvalidNode
	}
	return 0
}

// Source returns the retained source bytes. Callers must not mutate them.
func (t *Tree) Source() []byte { return t.src }

// LastLine returns the zero-based index of the last line of the source.
// An empty source still has line 0.
func (t *Tree) LastLine() int {
	last := 0
	for _, b := range t.src {
		if b == '\n' {
			last++
		}
	}
	// A trailing newline does not open a new line.
	if len(t.src) > 0 && t.src[len(t.src)-1] == '\n' {
		last--
	}
	if last < 0 {
		last = 0
	}
	return last
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Kind returns the grammar node kind, or "" for an invalid ID.
func (t *Tree) Kind(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].kind
}

// IsNamed reports whether the node is a named grammar node (as opposed to
// an anonymous token like "{").
func (t *Tree) IsNamed(id NodeID) bool {
	return t.valid(id) && t.nodes[id].named
}

// Span returns the node's source span, or the zero Span for an invalid ID.
func (t *Tree) Span(id NodeID) Span {
	if !t.valid(id) {
		return Span{}
	}
	return t.nodes[id].span
}

// Parent returns the node's parent, or InvalidNode for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return InvalidNode
	}
	return t.nodes[id].parent
}

// Field returns the grammar field name the node is attached under in its
// parent, or "" for the root and unnamed positions.
func (t *Tree) Field(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].field
}

// Text returns the source text covered by the node.
func (t *Tree) Text(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	n := t.nodes[id]
	if int(n.endByte) > len(t.src) || n.startByte > n.endByte {
		return ""
	}
	return string(t.src[n.startByte:n.endByte])
}

// ChildCount returns the number of children of the node.
func (t *Tree) ChildCount(id NodeID) int {
	if !t.valid(id) {
		return 0
	}
	return len(t.nodes[id].children)
}

// Children iterates the node's children in source order.
func (t *Tree) Children(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !t.valid(id) {
			return
		}
		for _, c := range t.nodes[id].children {
			if !yield(c) {
				return
			}
		}
	}
}

// NamedChildren iterates the node's named children in source order.
func (t *Tree) NamedChildren(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !t.valid(id) {
			return
		}
		for _, c := range t.nodes[id].children {
			if t.nodes[c].named && !yield(c) {
				return
			}
		}
	}
}

// ChildByField returns the first child attached under the given grammar
// field name, or InvalidNode.
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	if !t.valid(id) {
		return InvalidNode
	}
	for _, c := range t.nodes[id].children {
		if t.nodes[c].field == field {
			return c
		}
	}
	return InvalidNode
}

// FirstChildOfKind returns the first child whose kind matches any of the
// given kinds, or InvalidNode.
func (t *Tree) FirstChildOfKind(id NodeID, kinds ...string) NodeID {
	if !t.valid(id) {
		return InvalidNode
	}
	for _, c := range t.nodes[id].children {
		for _, k := range kinds {
			if t.nodes[c].kind == k {
				return c
			}
		}
	}
	return InvalidNode
}

// FindDescendant returns the first node in pre-order under id (inclusive)
// whose kind matches, or InvalidNode. Useful for reaching through wrapper
// nodes such as pointer declarators.
func (t *Tree) FindDescendant(id NodeID, kind string) NodeID {
	if !t.valid(id) {
		return InvalidNode
	}
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.nodes[cur].kind == kind {
			return cur
		}
		children := t.nodes[cur].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return InvalidNode
}

// Walk visits every node under id (inclusive) in pre-order. Returning
// false from visit skips the node's subtree.
func (t *Tree) Walk(id NodeID, visit func(NodeID) bool) {
	if !t.valid(id) {
		return
	}
	if !visit(id) {
		return
	}
	for _, c := range t.nodes[id].children {
		t.Walk(c, visit)
	}
}
