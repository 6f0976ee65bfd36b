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
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

func parseArena(t *testing.T, src string, maxNodes int) *Tree {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	defer tree.Close()
	return FromSitter(tree, []byte(src), maxNodes)
}

func TestFromSitter_Basic(t *testing.T) {
	src := "int add(int a, int b) { return a + b; }\n"
	arena := parseArena(t, src, 0)

	if arena.Empty() {
		t.Fatal("expected non-empty tree")
	}
	root := arena.Root()
	if got := arena.Kind(root); got != "translation_unit" {
		t.Fatalf("expected translation_unit root, got %q", got)
	}
	if arena.Parent(root) != InvalidNode {
		t.Error("expected root to have no parent")
	}

	fn := arena.FindDescendant(root, "function_definition")
	if fn == InvalidNode {
		t.Fatal("expected a function_definition")
	}
	if arena.Parent(fn) != root {
		t.Error("expected function_definition parented to root")
	}

	decl := arena.ChildByField(fn, "declarator")
	if decl == InvalidNode || arena.Kind(decl) != "function_declarator" {
		t.Fatalf("expected function_declarator via field, got %q", arena.Kind(decl))
	}
	name := arena.ChildByField(decl, "declarator")
	if got := arena.Text(name); got != "add" {
		t.Errorf("expected declarator text 'add', got %q", got)
	}
}

func TestFromSitter_ChildrenSourceOrder(t *testing.T) {
	src := "int a;\nint b;\nint c;\n"
	arena := parseArena(t, src, 0)

	var lines []int
	for c := range arena.Children(arena.Root()) {
		lines = append(lines, arena.Span(c).StartLine)
	}
	for i := 1; i < len(lines); i++ {
		if lines[i] < lines[i-1] {
			t.Fatalf("children out of source order: %v", lines)
		}
	}
	if len(lines) != 3 {
		t.Errorf("expected 3 top-level declarations, got %d", len(lines))
	}
}

func TestFromSitter_Truncation(t *testing.T) {
	src := "int a; int b; int c; int d; int e;\n"
	arena := parseArena(t, src, 3)

	if !arena.Truncated() {
		t.Error("expected truncated arena")
	}
	if arena.Len() != 3 {
		t.Errorf("expected exactly 3 nodes, got %d", arena.Len())
	}
}

func TestFromSitter_NilTree(t *testing.T) {
	arena := FromSitter(nil, []byte("x"), 0)
	if !arena.Empty() {
		t.Error("expected empty arena for nil tree")
	}
	if arena.Root() != InvalidNode {
		t.Error("expected InvalidNode root")
	}
}

func TestTree_LastLine(t *testing.T) {
	cases := []struct {
		src  string
		want int
	}{
		{"", 0},
		{"one line", 0},
		{"one line\n", 0},
		{"a\nb", 1},
		{"a\nb\nc\n", 2},
	}
	for _, tc := range cases {
		if got := NewTree([]byte(tc.src)).LastLine(); got != tc.want {
			t.Errorf("LastLine(%q): expected %d, got %d", tc.src, tc.want, got)
		}
	}
}

func TestTree_InvalidNodeAccessors(t *testing.T) {
	arena := NewTree(nil)
	if arena.Kind(InvalidNode) != "" || arena.Text(InvalidNode) != "" {
		t.Error("expected empty accessors for InvalidNode")
	}
	if arena.ChildByField(InvalidNode, "name") != InvalidNode {
		t.Error("expected InvalidNode from ChildByField")
	}
	for range arena.Children(InvalidNode) {
		t.Fatal("expected no children")
	}
}
