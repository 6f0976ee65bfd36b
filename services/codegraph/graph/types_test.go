// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"testing"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

func makeEntity(filePath, qname string, kind ast.EntityKind, startLine int) *ast.Entity {
	return &ast.Entity{
		ID:            ast.GenerateID(filePath, kind, qname, startLine),
		Kind:          kind,
		QualifiedName: qname,
		DisplayName:   qname,
		Language:      "cpp",
		FilePath:      filePath,
		StartLine:     startLine,
		EndLine:       startLine + 2,
		Primary:       true,
	}
}

func TestGraph_AddNodeIdempotent(t *testing.T) {
	g := NewGraph()
	ent := makeEntity("a.cpp", "Widget", ast.EntityKindClass, 0)

	first, err := g.AddNode(ent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := g.AddNode(ent)
	if err != nil {
		t.Fatalf("re-adding same entity must not fail: %v", err)
	}
	if first != second {
		t.Error("expected the same node back on re-add")
	}
	if g.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestGraph_AddNodeIdentityConflict(t *testing.T) {
	g := NewGraph()
	ent := makeEntity("a.cpp", "Widget", ast.EntityKindClass, 0)
	if _, err := g.AddNode(ent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conflicting := *ent
	conflicting.QualifiedName = "Gadget"
	if _, err := g.AddNode(&conflicting); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestGraph_FrozenRejectsWrites(t *testing.T) {
	g := NewGraph()
	a := makeEntity("a.cpp", "A", ast.EntityKindClass, 0)
	b := makeEntity("a.cpp", "B", ast.EntityKindClass, 5)
	if _, err := g.AddNode(a); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddNode(b); err != nil {
		t.Fatal(err)
	}
	g.Freeze()

	if _, err := g.AddNode(makeEntity("a.cpp", "C", ast.EntityKindClass, 10)); !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("AddNode after freeze: expected ErrGraphFrozen, got %v", err)
	}
	err := g.AddEdge(&Edge{FromID: a.ID, ToID: b.ID, Kind: ast.RelationshipExtends})
	if !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("AddEdge after freeze: expected ErrGraphFrozen, got %v", err)
	}
	if g.State() != StateFrozen {
		t.Error("expected frozen state")
	}
}

func TestGraph_NodeCapacity(t *testing.T) {
	g := NewGraph(WithMaxNodes(2))
	for i := 0; i < 2; i++ {
		if _, err := g.AddNode(makeEntity("a.cpp", "N", ast.EntityKindFunction, i*10)); err != nil {
			t.Fatal(err)
		}
	}
	_, err := g.AddNode(makeEntity("a.cpp", "N", ast.EntityKindFunction, 100))
	if !errors.Is(err, ErrMaxNodesExceeded) {
		t.Errorf("expected ErrMaxNodesExceeded, got %v", err)
	}
}

func TestGraph_AddEdgeRequiresBothNodes(t *testing.T) {
	g := NewGraph()
	a := makeEntity("a.cpp", "A", ast.EntityKindFunction, 0)
	if _, err := g.AddNode(a); err != nil {
		t.Fatal(err)
	}

	err := g.AddEdge(&Edge{FromID: a.ID, ToID: "missing", Kind: ast.RelationshipCalls})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound for missing target, got %v", err)
	}
	err = g.AddEdge(&Edge{FromID: "missing", ToID: a.ID, Kind: ast.RelationshipCalls})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound for missing source, got %v", err)
	}
	err = g.AddEdge(&Edge{FromID: a.ID, ToID: a.ID, Kind: ast.RelationshipUnknown})
	if !errors.Is(err, ErrInvalidEdgeKind) {
		t.Errorf("expected ErrInvalidEdgeKind, got %v", err)
	}
}

func TestGraph_SymbolicEdges(t *testing.T) {
	g := NewGraph()
	a := makeEntity("a.cpp", "caller", ast.EntityKindFunction, 0)
	if _, err := g.AddNode(a); err != nil {
		t.Fatal(err)
	}
	err := g.AddSymbolicEdge(&Edge{
		FromID:     a.ID,
		ToID:       "stale-id-from-elsewhere",
		Kind:       ast.RelationshipCalls,
		TargetName: "printf",
		Confidence: ast.ConfidenceUnknown,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edges := g.EdgesByKind(ast.RelationshipCalls)
	if len(edges) != 1 {
		t.Fatalf("expected 1 call edge, got %d", len(edges))
	}
	if edges[0].ToID != "" {
		t.Errorf("symbolic edge must have no target ID, got %q", edges[0].ToID)
	}

	stats := g.ComputeStats()
	if stats.SymbolicEdges != 1 {
		t.Errorf("expected 1 symbolic edge in stats, got %d", stats.SymbolicEdges)
	}
}

func TestGraph_IndexCopiesAreDefensive(t *testing.T) {
	g := NewGraph()
	a := makeEntity("a.cpp", "A", ast.EntityKindClass, 0)
	if _, err := g.AddNode(a); err != nil {
		t.Fatal(err)
	}

	byName := g.NodesByQualifiedName("A")
	if len(byName) != 1 {
		t.Fatalf("expected 1 node, got %d", len(byName))
	}
	byName[0] = nil
	if again := g.NodesByQualifiedName("A"); len(again) != 1 || again[0] == nil {
		t.Error("mutating the returned slice must not affect the index")
	}

	byFile := g.NodesByFile("a.cpp")
	if len(byFile) != 1 {
		t.Fatalf("expected 1 node by file, got %d", len(byFile))
	}
	byKind := g.NodesByKind(ast.EntityKindClass)
	if len(byKind) != 1 {
		t.Fatalf("expected 1 node by kind, got %d", len(byKind))
	}
}

func TestGraph_ComputeStats(t *testing.T) {
	g := NewGraph()
	cls := makeEntity("a.cpp", "A", ast.EntityKindClass, 0)
	fn := makeEntity("b.cpp", "f", ast.EntityKindFunction, 0)
	for _, e := range []*ast.Entity{cls, fn} {
		if _, err := g.AddNode(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddEdge(&Edge{FromID: fn.ID, ToID: cls.ID, Kind: ast.RelationshipCalls, Confidence: ast.ConfidenceExact}); err != nil {
		t.Fatal(err)
	}

	stats := g.ComputeStats()
	if stats.Nodes != 2 || stats.Edges != 1 || stats.Files != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.NodesByKind["class"] != 1 || stats.NodesByKind["function"] != 1 {
		t.Errorf("unexpected node kind counts: %v", stats.NodesByKind)
	}
	if stats.ByConfidence["exact"] != 1 {
		t.Errorf("unexpected confidence counts: %v", stats.ByConfidence)
	}
}
