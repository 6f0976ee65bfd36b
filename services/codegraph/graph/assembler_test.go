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
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

func fileResult(filePath string, entities []*ast.Entity, rels []ast.Relationship) *ast.FileResult {
	return &ast.FileResult{
		FilePath:      filePath,
		Language:      "cpp",
		Hash:          "hash-" + filePath,
		Entities:      entities,
		Relationships: rels,
	}
}

func TestAssembler_DeclarationDefinitionPairing(t *testing.T) {
	// Declaration in the header, definition in the source file.
	decl := makeEntity("widget.hpp", "Widget::draw", ast.EntityKindMethod, 4)
	decl.DeclarationOnly = true
	decl.Primary = false
	decl.Signature = "()"
	def := makeEntity("widget.cpp", "Widget::draw", ast.EntityKindMethod, 10)
	def.Signature = "()"

	for name, order := range map[string][]*ast.FileResult{
		"declaration first": {
			fileResult("widget.hpp", []*ast.Entity{decl}, nil),
			fileResult("widget.cpp", []*ast.Entity{def}, nil),
		},
		"definition first": {
			fileResult("widget.cpp", []*ast.Entity{def}, nil),
			fileResult("widget.hpp", []*ast.Entity{decl}, nil),
		},
	} {
		t.Run(name, func(t *testing.T) {
			decl.Primary = false
			def.Primary = true
			a := NewAssembler()
			for _, fr := range order {
				if err := a.Merge(context.Background(), fr); err != nil {
					t.Fatalf("merge %s: %v", fr.FilePath, err)
				}
			}
			g, err := a.Finalize(context.Background())
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}

			declares := g.EdgesByKind(ast.RelationshipDeclares)
			if len(declares) != 1 {
				t.Fatalf("expected 1 declares edge, got %d", len(declares))
			}
			if declares[0].FromID != decl.ID || declares[0].ToID != def.ID {
				t.Errorf("declares edge must run declaration -> definition, got %s -> %s",
					declares[0].FromID, declares[0].ToID)
			}
			if decl.Primary {
				t.Error("paired declaration must not be primary")
			}
			if !def.Primary {
				t.Error("definition must stay primary")
			}
		})
	}
}

func TestAssembler_LoneDeclarationPromoted(t *testing.T) {
	decl := makeEntity("api.hpp", "api::frobnicate", ast.EntityKindFunction, 2)
	decl.DeclarationOnly = true
	decl.Primary = false

	a := NewAssembler()
	if err := a.Merge(context.Background(), fileResult("api.hpp", []*ast.Entity{decl}, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !decl.Primary {
		t.Error("a declaration with no definition anywhere must become primary")
	}
}

func TestAssembler_ReMergeSemantics(t *testing.T) {
	ent := makeEntity("a.cpp", "A", ast.EntityKindClass, 0)
	fr := fileResult("a.cpp", []*ast.Entity{ent}, nil)

	a := NewAssembler()
	ctx := context.Background()
	if err := a.Merge(ctx, fr); err != nil {
		t.Fatal(err)
	}
	if err := a.Merge(ctx, fr); err != nil {
		t.Errorf("re-merging identical content must be a no-op, got %v", err)
	}

	changed := fileResult("a.cpp", []*ast.Entity{ent}, nil)
	changed.Hash = "different"
	if err := a.Merge(ctx, changed); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("re-merging changed content must fail, got %v", err)
	}
}

func TestAssembler_CrossFileResolutionAtFinalize(t *testing.T) {
	base := makeEntity("base.cpp", "Base", ast.EntityKindClass, 0)
	derived := makeEntity("derived.cpp", "Derived", ast.EntityKindClass, 0)

	// The extends target carries a stale per-file ID plus the symbolic name;
	// only the name survives across files.
	derivedFR := fileResult("derived.cpp", []*ast.Entity{derived}, []ast.Relationship{{
		Kind:       ast.RelationshipExtends,
		SourceID:   derived.ID,
		TargetID:   "not-in-graph-yet",
		TargetName: "Base",
		Confidence: ast.ConfidenceProbable,
		Access:     "public",
	}})

	a := NewAssembler()
	ctx := context.Background()
	if err := a.Merge(ctx, derivedFR); err != nil {
		t.Fatal(err)
	}
	if err := a.Merge(ctx, fileResult("base.cpp", []*ast.Entity{base}, nil)); err != nil {
		t.Fatal(err)
	}
	g, err := a.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}

	extends := g.EdgesByKind(ast.RelationshipExtends)
	if len(extends) != 1 {
		t.Fatalf("expected 1 extends edge, got %d", len(extends))
	}
	if extends[0].ToID != base.ID {
		t.Errorf("expected pending edge resolved to %s, got %q", base.ID, extends[0].ToID)
	}
	// Cross-file resolution fills the target in but never upgrades confidence.
	if extends[0].Confidence != ast.ConfidenceProbable {
		t.Errorf("expected probable confidence preserved, got %s", extends[0].Confidence)
	}
}

func TestAssembler_UnresolvedStaysSymbolic(t *testing.T) {
	caller := makeEntity("a.cpp", "main", ast.EntityKindFunction, 0)
	fr := fileResult("a.cpp", []*ast.Entity{caller}, []ast.Relationship{{
		Kind:       ast.RelationshipCalls,
		SourceID:   caller.ID,
		TargetName: "printf",
		Confidence: ast.ConfidenceUnknown,
	}})

	a := NewAssembler()
	if err := a.Merge(context.Background(), fr); err != nil {
		t.Fatal(err)
	}
	g, err := a.Finalize(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	calls := g.EdgesByKind(ast.RelationshipCalls)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call edge, got %d", len(calls))
	}
	if calls[0].ToID != "" || calls[0].TargetName != "printf" {
		t.Errorf("expected symbolic edge to printf, got %+v", calls[0])
	}
}

func TestAssembler_FileScopeRelationships(t *testing.T) {
	ext := makeEntity("a.cpp", "iostream", ast.EntityKindExternalReference, 0)
	ext.ID = "external:iostream"
	fr := fileResult("a.cpp", []*ast.Entity{ext}, []ast.Relationship{{
		Kind:       ast.RelationshipImports,
		SourceID:   "", // file scope
		TargetID:   ext.ID,
		TargetName: "iostream",
		Confidence: ast.ConfidenceExact,
	}})

	a := NewAssembler()
	if err := a.Merge(context.Background(), fr); err != nil {
		t.Fatal(err)
	}
	g, err := a.Finalize(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	fileNode, ok := g.GetNode("file:a.cpp")
	if !ok {
		t.Fatal("expected materialized file node")
	}
	if fileNode.Entity.Kind != ast.EntityKindFile {
		t.Errorf("expected file kind, got %s", fileNode.Entity.Kind)
	}
	imports := g.EdgesByKind(ast.RelationshipImports)
	if len(imports) != 1 || imports[0].FromID != fileNode.ID || imports[0].ToID != ext.ID {
		t.Errorf("expected import edge from file node to external, got %+v", imports)
	}
}

func TestAssembler_RecordFailure(t *testing.T) {
	a := NewAssembler()
	a.RecordFailure("broken.cpp", "cpp", errors.New("parse timeout"))

	files := a.Files()
	st, ok := files["broken.cpp"]
	if !ok {
		t.Fatal("expected failure status recorded")
	}
	if len(st.Errors) != 1 || st.Errors[0] != "parse timeout" {
		t.Errorf("unexpected errors: %v", st.Errors)
	}
	if st.Entities != 0 {
		t.Errorf("failed file must contribute nothing, got %d entities", st.Entities)
	}
}

func TestAssembler_MergeAfterFinalizeRejected(t *testing.T) {
	a := NewAssembler()
	if _, err := a.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	ent := makeEntity("late.cpp", "Late", ast.EntityKindClass, 0)
	err := a.Merge(context.Background(), fileResult("late.cpp", []*ast.Entity{ent}, nil))
	if !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("expected ErrGraphFrozen, got %v", err)
	}
}

func TestAssembler_FinalizeCancelled(t *testing.T) {
	a := NewAssembler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Finalize(ctx); !errors.Is(err, ErrAssemblyCancelled) {
		t.Errorf("expected ErrAssemblyCancelled, got %v", err)
	}
}
