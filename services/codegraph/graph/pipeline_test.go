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
	"testing"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

const headerSrc = `class Greeter {
public:
    void greet();
};
`

const implSrc = `#include "greeter.hpp"
void Greeter::greet() { }
`

const mainSrc = `#include "greeter.hpp"
int main() {
    Greeter g;
    g.greet();
    return 0;
}
`

func TestPipeline_AssemblesAcrossFiles(t *testing.T) {
	p := NewPipeline(WithWorkers(2))
	res, err := p.Run(context.Background(), []Input{
		{FilePath: "greeter.hpp", Source: []byte(headerSrc)},
		{FilePath: "greeter.cpp", Source: []byte(implSrc)},
		{FilePath: "main.cpp", Source: []byte(mainSrc)},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Graph.State() != StateFrozen {
		t.Error("expected frozen graph")
	}
	if len(res.Files) != 3 {
		t.Errorf("expected 3 file statuses, got %d", len(res.Files))
	}
	for path, st := range res.Files {
		if len(st.Errors) != 0 {
			t.Errorf("file %s has unexpected errors: %v", path, st.Errors)
		}
		if len(res.Slices[path]) == 0 {
			t.Errorf("file %s has no slices", path)
		}
	}

	// Declaration in the header pairs with the out-of-file definition.
	methods := res.Graph.NodesByQualifiedName("Greeter::greet")
	var decl, def *Node
	for _, n := range methods {
		if n.Entity.DeclarationOnly {
			decl = n
		} else {
			def = n
		}
	}
	if decl == nil || def == nil {
		t.Fatalf("expected declaration and definition nodes, got %d total", len(methods))
	}
	declares := res.Graph.EdgesByKind(ast.RelationshipDeclares)
	if len(declares) != 1 || declares[0].FromID != decl.ID || declares[0].ToID != def.ID {
		t.Errorf("expected declares edge declaration -> definition, got %+v", declares)
	}

	// main's member call resolves to the in-graph method at finalize.
	resolved := false
	for _, e := range res.Graph.EdgesByKind(ast.RelationshipCalls) {
		if e.TargetName == "Greeter::greet" && e.ToID != "" {
			resolved = true
		}
	}
	if !resolved {
		t.Error("expected main's call to Greeter::greet to resolve cross-file")
	}
}

func TestPipeline_ToleratesPerFileFailures(t *testing.T) {
	p := NewPipeline()
	res, err := p.Run(context.Background(), []Input{
		{FilePath: "good.cpp", Source: []byte("int ok() { return 1; }\n")},
		{FilePath: "bad.cpp", Source: []byte{0xff, 0xfe}},
		{FilePath: "unknown.zig", Source: []byte("const x = 1;\n")},
	})
	if err != nil {
		t.Fatalf("per-file failures must not abort the run: %v", err)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected all 3 inputs accounted for, got %d", len(res.Files))
	}
	if len(res.Files["bad.cpp"].Errors) == 0 {
		t.Error("expected recorded error for invalid content")
	}
	if len(res.Files["unknown.zig"].Errors) == 0 {
		t.Error("expected recorded error for unrouteable extension")
	}
	if len(res.Graph.NodesByQualifiedName("ok")) != 1 {
		t.Error("expected the good file's function in the graph")
	}
}

func TestPipeline_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(WithWorkers(1))
	_, err := p.Run(ctx, []Input{
		{FilePath: "a.cpp", Source: []byte("int a() { return 0; }\n")},
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestPipeline_ExplicitLanguageOverridesExtension(t *testing.T) {
	p := NewPipeline()
	res, err := p.Run(context.Background(), []Input{
		{FilePath: "weird.txt", Language: "c", Source: []byte("int f(void) { return 0; }\n")},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Files["weird.txt"].Language != "c" {
		t.Errorf("expected language c, got %q", res.Files["weird.txt"].Language)
	}
	if len(res.Graph.NodesByQualifiedName("f")) != 1 {
		t.Error("expected extracted function from explicit-language input")
	}
}
