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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

var assemblerTracer = otel.Tracer("aleutian.codegraph.graph")

// FileStatus records the merge outcome for one file.
type FileStatus struct {
	// FilePath is the merged file's path.
	FilePath string `json:"file_path"`

	// Language is the file's language identifier.
	Language string `json:"language"`

	// Hash is the content hash carried on the file result.
	Hash string `json:"hash,omitempty"`

	// Entities, Relationships, Slices count what the file contributed.
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Slices        int `json:"slices"`

	// Errors carries the file's extraction errors.
	Errors []string `json:"errors,omitempty"`

	// MergedAtMilli is the Unix timestamp in milliseconds of the merge.
	MergedAtMilli int64 `json:"merged_at_milli"`
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithGraphOptions passes options through to the underlying graph.
func WithGraphOptions(opts ...GraphOption) AssemblerOption {
	return func(a *Assembler) {
		a.graphOpts = append(a.graphOpts, opts...)
	}
}

// pairKey identifies a declaration/definition family: same qualified name,
// same kind, same signature (so overloads pair independently).
type pairKey struct {
	qname string
	kind  ast.EntityKind
	sig   string
}

type pairState struct {
	definition   *Node
	declarations []*Node
}

// Assembler merges per-file extraction results into one graph.
//
// Description:
//
//	Merging is order independent and idempotent: files may arrive in any
//	order, and re-merging an unchanged file is a no-op. Relationships whose
//	targets live in files not yet merged stay pending until Finalize, which
//	resolves them against the complete node table; targets that never
//	appear stay symbolic at their extracted confidence.
//
// Thread Safety: Merge and Finalize are safe for concurrent use; all state
// is guarded by one mutex.
type Assembler struct {
	mu        sync.Mutex
	g         *Graph
	graphOpts []GraphOption
	files     map[string]*FileStatus
	slices    map[string][]ast.Slice
	pairs     map[pairKey]*pairState
	pending   []*Edge
	finalized bool
}

// NewAssembler creates an empty assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		files:  make(map[string]*FileStatus),
		slices: make(map[string][]ast.Slice),
		pairs:  make(map[pairKey]*pairState),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.g = NewGraph(a.graphOpts...)
	return a
}

// Merge folds one file's extraction result into the graph.
//
// Inputs:
//   - ctx: used for tracing only; a merge is not interruptible mid-file.
//   - fr: the file result. Must be non-nil with a file path.
//
// Errors:
//   - ErrGraphFrozen: Finalize already ran.
//   - ErrDuplicateNode and wrapped graph errors on capacity or identity
//     violations.
//   - An error when re-merging a path whose content hash changed; replacing
//     files requires a fresh assembly.
func (a *Assembler) Merge(ctx context.Context, fr *ast.FileResult) error {
	_, span := assemblerTracer.Start(ctx, "graph.Assembler.Merge")
	defer span.End()
	if fr == nil || fr.FilePath == "" {
		return fmt.Errorf("%w: nil or pathless file result", ErrInvalidNode)
	}
	span.SetAttributes(
		attribute.String("codegraph.file_path", fr.FilePath),
		attribute.Int("codegraph.entities", len(fr.Entities)),
	)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return ErrGraphFrozen
	}
	if prev, ok := a.files[fr.FilePath]; ok {
		if prev.Hash == fr.Hash {
			slog.Debug("skipping re-merge of unchanged file", "file_path", fr.FilePath)
			return nil
		}
		return fmt.Errorf("%w: %s merged with different content", ErrDuplicateNode, fr.FilePath)
	}

	fileNode, err := a.fileNode(fr.FilePath, fr.Language)
	if err != nil {
		return err
	}

	for _, ent := range fr.Entities {
		node, err := a.g.AddNode(ent)
		if err != nil {
			return fmt.Errorf("merging %s: %w", fr.FilePath, err)
		}
		a.recordPair(node)
	}

	for i := range fr.Relationships {
		rel := &fr.Relationships[i]
		from := rel.SourceID
		if from == "" {
			from = fileNode.ID
		}
		edge := &Edge{
			FromID:     from,
			ToID:       rel.TargetID,
			Kind:       rel.Kind,
			TargetName: rel.TargetName,
			Confidence: rel.Confidence,
			Access:     rel.Access,
			BaseOrder:  rel.BaseOrder,
			Location:   rel.Location,
		}
		if edge.ToID != "" {
			if _, ok := a.g.GetNode(edge.ToID); ok {
				if err := a.g.AddEdge(edge); err != nil {
					return fmt.Errorf("merging %s: %w", fr.FilePath, err)
				}
				continue
			}
			// Target ID from another file's tables; re-resolve by name at
			// finalize.
			edge.ToID = ""
		}
		a.pending = append(a.pending, edge)
	}

	a.slices[fr.FilePath] = fr.Slices
	a.files[fr.FilePath] = &FileStatus{
		FilePath:      fr.FilePath,
		Language:      fr.Language,
		Hash:          fr.Hash,
		Entities:      len(fr.Entities),
		Relationships: len(fr.Relationships),
		Slices:        len(fr.Slices),
		Errors:        fr.Errors,
		MergedAtMilli: time.Now().UnixMilli(),
	}
	return nil
}

// fileNode returns (creating if needed) the placeholder node for a file
// scope.
func (a *Assembler) fileNode(filePath, language string) (*Node, error) {
	id := "file:" + filePath
	if node, ok := a.g.GetNode(id); ok {
		return node, nil
	}
	return a.g.AddNode(&ast.Entity{
		ID:            id,
		Kind:          ast.EntityKindFile,
		QualifiedName: filePath,
		DisplayName:   filePath,
		Language:      language,
		FilePath:      filePath,
		Primary:       true,
	})
}

// recordPair tracks declaration/definition families and links them with
// declares edges as both sides arrive, in either order.
func (a *Assembler) recordPair(node *Node) {
	ent := node.Entity
	switch ent.Kind {
	case ast.EntityKindFunction, ast.EntityKindMethod, ast.EntityKindConstructor,
		ast.EntityKindDestructor, ast.EntityKindClass, ast.EntityKindStruct:
	default:
		return
	}
	key := pairKey{qname: ent.QualifiedName, kind: ent.Kind, sig: ent.Signature}
	state := a.pairs[key]
	if state == nil {
		state = &pairState{}
		a.pairs[key] = state
	}
	if ent.DeclarationOnly {
		state.declarations = append(state.declarations, node)
		if state.definition != nil {
			a.linkDeclares(node, state.definition)
		}
		return
	}
	if state.definition == nil {
		state.definition = node
		for _, decl := range state.declarations {
			a.linkDeclares(decl, state.definition)
			decl.Entity.Primary = false
		}
	}
}

func (a *Assembler) linkDeclares(decl, def *Node) {
	edge := &Edge{
		FromID:     decl.ID,
		ToID:       def.ID,
		Kind:       ast.RelationshipDeclares,
		TargetName: def.Entity.QualifiedName,
		Confidence: ast.ConfidenceExact,
		Location:   decl.Entity.Location(),
	}
	if err := a.g.AddEdge(edge); err != nil {
		slog.Warn("failed to link declaration to definition",
			"declaration", decl.ID, "definition", def.ID, "error", err)
	}
	decl.Entity.Primary = false
}

// RecordFailure registers a file that failed extraction outright, so the
// assembly report covers every input even when no result merged.
func (a *Assembler) RecordFailure(filePath, language string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.files[filePath]; ok {
		return
	}
	a.files[filePath] = &FileStatus{
		FilePath:      filePath,
		Language:      language,
		Errors:        []string{err.Error()},
		MergedAtMilli: time.Now().UnixMilli(),
	}
}

// Files returns the merge status of every file, keyed by path.
func (a *Assembler) Files() map[string]*FileStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]*FileStatus, len(a.files))
	for k, v := range a.files {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Slices returns the accumulated slices for a merged file.
func (a *Assembler) Slices(filePath string) []ast.Slice {
	a.mu.Lock()
	defer a.mu.Unlock()
	src := a.slices[filePath]
	out := make([]ast.Slice, len(src))
	copy(out, src)
	return out
}

// Finalize resolves pending relationships, promotes lone declarations to
// primary, freezes the graph, and returns it. The assembler rejects
// further merges afterwards.
//
// Errors:
//   - ErrAssemblyCancelled when the context is done.
func (a *Assembler) Finalize(ctx context.Context) (*Graph, error) {
	_, span := assemblerTracer.Start(ctx, "graph.Assembler.Finalize")
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return a.g, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssemblyCancelled, err)
	}

	resolved := 0
	for _, edge := range a.pending {
		if target := a.resolveTarget(edge.TargetName); target != nil {
			edge.ToID = target.ID
			if err := a.g.AddEdge(edge); err == nil {
				resolved++
				continue
			}
			edge.ToID = ""
		}
		if err := a.g.AddSymbolicEdge(edge); err != nil {
			slog.Warn("dropping unresolvable edge",
				"from", edge.FromID, "target", edge.TargetName, "error", err)
		}
	}

	// A declared symbol that never got a definition is still the symbol's
	// best-known home.
	for _, state := range a.pairs {
		if state.definition == nil && len(state.declarations) > 0 {
			state.declarations[0].Entity.Primary = true
		}
	}

	a.pending = nil
	a.finalized = true
	a.g.Freeze()

	span.SetAttributes(
		attribute.Int("codegraph.nodes", a.g.NodeCount()),
		attribute.Int("codegraph.edges", a.g.EdgeCount()),
		attribute.Int("codegraph.resolved_pending", resolved),
	)
	slog.Info("assembled code graph",
		"files", len(a.files),
		"nodes", a.g.NodeCount(),
		"edges", a.g.EdgeCount(),
		"resolved_pending", resolved)
	return a.g, nil
}

// resolveTarget finds the node a symbolic target name refers to, preferring
// definitions over declarations. Cross-file resolution never upgrades the
// edge's extracted confidence; it only fills in the target ID.
func (a *Assembler) resolveTarget(name string) *Node {
	if name == "" {
		return nil
	}
	var decl *Node
	for _, node := range a.g.byQualifiedName[name] {
		if node.Entity.Kind == ast.EntityKindFile {
			continue
		}
		if !node.Entity.DeclarationOnly {
			return node
		}
		if decl == nil {
			decl = node
		}
	}
	return decl
}
