// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph assembles per-file extraction results into one code graph.
//
// Ownership Model:
//   - The Assembler owns the graph while merging; callers interact with it
//     only through Merge and Finalize.
//   - Finalize freezes the graph and hands ownership to the caller. A
//     frozen graph rejects all mutation.
//   - Query methods return defensive copies of index slices; callers may
//     retain them freely.
//
// Thread Safety:
//   - Assembler.Merge is safe for concurrent use; merges serialize on an
//     internal mutex so relationship resolution always sees a consistent
//     node table.
//   - A frozen Graph is safe for unlimited concurrent reads.
//
// Lifecycle:
//
//	assembler := graph.NewAssembler()
//	assembler.Merge(ctx, fileResult)   // once per file, any order
//	g, err := assembler.Finalize(ctx)
package graph

import "errors"

// Sentinel errors for graph construction. Wrap with fmt.Errorf("%w: ...")
// to add context; check with errors.Is.
var (
	// ErrGraphFrozen is returned when mutating a finalized graph.
	ErrGraphFrozen = errors.New("graph is frozen")

	// ErrNodeNotFound is returned when an edge references a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node whose ID exists with
	// different identity fields.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInvalidNode is returned when adding a node with no entity or ID.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdgeKind is returned for out-of-range relationship kinds.
	ErrInvalidEdgeKind = errors.New("invalid edge kind")

	// ErrMaxNodesExceeded is returned when the node cap is hit.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the edge cap is hit.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrAssemblyCancelled is returned when the context is cancelled during
	// assembly.
	ErrAssemblyCancelled = errors.New("assembly cancelled")
)
