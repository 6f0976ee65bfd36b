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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// GraphSchemaVersion is the version of the serialization schema.
// Increment when the serialization format changes in a breaking way.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON-serializable representation of a Graph.
//
// Description:
//
//	Contains all data needed to reconstruct a Graph from JSON. Nodes and
//	edges are sorted deterministically, enabling reliable diffing and
//	content hashing across runs.
//
// Thread Safety: SerializableGraph is a value type with no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// BuiltAtMilli is the Unix timestamp in milliseconds of serialization.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is the deterministic hash of the graph structure.
	GraphHash string `json:"graph_hash"`

	// Nodes contains all nodes, sorted by ID.
	Nodes []SerializableNode `json:"nodes"`

	// Edges contains all edges, resolved and symbolic, sorted.
	Edges []SerializableEdge `json:"edges"`
}

// SerializableNode is the JSON-serializable representation of a Node.
type SerializableNode struct {
	// ID is the unique node identifier (same as Entity.ID).
	ID string `json:"id"`

	// Entity is the underlying extracted entity.
	Entity *ast.Entity `json:"entity"`
}

// SerializableEdge is the JSON-serializable representation of an Edge.
type SerializableEdge struct {
	// FromID is the ID of the source node.
	FromID string `json:"from_id"`

	// ToID is the ID of the target node; empty for symbolic edges.
	ToID string `json:"to_id,omitempty"`

	// Kind is the human-readable relationship kind string.
	Kind string `json:"kind"`

	// KindCode is the integer kind for exact reconstruction.
	KindCode ast.RelationshipKind `json:"kind_code"`

	// TargetName is the symbolic target name as extracted.
	TargetName string `json:"target_name"`

	// Confidence is the integer confidence grade.
	Confidence ast.Confidence `json:"confidence"`

	// Access carries the access specifier on extends edges.
	Access string `json:"access,omitempty"`

	// BaseOrder carries the base class position on extends edges.
	BaseOrder int `json:"base_order,omitempty"`

	// Location is where the relationship is expressed.
	Location ast.Location `json:"location"`
}

// ToSerializable converts a Graph to its deterministic serializable form.
func (g *Graph) ToSerializable() *SerializableGraph {
	nodes := make([]SerializableNode, 0, g.NodeCount())
	for n := range g.Nodes() {
		nodes = append(nodes, SerializableNode{ID: n.ID, Entity: n.Entity})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]SerializableEdge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, SerializableEdge{
			FromID:     e.FromID,
			ToID:       e.ToID,
			Kind:       e.Kind.String(),
			KindCode:   e.Kind,
			TargetName: e.TargetName,
			Confidence: e.Confidence,
			Access:     e.Access,
			BaseOrder:  e.BaseOrder,
			Location:   e.Location,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.FromID != b.FromID {
			return a.FromID < b.FromID
		}
		if a.KindCode != b.KindCode {
			return a.KindCode < b.KindCode
		}
		if a.TargetName != b.TargetName {
			return a.TargetName < b.TargetName
		}
		return a.Location.StartLine < b.Location.StartLine
	})

	sg := &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		BuiltAtMilli:  time.Now().UnixMilli(),
		Nodes:         nodes,
		Edges:         edges,
	}
	sg.GraphHash = sg.hash()
	return sg
}

// hash computes the structural hash over the sorted nodes and edges.
// BuiltAtMilli is excluded so identical graphs hash identically.
func (sg *SerializableGraph) hash() string {
	h := sha256.New()
	for _, n := range sg.Nodes {
		fmt.Fprintf(h, "n:%s:%s:%d\n", n.ID, n.Entity.QualifiedName, int(n.Entity.Kind))
	}
	for _, e := range sg.Edges {
		fmt.Fprintf(h, "e:%s:%s:%d:%s:%d\n", e.FromID, e.ToID, int(e.KindCode), e.TargetName, int(e.Confidence))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalGraph serializes a graph to JSON bytes.
func MarshalGraph(g *Graph) ([]byte, error) {
	return json.Marshal(g.ToSerializable())
}

// FromSerializable reconstructs a frozen Graph.
//
// Errors:
//   - A schema version mismatch.
//   - Wrapped graph errors when the serialized data violates invariants.
func FromSerializable(sg *SerializableGraph) (*Graph, error) {
	if sg.SchemaVersion != GraphSchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (want %q)", sg.SchemaVersion, GraphSchemaVersion)
	}
	g := NewGraph()
	for _, n := range sg.Nodes {
		if _, err := g.AddNode(n.Entity); err != nil {
			return nil, fmt.Errorf("deserializing node %s: %w", n.ID, err)
		}
	}
	for _, e := range sg.Edges {
		edge := &Edge{
			FromID:     e.FromID,
			ToID:       e.ToID,
			Kind:       e.KindCode,
			TargetName: e.TargetName,
			Confidence: e.Confidence,
			Access:     e.Access,
			BaseOrder:  e.BaseOrder,
			Location:   e.Location,
		}
		var err error
		if edge.ToID == "" {
			err = g.AddSymbolicEdge(edge)
		} else {
			err = g.AddEdge(edge)
		}
		if err != nil {
			return nil, fmt.Errorf("deserializing edge %s -> %s: %w", e.FromID, e.TargetName, err)
		}
	}
	g.Freeze()
	return g, nil
}

// UnmarshalGraph deserializes JSON bytes into a frozen Graph.
func UnmarshalGraph(data []byte) (*Graph, error) {
	var sg SerializableGraph
	if err := json.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return FromSerializable(&sg)
}
