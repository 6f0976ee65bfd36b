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
	"fmt"
	"iter"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// GraphState tracks the graph's lifecycle.
type GraphState int

const (
	// StateBuilding allows mutation.
	StateBuilding GraphState = iota

	// StateFrozen allows only reads.
	StateFrozen
)

// DefaultMaxNodes caps node count to bound memory on runaway inputs.
const DefaultMaxNodes = 2_000_000

// DefaultMaxEdges caps edge count.
const DefaultMaxEdges = 10_000_000

// Node is one entity in the assembled graph.
type Node struct {
	// ID is the unique node identifier (same as Entity.ID).
	ID string `json:"id"`

	// Entity is the underlying extracted entity.
	Entity *ast.Entity `json:"entity"`

	// Outgoing holds edges whose source is this node.
	Outgoing []*Edge `json:"-"`

	// Incoming holds edges whose target is this node.
	Incoming []*Edge `json:"-"`
}

// Edge is one relationship in the assembled graph. ToID may be empty for
// symbolic edges whose target never resolved to a node.
type Edge struct {
	// FromID is the source node ID.
	FromID string `json:"from_id"`

	// ToID is the target node ID, or "" for a symbolic edge.
	ToID string `json:"to_id,omitempty"`

	// Kind is the relationship kind.
	Kind ast.RelationshipKind `json:"kind"`

	// TargetName is the symbolic target name as extracted.
	TargetName string `json:"target_name"`

	// Confidence grades the resolution of the target.
	Confidence ast.Confidence `json:"confidence"`

	// Access carries the access specifier on extends edges.
	Access string `json:"access,omitempty"`

	// BaseOrder carries the base class position on extends edges.
	BaseOrder int `json:"base_order,omitempty"`

	// Location is where the relationship is expressed.
	Location ast.Location `json:"location"`
}

// GraphOption configures a new Graph.
type GraphOption func(*Graph)

// WithMaxNodes overrides the node cap. Non-positive values are ignored.
func WithMaxNodes(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxNodes = n
		}
	}
}

// WithMaxEdges overrides the edge cap. Non-positive values are ignored.
func WithMaxEdges(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxEdges = n
		}
	}
}

// Graph is the assembled code graph: entities as nodes, relationships as
// edges, with secondary indexes for name, kind, and file lookups.
//
// Thread Safety: not internally synchronized. The Assembler serializes all
// writes; after Freeze the graph is immutable and safe for concurrent
// reads.
type Graph struct {
	state    GraphState
	maxNodes int
	maxEdges int

	nodes map[string]*Node
	edges []*Edge

	byQualifiedName map[string][]*Node
	byKind          map[ast.EntityKind][]*Node
	byFile          map[string][]*Node
	edgesByKind     [ast.NumRelationshipKinds][]*Edge
}

// NewGraph creates an empty graph in the building state.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		maxNodes:        DefaultMaxNodes,
		maxEdges:        DefaultMaxEdges,
		nodes:           make(map[string]*Node),
		byQualifiedName: make(map[string][]*Node),
		byKind:          make(map[ast.EntityKind][]*Node),
		byFile:          make(map[string][]*Node),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the graph's lifecycle state.
func (g *Graph) State() GraphState { return g.state }

// Freeze transitions the graph to read-only. Idempotent.
func (g *Graph) Freeze() { g.state = StateFrozen }

// AddNode inserts a node for the entity.
//
// Errors:
//   - ErrGraphFrozen, ErrInvalidNode, ErrMaxNodesExceeded.
//   - ErrDuplicateNode: a node with this ID exists and its entity has a
//     different qualified name (same-ID re-merges are the caller's job to
//     reconcile before calling).
func (g *Graph) AddNode(entity *ast.Entity) (*Node, error) {
	if g.state == StateFrozen {
		return nil, ErrGraphFrozen
	}
	if entity == nil || entity.ID == "" {
		return nil, fmt.Errorf("%w: nil entity or empty ID", ErrInvalidNode)
	}
	if existing, ok := g.nodes[entity.ID]; ok {
		if existing.Entity.QualifiedName != entity.QualifiedName {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, entity.ID)
		}
		return existing, nil
	}
	if len(g.nodes) >= g.maxNodes {
		return nil, fmt.Errorf("%w: %d", ErrMaxNodesExceeded, g.maxNodes)
	}
	node := &Node{ID: entity.ID, Entity: entity}
	g.nodes[entity.ID] = node
	g.byQualifiedName[entity.QualifiedName] = append(g.byQualifiedName[entity.QualifiedName], node)
	g.byKind[entity.Kind] = append(g.byKind[entity.Kind], node)
	if entity.FilePath != "" {
		g.byFile[entity.FilePath] = append(g.byFile[entity.FilePath], node)
	}
	return node, nil
}

// AddEdge inserts a resolved edge between two existing nodes.
//
// Errors:
//   - ErrGraphFrozen, ErrInvalidEdgeKind, ErrNodeNotFound,
//     ErrMaxEdgesExceeded.
func (g *Graph) AddEdge(edge *Edge) error {
	if g.state == StateFrozen {
		return ErrGraphFrozen
	}
	if edge.Kind <= ast.RelationshipUnknown || edge.Kind >= ast.NumRelationshipKinds {
		return fmt.Errorf("%w: %d", ErrInvalidEdgeKind, int(edge.Kind))
	}
	from, ok := g.nodes[edge.FromID]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, edge.FromID)
	}
	to, ok := g.nodes[edge.ToID]
	if !ok {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, edge.ToID)
	}
	if len(g.edges) >= g.maxEdges {
		return fmt.Errorf("%w: %d", ErrMaxEdgesExceeded, g.maxEdges)
	}
	g.edges = append(g.edges, edge)
	g.edgesByKind[edge.Kind] = append(g.edgesByKind[edge.Kind], edge)
	from.Outgoing = append(from.Outgoing, edge)
	to.Incoming = append(to.Incoming, edge)
	return nil
}

// AddSymbolicEdge inserts an edge whose target is known only by name. The
// source must exist; the edge is indexed but linked to no target node.
func (g *Graph) AddSymbolicEdge(edge *Edge) error {
	if g.state == StateFrozen {
		return ErrGraphFrozen
	}
	if edge.Kind <= ast.RelationshipUnknown || edge.Kind >= ast.NumRelationshipKinds {
		return fmt.Errorf("%w: %d", ErrInvalidEdgeKind, int(edge.Kind))
	}
	from, ok := g.nodes[edge.FromID]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, edge.FromID)
	}
	if len(g.edges) >= g.maxEdges {
		return fmt.Errorf("%w: %d", ErrMaxEdgesExceeded, g.maxEdges)
	}
	edge.ToID = ""
	g.edges = append(g.edges, edge)
	g.edgesByKind[edge.Kind] = append(g.edgesByKind[edge.Kind], edge)
	from.Outgoing = append(from.Outgoing, edge)
	return nil
}

// GetNode returns the node with the given ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, symbolic edges included.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes iterates all nodes in unspecified order.
func (g *Graph) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range g.nodes {
			if !yield(n) {
				return
			}
		}
	}
}

// Edges returns a defensive copy of the edge list.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgesByKind returns a defensive copy of the edges of one kind.
func (g *Graph) EdgesByKind(kind ast.RelationshipKind) []*Edge {
	if kind <= ast.RelationshipUnknown || kind >= ast.NumRelationshipKinds {
		return nil
	}
	src := g.edgesByKind[kind]
	out := make([]*Edge, len(src))
	copy(out, src)
	return out
}

// NodesByQualifiedName returns a defensive copy of the nodes sharing a
// qualified name (declarations and definitions, overloads).
func (g *Graph) NodesByQualifiedName(name string) []*Node {
	src := g.byQualifiedName[name]
	out := make([]*Node, len(src))
	copy(out, src)
	return out
}

// NodesByKind returns a defensive copy of the nodes of one entity kind.
func (g *Graph) NodesByKind(kind ast.EntityKind) []*Node {
	src := g.byKind[kind]
	out := make([]*Node, len(src))
	copy(out, src)
	return out
}

// NodesByFile returns a defensive copy of the nodes extracted from a file.
func (g *Graph) NodesByFile(filePath string) []*Node {
	src := g.byFile[filePath]
	out := make([]*Node, len(src))
	copy(out, src)
	return out
}

// Stats summarizes the graph's contents.
type Stats struct {
	Nodes         int                          `json:"nodes"`
	Edges         int                          `json:"edges"`
	SymbolicEdges int                          `json:"symbolic_edges"`
	Files         int                          `json:"files"`
	NodesByKind   map[string]int               `json:"nodes_by_kind"`
	EdgesByKind   map[string]int               `json:"edges_by_kind"`
	ByConfidence  map[string]int               `json:"edges_by_confidence"`
}

// ComputeStats walks the graph and returns its summary.
func (g *Graph) ComputeStats() Stats {
	s := Stats{
		Nodes:        len(g.nodes),
		Edges:        len(g.edges),
		Files:        len(g.byFile),
		NodesByKind:  make(map[string]int),
		EdgesByKind:  make(map[string]int),
		ByConfidence: make(map[string]int),
	}
	for kind, nodes := range g.byKind {
		if len(nodes) > 0 {
			s.NodesByKind[kind.String()] = len(nodes)
		}
	}
	for _, e := range g.edges {
		s.EdgesByKind[e.Kind.String()]++
		s.ByConfidence[e.Confidence.String()]++
		if e.ToID == "" {
			s.SymbolicEdges++
		}
	}
	return s
}
