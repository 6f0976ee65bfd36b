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
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// ExternalDependency summarizes one external reference node: what it is and
// which entities in the assembled graph reach it.
type ExternalDependency struct {
	// Name is the external's qualified name ("std::vector::push_back",
	// "utils/helpers.hpp").
	Name string `json:"name"`

	// Module is the inferred owning module: the include path for module
	// externals, the head namespace for symbol externals.
	Module string `json:"module"`

	// ReferencedBy lists the qualified names of entities (and file scopes)
	// with edges to this external, sorted and deduplicated.
	ReferencedBy []string `json:"referenced_by,omitempty"`

	// EdgeCount is the total number of edges targeting this external.
	EdgeCount int `json:"edge_count"`
}

// ClassifyExternalDependencies lists every external reference in the graph
// with its referrers, sorted by name for deterministic output.
func ClassifyExternalDependencies(g *Graph) []ExternalDependency {
	externals := g.NodesByKind(ast.EntityKindExternalReference)
	out := make([]ExternalDependency, 0, len(externals))
	for _, node := range externals {
		dep := ExternalDependency{
			Name:      node.Entity.QualifiedName,
			Module:    inferModule(node.Entity.QualifiedName),
			EdgeCount: len(node.Incoming),
		}
		seen := make(map[string]bool)
		for _, e := range node.Incoming {
			from, ok := g.GetNode(e.FromID)
			if !ok {
				continue
			}
			name := from.Entity.QualifiedName
			if !seen[name] {
				seen[name] = true
				dep.ReferencedBy = append(dep.ReferencedBy, name)
			}
		}
		sort.Strings(dep.ReferencedBy)
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// inferModule guesses the owning module of an external name: include paths
// are their own module, qualified symbols belong to their head namespace.
func inferModule(name string) string {
	if strings.ContainsAny(name, "/.") {
		return name
	}
	if head, _, ok := strings.Cut(name, "::"); ok {
		return head
	}
	return name
}

// ContainmentDepths returns each node's nesting depth: 0 for nodes with no
// containing entity, parent depth + 1 otherwise. Computed breadth-first so
// shared children (malformed input) take their shallowest depth.
func ContainmentDepths(g *Graph) map[string]int {
	depths := make(map[string]int, g.NodeCount())
	var queue []*Node
	for n := range g.Nodes() {
		contained := false
		for _, e := range n.Incoming {
			if e.Kind == ast.RelationshipContains {
				contained = true
				break
			}
		}
		if !contained {
			depths[n.ID] = 0
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cur.Outgoing {
			if e.Kind != ast.RelationshipContains || e.ToID == "" {
				continue
			}
			if _, ok := depths[e.ToID]; ok {
				continue
			}
			child, ok := g.GetNode(e.ToID)
			if !ok {
				continue
			}
			depths[e.ToID] = depths[cur.ID] + 1
			queue = append(queue, child)
		}
	}
	return depths
}
