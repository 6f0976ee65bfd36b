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
	"sort"

	"github.com/AleutianAI/codegraph/services/codegraph/config"
)

// buildSlices partitions a file's lines into contiguous slices.
//
// Description:
//
//	Every entity definition opens a new slice at its first line, except
//	when the lines between the previous slice start and the definition are
//	all blank or comment-only; those lines attach to the definition's
//	slice instead of forming a degenerate one. The slices always cover
//	[0, lastLine] with no gaps or overlaps, including for files with no
//	entities at all.
//
// Complexity: O(source bytes + entities log entities).
func buildSlices(t *Tree, prof *config.LanguageProfile, filePath string, entities []*Entity) []Slice {
	lastLine := t.LastLine()
	substantive := substantiveLines(t, prof, lastLine)

	// Boundary candidates: entity start lines, excluding external
	// references (they mark uses, not definitions) and enum values (they
	// live inside their enum's slice).
	startSet := make(map[int]bool)
	for _, e := range entities {
		if e.Kind == EntityKindExternalReference || e.Kind == EntityKindEnumValue {
			continue
		}
		if e.StartLine > 0 && e.StartLine <= lastLine {
			startSet[e.StartLine] = true
		}
	}
	starts := make([]int, 0, len(startSet))
	for s := range startSet {
		starts = append(starts, s)
	}
	sort.Ints(starts)

	boundaries := []int{0}
	for _, s := range starts {
		prev := boundaries[len(boundaries)-1]
		if s <= prev {
			continue
		}
		if !anyTrue(substantive, prev, s-1) {
			// Only blanks and comments since the previous boundary; let
			// them lead into this definition's slice.
			continue
		}
		boundaries = append(boundaries, s)
	}

	slices := make([]Slice, 0, len(boundaries))
	for i, b := range boundaries {
		end := lastLine
		if i+1 < len(boundaries) {
			end = boundaries[i+1] - 1
		}
		slices = append(slices, Slice{FilePath: filePath, StartLine: b, EndLine: end})
	}

	// Attach entities and external references by start line.
	idx := func(line int) int {
		n := sort.Search(len(slices), func(i int) bool { return slices[i].StartLine > line })
		if n == 0 {
			return 0
		}
		return n - 1
	}
	for _, e := range entities {
		if e.StartLine < 0 || e.StartLine > lastLine {
			continue
		}
		i := idx(e.StartLine)
		if e.Kind == EntityKindExternalReference {
			slices[i].ExternalReferenceIDs = append(slices[i].ExternalReferenceIDs, e.ID)
		} else {
			slices[i].EntityIDs = append(slices[i].EntityIDs, e.ID)
		}
	}
	return slices
}

// substantiveLines reports, per line, whether the line holds any
// non-whitespace character outside comment spans.
func substantiveLines(t *Tree, prof *config.LanguageProfile, lastLine int) []bool {
	src := t.Source()
	inComment := make([]bool, len(src))
	if root := t.Root(); root != InvalidNode {
		t.Walk(root, func(id NodeID) bool {
			if !prof.IsComment(t.Kind(id)) {
				return true
			}
			markCommentBytes(t, id, inComment)
			return false
		})
	}

	out := make([]bool, lastLine+1)
	line := 0
	for i, b := range src {
		if b == '\n' {
			line++
			continue
		}
		if line > lastLine {
			break
		}
		if b == ' ' || b == '\t' || b == '\r' {
			continue
		}
		if !inComment[i] {
			out[line] = true
		}
	}
	return out
}

func markCommentBytes(t *Tree, id NodeID, inComment []bool) {
	span := struct{ start, end uint32 }{t.nodes[id].startByte, t.nodes[id].endByte}
	for i := span.start; i < span.end && int(i) < len(inComment); i++ {
		inComment[i] = true
	}
}

func anyTrue(bits []bool, from, to int) bool {
	if from < 0 {
		from = 0
	}
	if to >= len(bits) {
		to = len(bits) - 1
	}
	for i := from; i <= to; i++ {
		if bits[i] {
			return true
		}
	}
	return false
}
