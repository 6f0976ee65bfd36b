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
	"testing"
)

func TestSlices_NoGapsNoOverlaps(t *testing.T) {
	const src = `#include <cstdio>

// Utility helpers.

int twice(int v) { return v * 2; }

int thrice(int v) { return v * 3; }

class Holder {
public:
    int held;
};
`
	res := extract(t, src, "props.cpp", "cpp")

	if len(res.Slices) == 0 {
		t.Fatal("expected at least one slice")
	}
	if res.Slices[0].StartLine != 0 {
		t.Errorf("first slice must start at 0, got %d", res.Slices[0].StartLine)
	}
	for i, s := range res.Slices {
		if s.EndLine < s.StartLine {
			t.Errorf("slice %d inverted: [%d,%d]", i, s.StartLine, s.EndLine)
		}
		if i > 0 && s.StartLine != res.Slices[i-1].EndLine+1 {
			t.Errorf("gap or overlap between slice %d and %d: %d vs %d",
				i-1, i, res.Slices[i-1].EndLine, s.StartLine)
		}
		if s.FilePath != "props.cpp" {
			t.Errorf("slice %d carries wrong path %q", i, s.FilePath)
		}
	}
}

func TestSlices_LeadingCommentAttachesToFirstEntity(t *testing.T) {
	const src = `// doubles the input
// used everywhere
int twice(int v) { return v * 2; }
`
	res := extract(t, src, "doc.cpp", "cpp")

	// Comment-only lines before the first definition carry no substantive
	// content, so no boundary separates them from the function.
	if len(res.Slices) != 1 {
		t.Fatalf("expected 1 slice, got %d: %+v", len(res.Slices), res.Slices)
	}
	fn := requireEntity(t, res, "twice", EntityKindFunction)
	if len(res.Slices[0].EntityIDs) != 1 || res.Slices[0].EntityIDs[0] != fn.ID {
		t.Errorf("expected slice to carry the function, got %v", res.Slices[0].EntityIDs)
	}
}

func TestSlices_SubstantiveGapSplits(t *testing.T) {
	const src = `static int counter = 0;

int bump() { return ++counter; }
`
	res := extract(t, src, "gap.cpp", "cpp")

	// The file-scope variable is substantive content before bump's start,
	// so bump opens its own slice.
	if len(res.Slices) != 2 {
		t.Fatalf("expected 2 slices, got %d: %+v", len(res.Slices), res.Slices)
	}
	bump := requireEntity(t, res, "bump", EntityKindFunction)
	if res.Slices[1].StartLine != bump.StartLine {
		t.Errorf("expected second slice to open at %d, got %d", bump.StartLine, res.Slices[1].StartLine)
	}
}

func TestSlices_CommentOnlyFile(t *testing.T) {
	const src = `// just commentary
// nothing to extract
`
	res := extract(t, src, "comments.cpp", "cpp")

	if len(res.Entities) != 0 {
		t.Errorf("expected no entities, got %d", len(res.Entities))
	}
	if len(res.Slices) != 1 {
		t.Fatalf("expected single slice, got %d", len(res.Slices))
	}
	if res.Slices[0].StartLine != 0 || res.Slices[0].EndLine != 1 {
		t.Errorf("expected slice [0,1], got [%d,%d]", res.Slices[0].StartLine, res.Slices[0].EndLine)
	}
}
