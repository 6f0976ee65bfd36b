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
	"log/slog"
	"strings"
)

// ScopeFrameKind classifies an entry on the scope stack.
type ScopeFrameKind int

const (
	// ScopeFile is the implicit outermost frame.
	ScopeFile ScopeFrameKind = iota

	// ScopeNamespace is a namespace body.
	ScopeNamespace

	// ScopeType is a class, struct, or enum body.
	ScopeType

	// ScopeFunction is a function or method body.
	ScopeFunction
)

// ScopeFrame is one entry on the scope stack.
type ScopeFrame struct {
	// Kind classifies the frame.
	Kind ScopeFrameKind

	// Name is the frame's name segment. Empty for anonymous frames
	// (anonymous namespaces, unnamed blocks), which contribute nothing to
	// qualified names but still delimit lookups.
	Name string

	// EntityID is the ID of the entity that opened the frame, if any.
	EntityID string
}

// ScopeResolver maintains the lexical scope stack during a single-file
// walk and produces qualified names.
//
// Description:
//
//	The resolver mirrors the nesting of namespaces, types, and function
//	bodies as the extractor descends the tree. Qualified names are formed
//	by joining the named frames with the language's scope separator;
//	anonymous frames are kept on the stack (they matter for lookup depth)
//	but are invisible in names.
//
// Thread Safety: not safe for concurrent use. Each extraction owns its own
// resolver.
type ScopeResolver struct {
	sep        string
	frames     []ScopeFrame
	underflows int
}

// NewScopeResolver returns a resolver with the implicit file frame pushed.
func NewScopeResolver(separator string) *ScopeResolver {
	if separator == "" {
		separator = "::"
	}
	return &ScopeResolver{
		sep:    separator,
		frames: []ScopeFrame{{Kind: ScopeFile}},
	}
}

// Push enters a named scope.
func (s *ScopeResolver) Push(kind ScopeFrameKind, name, entityID string) {
	s.frames = append(s.frames, ScopeFrame{Kind: kind, Name: name, EntityID: entityID})
}

// PushAnonymous enters an unnamed scope.
func (s *ScopeResolver) PushAnonymous(kind ScopeFrameKind) {
	s.frames = append(s.frames, ScopeFrame{Kind: kind})
}

// Pop leaves the innermost scope. The file frame is never popped: a Pop on
// an already-empty stack is absorbed and counted, which keeps the resolver
// usable on unbalanced (malformed) input.
func (s *ScopeResolver) Pop() {
	if len(s.frames) <= 1 {
		s.underflows++
		slog.Warn("unbalanced scope pop absorbed at file scope", "underflows", s.underflows)
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Underflows returns how many Pops were absorbed at the file frame.
func (s *ScopeResolver) Underflows() int { return s.underflows }

// Depth returns the number of frames including the file frame.
func (s *ScopeResolver) Depth() int { return len(s.frames) }

// Current returns the innermost frame.
func (s *ScopeResolver) Current() ScopeFrame {
	return s.frames[len(s.frames)-1]
}

// CurrentEntityID returns the entity ID of the innermost frame that has
// one, or "" at file scope.
func (s *ScopeResolver) CurrentEntityID() string {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].EntityID != "" {
			return s.frames[i].EntityID
		}
	}
	return ""
}

// EnclosingType returns the name of the innermost type frame, or "".
func (s *ScopeResolver) EnclosingType() string {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == ScopeType {
			return s.frames[i].Name
		}
	}
	return ""
}

// EnclosingTypeQualified returns the qualified name of the innermost type
// frame, or "".
func (s *ScopeResolver) EnclosingTypeQualified() string {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == ScopeType {
			return s.qualifyAt(i, "")
		}
	}
	return ""
}

// VisiblePath returns the named segments of the current scope, outermost
// first. Anonymous frames are skipped.
func (s *ScopeResolver) VisiblePath() []string {
	path := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		if f.Name != "" {
			path = append(path, f.Name)
		}
	}
	return path
}

// Qualify returns the qualified name for an identifier declared in the
// current scope. Names that are already partially qualified (out-of-class
// definitions like "MyClass::getValue") are prefixed with the current
// visible path, so a definition written inside a namespace block resolves
// to the same qualified name as its in-class declaration.
func (s *ScopeResolver) Qualify(name string) string {
	name = strings.TrimPrefix(name, s.sep)
	path := s.VisiblePath()
	if len(path) == 0 {
		return name
	}
	return strings.Join(path, s.sep) + s.sep + name
}

// CandidateNames returns the qualified names an unqualified reference could
// resolve to, innermost scope first. For a reference to "f" inside
// "a::B", the candidates are "a::B::f", "a::f", "f".
func (s *ScopeResolver) CandidateNames(name string) []string {
	path := s.VisiblePath()
	out := make([]string, 0, len(path)+1)
	for i := len(path); i >= 0; i-- {
		if i == 0 {
			out = append(out, name)
			continue
		}
		out = append(out, strings.Join(path[:i], s.sep)+s.sep+name)
	}
	return out
}

// Separator returns the scope separator.
func (s *ScopeResolver) Separator() string { return s.sep }

func (s *ScopeResolver) qualifyAt(frame int, name string) string {
	var parts []string
	for i := 0; i <= frame; i++ {
		if s.frames[i].Name != "" {
			parts = append(parts, s.frames[i].Name)
		}
	}
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, s.sep)
}
