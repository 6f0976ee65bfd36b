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
	"reflect"
	"testing"
)

func TestScopeResolver_Qualify(t *testing.T) {
	s := NewScopeResolver("::")

	if got := s.Qualify("topLevel"); got != "topLevel" {
		t.Errorf("file scope: expected %q, got %q", "topLevel", got)
	}

	s.Push(ScopeNamespace, "outer", "")
	s.Push(ScopeType, "Widget", "")
	if got := s.Qualify("draw"); got != "outer::Widget::draw" {
		t.Errorf("nested scope: expected %q, got %q", "outer::Widget::draw", got)
	}

	// A partially qualified name picks up the enclosing path.
	s.Pop()
	if got := s.Qualify("Widget::draw"); got != "outer::Widget::draw" {
		t.Errorf("partially qualified: expected %q, got %q", "outer::Widget::draw", got)
	}
}

func TestScopeResolver_AnonymousFramesInvisible(t *testing.T) {
	s := NewScopeResolver("::")
	s.Push(ScopeNamespace, "visible", "")
	s.PushAnonymous(ScopeNamespace)

	if got := s.Qualify("hidden_fn"); got != "visible::hidden_fn" {
		t.Errorf("expected anonymous frame to be invisible, got %q", got)
	}
	if s.Depth() != 3 {
		t.Errorf("expected depth 3 (file + 2 frames), got %d", s.Depth())
	}
}

func TestScopeResolver_PopNeverRemovesFileFrame(t *testing.T) {
	s := NewScopeResolver("::")
	s.Push(ScopeNamespace, "ns", "")
	s.Pop()
	// Unbalanced input pops more than it pushed.
	s.Pop()
	s.Pop()

	if s.Depth() != 1 {
		t.Fatalf("expected file frame to survive, depth %d", s.Depth())
	}
	if got := s.Underflows(); got != 2 {
		t.Errorf("expected 2 absorbed pops, got %d", got)
	}
	if got := s.Qualify("f"); got != "f" {
		t.Errorf("expected file-scope name, got %q", got)
	}
}

func TestScopeResolver_CandidateNames(t *testing.T) {
	s := NewScopeResolver("::")
	s.Push(ScopeNamespace, "a", "")
	s.Push(ScopeType, "B", "")

	want := []string{"a::B::f", "a::f", "f"}
	if got := s.CandidateNames("f"); !reflect.DeepEqual(got, want) {
		t.Errorf("expected candidates %v, got %v", want, got)
	}
}

func TestScopeResolver_CurrentEntityID(t *testing.T) {
	s := NewScopeResolver("::")
	if got := s.CurrentEntityID(); got != "" {
		t.Errorf("expected empty at file scope, got %q", got)
	}
	s.Push(ScopeNamespace, "ns", "ns-id")
	s.PushAnonymous(ScopeNamespace)
	if got := s.CurrentEntityID(); got != "ns-id" {
		t.Errorf("expected entity ID through anonymous frame, got %q", got)
	}
}
