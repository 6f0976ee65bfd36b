// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts code entities, relationships, and line slices from
// parsed syntax trees.
//
// The package operates strictly per-file: an Extractor consumes one source
// file (or an already-parsed Tree) and produces a FileResult containing the
// entities defined in that file, the relationships expressed in it, and a
// gap-free partition of its lines into slices. Cross-file concerns (linking
// declarations to definitions in other files, deduplicating external
// references across files) belong to the graph package.
//
// All line and column numbers in this package are zero-based. Line 0 is the
// first line of the file.
package ast

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityKind classifies a code entity.
type EntityKind int

const (
	// EntityKindUnknown is the zero value and indicates an unclassified entity.
	EntityKindUnknown EntityKind = iota

	// EntityKindFunction is a free function definition or declaration.
	EntityKindFunction

	// EntityKindMethod is a function owned by a class or struct.
	EntityKindMethod

	// EntityKindConstructor is a class constructor.
	EntityKindConstructor

	// EntityKindDestructor is a class destructor.
	EntityKindDestructor

	// EntityKindClass is a class definition or forward declaration.
	EntityKindClass

	// EntityKindStruct is a struct definition or forward declaration.
	EntityKindStruct

	// EntityKindNamespace is a named namespace definition.
	EntityKindNamespace

	// EntityKindEnum is an enum definition.
	EntityKindEnum

	// EntityKindEnumValue is a single enumerator inside an enum.
	EntityKindEnumValue

	// EntityKindTypeAlias is a typedef or using-alias.
	EntityKindTypeAlias

	// EntityKindVariable is a file-scope or namespace-scope variable.
	EntityKindVariable

	// EntityKindMacro is a preprocessor object-like or function-like macro.
	EntityKindMacro

	// EntityKindFile is the placeholder the assembler materializes for a
	// file scope, so file-level imports and containment have a source node.
	EntityKindFile

	// EntityKindExternalReference is a symbol or module used but not defined
	// in any processed file.
	EntityKindExternalReference

	// NumEntityKinds is the number of valid entity kinds. Used for sizing
	// arrays indexed by EntityKind.
	NumEntityKinds
)

var entityKindNames = map[EntityKind]string{
	EntityKindUnknown:           "unknown",
	EntityKindFunction:          "function",
	EntityKindMethod:            "method",
	EntityKindConstructor:       "constructor",
	EntityKindDestructor:        "destructor",
	EntityKindClass:             "class",
	EntityKindStruct:            "struct",
	EntityKindNamespace:         "namespace",
	EntityKindEnum:              "enum",
	EntityKindEnumValue:         "enum_value",
	EntityKindTypeAlias:         "type_alias",
	EntityKindVariable:          "variable",
	EntityKindMacro:             "macro",
	EntityKindFile:              "file",
	EntityKindExternalReference: "external_reference",
}

// String returns the human-readable name of the entity kind.
func (k EntityKind) String() string {
	if name, ok := entityKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("entity_kind(%d)", int(k))
}

// IsCallable reports whether entities of this kind can be the target of a
// calls relationship.
func (k EntityKind) IsCallable() bool {
	switch k {
	case EntityKindFunction, EntityKindMethod, EntityKindConstructor,
		EntityKindDestructor, EntityKindMacro, EntityKindExternalReference:
		return true
	default:
		return false
	}
}

// RelationshipKind classifies a relationship between two entities.
type RelationshipKind int

const (
	// RelationshipUnknown is the zero value and indicates an unclassified
	// relationship.
	RelationshipUnknown RelationshipKind = iota

	// RelationshipCalls links a caller to a callee.
	RelationshipCalls

	// RelationshipExtends links a derived class to a base class.
	RelationshipExtends

	// RelationshipImports links a file scope to an included module or an
	// activated namespace.
	RelationshipImports

	// RelationshipContains links a lexical container to a member entity.
	RelationshipContains

	// RelationshipDeclares links a declaration-only entity to the entity
	// that defines it.
	RelationshipDeclares

	// NumRelationshipKinds is the number of valid relationship kinds.
	NumRelationshipKinds
)

var relationshipKindNames = map[RelationshipKind]string{
	RelationshipUnknown:  "unknown",
	RelationshipCalls:    "calls",
	RelationshipExtends:  "extends",
	RelationshipImports:  "imports",
	RelationshipContains: "contains",
	RelationshipDeclares: "declares",
}

// String returns the human-readable name of the relationship kind.
func (k RelationshipKind) String() string {
	if name, ok := relationshipKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("relationship_kind(%d)", int(k))
}

// Confidence grades how certain the extractor is that a relationship's
// target is the entity it names.
type Confidence int

const (
	// ConfidenceUnknown means the target could not be resolved beyond a
	// symbolic name.
	ConfidenceUnknown Confidence = iota

	// ConfidenceProbable means the target was resolved heuristically
	// (by simple-name match, import mapping, or inferred receiver type).
	ConfidenceProbable

	// ConfidenceExact means the target was resolved unambiguously within
	// the file's scope chain.
	ConfidenceExact
)

var confidenceNames = map[Confidence]string{
	ConfidenceUnknown:  "unknown",
	ConfidenceProbable: "probable",
	ConfidenceExact:    "exact",
}

// String returns the human-readable name of the confidence grade.
func (c Confidence) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// Location identifies a span of source text. Lines and columns are
// zero-based; EndLine is inclusive.
type Location struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartCol  int    `json:"start_col"`
	EndCol    int    `json:"end_col"`
}

// Entity is a named code construct extracted from a single file.
//
// Description:
//
//	Entities carry a stable, deterministic ID derived from their qualified
//	name, kind, file path, and start line. Re-extracting an unchanged file
//	yields byte-identical entities, which is what allows the graph assembler
//	to merge results idempotently.
//
// Thread Safety: Entity is treated as immutable after extraction, except
// that the graph assembler may flip Primary when pairing a declaration with
// a definition. Callers must not mutate entities concurrently with a merge.
type Entity struct {
	// ID is the deterministic unique identifier. See GenerateID.
	ID string `json:"id"`

	// Kind classifies the entity.
	Kind EntityKind `json:"kind"`

	// QualifiedName is the scope-qualified name, segments joined with the
	// language's scope separator (e.g. "shapes::Circle::area").
	QualifiedName string `json:"qualified_name"`

	// DisplayName is the unqualified name as written in source.
	DisplayName string `json:"display_name"`

	// Language is the language identifier the entity was extracted under.
	Language string `json:"language"`

	// FilePath is the path of the file the entity appears in.
	FilePath string `json:"file_path"`

	// StartLine is the zero-based first line of the entity's source text.
	StartLine int `json:"start_line"`

	// EndLine is the zero-based last line of the entity's source text,
	// inclusive.
	EndLine int `json:"end_line"`

	// DeclarationOnly marks prototypes, forward declarations, pure-virtual
	// declarations, and deleted functions.
	DeclarationOnly bool `json:"declaration_only,omitempty"`

	// Primary marks the entity that defines the symbol when both a
	// declaration and a definition exist. Definitions start as primary;
	// the assembler demotes a declaration once its definition arrives.
	Primary bool `json:"primary,omitempty"`

	// Signature is the parameter list text for callable entities, or the
	// aliased type text for type aliases. Empty otherwise.
	Signature string `json:"signature,omitempty"`
}

// Location returns the entity's source span.
func (e *Entity) Location() Location {
	return Location{
		FilePath:  e.FilePath,
		StartLine: e.StartLine,
		EndLine:   e.EndLine,
	}
}

// Validate checks structural invariants on the entity.
//
// Errors:
//   - ErrInvalidEntity: if the ID or qualified name is empty, the kind is
//     out of range, or the line span is inverted.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty ID for %q", ErrInvalidEntity, e.QualifiedName)
	}
	if e.QualifiedName == "" {
		return fmt.Errorf("%w: empty qualified name (id=%s)", ErrInvalidEntity, e.ID)
	}
	if e.Kind <= EntityKindUnknown || e.Kind >= NumEntityKinds {
		return fmt.Errorf("%w: kind %d out of range for %q", ErrInvalidEntity, int(e.Kind), e.QualifiedName)
	}
	if e.StartLine < 0 || e.EndLine < e.StartLine {
		return fmt.Errorf("%w: malformed span [%d,%d] for %q", ErrInvalidEntity, e.StartLine, e.EndLine, e.QualifiedName)
	}
	return nil
}

// Relationship is a typed, directed link between a source entity and a
// target. The target may be resolved (TargetID set) or symbolic only
// (TargetID empty, TargetName set).
type Relationship struct {
	// Kind classifies the relationship.
	Kind RelationshipKind `json:"kind"`

	// SourceID is the ID of the source entity. Empty means the relationship
	// originates at file scope (e.g. a file-level include).
	SourceID string `json:"source_id,omitempty"`

	// TargetID is the ID of the resolved target entity. Empty when the
	// target is known only by name.
	TargetID string `json:"target_id,omitempty"`

	// TargetName is the symbolic name of the target as resolved by the
	// extractor. Always set.
	TargetName string `json:"target_name"`

	// Confidence grades the resolution of the target.
	Confidence Confidence `json:"confidence"`

	// Access is the access specifier for extends relationships
	// ("public", "protected", "private"), empty otherwise.
	Access string `json:"access,omitempty"`

	// BaseOrder is the zero-based position of the base class in the
	// declaration order for extends relationships.
	BaseOrder int `json:"base_order,omitempty"`

	// Location is where the relationship is expressed in source.
	Location Location `json:"location"`
}

// Slice is a contiguous, non-overlapping line range of a file. The slices
// for a file partition [0, lastLine] with no gaps.
type Slice struct {
	// FilePath is the path of the sliced file.
	FilePath string `json:"file_path"`

	// StartLine is the zero-based first line of the slice.
	StartLine int `json:"start_line"`

	// EndLine is the zero-based last line of the slice, inclusive.
	EndLine int `json:"end_line"`

	// EntityIDs lists entities whose definitions start inside the slice.
	EntityIDs []string `json:"entity_ids,omitempty"`

	// ExternalReferenceIDs lists external references first used inside the
	// slice.
	ExternalReferenceIDs []string `json:"external_reference_ids,omitempty"`
}

// FileResult is the complete extraction output for one file.
//
// Extraction is error tolerant: a file that fails to parse cleanly still
// produces a FileResult with whatever entities could be recovered, and the
// problems recorded in Errors.
type FileResult struct {
	// FilePath is the path of the extracted file.
	FilePath string `json:"file_path"`

	// Language is the language identifier used for extraction.
	Language string `json:"language"`

	// Hash is the hex-encoded SHA-256 of the file content. Empty when the
	// extraction started from an already-parsed tree without source bytes.
	Hash string `json:"hash,omitempty"`

	// ExtractedAtMilli is the Unix timestamp in milliseconds when
	// extraction completed.
	ExtractedAtMilli int64 `json:"extracted_at_milli"`

	// Entities lists every entity extracted from the file, including
	// external references.
	Entities []*Entity `json:"entities"`

	// Relationships lists every relationship expressed in the file.
	Relationships []Relationship `json:"relationships"`

	// Slices partitions the file's lines.
	Slices []Slice `json:"slices"`

	// Errors records non-fatal problems encountered during extraction
	// (syntax errors, truncated trees). A non-empty Errors does not mean
	// the rest of the result is unusable.
	Errors []string `json:"errors,omitempty"`
}

// Validate checks structural invariants on the result: every entity
// validates, and the slices partition the file without gaps or overlaps.
func (r *FileResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidEntity)
	}
	for _, e := range r.Entities {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	for i, s := range r.Slices {
		if s.EndLine < s.StartLine {
			return fmt.Errorf("%w: slice %d has inverted span [%d,%d]", ErrInvalidEntity, i, s.StartLine, s.EndLine)
		}
		if i == 0 {
			if s.StartLine != 0 {
				return fmt.Errorf("%w: first slice starts at line %d, want 0", ErrInvalidEntity, s.StartLine)
			}
			continue
		}
		prev := r.Slices[i-1]
		if s.StartLine != prev.EndLine+1 {
			return fmt.Errorf("%w: slice %d starts at line %d, previous ends at %d", ErrInvalidEntity, i, s.StartLine, prev.EndLine)
		}
	}
	return nil
}

// GenerateID returns the deterministic entity ID for the given identity
// fields. The ID is a name-based UUID over the file path, kind, qualified
// name, and start line, so the same entity in the same place always gets
// the same ID across runs and processes.
func GenerateID(filePath string, kind EntityKind, qualifiedName string, startLine int) string {
	seed := fmt.Sprintf("%s:%s:%s:%d", filePath, kind, qualifiedName, startLine)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
