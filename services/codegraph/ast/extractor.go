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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/AleutianAI/codegraph/services/codegraph/config"
)

// DefaultMaxFileSize is the default upper bound on input size. Files above
// it are rejected rather than extracted partially; truncating source text
// mid-token would corrupt every downstream span.
const DefaultMaxFileSize = 10 * 1024 * 1024

// warnFileSize is the threshold above which extraction logs a size warning.
const warnFileSize = 1024 * 1024

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxFileSize sets the maximum input size in bytes. Non-positive values
// are ignored.
func WithMaxFileSize(bytes int64) ExtractorOption {
	return func(e *Extractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithMaxTreeNodes caps the arena size per file. Non-positive values are
// ignored.
func WithMaxTreeNodes(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTreeNodes = n
		}
	}
}

// WithProfiles replaces the default language profile registry.
func WithProfiles(reg *config.Registry) ExtractorOption {
	return func(e *Extractor) {
		if reg != nil {
			e.profiles = reg
		}
	}
}

// Extractor turns one source file at a time into a FileResult.
//
// Description:
//
//	Extraction is error tolerant: syntax errors, unknown constructs, and
//	truncated trees degrade the result (recorded in FileResult.Errors)
//	instead of failing it. Hard failures are limited to inputs the
//	extractor cannot reason about at all: oversized files, non-UTF-8
//	content, and unknown languages.
//
// Thread Safety: safe for concurrent use. Each Extract call creates its
// own parser and walker; the extractor itself holds only immutable
// configuration.
type Extractor struct {
	maxFileSize  int64
	maxTreeNodes int
	profiles     *config.Registry
}

// NewExtractor creates an Extractor with the given options.
//
// Example:
//
//	ex := ast.NewExtractor(ast.WithMaxFileSize(5 * 1024 * 1024))
//	res, err := ex.Extract(ctx, content, "src/shapes.cpp", "cpp")
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		maxFileSize:  DefaultMaxFileSize,
		maxTreeNodes: DefaultMaxTreeNodes,
		profiles:     config.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Languages returns the language identifiers this extractor accepts.
func (e *Extractor) Languages() []string {
	return e.profiles.Languages()
}

// LanguageForFile returns the language identifier for a file extension
// (including the dot), or "" when no profile claims it.
func (e *Extractor) LanguageForFile(ext string) string {
	if p, ok := e.profiles.ProfileForExtension(ext); ok {
		return p.Language
	}
	return ""
}

// grammarFor maps a language identifier to its tree-sitter grammar.
func grammarFor(language string) (*sitter.Language, error) {
	switch language {
	case "cpp":
		return cpp.GetLanguage(), nil
	case "c":
		return c.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
}

// Extract parses the content and extracts entities, relationships, and
// slices from it.
//
// Inputs:
//   - ctx: cancellation context, checked before parsing and between passes.
//   - content: the raw file bytes. Must be valid UTF-8.
//   - filePath: the path recorded on every extracted item.
//   - language: a registered language identifier ("c", "cpp").
//
// Outputs:
//   - A FileResult, possibly partial, with problems listed in Errors.
//
// Errors:
//   - ErrFileTooLarge, ErrInvalidContent, ErrUnknownLanguage: inputs the
//     extractor rejects outright.
//   - ErrParseFailed: the parser produced no tree (typically cancellation).
func (e *Extractor) Extract(ctx context.Context, content []byte, filePath, language string) (*FileResult, error) {
	start := time.Now()
	ctx, span := startExtractSpan(ctx, language, filePath, len(content))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(content)) > e.maxFileSize {
		recordExtractMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %d bytes (max %d) in %s", ErrFileTooLarge, len(content), e.maxFileSize, filePath)
	}
	if len(content) > warnFileSize {
		slog.Warn("extracting large file", "file_path", filePath, "bytes", len(content))
	}
	if !utf8.Valid(content) {
		recordExtractMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}
	grammar, err := grammarFor(language)
	if err != nil {
		recordExtractMetrics(ctx, language, time.Since(start), 0, false)
		return nil, err
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordExtractMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailed, filePath, err)
	}
	defer tree.Close()

	var parseErrs []string
	if tree.RootNode() != nil && tree.RootNode().HasError() {
		parseErrs = append(parseErrs, "syntax errors present; extraction is partial")
	}

	arena := FromSitter(tree, content, e.maxTreeNodes)
	res, err := e.ExtractTree(ctx, arena, filePath, language)
	if err != nil {
		recordExtractMetrics(ctx, language, time.Since(start), 0, false)
		return nil, err
	}
	res.Hash = hex.EncodeToString(hash[:])
	res.Errors = append(parseErrs, res.Errors...)

	recordExtractMetrics(ctx, language, time.Since(start), len(res.Entities), true)
	slog.Debug("extracted file",
		"file_path", filePath,
		"language", language,
		"entities", len(res.Entities),
		"relationships", len(res.Relationships),
		"slices", len(res.Slices),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// ExtractTree extracts from an already-built arena tree. Used by callers
// that manage parsing themselves and by Extract.
//
// Errors:
//   - ErrUnknownLanguage: no profile is registered for the language.
//   - Context errors when cancelled between passes.
func (e *Extractor) ExtractTree(ctx context.Context, tree *Tree, filePath, language string) (*FileResult, error) {
	prof, ok := e.profiles.Profile(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &FileResult{
		FilePath: filePath,
		Language: language,
	}
	if tree == nil {
		tree = NewTree(nil)
	}
	if tree.Truncated() {
		res.Errors = append(res.Errors, "syntax tree truncated at node cap; extraction is partial")
	}

	w := newWalker(tree, prof, filePath, language, res)
	w.run()
	if n := w.scope.Underflows(); n > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("unbalanced scope stack: %d pops absorbed at file scope", n))
	}
	dropInvalidEntities(res)

	res.Slices = buildSlices(tree, prof, filePath, res.Entities)
	res.ExtractedAtMilli = time.Now().UnixMilli()

	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// dropInvalidEntities removes entities with malformed spans or identity
// fields, along with the relationships anchored to them. Extraction
// continues with the remainder.
func dropInvalidEntities(res *FileResult) {
	dropped := make(map[string]bool)
	kept := res.Entities[:0]
	for _, e := range res.Entities {
		if err := e.Validate(); err != nil {
			slog.Warn("dropping invalid entity", "file_path", res.FilePath, "error", err)
			dropped[e.ID] = true
			continue
		}
		kept = append(kept, e)
	}
	if len(dropped) == 0 {
		return
	}
	res.Entities = kept
	rels := res.Relationships[:0]
	for _, r := range res.Relationships {
		if dropped[r.SourceID] || dropped[r.TargetID] {
			continue
		}
		rels = append(rels, r)
	}
	res.Relationships = rels
}
