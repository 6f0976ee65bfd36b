// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the language vocabulary profiles that keep the
// extraction walker data-driven. The defaults ship embedded in the binary;
// an overlay file can replace individual profiles at load time.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var defaultLanguagesYAML []byte

// LanguageProfile maps grammar node kinds to extraction roles for one
// language.
//
// Thread Safety: immutable after Load; safe for concurrent reads.
type LanguageProfile struct {
	// Language is the profile's language identifier (map key in the YAML).
	Language string `yaml:"-"`

	// ScopeSeparator joins qualified name segments.
	ScopeSeparator string `yaml:"scope_separator"`

	// FileExtensions lists the extensions routed to this profile.
	FileExtensions []string `yaml:"file_extensions"`

	// DefinitionKinds maps a grammar node kind to the entity kind name it
	// defines (e.g. "class_specifier" -> "class").
	DefinitionKinds map[string]string `yaml:"definition_kinds"`

	// ScopeKinds lists node kinds that open a lexical scope.
	ScopeKinds []string `yaml:"scope_kinds"`

	// CallKinds lists node kinds that express a call.
	CallKinds []string `yaml:"call_kinds"`

	// IncludeKinds lists node kinds that express a module import.
	IncludeKinds []string `yaml:"include_kinds"`

	// CommentKinds lists node kinds treated as comments by the slicer.
	CommentKinds []string `yaml:"comment_kinds"`

	// TransparentKinds lists wrapper node kinds the walker descends through
	// without opening a scope (preprocessor conditionals, linkage blocks).
	TransparentKinds []string `yaml:"transparent_kinds"`

	// SystemNamespaces lists namespaces assumed to come from system headers
	// (e.g. "std"), used to classify unresolved qualified references.
	SystemNamespaces []string `yaml:"system_namespaces"`

	scopeSet       map[string]struct{}
	callSet        map[string]struct{}
	includeSet     map[string]struct{}
	commentSet     map[string]struct{}
	transparentSet map[string]struct{}
	systemNSSet    map[string]struct{}
}

// IsScope reports whether the node kind opens a lexical scope.
func (p *LanguageProfile) IsScope(kind string) bool {
	_, ok := p.scopeSet[kind]
	return ok
}

// IsCall reports whether the node kind expresses a call.
func (p *LanguageProfile) IsCall(kind string) bool {
	_, ok := p.callSet[kind]
	return ok
}

// IsInclude reports whether the node kind expresses a module import.
func (p *LanguageProfile) IsInclude(kind string) bool {
	_, ok := p.includeSet[kind]
	return ok
}

// IsComment reports whether the node kind is a comment.
func (p *LanguageProfile) IsComment(kind string) bool {
	_, ok := p.commentSet[kind]
	return ok
}

// IsTransparent reports whether the walker should descend through the node
// kind without opening a scope.
func (p *LanguageProfile) IsTransparent(kind string) bool {
	_, ok := p.transparentSet[kind]
	return ok
}

// IsSystemNamespace reports whether the namespace is assumed external.
func (p *LanguageProfile) IsSystemNamespace(ns string) bool {
	_, ok := p.systemNSSet[ns]
	return ok
}

// EntityKindName returns the entity kind name a definition node kind maps
// to, or "" when the node kind defines nothing.
func (p *LanguageProfile) EntityKindName(nodeKind string) string {
	return p.DefinitionKinds[nodeKind]
}

func (p *LanguageProfile) finalize(language string) error {
	p.Language = language
	if p.ScopeSeparator == "" {
		return fmt.Errorf("language %q: scope_separator is required", language)
	}
	if len(p.DefinitionKinds) == 0 {
		return fmt.Errorf("language %q: definition_kinds must not be empty", language)
	}
	p.scopeSet = toSet(p.ScopeKinds)
	p.callSet = toSet(p.CallKinds)
	p.includeSet = toSet(p.IncludeKinds)
	p.commentSet = toSet(p.CommentKinds)
	p.transparentSet = toSet(p.TransparentKinds)
	p.systemNSSet = toSet(p.SystemNamespaces)
	return nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

type profilesFile struct {
	Languages map[string]*LanguageProfile `yaml:"languages"`
}

// Registry holds the loaded language profiles.
//
// Thread Safety: immutable after construction; safe for concurrent reads.
type Registry struct {
	profiles    map[string]*LanguageProfile
	byExtension map[string]*LanguageProfile
}

// Profile returns the profile for a language identifier.
func (r *Registry) Profile(language string) (*LanguageProfile, bool) {
	p, ok := r.profiles[language]
	return p, ok
}

// ProfileForExtension returns the profile that claims the file extension
// (including the leading dot).
func (r *Registry) ProfileForExtension(ext string) (*LanguageProfile, bool) {
	p, ok := r.byExtension[ext]
	return p, ok
}

// Languages returns the registered language identifiers.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.profiles))
	for lang := range r.profiles {
		out = append(out, lang)
	}
	return out
}

// Load parses a profiles registry from YAML bytes.
//
// Errors:
//   - Unmarshal errors for malformed YAML.
//   - Validation errors for profiles missing required sections.
func Load(data []byte) (*Registry, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse language profiles: %w", err)
	}
	if len(file.Languages) == 0 {
		return nil, fmt.Errorf("language profiles: no languages defined")
	}
	reg := &Registry{
		profiles:    make(map[string]*LanguageProfile, len(file.Languages)),
		byExtension: make(map[string]*LanguageProfile),
	}
	for lang, p := range file.Languages {
		if p == nil {
			return nil, fmt.Errorf("language %q: empty profile", lang)
		}
		if err := p.finalize(lang); err != nil {
			return nil, err
		}
		reg.profiles[lang] = p
		for _, ext := range p.FileExtensions {
			if prev, dup := reg.byExtension[ext]; dup {
				return nil, fmt.Errorf("extension %q claimed by both %q and %q", ext, prev.Language, lang)
			}
			reg.byExtension[ext] = p
		}
	}
	return reg, nil
}

// LoadFile loads a profiles registry from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language profiles %s: %w", path, err)
	}
	return Load(data)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the embedded default registry. The embedded defaults are
// validated at first use; a corrupt embed is a build defect, so this never
// returns an error and instead panics loudly.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(defaultLanguagesYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded language profiles are invalid: %v", err))
		}
		slog.Debug("loaded default language profiles", "languages", len(reg.profiles))
		defaultReg = reg
	})
	return defaultReg
}
