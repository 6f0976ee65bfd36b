// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasCAndCpp(t *testing.T) {
	reg := Default()

	cpp, ok := reg.Profile("cpp")
	require.True(t, ok, "default registry must register cpp")
	assert.Equal(t, "::", cpp.ScopeSeparator)
	assert.True(t, cpp.IsSystemNamespace("std"))
	assert.True(t, cpp.IsCall("call_expression"))
	assert.True(t, cpp.IsInclude("preproc_include"))
	assert.True(t, cpp.IsComment("comment"))
	assert.True(t, cpp.IsTransparent("template_declaration"))
	assert.Equal(t, "class", cpp.EntityKindName("class_specifier"))

	c, ok := reg.Profile("c")
	require.True(t, ok, "default registry must register c")
	assert.False(t, c.IsSystemNamespace("std"))

	_, ok = reg.Profile("rust")
	assert.False(t, ok)
}

func TestDefault_ExtensionRouting(t *testing.T) {
	reg := Default()

	cases := map[string]string{
		".cpp": "cpp",
		".cc":  "cpp",
		".hpp": "cpp",
		".c":   "c",
		".h":   "c",
	}
	for ext, lang := range cases {
		p, ok := reg.ProfileForExtension(ext)
		require.True(t, ok, "extension %s must route", ext)
		assert.Equal(t, lang, p.Language, "extension %s", ext)
	}

	_, ok := reg.ProfileForExtension(".py")
	assert.False(t, ok)
}

func TestLoad_ValidRegistry(t *testing.T) {
	const doc = `
languages:
  toy:
    scope_separator: "."
    file_extensions: [".toy"]
    definition_kinds:
      func_def: "function"
    call_kinds: ["call"]
`
	reg, err := Load([]byte(doc))
	require.NoError(t, err)

	p, ok := reg.Profile("toy")
	require.True(t, ok)
	assert.Equal(t, "toy", p.Language)
	assert.Equal(t, "function", p.EntityKindName("func_def"))
	assert.True(t, p.IsCall("call"))
	assert.False(t, p.IsCall("other"))
	assert.Equal(t, []string{"toy"}, reg.Languages())
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "malformed yaml",
			doc:  "languages: [not: a: map",
		},
		{
			name: "no languages",
			doc:  "languages: {}",
		},
		{
			name: "missing scope separator",
			doc: `
languages:
  toy:
    definition_kinds:
      func_def: "function"
`,
		},
		{
			name: "missing definition kinds",
			doc: `
languages:
  toy:
    scope_separator: "."
`,
		},
		{
			name: "duplicate extension",
			doc: `
languages:
  one:
    scope_separator: "."
    file_extensions: [".x"]
    definition_kinds:
      d: "function"
  two:
    scope_separator: "."
    file_extensions: [".x"]
    definition_kinds:
      d: "function"
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
