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

import "errors"

// Sentinel errors returned by extraction. Wrap with fmt.Errorf("%w: ...")
// to add context; check with errors.Is.
var (
	// ErrFileTooLarge is returned when the input exceeds the configured
	// maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidContent is returned when the input is not valid UTF-8.
	ErrInvalidContent = errors.New("content is not valid UTF-8")

	// ErrUnknownLanguage is returned when no language profile or grammar is
	// registered for the requested language identifier.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrInvalidEntity is returned by Validate when an entity or result
	// violates a structural invariant.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrParseFailed is returned when the underlying parser could not
	// produce a tree at all. Syntax errors inside an otherwise parseable
	// file are not fatal and are reported in FileResult.Errors instead.
	ErrParseFailed = errors.New("parse failed")
)
