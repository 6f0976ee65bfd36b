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
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// Input is one file handed to the pipeline.
type Input struct {
	// FilePath is recorded on all extracted items.
	FilePath string

	// Language is the language identifier; when empty the pipeline infers
	// it from the file extension.
	Language string

	// Source is the raw file content.
	Source []byte
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets the extraction concurrency. Non-positive values are
// ignored; the default is the CPU count.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(ex *ast.Extractor) PipelineOption {
	return func(p *Pipeline) {
		if ex != nil {
			p.extractor = ex
		}
	}
}

// WithAssemblerOptions passes options to the pipeline's assembler.
func WithAssemblerOptions(opts ...AssemblerOption) PipelineOption {
	return func(p *Pipeline) {
		p.asmOpts = append(p.asmOpts, opts...)
	}
}

// Pipeline extracts a set of files concurrently and assembles the results
// into one frozen graph.
//
// Description:
//
//	Files are extracted in parallel; merging serializes inside the
//	assembler. Per-file extraction failures are recorded in the file
//	statuses and do not abort the run. Cancellation is honored at file
//	boundaries: in-flight files finish, queued files do not start.
//
// Thread Safety: a Pipeline is immutable after construction; Run may be
// called concurrently, each call owning its own assembler.
type Pipeline struct {
	workers   int
	extractor *ast.Extractor
	asmOpts   []AssemblerOption
}

// NewPipeline creates a pipeline with the given options.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		workers:   runtime.NumCPU(),
		extractor: ast.NewExtractor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Graph is the frozen assembled graph.
	Graph *Graph

	// Files maps each input path to its merge status.
	Files map[string]*FileStatus

	// Slices maps each input path to its line slices.
	Slices map[string][]ast.Slice

	// Stats summarizes the graph.
	Stats Stats
}

// Run extracts all inputs and returns the assembled graph.
//
// Errors:
//   - Context errors when cancelled.
//   - ErrAssemblyCancelled from Finalize.
//
// Per-file extraction errors do not fail the run; inspect Result.Files.
func (p *Pipeline) Run(ctx context.Context, inputs []Input) (*Result, error) {
	start := time.Now()
	asm := NewAssembler(p.asmOpts...)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)
	for _, in := range inputs {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			language := in.Language
			if language == "" {
				language = p.extractor.LanguageForFile(filepath.Ext(in.FilePath))
			}
			if language == "" {
				asm.RecordFailure(in.FilePath, "", fmt.Errorf("%w: no profile for %s", ast.ErrUnknownLanguage, in.FilePath))
				return nil
			}
			res, err := p.extractor.Extract(gctx, in.Source, in.FilePath, language)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("extraction failed", "file_path", in.FilePath, "error", err)
				asm.RecordFailure(in.FilePath, language, err)
				return nil
			}
			return asm.Merge(gctx, res)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g, err := asm.Finalize(ctx)
	if err != nil {
		return nil, err
	}

	slices := make(map[string][]ast.Slice, len(inputs))
	for path := range asm.Files() {
		slices[path] = asm.Slices(path)
	}
	res := &Result{
		Graph:  g,
		Files:  asm.Files(),
		Slices: slices,
		Stats:  g.ComputeStats(),
	}
	slog.Info("pipeline run complete",
		"files", len(inputs),
		"nodes", res.Stats.Nodes,
		"edges", res.Stats.Edges,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}
