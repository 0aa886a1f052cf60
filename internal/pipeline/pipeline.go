/*
Copyright © 2026 Fariba Mohammaditabar

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as
	published by the Free Software Foundation, either version 3 of the
	License, or (at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package pipeline sequences one conversion run: integrity gate, metadata
// load, compilation, post-processing, scanning. Gate and metadata
// failures abort before any artifact is written; once artifacts exist,
// each format's scan branch fails independently.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frbmohammaditabar/security-rule-converter/internal/artifact"
	"github.com/frbmohammaditabar/security-rule-converter/internal/compiler"
	"github.com/frbmohammaditabar/security-rule-converter/internal/config"
	"github.com/frbmohammaditabar/security-rule-converter/internal/indicator"
	"github.com/frbmohammaditabar/security-rule-converter/internal/integrity"
	"github.com/frbmohammaditabar/security-rule-converter/internal/metadata"
	"github.com/frbmohammaditabar/security-rule-converter/internal/scanner"
)

type Pipeline struct {
	cfg    config.Config
	log    zerolog.Logger
	runner scanner.Runner
	now    func() time.Time
}

// Options configures a pipeline. A nil Runner means external tools are
// executed through the operating system.
type Options struct {
	Config config.Config
	Log    zerolog.Logger
	Runner scanner.Runner
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		cfg:    opts.Config,
		log:    opts.Log,
		runner: opts.Runner,
		now:    time.Now,
	}
}

// Run executes one full conversion pass. The returned error is non-nil
// only for fatal failures: a failed integrity gate, an untrusted metadata
// source, or an unreadable input table. Per-artifact and per-scanner
// failures are logged and the remaining formats proceed.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Logger()

	metaPath := p.cfg.Paths.MetadataFile
	inputPath := p.cfg.Paths.InputFile
	outDir := p.cfg.Paths.OutputDirectory

	registry := p.buildRegistry(log)

	// Trust chain first: the provenance source is verified and loaded
	// before anything touches the output directory.
	if err := registry.Require(metaPath); err != nil {
		return err
	}
	meta, err := metadata.Load(metaPath)
	if err != nil {
		return err
	}

	for _, extra := range p.cfg.Integrity.Components {
		if err := registry.Require(extra.Path); err != nil {
			return err
		}
	}
	if p.cfg.Integrity.GateInputFile {
		if err := registry.Require(inputPath); err != nil {
			return err
		}
	}

	records, err := indicator.ParseFile(inputPath, log)
	if err != nil {
		return err
	}
	log.Info().Int("records", len(records)).Str("input_file", inputPath).Msg("input table parsed")

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to setup output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	artifacts := compiler.CompileAll(records, meta)

	names := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		names = append(names, art.Format.FileName(base))
	}
	summary := meta.Summary(metadata.SummaryInfo{
		RunID:       runID,
		InputFile:   inputPath,
		RecordCount: len(records),
		Artifacts:   names,
		GeneratedAt: p.now(),
	})
	if err := artifact.Write(filepath.Join(outDir, base+"_metadata.txt"), summary); err != nil {
		log.Error().Err(err).Msg("failed to write companion metadata document")
	}

	ready := p.writeArtifacts(log, artifacts, outDir, base)

	if p.cfg.Paths.ScanTarget == "" {
		log.Info().Msg("no scan target configured. artifacts generated only")
		return nil
	}
	p.runScanners(ctx, log, ready, base)
	return nil
}

func (p *Pipeline) buildRegistry(log zerolog.Logger) *integrity.Registry {
	components := []integrity.Component{{Name: p.cfg.Paths.MetadataFile}}
	if p.cfg.Integrity.GateInputFile {
		components = append(components, integrity.Component{Name: p.cfg.Paths.InputFile})
	}
	for _, entry := range p.cfg.Integrity.Components {
		components = append(components, integrity.Component{
			Name: entry.Path,
			Mode: fs.FileMode(entry.Mode),
		})
	}
	return integrity.NewRegistry(log, components...)
}

// writeArtifacts writes, validates and strips each artifact. A failure
// kills only that format's branch; the survivors are returned with their
// scanner-ready paths.
func (p *Pipeline) writeArtifacts(log zerolog.Logger, artifacts []compiler.Artifact, outDir, base string) map[compiler.Format]string {
	ready := make(map[compiler.Format]string, len(artifacts))
	for _, art := range artifacts {
		path := filepath.Join(outDir, art.Format.FileName(base))

		if err := artifact.Write(path, art.Text); err != nil {
			log.Error().Err(err).Str("format", string(art.Format)).Msg("failed to write artifact")
			continue
		}
		if art.RecordCount == 0 {
			// An empty rule set is still written, but there is nothing
			// for a scanner to load.
			log.Info().Str("format", string(art.Format)).Str("artifact", path).Msg("artifact generated with zero rules. its scanner will be skipped")
			continue
		}
		if art.Format == compiler.SignatureRules && p.cfg.Scanners.ValidateSignatures {
			if err := compiler.ValidateSignatures(art.Body()); err != nil {
				log.Error().Err(err).Str("format", string(art.Format)).Msg("artifact failed validation. its scanner will be skipped")
				continue
			}
		}
		if err := artifact.StripPreamble(path, art.HeaderLines); err != nil {
			log.Error().Err(err).Str("format", string(art.Format)).Msg("failed to strip artifact preamble")
			continue
		}

		log.Info().
			Str("format", string(art.Format)).
			Str("artifact", path).
			Int("records", art.RecordCount).
			Msg("artifact generated")
		ready[art.Format] = path
	}
	return ready
}

// runScanners executes each surviving artifact against the scan target.
// Scanner outcomes never affect the overall exit status.
func (p *Pipeline) runScanners(ctx context.Context, log zerolog.Logger, ready map[compiler.Format]string, base string) {
	svc := scanner.New(p.runner, log, p.cfg.Paths.OutputDirectory, p.cfg.Scanners.Timeout())
	tools := map[compiler.Format]scanner.Tool{
		compiler.SecretScanRules: scanner.GitleaksTool(p.cfg.Scanners.GitleaksBinary),
		compiler.SignatureRules:  scanner.YaraTool(p.cfg.Scanners.YaraBinary),
		compiler.PatternList:     scanner.RipgrepTool(p.cfg.Scanners.RipgrepBinary),
	}

	for _, format := range compiler.Formats() {
		if ctx.Err() != nil {
			log.Warn().Msg("run cancelled before all scanners finished")
			return
		}
		rulePath, ok := ready[format]
		if !ok {
			continue
		}
		flog, err := svc.Run(ctx, tools[format], rulePath, p.cfg.Paths.ScanTarget, base)
		if err != nil {
			log.Error().Err(err).Str("scanner", tools[format].Name).Msg("scanner invocation failed")
			continue
		}
		if flog.Path != "" {
			log.Info().Str("scanner", flog.Scanner).Str("findings_log", flog.Path).Msg("findings log written")
		}
	}
}
