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

// Package scanner invokes external scanners tolerantly. Several scanners
// use a non-zero exit code to mean "patterns matched"; that convention is
// captured in an explicit per-tool exit-code mapping so a match is never
// conflated with a crash.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Outcome classifies one scanner invocation.
type Outcome string

const (
	// OutcomeToolMissing means the binary is not installed; the pipeline
	// continues without it.
	OutcomeToolMissing Outcome = "tool_missing"
	// OutcomeClean means the scanner ran and found nothing.
	OutcomeClean Outcome = "clean"
	// OutcomeMatched means the scanner ran and reported findings.
	OutcomeMatched Outcome = "matched"
	// OutcomeCrashed means the scanner failed for a reason other than
	// "no/some matches", including a timeout.
	OutcomeCrashed Outcome = "crashed"
)

// Tool describes one external scanner and how to interpret it.
type Tool struct {
	// Name labels the tool in findings log filenames.
	Name string
	// Binary is the executable resolved through PATH.
	Binary string
	// Args builds the invocation for one rule artifact and target.
	Args func(rulePath, targetPath string) []string
	// ExitCodes maps exit codes to outcomes. Codes not listed classify
	// as crashed.
	ExitCodes map[int]Outcome
	// MatchOnOutput upgrades a clean exit to matched when the tool wrote
	// anything, for scanners that exit zero either way.
	MatchOnOutput bool
}

// YaraTool scans a target with a compiled signature-rule artifact. yara
// exits zero whether or not rules matched; matches are read from stdout.
func YaraTool(binary string) Tool {
	return Tool{
		Name:   "yara",
		Binary: binary,
		Args: func(rulePath, targetPath string) []string {
			return []string{"-w", rulePath, targetPath}
		},
		ExitCodes:     map[int]Outcome{0: OutcomeClean},
		MatchOnOutput: true,
	}
}

// GitleaksTool scans a target with a secret-scanning rule artifact.
// gitleaks exits 1 when leaks are found, which is a finding and not a
// failure.
func GitleaksTool(binary string) Tool {
	return Tool{
		Name:   "gitleaks",
		Binary: binary,
		Args: func(rulePath, targetPath string) []string {
			return []string{"detect", "--no-git", "--no-banner", "--config", rulePath, "--source", targetPath}
		},
		ExitCodes: map[int]Outcome{0: OutcomeClean, 1: OutcomeMatched},
	}
}

// RipgrepTool searches a target with a literal pattern list. rg exits 0
// on match, 1 on no match and 2 on error.
func RipgrepTool(binary string) Tool {
	return Tool{
		Name:   "ripgrep",
		Binary: binary,
		Args: func(rulePath, targetPath string) []string {
			return []string{"--no-config", "-a", "-F", "-f", rulePath, targetPath}
		},
		ExitCodes: map[int]Outcome{0: OutcomeMatched, 1: OutcomeClean},
	}
}

// FindingsLog records one scanner invocation. One file per scanner per
// run, named with the run date, so repeated same-day runs overwrite
// rather than accumulate.
type FindingsLog struct {
	Scanner string
	Target  string
	Date    string
	Outcome Outcome
	Body    string
	Path    string
}

// Service runs scanners and writes their findings logs.
type Service struct {
	runner  Runner
	log     zerolog.Logger
	logDir  string
	timeout time.Duration
	now     func() time.Time
}

// New returns a scanner service writing dated findings logs to logDir.
// A nil runner means the operating system runner.
func New(runner Runner, log zerolog.Logger, logDir string, timeout time.Duration) *Service {
	if runner == nil {
		runner = OSRunner{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{runner: runner, log: log, logDir: logDir, timeout: timeout, now: time.Now}
}

// Run invokes one tool against a target using a rule artifact. Every
// invocation writes a dated findings log regardless of outcome. The
// returned error is non-nil only for failures fatal to this scanner,
// such as a missing rule artifact or target; a missing binary or a
// crashed scanner is reported through the outcome instead.
func (s *Service) Run(ctx context.Context, tool Tool, rulePath, targetPath, base string) (FindingsLog, error) {
	flog := FindingsLog{
		Scanner: tool.Name,
		Target:  targetPath,
		Date:    s.now().Format("2006-01-02"),
	}

	if _, err := s.runner.LookPath(tool.Binary); err != nil {
		flog.Outcome = OutcomeToolMissing
		flog.Body = fmt.Sprintf("%s: not found in PATH; scan skipped\n", tool.Binary)
		s.log.Warn().Str("scanner", tool.Name).Str("binary", tool.Binary).Msg("scanner not installed. skipping")
		return flog, s.writeLog(&flog, base)
	}

	for _, input := range []string{rulePath, targetPath} {
		if _, err := os.Stat(input); err != nil {
			flog.Outcome = OutcomeCrashed
			flog.Body = fmt.Sprintf("%s: required input missing: %v\n", tool.Name, err)
			if werr := s.writeLog(&flog, base); werr != nil {
				return flog, werr
			}
			return flog, fmt.Errorf("scanner %s input %s: %w", tool.Name, input, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, exitCode, runErr := s.runner.Run(runCtx, tool.Binary, tool.Args(rulePath, targetPath)...)
	flog.Body = string(out)
	flog.Outcome = classify(tool, exitCode, out, runErr, runCtx.Err())

	s.log.Info().
		Str("scanner", tool.Name).
		Str("target", targetPath).
		Int("exit_code", exitCode).
		Str("outcome", string(flog.Outcome)).
		Msg("scanner finished")

	return flog, s.writeLog(&flog, base)
}

func classify(tool Tool, exitCode int, out []byte, runErr, ctxErr error) Outcome {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return OutcomeCrashed
	}
	if runErr != nil {
		return OutcomeCrashed
	}
	outcome, known := tool.ExitCodes[exitCode]
	if !known {
		return OutcomeCrashed
	}
	if outcome == OutcomeClean && tool.MatchOnOutput && len(out) > 0 {
		return OutcomeMatched
	}
	return outcome
}

// writeLog persists the findings log as
// <base>_<scanner>_findings_<YYYY-MM-DD>.log, overwriting any log from an
// earlier same-day run.
func (s *Service) writeLog(flog *FindingsLog, base string) error {
	name := fmt.Sprintf("%s_%s_findings_%s.log", base, flog.Scanner, flog.Date)
	flog.Path = filepath.Join(s.logDir, name)
	if err := os.WriteFile(flog.Path, []byte(flog.Body), 0o644); err != nil {
		return fmt.Errorf("failed to write findings log %s: %w", flog.Path, err)
	}
	return nil
}
