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

// Package compiler turns indicator records into scanner-native rule
// artifacts. Compilation is pure and order-preserving: the same records
// and metadata always produce byte-identical artifacts, and rules appear
// in input order with no deduplication or sorting.
package compiler

import (
	"strings"

	"github.com/frbmohammaditabar/security-rule-converter/internal/indicator"
	"github.com/frbmohammaditabar/security-rule-converter/internal/metadata"
)

// Format names one target rule syntax.
type Format string

const (
	// SecretScanRules is the gitleaks TOML rule format.
	SecretScanRules Format = "gitleaks"
	// SignatureRules is the YARA rule format.
	SignatureRules Format = "yara"
	// PatternList is the ripgrep literal-pattern format.
	PatternList Format = "ripgrep"
)

// Formats returns every target format in pipeline order.
func Formats() []Format {
	return []Format{SecretScanRules, SignatureRules, PatternList}
}

// FileName derives the artifact path component from the input basename.
func (f Format) FileName(base string) string {
	switch f {
	case SecretScanRules:
		return base + "_gitleaks_rules.toml"
	case SignatureRules:
		return base + "_yara_rules.yara"
	case PatternList:
		return base + "_ripgrep_patterns.txt"
	}
	return base + "_" + string(f) + "_rules.txt"
}

// Artifact is one compiled rule file. The compiler tracks its own
// preamble size, so the post-processor never guesses how many header
// lines to strip.
type Artifact struct {
	Format      Format
	HeaderLines int
	Text        string
	RecordCount int
}

// Body returns the artifact text without its provenance preamble; this is
// what the target scanner can actually parse.
func (a Artifact) Body() string {
	if a.HeaderLines == 0 {
		return a.Text
	}
	lines := strings.SplitAfter(a.Text, "\n")
	if a.HeaderLines >= len(lines) {
		return ""
	}
	return strings.Join(lines[a.HeaderLines:], "")
}

// CompileAll folds every record through each format and returns the three
// complete artifacts in pipeline order.
func CompileAll(records []indicator.Record, meta metadata.Context) []Artifact {
	artifacts := make([]Artifact, 0, len(Formats()))
	for _, format := range Formats() {
		artifacts = append(artifacts, compileFormat(records, meta, format))
	}
	return artifacts
}

func compileFormat(records []indicator.Record, meta metadata.Context, format Format) Artifact {
	art := Artifact{Format: format, RecordCount: len(records)}

	var b strings.Builder
	if format != PatternList {
		header := preamble(meta)
		art.HeaderLines = len(header)
		for _, line := range header {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	for i, rec := range records {
		if i > 0 && format != PatternList {
			b.WriteString("\n")
		}
		b.WriteString(Compile(rec, meta, format))
		b.WriteString("\n")
	}

	art.Text = b.String()
	return art
}

// preamble is the provenance header stamped on top of rule artifacts. It
// is deliberately not written in the target syntax; the post-processor
// strips it before a scanner consumes the file.
func preamble(meta metadata.Context) []string {
	lines := []string{
		"----------------------------------------------------------------",
		"GENERATED DETECTION RULES - DO NOT EDIT BY HAND",
		"This provenance header is stripped before the rules are scanned.",
		"",
	}
	for _, p := range meta.Pairs() {
		lines = append(lines, p.Key+": "+p.Value)
	}
	lines = append(lines,
		"----------------------------------------------------------------",
		"",
	)
	return lines
}
