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

// Package metadata loads the write-once provenance context stamped into
// every generated rule. The context is a plain value struct passed by
// value, so no later pipeline step can mutate the provenance of an
// earlier one.
package metadata

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Keys lists the fields the metadata source must bind, in canonical order.
// Anything missing, unknown or reassigned fails the load.
var Keys = []string{
	"COPYRIGHT", "LICENSE", "SHARING", "VERSION", "AUTHOR", "CATEGORY",
	"REFERENCE", "SEVERITY", "SOURCE", "TAG1", "TAG2", "STATUS",
	"CREATED", "MODIFIED",
}

// Context is the immutable provenance bag for one pipeline run.
type Context struct {
	Copyright string
	License   string
	Sharing   string
	Version   string
	Author    string
	Category  string
	Reference string
	Severity  string
	Source    string
	Tag1      string
	Tag2      string
	Status    string
	Created   string
	Modified  string
}

// ConfigError reports a metadata source that cannot be trusted: a missing,
// unknown or reassigned key. It aborts the run before any rule compiles.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("metadata: %s", e.Reason)
	}
	return fmt.Sprintf("metadata key %s: %s", e.Key, e.Reason)
}

// Load parses a flat KEY=value metadata source. Blank lines and lines
// starting with '#' are ignored; values may be single or double quoted.
// A key assigned twice is treated as a mutation attempt and rejected, as
// is any key outside the canonical set.
func Load(path string) (Context, error) {
	var ctx Context

	f, err := os.Open(path)
	if err != nil {
		return ctx, fmt.Errorf("failed to open metadata source %s: %w", path, err)
	}
	defer f.Close()

	fields := map[string]*string{
		"COPYRIGHT": &ctx.Copyright,
		"LICENSE":   &ctx.License,
		"SHARING":   &ctx.Sharing,
		"VERSION":   &ctx.Version,
		"AUTHOR":    &ctx.Author,
		"CATEGORY":  &ctx.Category,
		"REFERENCE": &ctx.Reference,
		"SEVERITY":  &ctx.Severity,
		"SOURCE":    &ctx.Source,
		"TAG1":      &ctx.Tag1,
		"TAG2":      &ctx.Tag2,
		"STATUS":    &ctx.Status,
		"CREATED":   &ctx.Created,
		"MODIFIED":  &ctx.Modified,
	}

	bound := make(map[string]bool, len(Keys))
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return Context{}, &ConfigError{Reason: fmt.Sprintf("line %d is not a KEY=value assignment", lineNo)}
		}
		key = strings.TrimSpace(key)

		target, known := fields[key]
		if !known {
			return Context{}, &ConfigError{Key: key, Reason: "not a recognized provenance field"}
		}
		if bound[key] {
			return Context{}, &ConfigError{Key: key, Reason: "reassigned; provenance fields are write-once"}
		}

		*target = unquote(strings.TrimSpace(value))
		bound[key] = true
	}
	if err := scanner.Err(); err != nil {
		return Context{}, fmt.Errorf("failed to read metadata source %s: %w", path, err)
	}

	for _, key := range Keys {
		if !bound[key] {
			return Context{}, &ConfigError{Key: key, Reason: "not bound"}
		}
	}

	return ctx, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Pair is one provenance field with its canonical key.
type Pair struct {
	Key   string
	Value string
}

// Pairs returns every provenance field in canonical key order.
func (c Context) Pairs() []Pair {
	return []Pair{
		{"COPYRIGHT", c.Copyright},
		{"LICENSE", c.License},
		{"SHARING", c.Sharing},
		{"VERSION", c.Version},
		{"AUTHOR", c.Author},
		{"CATEGORY", c.Category},
		{"REFERENCE", c.Reference},
		{"SEVERITY", c.Severity},
		{"SOURCE", c.Source},
		{"TAG1", c.Tag1},
		{"TAG2", c.Tag2},
		{"STATUS", c.Status},
		{"CREATED", c.Created},
		{"MODIFIED", c.Modified},
	}
}

// SummaryInfo carries the per-run facts rendered into the companion
// metadata document.
type SummaryInfo struct {
	RunID       string
	InputFile   string
	RecordCount int
	Artifacts   []string
	GeneratedAt time.Time
}

// Summary renders the human-readable companion document for a run. The
// document is a side artifact for operators; nothing downstream consumes
// it.
func (c Context) Summary(info SummaryInfo) string {
	var b strings.Builder
	b.WriteString("SECURITY RULE CONVERTER - RUN METADATA\n")
	b.WriteString("======================================\n\n")
	fmt.Fprintf(&b, "Run ID:       %s\n", info.RunID)
	fmt.Fprintf(&b, "Generated at: %s\n", info.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Input table:  %s\n", info.InputFile)
	fmt.Fprintf(&b, "Rule records: %d\n", info.RecordCount)
	b.WriteString("\nProvenance\n----------\n")
	for _, p := range c.Pairs() {
		fmt.Fprintf(&b, "%-10s %s\n", p.Key+":", p.Value)
	}
	if len(info.Artifacts) > 0 {
		b.WriteString("\nArtifacts\n---------\n")
		for _, a := range info.Artifacts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	return b.String()
}
