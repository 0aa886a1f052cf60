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

// Package artifact owns generated rule files once they hit the
// filesystem: wholesale overwrite on each run, plus the preamble strip
// that readies an artifact for its target scanner.
package artifact

import (
	"fmt"
	"os"
	"strings"
)

// BackupSuffix names the pre-strip copy kept next to a processed artifact.
const BackupSuffix = ".bak"

// Write replaces any prior version of the artifact at path. Artifacts are
// regenerated wholesale; there is no append mode.
func Write(path, text string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove previous artifact %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}

// StripPreamble deletes the first lineCount lines of the artifact in
// place. A backup of the pre-strip file is written first, and the strip
// refuses to leave the artifact empty: a lineCount at or beyond the
// file's line count is an error, never a silent truncation.
func StripPreamble(path string, lineCount int) error {
	if lineCount <= 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if lineCount >= len(lines) {
		return fmt.Errorf("refusing to strip %d lines from %s: file has only %d", lineCount, path, len(lines))
	}

	if err := os.WriteFile(path+BackupSuffix, data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines[lineCount:], "")), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite artifact %s: %w", path, err)
	}
	return nil
}
