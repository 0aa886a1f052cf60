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
package indicator

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Record is one row of the canonical input table. ID is the detection
// token; duplicates across a batch are legal and produce duplicate rules.
type Record struct {
	ID          string
	Description string
	Comment     string
	Tactic      string
}

// ParseFile reads the input table from disk. The first line is a header
// and is always skipped.
func ParseFile(path string, log zerolog.Logger) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input table %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, log)
}

// Parse reads rows of id, asr_rule, metadata_comment, metadata_tactic.
// A row without an id cannot compile into any rule format; it is skipped
// with a warning rather than silently emitting a malformed rule. Row
// order is preserved.
func Parse(r io.Reader, log zerolog.Logger) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []Record
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse input table: %w", err)
		}
		line++
		if line == 1 {
			// Header row.
			continue
		}

		rec := Record{ID: strings.TrimSpace(field(row, 0))}
		if rec.ID == "" {
			log.Warn().Int("row", line).Msg("skipping row with empty indicator id")
			continue
		}
		rec.Description = strings.TrimSpace(field(row, 1))
		rec.Comment = strings.TrimSpace(field(row, 2))
		rec.Tactic = strings.TrimSpace(field(row, 3))
		records = append(records, rec)
	}

	return records, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
