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
package compiler

import (
	"fmt"
	"strings"

	"github.com/frbmohammaditabar/security-rule-converter/internal/indicator"
	"github.com/frbmohammaditabar/security-rule-converter/internal/metadata"
)

// Compile renders one record into one rule block of the given format.
func Compile(rec indicator.Record, meta metadata.Context, format Format) string {
	switch format {
	case SecretScanRules:
		return compileSecretScan(rec, meta)
	case SignatureRules:
		return compileSignature(rec, meta)
	case PatternList:
		// A bare literal pattern; no metadata, no escaping.
		return rec.ID
	}
	return ""
}

// SanitizeRuleName replaces every character outside [A-Za-z0-9] with an
// underscore so the result is a valid signature-rule identifier.
func SanitizeRuleName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// description concatenates the free-text columns of a record. Double
// quotes are deleted, not escaped, to keep the generated syntax well
// formed; an indicator that legitimately contains a quote loses it.
func description(rec indicator.Record) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{rec.Description, rec.Comment, rec.Tactic} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.ReplaceAll(strings.Join(parts, " "), `"`, "")
}

func compileSignature(rec indicator.Record, meta metadata.Context) string {
	name := meta.Tag1 + "_" + meta.Tag2 + "_" + SanitizeRuleName(rec.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "rule %s\n{\n", name)
	b.WriteString("    meta:\n")
	fmt.Fprintf(&b, "        description = %q\n", description(rec))
	for _, p := range meta.Pairs() {
		fmt.Fprintf(&b, "        %s = %q\n", strings.ToLower(p.Key), strings.ReplaceAll(p.Value, `"`, ""))
	}
	b.WriteString("    strings:\n")
	fmt.Fprintf(&b, "        $indicator = \"%s\"\n", rec.ID)
	b.WriteString("    condition:\n")
	b.WriteString("        $indicator\n")
	b.WriteString("}")
	return b.String()
}

func compileSecretScan(rec indicator.Record, meta metadata.Context) string {
	// The id is stamped without sanitization; a structurally significant
	// character in the indicator yields a structurally odd identifier.
	id := meta.Tag1 + "_" + meta.Tag2 + "_" + rec.ID

	tags := make([]string, 0, len(metadata.Keys))
	for _, p := range meta.Pairs() {
		tags = append(tags, fmt.Sprintf("%q", annotate(p.Key, p.Value)))
	}

	var b strings.Builder
	b.WriteString("[[rules]]\n")
	fmt.Fprintf(&b, "id = \"%s\"\n", id)
	fmt.Fprintf(&b, "description = %q\n", description(rec))
	fmt.Fprintf(&b, "regex = '''%s'''\n", rec.ID)
	fmt.Fprintf(&b, "keywords = [\"%s\"]\n", rec.ID)
	fmt.Fprintf(&b, "tags = [%s]", strings.Join(tags, ", "))
	return b.String()
}

// annotate renders a provenance pair in the "Version: 1.0" tag style.
func annotate(key, value string) string {
	title := strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
	return title + ": " + strings.ReplaceAll(value, `"`, "")
}
