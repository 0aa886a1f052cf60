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

	"github.com/hillu/go-yara/v4"
)

// ValidateSignatures feeds the stripped signature-rule body through a
// throwaway YARA compiler so a syntax error is caught here instead of
// inside an external scanner. A failed AddString poisons the compiler, so
// a fresh one is created per call.
func ValidateSignatures(body string) error {
	checkCompiler, err := yara.NewCompiler()
	if err != nil {
		return fmt.Errorf("could not create YARA compiler: %w", err)
	}
	if err := checkCompiler.AddString(body, "generated"); err != nil {
		return fmt.Errorf("generated signature rules do not compile: %w", err)
	}
	if _, err := checkCompiler.GetRules(); err != nil {
		return fmt.Errorf("generated signature rules do not compile: %w", err)
	}
	return nil
}
