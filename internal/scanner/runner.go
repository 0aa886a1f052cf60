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
package scanner

import (
	"context"
	"errors"
	"os/exec"
)

// Runner abstracts external tool execution so outcome classification can
// be tested without the real binaries installed.
type Runner interface {
	// Run executes the tool and returns its combined stdout+stderr and
	// exit code. A non-nil error means the tool could not be invoked at
	// all; a tool that ran and exited non-zero returns a nil error.
	Run(ctx context.Context, name string, args ...string) ([]byte, int, error)
	LookPath(file string) (string, error)
}

// OSRunner executes tools through os/exec.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return out, -1, err
	}
	return out, 0, nil
}

func (OSRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
