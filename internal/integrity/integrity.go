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

// Package integrity gates every pipeline dependency behind a checksum and
// permission check. A component is never trusted on a failed or skipped
// check; all violations are fatal and never retried.
package integrity

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
)

// DefaultMode is the permission mode a component must carry unless the
// registry entry overrides it.
const DefaultMode fs.FileMode = 0o644

// ChecksumSuffix names the checksum companion of a component:
// <file>.sha3-512, a single hex digest line.
const ChecksumSuffix = ".sha3-512"

// Component is one file the pipeline depends on.
type Component struct {
	// Name is the path of the component file on disk.
	Name string
	// Mode is the required permission mode. Zero means DefaultMode.
	Mode fs.FileMode
	// ChecksumPath overrides the default Name + ChecksumSuffix companion.
	ChecksumPath string
}

func (c Component) checksumPath() string {
	if c.ChecksumPath != "" {
		return c.ChecksumPath
	}
	return c.Name + ChecksumSuffix
}

func (c Component) requiredMode() fs.FileMode {
	if c.Mode != 0 {
		return c.Mode
	}
	return DefaultMode
}

// Error reports a failed trust check. It always aborts the run.
type Error struct {
	Component string
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity check failed for %s: %s: %v", e.Component, e.Reason, e.Err)
	}
	return fmt.Sprintf("integrity check failed for %s: %s", e.Component, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Verify checks a single component. The checks run in a fixed order: the
// component must exist, its checksum companion must exist, the live
// SHA3-512 digest must equal the recorded one (hex, case-insensitive), and
// the on-disk permission bits must equal the required mode exactly.
func Verify(c Component) error {
	info, err := os.Stat(c.Name)
	if err != nil {
		return &Error{Component: c.Name, Reason: "component file missing", Err: err}
	}

	want, err := readChecksum(c.checksumPath())
	if err != nil {
		return &Error{Component: c.Name, Reason: "checksum companion unreadable", Err: err}
	}

	got, err := digest(c.Name)
	if err != nil {
		return &Error{Component: c.Name, Reason: "could not digest component", Err: err}
	}
	if !strings.EqualFold(got, want) {
		return &Error{Component: c.Name, Reason: fmt.Sprintf("checksum mismatch: have %s, want %s", got, want)}
	}

	if perm := info.Mode().Perm(); perm != c.requiredMode() {
		return &Error{Component: c.Name, Reason: fmt.Sprintf("permission mode %04o, want %04o", perm, c.requiredMode())}
	}

	return nil
}

// readChecksum loads the recorded digest from a checksum companion. The
// companion holds a single hex digest line with no filename.
func readChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := strings.TrimSpace(string(data))
	if len(sum) != 128 {
		return "", fmt.Errorf("malformed digest in %s: %d characters, want 128", path, len(sum))
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", fmt.Errorf("malformed digest in %s: %w", path, err)
	}
	return sum, nil
}

// digest computes the SHA3-512 hex digest of a file's bytes.
func digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha3.New512()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Registry holds the declared components and verifies each one immediately
// before its first use. A component introduced late in the pipeline is
// still checked before it is read.
type Registry struct {
	log        zerolog.Logger
	components map[string]Component
	verified   map[string]bool
}

// NewRegistry declares the components the pipeline depends on.
func NewRegistry(log zerolog.Logger, components ...Component) *Registry {
	r := &Registry{
		log:        log,
		components: make(map[string]Component, len(components)),
		verified:   make(map[string]bool, len(components)),
	}
	for _, c := range components {
		r.components[c.Name] = c
	}
	return r
}

// Require verifies the named component if it has not been verified yet.
// A path that was never declared is itself a trust violation.
func (r *Registry) Require(name string) error {
	if r.verified[name] {
		return nil
	}

	c, ok := r.components[name]
	if !ok {
		return &Error{Component: name, Reason: "component not declared in registry"}
	}
	if err := Verify(c); err != nil {
		return err
	}

	r.verified[name] = true
	r.log.Debug().Str("component", name).Msg("component verified")
	return nil
}
