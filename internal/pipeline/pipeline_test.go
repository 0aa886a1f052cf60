package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/frbmohammaditabar/security-rule-converter/internal/config"
	"github.com/frbmohammaditabar/security-rule-converter/internal/integrity"
	"github.com/frbmohammaditabar/security-rule-converter/internal/scanner"
)

const metadataSource = `COPYRIGHT=Example Org
LICENSE=AGPL-3.0
SHARING=TLP:CLEAR
VERSION=1.0
AUTHOR=Fariba Mohammaditabar
CATEGORY=ASR
REFERENCE=https://example.org/asr
SEVERITY=high
SOURCE=asr_rules.csv
TAG1=windows
TAG2=process
STATUS=experimental
CREATED=2026-01-01
MODIFIED=2026-02-01
`

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, int, error) {
	return []byte("stub output\n"), 0, nil
}

func (stubRunner) LookPath(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

func writeTrusted(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chmod(path, 0o644))

	h := sha3.New512()
	h.Write([]byte(content))
	sum := hex.EncodeToString(h.Sum(nil))
	require.NoError(t, os.WriteFile(path+integrity.ChecksumSuffix, []byte(sum+"\n"), 0o644))
}

func testConfig(t *testing.T, inputRows string) (config.Config, string) {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "asr_rules.csv")
	table := "id,asr_rule,metadata_comment,metadata_tactic\n" + inputRows
	require.NoError(t, os.WriteFile(input, []byte(table), 0o644))

	metaPath := filepath.Join(dir, "metadata.conf")
	writeTrusted(t, metaPath, metadataSource)

	target := filepath.Join(dir, "target.bin")
	require.NoError(t, os.WriteFile(target, []byte("mimikatz.exe dropped here"), 0o644))

	cfg := config.Default()
	cfg.Paths.InputFile = input
	cfg.Paths.MetadataFile = metaPath
	cfg.Paths.OutputDirectory = filepath.Join(dir, "converted_rules")
	cfg.Paths.ScanTarget = target
	return cfg, cfg.Paths.OutputDirectory
}

func TestRunEndToEnd(t *testing.T) {
	cfg, outDir := testConfig(t, "mimikatz.exe,Credential theft tool,observed in campaign X,T1003\n")

	p := New(Options{Config: cfg, Log: zerolog.Nop(), Runner: stubRunner{}})
	require.NoError(t, p.Run(context.Background()))

	// Signature artifact is stripped down to scanner-parseable rules,
	// with the pre-strip version kept as a backup.
	yaraPath := filepath.Join(outDir, "asr_rules_yara_rules.yara")
	yaraText, err := os.ReadFile(yaraPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(yaraText), "rule windows_process_mimikatz_exe"), "preamble not stripped: %q", string(yaraText)[:40])

	backup, err := os.ReadFile(yaraPath + ".bak")
	require.NoError(t, err)
	require.Contains(t, string(backup), "TAG1: windows")

	tomlText, err := os.ReadFile(filepath.Join(outDir, "asr_rules_gitleaks_rules.toml"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(tomlText), "[[rules]]"))
	require.Contains(t, string(tomlText), `id = "windows_process_mimikatz.exe"`)

	patterns, err := os.ReadFile(filepath.Join(outDir, "asr_rules_ripgrep_patterns.txt"))
	require.NoError(t, err)
	require.Equal(t, "mimikatz.exe\n", string(patterns))

	companion, err := os.ReadFile(filepath.Join(outDir, "asr_rules_metadata.txt"))
	require.NoError(t, err)
	require.Contains(t, string(companion), "Rule records: 1")

	date := time.Now().Format("2006-01-02")
	for _, name := range []string{"gitleaks", "yara", "ripgrep"} {
		logPath := filepath.Join(outDir, fmt.Sprintf("asr_rules_%s_findings_%s.log", name, date))
		_, statErr := os.Stat(logPath)
		require.NoError(t, statErr, "missing findings log for %s", name)
	}
}

func TestRunEmptyTableStillWritesArtifacts(t *testing.T) {
	cfg, outDir := testConfig(t, "")
	cfg.Paths.ScanTarget = ""

	p := New(Options{Config: cfg, Log: zerolog.Nop(), Runner: stubRunner{}})
	require.NoError(t, p.Run(context.Background()))

	for _, name := range []string{
		"asr_rules_gitleaks_rules.toml",
		"asr_rules_yara_rules.yara",
		"asr_rules_ripgrep_patterns.txt",
		"asr_rules_metadata.txt",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, "missing artifact %s", name)
	}

	tomlText, err := os.ReadFile(filepath.Join(outDir, "asr_rules_gitleaks_rules.toml"))
	require.NoError(t, err)
	require.NotContains(t, string(tomlText), "[[rules]]")
}

func TestRunAbortsOnGateFailure(t *testing.T) {
	cfg, outDir := testConfig(t, "mimikatz.exe,desc,,\n")

	// Mutate the metadata source after its checksum was captured.
	require.NoError(t, os.WriteFile(cfg.Paths.MetadataFile, []byte(metadataSource+"# tampered\n"), 0o644))

	p := New(Options{Config: cfg, Log: zerolog.Nop(), Runner: stubRunner{}})
	err := p.Run(context.Background())

	var ierr *integrity.Error
	require.ErrorAs(t, err, &ierr)

	// Fail-fast: nothing was written.
	_, statErr := os.Stat(outDir)
	require.True(t, os.IsNotExist(statErr), "no artifacts expected after gate failure")
}

func TestRunAbortsOnUntrustedMetadata(t *testing.T) {
	cfg, _ := testConfig(t, "mimikatz.exe,desc,,\n")

	// Reassigning a provenance key is a mutation attempt; re-sign the
	// file so the failure is the metadata load, not the gate.
	writeTrusted(t, cfg.Paths.MetadataFile, metadataSource+"VERSION=2.0\n")

	p := New(Options{Config: cfg, Log: zerolog.Nop(), Runner: stubRunner{}})
	require.Error(t, p.Run(context.Background()))
}

func TestRunAbortsOnWrongPermissions(t *testing.T) {
	cfg, _ := testConfig(t, "mimikatz.exe,desc,,\n")
	require.NoError(t, os.Chmod(cfg.Paths.MetadataFile, 0o600))

	p := New(Options{Config: cfg, Log: zerolog.Nop(), Runner: stubRunner{}})

	var ierr *integrity.Error
	require.ErrorAs(t, p.Run(context.Background()), &ierr)
}

func TestRunGatesInputFileWhenConfigured(t *testing.T) {
	cfg, _ := testConfig(t, "mimikatz.exe,desc,,\n")
	cfg.Integrity.GateInputFile = true

	// No checksum companion exists for the input table.
	p := New(Options{Config: cfg, Log: zerolog.Nop(), Runner: stubRunner{}})
	var ierr *integrity.Error
	require.ErrorAs(t, p.Run(context.Background()), &ierr)

	// Signing the table satisfies the gate.
	table, err := os.ReadFile(cfg.Paths.InputFile)
	require.NoError(t, err)
	writeTrusted(t, cfg.Paths.InputFile, string(table))
	require.NoError(t, p.Run(context.Background()))
}

var _ scanner.Runner = stubRunner{}
