package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validSource = `# provenance for generated rules
COPYRIGHT=Example Org
LICENSE=AGPL-3.0
SHARING=TLP:CLEAR
VERSION=1.0
AUTHOR="Fariba Mohammaditabar"
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

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	ctx, err := Load(writeSource(t, validSource))
	require.NoError(t, err)

	require.Equal(t, "Fariba Mohammaditabar", ctx.Author)
	require.Equal(t, "windows", ctx.Tag1)
	require.Equal(t, "process", ctx.Tag2)
	require.Equal(t, "1.0", ctx.Version)

	pairs := ctx.Pairs()
	require.Len(t, pairs, len(Keys))
	for i, p := range pairs {
		require.Equal(t, Keys[i], p.Key)
	}
}

func TestLoadRejectsMissingKey(t *testing.T) {
	// Drop the SEVERITY line.
	content := strings.Replace(validSource, "SEVERITY=high\n", "", 1)

	_, err := Load(writeSource(t, content))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "SEVERITY", cerr.Key)
	require.Contains(t, cerr.Reason, "not bound")
}

func TestLoadRejectsReassignedKey(t *testing.T) {
	content := validSource + "VERSION=2.0\n"

	_, err := Load(writeSource(t, content))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "VERSION", cerr.Key)
	require.Contains(t, cerr.Reason, "write-once")
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	content := validSource + "EXTRA=nope\n"

	_, err := Load(writeSource(t, content))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "EXTRA", cerr.Key)
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	content := validSource + "just some words\n"

	_, err := Load(writeSource(t, content))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadUnquotesValues(t *testing.T) {
	content := strings.Replace(validSource, "TAG1=windows", "TAG1='windows'", 1)

	ctx, err := Load(writeSource(t, content))
	require.NoError(t, err)
	require.Equal(t, "windows", ctx.Tag1)
}

func TestSummary(t *testing.T) {
	ctx, err := Load(writeSource(t, validSource))
	require.NoError(t, err)

	doc := ctx.Summary(SummaryInfo{
		RunID:       "run-1",
		InputFile:   "asr_rules.csv",
		RecordCount: 3,
		Artifacts:   []string{"asr_rules_yara_rules.yara"},
		GeneratedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	})

	require.Contains(t, doc, "Run ID:       run-1")
	require.Contains(t, doc, "Rule records: 3")
	require.Contains(t, doc, "AUTHOR:    Fariba Mohammaditabar")
	require.Contains(t, doc, "asr_rules_yara_rules.yara")
	require.Contains(t, doc, "2026-02-01T12:00:00Z")
}
