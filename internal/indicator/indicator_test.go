package indicator

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseSkipsHeader(t *testing.T) {
	input := "id,asr_rule,metadata_comment,metadata_tactic\n" +
		"mimikatz.exe,Credential theft tool,observed in campaign X,T1003\n"

	records, err := Parse(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, Record{
		ID:          "mimikatz.exe",
		Description: "Credential theft tool",
		Comment:     "observed in campaign X",
		Tactic:      "T1003",
	}, records[0])
}

func TestParsePreservesRowOrder(t *testing.T) {
	input := "id,asr_rule,metadata_comment,metadata_tactic\n" +
		"a.exe,first,,\n" +
		"b.exe,second,,\n" +
		"c.exe,third,,\n"

	records, err := Parse(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "a.exe", records[0].ID)
	require.Equal(t, "b.exe", records[1].ID)
	require.Equal(t, "c.exe", records[2].ID)
}

func TestParseSkipsRowsWithoutID(t *testing.T) {
	input := "id,asr_rule,metadata_comment,metadata_tactic\n" +
		",no id here,comment,tactic\n" +
		"real.exe,kept,,\n"

	records, err := Parse(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "real.exe", records[0].ID)
}

func TestParseToleratesShortRows(t *testing.T) {
	input := "id,asr_rule,metadata_comment,metadata_tactic\n" +
		"lonely.exe\n"

	records, err := Parse(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "lonely.exe", records[0].ID)
	require.Empty(t, records[0].Description)
}

func TestParseDuplicateIDsAreLegal(t *testing.T) {
	input := "id,asr_rule,metadata_comment,metadata_tactic\n" +
		"dup.exe,first,,\n" +
		"dup.exe,second,,\n"

	records, err := Parse(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestParseEmptyTable(t *testing.T) {
	input := "id,asr_rule,metadata_comment,metadata_tactic\n"

	records, err := Parse(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Empty(t, records)
}
