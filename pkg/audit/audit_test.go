package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	return records
}

func TestRecord_WritesChainedLines(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&buf)
	require.NoError(t, err)
	l.WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })

	require.NoError(t, l.Record(KindSubmission, "game_u1", "game_u1", "submit", map[string]any{"flagged": false}))
	require.NoError(t, l.Record(KindFlag, "system", "dev-1", "balance above maximum", nil))

	records := readRecords(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, KindSubmission, records[0].Kind)
	assert.Equal(t, int64(1_700_000_000_000), records[0].Timestamp)
	assert.NotEmpty(t, records[0].Chain)
	assert.NotEqual(t, records[0].Chain, records[1].Chain)

	broken, err := l.VerifyChain(records)
	require.NoError(t, err)
	assert.Equal(t, -1, broken)
}

func TestVerifyChain_DetectsEdit(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&buf)
	require.NoError(t, err)

	require.NoError(t, l.Record(KindAdmin, "admin-1", "game_u1", "unflag", nil))
	require.NoError(t, l.Record(KindAdmin, "admin-1", "game_u2", "delete", nil))

	records := readRecords(t, &buf)
	records[0].Actor = "someone-else"

	broken, err := l.VerifyChain(records)
	require.NoError(t, err)
	assert.Equal(t, 0, broken)
}

func TestVerifyChain_DetectsDeletedLine(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&buf)
	require.NoError(t, err)

	require.NoError(t, l.Record(KindAdmin, "admin-1", "a", "x", nil))
	require.NoError(t, l.Record(KindAdmin, "admin-1", "b", "y", nil))
	require.NoError(t, l.Record(KindAdmin, "admin-1", "c", "z", nil))

	records := readRecords(t, &buf)
	// Drop the middle record.
	tampered := []Record{records[0], records[2]}

	broken, err := l.VerifyChain(tampered)
	require.NoError(t, err)
	assert.Equal(t, 1, broken)
}
