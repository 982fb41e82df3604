package upstream

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSSERecords_SplitsOnBlankLine(t *testing.T) {
	stream := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: message_stop\ndata: {}\n\n"

	scanner := bufio.NewScanner(bytes.NewReader([]byte(stream)))
	scanner.Split(ScanSSERecords)

	var records []string
	for scanner.Scan() {
		records = append(records, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)
	assert.Contains(t, records[0], "message_start")
	assert.Contains(t, records[1], "message_stop")
}

func TestScanSSERecords_FlushesFinalRecordWithoutTrailingBlankLine(t *testing.T) {
	stream := "event: message_stop\ndata: {}\n"

	scanner := bufio.NewScanner(bytes.NewReader([]byte(stream)))
	scanner.Split(ScanSSERecords)

	var records []string
	for scanner.Scan() {
		records = append(records, scanner.Text())
	}
	require.Len(t, records, 1)
	assert.Contains(t, records[0], "message_stop")
}

func TestParseEvent_ExtractsTypeAndData(t *testing.T) {
	raw := []byte("event: content_block_delta\ndata: {\"delta\":{\"text\":\"hi\"}}\n\n")

	ev := ParseEvent(raw)

	assert.Equal(t, EventContentBlockDelta, ev.Type)
	assert.JSONEq(t, `{"delta":{"text":"hi"}}`, string(ev.Data))
}

func TestParseEvent_MultilineDataIsJoined(t *testing.T) {
	raw := []byte("event: message_start\ndata: {\"a\":1,\ndata: \"b\":2}\n\n")

	ev := ParseEvent(raw)

	assert.Equal(t, "{\"a\":1,\n\"b\":2}", string(ev.Data))
}
