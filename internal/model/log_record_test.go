package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     56,
		BlockNumber: 36000000,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		TxIndex:     7,
		TxFrom:      "0x9999999999999999999999999999999999999999",
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Removed:     false,
		Timestamp:   1700000000,
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestLogRecordTopic0AndID(t *testing.T) {
	record := LogRecord{BlockNumber: 10, TxHash: "0xabc", LogIndex: 3}
	if record.Topic0() != "" {
		t.Fatalf("expected empty topic0, got %s", record.Topic0())
	}
	record.Topics = []string{"0xddf2", "0x01"}
	if record.Topic0() != "0xddf2" {
		t.Fatalf("unexpected topic0: %s", record.Topic0())
	}
	if record.ID() != "10:0xabc:3" {
		t.Fatalf("unexpected id: %s", record.ID())
	}
}

func TestDecodeErrorFromRecord(t *testing.T) {
	record := LogRecord{ChainID: 8453, BlockNumber: 7, TxHash: "0x01", TxIndex: 2, LogIndex: 4, Address: "0xpool"}
	got := NewDecodeError(record, errTest("missing topics"))
	if got.Topic0 != "" || got.TxIndex != 2 || got.Error != "missing topics" || got.Address != "0xpool" {
		t.Fatalf("unexpected decode error: %+v", got)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
