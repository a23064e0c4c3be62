package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name            string
		from, to, batch uint64
		want            []BlockRange
	}{
		{"even", 100, 105, 2, []BlockRange{{100, 101}, {102, 103}, {104, 105}}},
		{"ragged", 100, 104, 2, []BlockRange{{100, 101}, {102, 103}, {104, 104}}},
		{"single", 5, 5, 10, []BlockRange{{5, 5}}},
		{"exact", 0, 9, 10, []BlockRange{{0, 9}}},
	}
	for _, tc := range cases {
		got, err := SplitRange(tc.from, tc.to, tc.batch)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ranges mismatch: %+v != %+v", tc.name, got, tc.want)
		}
		var blocks uint64
		for _, r := range got {
			blocks += r.Len()
		}
		if blocks != tc.to-tc.from+1 {
			t.Fatalf("%s: ranges cover %d blocks", tc.name, blocks)
		}
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestParseAddressesAndTopicsDedupe(t *testing.T) {
	addrs, err := ParseAddresses([]string{
		"0xA0D736dD7386230De3aA2e6b4f60d36a5Ded2291",
		" ",
		"0xa0d736dd7386230de3aa2e6b4f60d36a5ded2291",
		"0x827922686190790b37229fd06084350E74485b72",
	})
	if err != nil {
		t.Fatalf("parse addresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %v", addrs)
	}
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short address")
	}

	transfer := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	topics, err := ParseTopic0([]string{transfer, transfer})
	if err != nil {
		t.Fatalf("parse topics: %v", err)
	}
	if len(topics) != 1 || topics[0].Hex() != transfer {
		t.Fatalf("unexpected topics: %v", topics)
	}
	if _, err := ParseTopic0([]string{"0xdead"}); err == nil {
		t.Fatalf("expected error for short topic")
	}
}
