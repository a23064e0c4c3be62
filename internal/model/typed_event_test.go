package model

import (
	"encoding/json"
	"testing"
)

func TestPositionLiquidityEventDataJSONStringFields(t *testing.T) {
	payload := PositionLiquidityEventData{
		TokenID:   "4242",
		Liquidity: "5000000000000000000",
		Amount0:   "12345678901234567890",
		Amount1:   "42",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"token_id", "liquidity", "amount0", "amount1"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestTypedEventOmitsEmptyOrigin(t *testing.T) {
	data, err := json.Marshal(TypedEvent{EventName: "Mint"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["tx_from"]; ok {
		t.Fatalf("tx_from should be omitted when empty")
	}
}
