package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name        string
		tokenID     string
		wallet      string
		side        string
		timestampMs int64
		price       float64
		amount      float64
	}{
		{
			name:        "buy fill",
			tokenID:     "So11111111111111111111111111111111111111112",
			wallet:      "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
			side:        "buy",
			timestampMs: 1704067234567,
			price:       0.000123,
			amount:      15000,
		},
		{
			name:        "sell fill",
			tokenID:     "vibe-001",
			wallet:      "So111...abcde",
			side:        "sell",
			timestampMs: 1704067300000,
			price:       0.023,
			amount:      420.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.tokenID, tt.wallet, tt.side, tt.timestampMs, tt.price, tt.amount)

			if len(got) != 64 {
				t.Errorf("ComputeTradeID() length = %d, want 64", len(got))
			}

			// Same inputs must produce the same id
			got2 := ComputeTradeID(tt.tokenID, tt.wallet, tt.side, tt.timestampMs, tt.price, tt.amount)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_FieldSensitivity(t *testing.T) {
	base := ComputeTradeID("t1", "w1", "buy", 1000, 1.5, 10)

	variants := map[string]string{
		"token":     ComputeTradeID("t2", "w1", "buy", 1000, 1.5, 10),
		"wallet":    ComputeTradeID("t1", "w2", "buy", 1000, 1.5, 10),
		"side":      ComputeTradeID("t1", "w1", "sell", 1000, 1.5, 10),
		"timestamp": ComputeTradeID("t1", "w1", "buy", 1001, 1.5, 10),
		"price":     ComputeTradeID("t1", "w1", "buy", 1000, 1.50001, 10),
		"amount":    ComputeTradeID("t1", "w1", "buy", 1000, 1.5, 11),
	}

	for field, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the trade id", field)
		}
	}
}

func TestSeed(t *testing.T) {
	if Seed("vibe-001") != Seed("vibe-001") {
		t.Error("Seed is not deterministic")
	}
	if Seed("vibe-001") == Seed("meme-777") {
		t.Error("different keys should produce different seeds")
	}
}
