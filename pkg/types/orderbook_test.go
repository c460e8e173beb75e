package types

import (
	"encoding/json"
	"testing"
)

func TestOrderbookMessage_UnmarshalBook(t *testing.T) {
	input := `{
		"event_type": "book",
		"asset_id": "token1",
		"market": "0xabc123",
		"timestamp": "1234567890000",
		"bids": [{"price": "0.33", "size": "120"}],
		"asks": [{"price": "0.35", "size": "80"}]
	}`

	var msg OrderbookMessage
	if err := json.Unmarshal([]byte(input), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if msg.EventType != "book" {
		t.Errorf("EventType = %q, want %q", msg.EventType, "book")
	}
	if msg.AssetID != "token1" {
		t.Errorf("AssetID = %q, want %q", msg.AssetID, "token1")
	}
	if msg.Timestamp != 1234567890000 {
		t.Errorf("Timestamp = %d, want %d", msg.Timestamp, 1234567890000)
	}
	if len(msg.Bids) != 1 || len(msg.Asks) != 1 {
		t.Fatalf("len(Bids)=%d len(Asks)=%d, want 1 and 1", len(msg.Bids), len(msg.Asks))
	}

	price, size, err := msg.Bids[0].ParseLevel()
	if err != nil {
		t.Fatalf("ParseLevel() error = %v", err)
	}
	if price != 0.33 || size != 120 {
		t.Errorf("bid level = (%v, %v), want (0.33, 120)", price, size)
	}
}

func TestOrderbookMessage_UnmarshalPriceChange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		changes int
	}{
		{
			name: "single-change",
			input: `{
				"event_type": "price_change",
				"market": "0xabc",
				"timestamp": "1757908892351",
				"price_changes": [
					{"asset_id": "token1", "side": "BUY", "price": "0.5", "size": "200"}
				]
			}`,
			changes: 1,
		},
		{
			name: "multiple-changes",
			input: `{
				"event_type": "price_change",
				"market": "0xdef",
				"timestamp": "1757908892351",
				"price_changes": [
					{"asset_id": "token1", "side": "BUY", "price": "0.5", "size": "200"},
					{"asset_id": "token2", "side": "SELL", "price": "0.5", "size": "0"}
				]
			}`,
			changes: 2,
		},
		{
			name: "missing-timestamp-is-zero",
			input: `{
				"event_type": "price_change",
				"market": "0xghi",
				"price_changes": []
			}`,
			changes: 0,
		},
		{
			name: "bad-timestamp",
			input: `{
				"event_type": "price_change",
				"market": "0xabc",
				"timestamp": "not_a_number",
				"price_changes": []
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg OrderbookMessage
			err := json.Unmarshal([]byte(tt.input), &msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(msg.PriceChanges) != tt.changes {
				t.Errorf("len(PriceChanges) = %d, want %d", len(msg.PriceChanges), tt.changes)
			}
		})
	}
}

func TestMarket_TokenMapping(t *testing.T) {
	input := `{
		"id": "mkt-1",
		"question": "Bitcoin Up or Down - June 2, 3:15PM ET",
		"slug": "bitcoin-up-or-down-june-2-315pm-et",
		"outcomes": "[\"Up\", \"Down\"]",
		"clobTokenIds": "[\"tok-up\", \"tok-down\"]"
	}`

	var m Market
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	yes := m.YesToken()
	no := m.NoToken()
	if yes == nil || yes.TokenID != "tok-up" {
		t.Errorf("YesToken() = %+v, want tok-up", yes)
	}
	if no == nil || no.TokenID != "tok-down" {
		t.Errorf("NoToken() = %+v, want tok-down", no)
	}
}

func TestPosition_TargetExitPrice(t *testing.T) {
	tests := []struct {
		name   string
		entry  float64
		target float64
		want   float64
	}{
		{"level-entry", 0.34, 0.05, 1 - 1.05*0.34},
		{"high-scalp-entry", 0.88, 0.02, 1 - 1.02*0.88},
		{"clamped-to-floor", 0.97, 0.05, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Position{EntryPrice: tt.entry, ProfitTarget: tt.target}
			got := p.TargetExitPrice()
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("TargetExitPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideYes.Opposite() != SideNo || SideNo.Opposite() != SideYes {
		t.Error("Opposite() mapping broken")
	}
}
