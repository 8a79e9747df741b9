package thetadata

import (
	"testing"

	"options-flow-lab/internal/domain"
)

func TestNormalizeTrades_ObjectRows(t *testing.T) {
	body := []byte(`{
		"response": [
			{
				"timestamp": 1787927400000,
				"expiration": "20260918",
				"strike": 230,
				"right": "C",
				"price": 1.25,
				"size": 10,
				"bid": 1.20,
				"ask": 1.30,
				"exchange": "CBOE"
			},
			{
				"timestamp": 1787927401000,
				"expiration": "2026-09-18",
				"strike": 230,
				"right": "PUT",
				"price": 0.95,
				"size": 5
			}
		]
	}`)

	trades, err := normalizeTrades(body, "AAPL")
	if err != nil {
		t.Fatalf("normalizeTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}

	first := trades[0]
	if first.Symbol != "AAPL" {
		t.Errorf("Symbol mismatch: got %s", first.Symbol)
	}
	if first.Expiration != "2026-09-18" {
		t.Errorf("Expiration mismatch: got %s", first.Expiration)
	}
	if first.Right != domain.RightCall {
		t.Errorf("Right mismatch: got %s", first.Right)
	}
	if first.Bid == nil || *first.Bid != 1.20 {
		t.Errorf("Bid mismatch: got %v", first.Bid)
	}
	if first.TradeID == "" || len(first.TradeID) != 64 {
		t.Errorf("TradeID not a sha256 hex: %q", first.TradeID)
	}

	second := trades[1]
	if second.Right != domain.RightPut {
		t.Errorf("Right mismatch: got %s", second.Right)
	}
	if second.Bid != nil || second.Ask != nil {
		t.Errorf("expected nil quotes, got bid=%v ask=%v", second.Bid, second.Ask)
	}
}

func TestNormalizeTrades_ColumnarRows(t *testing.T) {
	body := []byte(`{
		"header": {"format": ["ms_of_day", "date", "strike_price", "put_call", "trade_price", "qty", "expiry"]},
		"response": [
			[34200000, 20260828, 230, "P", 0.95, 5, 20260918]
		]
	}`)

	trades, err := normalizeTrades(body, "AAPL")
	if err != nil {
		t.Fatalf("normalizeTrades failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	got := trades[0]
	if got.Strike != 230 {
		t.Errorf("Strike mismatch: got %g", got.Strike)
	}
	if got.Right != domain.RightPut {
		t.Errorf("Right mismatch: got %s", got.Right)
	}
	if got.Expiration != "2026-09-18" {
		t.Errorf("Expiration mismatch: got %s", got.Expiration)
	}
	// 09:30 exchange time on 2026-08-28 (EDT, UTC-4) = 13:30 UTC.
	want := int64(1787923800000)
	if got.TradeTsMs != want {
		t.Errorf("TradeTsMs mismatch: got %d, want %d", got.TradeTsMs, want)
	}
}

func TestNormalizeTrades_SkipsIncompleteRows(t *testing.T) {
	body := []byte(`{
		"response": [
			{"timestamp": 1787927400000, "expiration": "20260918", "strike": 230, "right": "C", "price": 1.25, "size": 10},
			{"timestamp": 1787927401000, "strike": 230, "right": "C", "price": 1.25, "size": 10},
			{"timestamp": 1787927402000, "expiration": "20260918", "strike": 230, "right": "X", "price": 1.25, "size": 10}
		]
	}`)

	trades, err := normalizeTrades(body, "AAPL")
	if err != nil {
		t.Fatalf("normalizeTrades failed: %v", err)
	}
	if len(trades) != 1 {
		t.Errorf("expected only the complete row, got %d", len(trades))
	}
}

func TestNormalizeTrades_DeterministicIDs(t *testing.T) {
	body := []byte(`{"response": [
		{"timestamp": 1787927400000, "expiration": "20260918", "strike": 230, "right": "C", "price": 1.25, "size": 10, "exchange": "CBOE"}
	]}`)

	// Same tick via the columnar shape with aliased field names.
	alt := []byte(`{
		"header": {"format": ["ts_ms", "expiry", "strike_price", "put_call", "trade_price", "qty", "exchange_name"]},
		"response": [[1787927400000, "2026-09-18", 230, "CALL", 1.25, 10, "CBOE"]]
	}`)

	a, err := normalizeTrades(body, "AAPL")
	if err != nil {
		t.Fatalf("normalizeTrades failed: %v", err)
	}
	b, err := normalizeTrades(alt, "AAPL")
	if err != nil {
		t.Fatalf("normalizeTrades alt failed: %v", err)
	}
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 trade each, got %d and %d", len(a), len(b))
	}
	if a[0].TradeID != b[0].TradeID {
		t.Errorf("same tick hashed differently across shapes: %s vs %s", a[0].TradeID, b[0].TradeID)
	}
}

func TestNormalizeOpenInterest(t *testing.T) {
	body := []byte(`{"response": [
		{"expiration": "20260918", "strike": 230, "right": "C", "open_interest": 1500},
		{"expiration": "20260918", "strike": 235, "right": "P", "oi": 800},
		{"expiration": "20260918", "strike": 240, "right": "C"}
	]}`)

	oi, err := normalizeOpenInterest(body, "AAPL")
	if err != nil {
		t.Fatalf("normalizeOpenInterest failed: %v", err)
	}
	if len(oi) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(oi))
	}

	call := domain.ContractKey{Symbol: "AAPL", Expiration: "2026-09-18", Strike: 230, Right: domain.RightCall}
	if oi[call] != 1500 {
		t.Errorf("call OI mismatch: got %d, want 1500", oi[call])
	}
	put := domain.ContractKey{Symbol: "AAPL", Expiration: "2026-09-18", Strike: 235, Right: domain.RightPut}
	if oi[put] != 800 {
		t.Errorf("put OI mismatch: got %d, want 800", oi[put])
	}
}

func TestNormalizeSpot(t *testing.T) {
	spot, err := normalizeSpot([]byte(`{"response": [{"close": 231.45}]}`))
	if err != nil {
		t.Fatalf("normalizeSpot failed: %v", err)
	}
	if spot == nil || *spot != 231.45 {
		t.Errorf("spot mismatch: got %v", spot)
	}

	empty, err := normalizeSpot([]byte(`{"response": []}`))
	if err != nil {
		t.Fatalf("normalizeSpot empty failed: %v", err)
	}
	if empty != nil {
		t.Errorf("expected nil spot for empty response, got %v", *empty)
	}
}
