package formula

import (
	"math"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestValue(t *testing.T) {
	v := Value(1.87, 200)
	if v == nil || *v != 37400 {
		t.Fatalf("Value(1.87, 200) = %v, want 37400", v)
	}

	if Value(math.NaN(), 10) != nil {
		t.Error("Value with NaN price should be nil")
	}
	if Value(math.Inf(1), 10) != nil {
		t.Error("Value with Inf price should be nil")
	}
}

func TestDte(t *testing.T) {
	// Trade at 2026-09-01 14:00 UTC, expiring 2026-09-18 (anchored 21:00 UTC).
	trade := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC).UnixMilli()
	d := Dte("2026-09-18", trade)
	if d == nil {
		t.Fatal("Dte returned nil for valid expiration")
	}
	// 17 days + 7 hours, ceiling = 18
	if *d != 18 {
		t.Errorf("Dte = %d, want 18", *d)
	}

	// Trade on expiration day before the anchor: ceiling is 1.
	sameDay := time.Date(2026, 9, 18, 15, 0, 0, 0, time.UTC).UnixMilli()
	d = Dte("2026-09-18", sameDay)
	if d == nil || *d != 1 {
		t.Errorf("same-day Dte = %v, want 1", d)
	}

	if Dte("not-a-date", trade) != nil {
		t.Error("Dte with invalid expiration should be nil")
	}
}

func TestExecutionSide(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		bid   *float64
		ask   *float64
		want  string
	}{
		// spread = 0.04, aaThreshold = 1.88 + max(0.01, 0.004) = 1.89
		{"at ask", 1.88, f64(1.84), f64(1.88), SideAsk},
		{"above aa threshold", 1.90, f64(1.84), f64(1.88), SideAboveAsk},
		{"exactly aa threshold", 1.89, f64(1.84), f64(1.88), SideAboveAsk},
		{"at bid", 1.84, f64(1.84), f64(1.88), SideBid},
		{"below bid", 1.80, f64(1.84), f64(1.88), SideBid},
		{"midpoint", 1.86, f64(1.84), f64(1.88), SideOther},
		{"missing bid", 1.86, nil, f64(1.88), SideOther},
		{"missing ask", 1.86, f64(1.84), nil, SideOther},
		{"nan bid", 1.86, f64(math.NaN()), f64(1.88), SideOther},
		// wide spread: aaThreshold = 2.00 + max(0.01, 0.10*1.00) = 2.10
		{"wide spread below aa", 2.05, f64(1.00), f64(2.00), SideAsk},
		{"wide spread at aa", 2.10, f64(1.00), f64(2.00), SideAboveAsk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExecutionSide(tt.price, tt.bid, tt.ask)
			if got != tt.want {
				t.Errorf("ExecutionSide(%v) = %s, want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestExecutionSide_Invariants(t *testing.T) {
	// AA implies price >= ask; BID implies price <= bid; mutually exclusive.
	bid, ask := 1.84, 1.88
	for price := 1.70; price <= 2.00; price += 0.001 {
		side := ExecutionSide(price, &bid, &ask)
		if side == SideAboveAsk && price < ask {
			t.Fatalf("AA at price %v below ask %v", price, ask)
		}
		if side == SideBid && price > bid {
			t.Fatalf("BID at price %v above bid %v", price, bid)
		}
	}
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		right, side, want string
	}{
		{"CALL", SideAsk, SentimentBullish},
		{"CALL", SideAboveAsk, SentimentBullish},
		{"PUT", SideBid, SentimentBullish},
		{"PUT", SideAsk, SentimentBearish},
		{"PUT", SideAboveAsk, SentimentBearish},
		{"CALL", SideBid, SentimentBearish},
		{"CALL", SideOther, SentimentNeutral},
		{"PUT", SideOther, SentimentNeutral},
	}

	for _, tt := range tests {
		if got := Sentiment(tt.right, tt.side); got != tt.want {
			t.Errorf("Sentiment(%s, %s) = %s, want %s", tt.right, tt.side, got, tt.want)
		}
	}
}

func TestOtmPct(t *testing.T) {
	// CALL strike 212.5, spot 200 -> +6.25%
	got := OtmPct("CALL", 212.5, f64(200))
	if got == nil || math.Abs(*got-6.25) > 1e-9 {
		t.Errorf("call OtmPct = %v, want 6.25", got)
	}

	// PUT strike 190, spot 200 -> +5%
	got = OtmPct("PUT", 190, f64(200))
	if got == nil || math.Abs(*got-5.0) > 1e-9 {
		t.Errorf("put OtmPct = %v, want 5", got)
	}

	// ITM call is negative
	got = OtmPct("CALL", 180, f64(200))
	if got == nil || *got >= 0 {
		t.Errorf("ITM call OtmPct = %v, want negative", got)
	}

	if OtmPct("CALL", 212.5, nil) != nil {
		t.Error("OtmPct with missing spot should be nil")
	}
	if OtmPct("CALL", 212.5, f64(0)) != nil {
		t.Error("OtmPct with zero spot should be nil")
	}
}

func TestIsStandardExpiry(t *testing.T) {
	tests := []struct {
		expiration string
		want       bool
	}{
		{"2026-09-18", true},  // 3rd Friday of September 2026
		{"2026-10-16", true},  // 3rd Friday of October 2026
		{"2026-09-11", false}, // 2nd Friday (weekly)
		{"2026-09-25", false}, // 4th Friday
		{"2026-09-16", false}, // Wednesday
		{"garbage", false},
	}

	for _, tt := range tests {
		if got := IsStandardExpiry(tt.expiration); got != tt.want {
			t.Errorf("IsStandardExpiry(%s) = %v, want %v", tt.expiration, got, tt.want)
		}
	}
}

func TestMinuteBucket(t *testing.T) {
	ts := time.Date(2026, 8, 28, 14, 31, 42, 250e6, time.UTC).UnixMilli()
	want := time.Date(2026, 8, 28, 14, 31, 0, 0, time.UTC).UnixMilli()
	if got := MinuteBucket(ts); got != want {
		t.Errorf("MinuteBucket = %d, want %d", got, want)
	}
	if got := MinuteBucket(want); got != want {
		t.Errorf("MinuteBucket on bucket start = %d, want %d", got, want)
	}
}

func TestInAMWindow(t *testing.T) {
	// 2026-08-28 is during DST: 09:30 New York == 13:30 UTC.
	ny := func(h, m int) int64 {
		return time.Date(2026, 8, 28, h, m, 0, 0, exchangeTZ).UnixMilli()
	}

	if !InAMWindow(ny(9, 30)) {
		t.Error("09:30 should be inside the AM window")
	}
	if !InAMWindow(ny(10, 30)) {
		t.Error("10:30 is inclusive and should be inside")
	}
	if !InAMWindow(ny(10, 0)) {
		t.Error("10:00 should be inside the AM window")
	}
	if InAMWindow(ny(9, 29)) {
		t.Error("09:29 should be outside the AM window")
	}
	if InAMWindow(ny(10, 31)) {
		t.Error("10:31 should be outside the AM window")
	}
}

func TestSideConfidence(t *testing.T) {
	tests := []struct {
		side string
		want float64
	}{
		{SideAboveAsk, 1.0},
		{SideAsk, 0.85},
		{SideBid, 0.70},
		{SideOther, 0.25},
		{"", 0.25},
	}
	for _, tt := range tests {
		if got := SideConfidence(tt.side); got != tt.want {
			t.Errorf("SideConfidence(%s) = %v, want %v", tt.side, got, tt.want)
		}
	}
}

func TestSigScore(t *testing.T) {
	// All inputs at 1.0 -> exactly 1.0
	if got := SigScore(1, 1, 1, 1, 1); got != 1.0 {
		t.Errorf("max SigScore = %v, want 1.0", got)
	}

	// All zero -> 0
	if got := SigScore(0, 0, 0, 0, 0); got != 0 {
		t.Errorf("min SigScore = %v, want 0", got)
	}

	// Inputs outside [0,1] are clamped before weighting
	if got := SigScore(5, -3, 2, -1, 9); got != 1.0 {
		t.Errorf("clamped SigScore = %v, want 1.0", got)
	}

	// Weighted blend: 0.35*0.5 + 0.25*0.4 + 0.20*1 + 0.10*0 + 0.10*0.85
	want := math.Round((0.35*0.5+0.25*0.4+0.20*1+0.10*0+0.10*0.85)*1e6) / 1e6
	if got := SigScore(0.5, 0.4, 1, 0, 0.85); got != want {
		t.Errorf("SigScore = %v, want %v", got, want)
	}
}

func TestMinMaxNorm(t *testing.T) {
	if got := MinMaxNorm(50, 0, 100); got != 0.5 {
		t.Errorf("MinMaxNorm(50,0,100) = %v, want 0.5", got)
	}
	// Degenerate distribution maps non-null values to 1.0
	if got := MinMaxNorm(37400, 37400, 37400); got != 1.0 {
		t.Errorf("degenerate MinMaxNorm = %v, want 1.0", got)
	}
}
