package enrichment

import (
	"testing"

	"options-flow-lab/internal/domain"
)

func TestRepeatWindow_InclusiveBound(t *testing.T) {
	w := newRepeatWindow()
	contract := domain.ContractKey{Symbol: "AAPL", Expiration: "2026-09-18", Strike: 230, Right: domain.RightCall}

	base := int64(1787927400000)
	if got := w.Add(contract, "ASK", base); got != 1 {
		t.Errorf("first add: got %d, want 1", got)
	}
	// Exactly 180s later: the first trade is still inside the window.
	if got := w.Add(contract, "ASK", base+180_000); got != 2 {
		t.Errorf("at boundary: got %d, want 2", got)
	}
	// 180s + 1ms after the first: it falls out.
	if got := w.Add(contract, "ASK", base+180_001); got != 2 {
		t.Errorf("past boundary: got %d, want 2", got)
	}
}

func TestRepeatWindow_KeyedByContractAndSide(t *testing.T) {
	w := newRepeatWindow()
	call := domain.ContractKey{Symbol: "AAPL", Expiration: "2026-09-18", Strike: 230, Right: domain.RightCall}
	put := call
	put.Right = domain.RightPut

	base := int64(1787927400000)
	w.Add(call, "ASK", base)
	w.Add(call, "BID", base+1000)
	if got := w.Add(put, "ASK", base+2000); got != 1 {
		t.Errorf("different contract: got %d, want 1", got)
	}
	if got := w.Add(call, "ASK", base+3000); got != 2 {
		t.Errorf("same contract+side: got %d, want 2", got)
	}
}

func TestMinuteWindow_EvictionAndBaseline(t *testing.T) {
	var w minuteWindow

	base := int64(1787925600000) // minute-aligned

	w.Add(base, 100)
	w.Add(base+60_000, 200)
	if got := w.Sum(); got != 300 {
		t.Errorf("Sum: got %d, want 300", got)
	}

	// Baseline for the second minute averages only prior minutes.
	if got := w.Baseline(base + 60_000); got != 100 {
		t.Errorf("Baseline: got %g, want 100", got)
	}

	// 16 minutes after base: the first bucket is outside [cur-15m, cur].
	cur := base + 16*60_000
	w.Add(cur, 50)
	if got := w.Sum(); got != 250 {
		t.Errorf("Sum after eviction: got %d, want 250", got)
	}
	if got := w.Current(cur); got != 50 {
		t.Errorf("Current: got %d, want 50", got)
	}
}

func TestMinuteWindow_BaselineFallsBackToCurrentMinute(t *testing.T) {
	var w minuteWindow
	base := int64(1787925600000)

	w.Add(base, 40)
	if got := w.Baseline(base); got != 40 {
		t.Errorf("Baseline with no prior minutes: got %g, want 40", got)
	}
}
