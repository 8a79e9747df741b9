package enrichment

import (
	"options-flow-lab/internal/domain"
)

// Sliding-window state for one build pass. All windows are trailing and
// bounded within a single UTC day; eviction keeps entries inside
// [current - span, current] before the current entry is admitted.

const (
	repeatSpanMs = 180_000       // 3 minutes
	minuteSpanMs = 15 * 60_000   // 15 minutes
)

type repeatKey struct {
	contract domain.ContractKey
	side     string
}

// repeatWindow tracks trade timestamps per (contract, side) over a trailing
// 180 second span.
type repeatWindow struct {
	byKey map[repeatKey][]int64
}

func newRepeatWindow() *repeatWindow {
	return &repeatWindow{byKey: make(map[repeatKey][]int64)}
}

// Add inserts the current trade and returns the window size including it.
// The window bound is inclusive: a trade exactly 180s old still counts.
func (w *repeatWindow) Add(contract domain.ContractKey, side string, tsMs int64) int {
	key := repeatKey{contract: contract, side: side}
	q := w.byKey[key]

	cutoff := tsMs - repeatSpanMs
	start := 0
	for start < len(q) && q[start] < cutoff {
		start++
	}
	q = append(q[start:], tsMs)
	w.byKey[key] = q
	return len(q)
}

type minuteEntry struct {
	minuteMs int64
	value    int64
}

// minuteWindow accumulates a per-minute counter over a trailing 15 minute
// span. Entries are kept in ascending minute order; trades arrive in
// timestamp order so appends never go backwards.
type minuteWindow struct {
	entries []minuteEntry
}

// Add evicts minutes outside [minuteMs - 15min, minuteMs] and then adds
// delta to the current minute's bucket.
func (w *minuteWindow) Add(minuteMs, delta int64) {
	w.evict(minuteMs)

	n := len(w.entries)
	if n > 0 && w.entries[n-1].minuteMs == minuteMs {
		w.entries[n-1].value += delta
		return
	}
	w.entries = append(w.entries, minuteEntry{minuteMs: minuteMs, value: delta})
}

func (w *minuteWindow) evict(currentMinuteMs int64) {
	cutoff := currentMinuteMs - minuteSpanMs
	start := 0
	for start < len(w.entries) && w.entries[start].minuteMs < cutoff {
		start++
	}
	w.entries = w.entries[start:]
}

// Current returns the accumulated value for the given minute.
func (w *minuteWindow) Current(minuteMs int64) int64 {
	n := len(w.entries)
	if n > 0 && w.entries[n-1].minuteMs == minuteMs {
		return w.entries[n-1].value
	}
	return 0
}

// Sum totals all bucket values inside the window.
func (w *minuteWindow) Sum() int64 {
	var sum int64
	for _, e := range w.entries {
		sum += e.value
	}
	return sum
}

// Baseline returns the per-minute average over buckets strictly before the
// given minute. With no prior buckets it falls back to the current minute's
// value, so a day's first minute never reads as a spike against itself.
func (w *minuteWindow) Baseline(currentMinuteMs int64) float64 {
	var sum int64
	var count int
	for _, e := range w.entries {
		if e.minuteMs < currentMinuteMs {
			sum += e.value
			count++
		}
	}
	if count == 0 {
		return float64(w.Current(currentMinuteMs))
	}
	return float64(sum) / float64(count)
}
