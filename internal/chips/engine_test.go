package chips

import (
	"reflect"
	"testing"

	"options-flow-lab/internal/domain"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestResolve_Aliases(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"whales"}, []string{"whales"}},
		{[]string{"Whale"}, []string{"whales"}},
		{[]string{"position-builder"}, []string{"positionBuilder"}},
		{[]string{"Position Builder"}, []string{"positionBuilder"}},
		{[]string{"VOL/OI"}, []string{"volOverOi"}},
		{[]string{"above-ask", "leaps"}, []string{"aa", "leaps"}},
		// duplicates collapse
		{[]string{"whales", "whale", "Whales"}, []string{"whales"}},
		// empty entries are skipped
		{[]string{"", " ", "otm"}, []string{"otm"}},
	}

	for _, tt := range tests {
		got, err := e.Resolve(tt.in)
		if err != nil {
			t.Fatalf("Resolve(%v) error: %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolve_Unknown(t *testing.T) {
	e := NewEngine()
	if _, err := e.Resolve([]string{"whales", "nonsense"}); err == nil {
		t.Error("expected error for unknown chip name")
	}
}

func TestRequiredMetrics_Union(t *testing.T) {
	e := NewEngine()

	got := e.RequiredMetrics([]string{"otm"})
	want := []string{domain.MetricOtmPct, domain.MetricSpot}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RequiredMetrics(otm) = %v, want %v", got, want)
	}

	// Union across chips is deduplicated and sorted
	got = e.RequiredMetrics([]string{"unusual", "volOverOi", "whales"})
	want = []string{domain.MetricOI, domain.MetricValue, domain.MetricVolOiRatio}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RequiredMetrics(unusual+volOverOi+whales) = %v, want %v", got, want)
	}

	if len(e.RequiredMetrics(nil)) != 0 {
		t.Error("RequiredMetrics(nil) should be empty")
	}
}

func TestEvaluate_LeapsAndWeeklies(t *testing.T) {
	e := NewEngine()
	th := DefaultThresholds()

	leaps := &domain.EnrichedTrade{Dte: i(400), StandardExpiry: true}
	got := e.Evaluate(leaps, th)
	if !contains(got, "leaps") {
		t.Errorf("dte=400 should carry leaps, got %v", got)
	}
	if contains(got, "weeklies") {
		t.Errorf("standard expiry should not carry weeklies, got %v", got)
	}

	notLeaps := &domain.EnrichedTrade{Dte: i(364), StandardExpiry: false}
	got = e.Evaluate(notLeaps, th)
	if contains(got, "leaps") {
		t.Errorf("dte=364 should not carry leaps, got %v", got)
	}
	if !contains(got, "weeklies") {
		t.Errorf("non-standard expiry should carry weeklies, got %v", got)
	}
}

func TestEvaluate_Composites(t *testing.T) {
	e := NewEngine()
	th := DefaultThresholds()

	trade := &domain.EnrichedTrade{
		Side:           domain.SideAboveAsk,
		Repeat3m:       4,
		Value:          f64(50_000),
		VolOiRatio:     f64(3.5),
		OtmPct:         f64(8),
		Dte:            i(5),
		StandardExpiry: false,
	}

	got := e.Evaluate(trade, th)
	for _, id := range []string{"aa", "repeat", "otm", "volOverOi", "unusual", "urgent", "grenade", "weeklies"} {
		if !contains(got, id) {
			t.Errorf("expected chip %s in %v", id, got)
		}
	}
	if contains(got, "whales") {
		t.Errorf("value 50k should not be whales, got %v", got)
	}

	// Drop the aggressive side: urgent and grenade vanish, unusual stays.
	trade.Side = domain.SideBid
	got = e.Evaluate(trade, th)
	if contains(got, "urgent") || contains(got, "grenade") || contains(got, "aa") {
		t.Errorf("bid-side trade should not carry aggressive composites, got %v", got)
	}
	if !contains(got, "unusual") {
		t.Errorf("unusual is side-independent, got %v", got)
	}
}

func TestEvaluate_VolumeSpikes(t *testing.T) {
	e := NewEngine()
	th := DefaultThresholds()

	trade := &domain.EnrichedTrade{
		MinuteVolume:   900,
		VolBaseline15m: f64(100),
		AMBaseline15m:  f64(200),
		AMWindow:       true,
	}
	got := e.Evaluate(trade, th)
	if !contains(got, "risingVol") {
		t.Errorf("9x baseline should be risingVol, got %v", got)
	}
	if !contains(got, "amSpike") {
		t.Errorf("4.5x AM baseline inside window should be amSpike, got %v", got)
	}

	// Outside the session window the AM spike never fires.
	trade.AMWindow = false
	got = e.Evaluate(trade, th)
	if contains(got, "amSpike") {
		t.Errorf("amSpike outside window, got %v", got)
	}

	// Missing baseline means no spike classification.
	trade.VolBaseline15m = nil
	got = e.Evaluate(trade, th)
	if contains(got, "risingVol") {
		t.Errorf("risingVol without baseline, got %v", got)
	}
}

func TestLoadThresholds_Defaults(t *testing.T) {
	th, err := LoadThresholds("")
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.LeapsDteMin != 365 {
		t.Errorf("default LeapsDteMin = %d, want 365", th.LeapsDteMin)
	}
	if th.WhaleValueMin != 250_000 {
		t.Errorf("default WhaleValueMin = %v, want 250000", th.WhaleValueMin)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
