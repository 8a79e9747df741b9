package enrichment

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage/memory"
	"options-flow-lab/internal/thetadata"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[resolver-test] ", log.LstdFlags)
}

func ptrI(v int64) *int64 { return &v }

func TestResolver_CostAvoidance(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"response": []}`)
	}))
	defer server.Close()

	r := NewResolver(memory.NewContractStatsStore(), memory.NewReferenceOIStore(), thetadata.NewClient(server.URL), testLogger())
	trades := []*domain.RawTrade{
		rawTrade("t1", 1787927400000, 230, 1.00, 10, nil, nil),
	}

	sup := r.Resolve(context.Background(), "AAPL", "2026-08-28", trades, false, false)
	if calls != 0 {
		t.Errorf("expected no upstream calls when nothing required, got %d", calls)
	}
	if sup.Spot != nil || len(sup.OI) != 0 || sup.OIDefaultZero {
		t.Errorf("expected empty supplement, got %+v", sup)
	}
}

func TestResolver_OIChainPrefersLocalSources(t *testing.T) {
	ctx := context.Background()
	stats := memory.NewContractStatsStore()
	refOI := memory.NewReferenceOIStore()

	var bulkCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bulkCalls++
		fmt.Fprint(w, `{"response": []}`)
	}))
	defer server.Close()

	trades := []*domain.RawTrade{
		rawTrade("t1", 1787927400000, 230, 1.00, 10, nil, nil),
		rawTrade("t2", 1787927401000, 235, 1.00, 10, nil, nil),
	}
	statContract := trades[0].Contract()
	refContract := trades[1].Contract()

	// Contract 230 resolved from cached stats, 235 from the reference table.
	err := stats.ReplaceDay(ctx, "AAPL", "2026-08-28", []*domain.IntradayContractStats{
		{Symbol: "AAPL", Expiration: statContract.Expiration, Strike: statContract.Strike, Right: statContract.Right, Day: "2026-08-28", DayVolume: 5, LastOI: ptrI(111)},
	})
	if err != nil {
		t.Fatalf("seed stats: %v", err)
	}
	err = refOI.ImportBatch(ctx, []*domain.ReferenceOpenInterest{
		{Source: "occ", AsOfDate: "2026-08-28", Symbol: "AAPL", Expiration: refContract.Expiration, Strike: refContract.Strike, Right: refContract.Right, OI: 70, IngestedAtMs: 1},
		{Source: "cftc", AsOfDate: "2026-08-28", Symbol: "AAPL", Expiration: refContract.Expiration, Strike: refContract.Strike, Right: refContract.Right, OI: 80, IngestedAtMs: 2},
	})
	if err != nil {
		t.Fatalf("seed reference oi: %v", err)
	}

	r := NewResolver(stats, refOI, thetadata.NewClient(server.URL), testLogger())
	sup := r.Resolve(ctx, "AAPL", "2026-08-28", trades, false, true)

	if got := sup.OI[statContract]; got != 111 {
		t.Errorf("stats contract OI: got %d, want 111", got)
	}
	// Most recently ingested reference source wins.
	if got := sup.OI[refContract]; got != 80 {
		t.Errorf("reference contract OI: got %d, want 80", got)
	}
	// Everything resolved locally: no upstream traffic.
	if bulkCalls != 0 {
		t.Errorf("expected no upstream calls, got %d", bulkCalls)
	}
	if sup.OIDefaultZero {
		t.Error("default-zero must not flip without a bulk fetch")
	}
}

func TestResolver_BulkFetchFlipsDefaultZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bulk_hist/option/open_interest":
			fmt.Fprint(w, `{"response": [
				{"expiration": "20260918", "strike": 230, "right": "C", "open_interest": 1500}
			]}`)
		default:
			fmt.Fprint(w, `{"response": []}`)
		}
	}))
	defer server.Close()

	trades := []*domain.RawTrade{
		rawTrade("t1", 1787927400000, 230, 1.00, 10, nil, nil),
		rawTrade("t2", 1787927401000, 235, 1.00, 10, nil, nil),
	}

	r := NewResolver(memory.NewContractStatsStore(), memory.NewReferenceOIStore(), thetadata.NewClient(server.URL), testLogger())
	sup := r.Resolve(context.Background(), "AAPL", "2026-08-28", trades, false, true)

	if !sup.OIDefaultZero {
		t.Error("successful bulk fetch should flip default-zero on")
	}
	if got := sup.OI[trades[0].Contract()]; got != 1500 {
		t.Errorf("bulk contract OI: got %d, want 1500", got)
	}
	// 235 is absent from the map; the builder reads it as zero under
	// default-zero semantics.
	if _, ok := sup.OI[trades[1].Contract()]; ok {
		t.Error("missing contract should stay absent from the map")
	}
}

func TestResolver_SwallowsUpstreamFailure(t *testing.T) {
	// Unconfigured client: every upstream call fails fast.
	r := NewResolver(memory.NewContractStatsStore(), memory.NewReferenceOIStore(), thetadata.NewClient(""), testLogger())
	trades := []*domain.RawTrade{
		rawTrade("t1", 1787927400000, 230, 1.00, 10, nil, nil),
	}

	sup := r.Resolve(context.Background(), "AAPL", "2026-08-28", trades, true, true)
	if sup.Spot != nil {
		t.Errorf("expected unresolved spot, got %v", *sup.Spot)
	}
	if len(sup.OI) != 0 || sup.OIDefaultZero {
		t.Errorf("expected unresolved OI, got %+v", sup)
	}
}

func TestResolver_SpotFromInlinePayload(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"response": []}`)
	}))
	defer server.Close()

	trade := rawTrade("t1", 1787927400000, 230, 1.00, 10, nil, nil)
	trade.RawPayload = []byte(`{"spot": 231.5}`)

	r := NewResolver(memory.NewContractStatsStore(), memory.NewReferenceOIStore(), thetadata.NewClient(server.URL), testLogger())
	sup := r.Resolve(context.Background(), "AAPL", "2026-08-28", []*domain.RawTrade{trade}, true, false)

	if sup.Spot == nil || *sup.Spot != 231.5 {
		t.Errorf("Spot: got %v, want 231.5", sup.Spot)
	}
	if calls != 0 {
		t.Errorf("inline spot should avoid the upstream call, got %d calls", calls)
	}
}
