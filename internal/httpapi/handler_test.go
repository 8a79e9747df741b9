package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"options-flow-lab/internal/chips"
	"options-flow-lab/internal/enrichment"
	"options-flow-lab/internal/histquery"
	"options-flow-lab/internal/storage/memory"
	"options-flow-lab/internal/thetadata"
)

// newTestAPI wires an engine over memory stores and a fake upstream. The
// fake serves two AAPL trades on 2026-08-28 and no spot quote.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hist/option/trade":
			fmt.Fprint(w, `{"response": [
				{"timestamp": 1787927400000, "expiration": "2026-09-18", "strike": 212.5, "right": "C", "price": 1.87, "size": 200, "bid": 1.84, "ask": 1.88},
				{"timestamp": 1787927430000, "expiration": "2026-09-18", "strike": 215, "right": "C", "price": 2.11, "size": 340}
			]}`)
		default:
			fmt.Fprint(w, `{"response": []}`)
		}
	}))
	t.Cleanup(upstream.Close)

	logger := log.New(os.Stderr, "[httpapi-test] ", log.LstdFlags)
	client := thetadata.NewClient(upstream.URL)
	chipEngine := chips.NewEngine()

	raw := memory.NewRawTradeStore()
	metric := memory.NewMetricCacheStore()
	enriched := memory.NewEnrichedTradeStore()
	stats := memory.NewContractStatsStore()

	runner := enrichment.NewRunner(enrichment.Stores{
		Raw:             raw,
		Enriched:        enriched,
		MetricCache:     metric,
		ContractStats:   stats,
		SymbolRollups:   memory.NewSymbolRollupStore(),
		ContractRollups: memory.NewContractRollupStore(),
	},
		enrichment.NewResolver(stats, memory.NewReferenceOIStore(), client, logger),
		enrichment.NewBuilder(chipEngine, chips.DefaultThresholds()),
		logger,
	)

	engine := histquery.NewEngine(histquery.Stores{
		Raw:         raw,
		DayCache:    memory.NewDayCacheStore(),
		MetricCache: metric,
		Enriched:    enriched,
	}, chipEngine, runner, client, logger)

	mux := http.NewServeMux()
	NewAPI(engine, logger).Register(mux)
	return mux
}

func TestHandleHistorical_Success(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/flow/historical?symbol=aapl&from=2026-08-28T00:00:00Z&to=2026-08-28T23:59:59Z&minSize=300", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []json.RawMessage `json:"data"`
		Meta struct {
			Total  int64             `json:"total"`
			Filter map[string]string `json:"filter"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Meta.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("got total=%d rows=%d, want the single 340-lot", resp.Meta.Total, len(resp.Data))
	}
	if resp.Meta.Filter["minSize"] != "300" {
		t.Errorf("filter echo missing minSize, got %v", resp.Meta.Filter)
	}
}

func TestHandleHistorical_InvalidQuery(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/flow/historical?symbol=AAPL&to=2026-08-28T23:59:59Z", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	var resp struct {
		Status int `json:"status"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != histquery.CodeInvalidQuery || resp.Status != http.StatusBadRequest {
		t.Errorf("got %+v, want invalid_query/400", resp)
	}
}

func TestHandleHistorical_MetricUnavailable(t *testing.T) {
	api := newTestAPI(t)

	// No spot source upstream: otm filtering cannot be satisfied.
	req := httptest.NewRequest(http.MethodGet,
		"/api/flow/historical?symbol=AAPL&from=2026-08-28T00:00:00Z&to=2026-08-28T23:59:59Z&chips=otm", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error struct {
			Code    string                     `json:"code"`
			Details map[string]json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != histquery.CodeMetricUnavailable {
		t.Errorf("code: got %s, want metric_unavailable", resp.Error.Code)
	}
	if _, ok := resp.Error.Details["metrics"]; !ok {
		t.Error("details should list the unsatisfied metrics")
	}
}

func TestHandleHistorical_MethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/flow/historical", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rec.Code, rec.Body.String())
	}
}
