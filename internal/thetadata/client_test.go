package thetadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("")
	ctx := context.Background()

	if client.Configured() {
		t.Error("empty baseURL should not be configured")
	}

	_, _, err := client.HistoricalTrades(ctx, "AAPL", "2026-08-28", 0)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestClient_HistoricalTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hist/option/trade" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("root"); got != "AAPL" {
			t.Errorf("root mismatch: got %s", got)
		}
		if got := r.URL.Query().Get("date"); got != "2026-08-28" {
			t.Errorf("date mismatch: got %s", got)
		}
		fmt.Fprint(w, `{"response": [
			{"timestamp": 1787927400000, "expiration": "20260918", "strike": 230, "right": "C", "price": 1.25, "size": 10}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	trades, truncated, err := client.HistoricalTrades(context.Background(), "AAPL", "2026-08-28", 0)
	if err != nil {
		t.Fatalf("HistoricalTrades failed: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation with no limit")
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Symbol != "AAPL" {
		t.Errorf("Symbol mismatch: got %s", trades[0].Symbol)
	}
}

func TestClient_HistoricalTradesTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit mismatch: got %s", got)
		}
		fmt.Fprint(w, `{"response": [
			{"timestamp": 1787927400000, "expiration": "20260918", "strike": 230, "right": "C", "price": 1.25, "size": 10},
			{"timestamp": 1787927401000, "expiration": "20260918", "strike": 230, "right": "C", "price": 1.30, "size": 4}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	trades, truncated, err := client.HistoricalTrades(context.Background(), "AAPL", "2026-08-28", 2)
	if err != nil {
		t.Fatalf("HistoricalTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if !truncated {
		t.Error("expected truncation when row count equals limit")
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"response": []}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryDelay(time.Millisecond), WithMaxRetries(3))
	_, _, err := client.HistoricalTrades(context.Background(), "AAPL", "2026-08-28", 0)
	if err != nil {
		t.Fatalf("HistoricalTrades failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestClient_NotFoundMeansNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	trades, truncated, err := client.HistoricalTrades(context.Background(), "AAPL", "2026-08-28", 0)
	if err != nil {
		t.Fatalf("HistoricalTrades failed: %v", err)
	}
	if len(trades) != 0 || truncated {
		t.Errorf("expected empty result, got %d trades truncated=%v", len(trades), truncated)
	}

	spot, err := client.SpotPrice(context.Background(), "AAPL", "2026-08-28")
	if err != nil {
		t.Fatalf("SpotPrice failed: %v", err)
	}
	if spot != nil {
		t.Errorf("expected nil spot, got %v", *spot)
	}
}
