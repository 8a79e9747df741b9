// Package main provides the unified options-flow service:
// - HTTP API: /api/flow/historical query endpoint
// - Optional ingest poller keeping configured symbols current
// - Health, status and Prometheus metrics endpoints
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"options-flow-lab/internal/chips"
	"options-flow-lab/internal/enrichment"
	"options-flow-lab/internal/histquery"
	"options-flow-lab/internal/httpapi"
	"options-flow-lab/internal/ingest"
	"options-flow-lab/internal/storage"
	chstore "options-flow-lab/internal/storage/clickhouse"
	"options-flow-lab/internal/storage/memory"
	"options-flow-lab/internal/storage/migrations"
	pgstore "options-flow-lab/internal/storage/postgres"
	"options-flow-lab/internal/thetadata"
)

// Server holds the wired components of the unified service.
type Server struct {
	addr         string
	symbols      []string
	pollInterval time.Duration

	engine *histquery.Engine
	poller *ingest.Runner
	logger *log.Logger

	mu      sync.Mutex
	started time.Time
}

// allStores holds every storage implementation the service uses.
type allStores struct {
	raw             storage.RawTradeStore
	dayCache        storage.DayCacheStore
	metricCache     storage.MetricCacheStore
	enriched        storage.EnrichedTradeStore
	contractStats   storage.ContractStatsStore
	referenceOI     storage.ReferenceOIStore
	symbolRollups   storage.SymbolRollupStore
	contractRollups storage.ContractRollupStore
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	thetaURL := flag.String("thetadata-url", os.Getenv("THETADATA_URL"), "ThetaData REST base URL")
	symbols := flag.String("symbols", os.Getenv("INGEST_SYMBOLS"), "Comma-separated symbols for the ingest poller (empty disables polling)")
	pollInterval := flag.Duration("poll-interval", time.Minute, "Ingest poll interval")
	thresholdsPath := flag.String("thresholds", os.Getenv("CHIP_THRESHOLDS"), "Optional chip thresholds YAML file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	thresholds, err := chips.LoadThresholds(*thresholdsPath)
	if err != nil {
		logger.Fatalf("Failed to load chip thresholds: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	client := thetadata.NewClient(*thetaURL)
	if !client.Configured() {
		logger.Println("THETADATA_URL not set: queries needing a sync will fail with thetadata_not_configured")
	}

	chipEngine := chips.NewEngine()
	resolver := enrichment.NewResolver(stores.contractStats, stores.referenceOI, client,
		log.New(os.Stdout, "[enrichment] ", log.LstdFlags))
	builder := enrichment.NewBuilder(chipEngine, thresholds)
	runner := enrichment.NewRunner(enrichment.Stores{
		Raw:             stores.raw,
		Enriched:        stores.enriched,
		MetricCache:     stores.metricCache,
		ContractStats:   stores.contractStats,
		SymbolRollups:   stores.symbolRollups,
		ContractRollups: stores.contractRollups,
	}, resolver, builder, log.New(os.Stdout, "[enrichment] ", log.LstdFlags))

	engine := histquery.NewEngine(histquery.Stores{
		Raw:         stores.raw,
		DayCache:    stores.dayCache,
		MetricCache: stores.metricCache,
		Enriched:    stores.enriched,
	}, chipEngine, runner, client, log.New(os.Stdout, "[histquery] ", log.LstdFlags))

	server := &Server{
		addr:         *addr,
		symbols:      splitSymbols(*symbols),
		pollInterval: *pollInterval,
		engine:       engine,
		logger:       logger,
		started:      time.Now(),
	}

	if len(server.symbols) > 0 {
		server.poller = ingest.NewRunner(ingest.RunnerOptions{
			Client:   client,
			RawStore: stores.raw,
			DayCache: stores.dayCache,
			Enricher: runner,
			Symbols:  server.symbols,
			Interval: *pollInterval,
			Logger:   log.New(os.Stdout, "[ingest] ", log.LstdFlags),
		})
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// Run starts the HTTP server and, when configured, the ingest poller. It
// blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	httpapi.NewAPI(s.engine, s.logger).Register(mux)
	mux.HandleFunc("/status", s.handleStatus)

	httpServer := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 2)

	go func() {
		s.logger.Printf("HTTP server listening on %s", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.poller != nil {
		go func() {
			if err := s.poller.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("ingest poller: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("HTTP shutdown error: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status         string   `json:"status"`
	Uptime         string   `json:"uptime"`
	PolledSymbols  []string `json:"polled_symbols,omitempty"`
	PollerEnabled  bool     `json:"poller_enabled"`
	PollIntervalMs int64    `json:"poll_interval_ms,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		PolledSymbols: s.symbols,
		PollerEnabled: s.poller != nil,
	}
	if s.poller != nil {
		resp.PollIntervalMs = s.pollInterval.Milliseconds()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// createStores creates all required stores, running migrations against the
// real backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			raw:             memory.NewRawTradeStore(),
			dayCache:        memory.NewDayCacheStore(),
			metricCache:     memory.NewMetricCacheStore(),
			enriched:        memory.NewEnrichedTradeStore(),
			contractStats:   memory.NewContractStatsStore(),
			referenceOI:     memory.NewReferenceOIStore(),
			symbolRollups:   memory.NewSymbolRollupStore(),
			contractRollups: memory.NewContractRollupStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (transactional source data + caches)
		raw:           pgstore.NewRawTradeStore(pool),
		dayCache:      pgstore.NewDayCacheStore(pool),
		metricCache:   pgstore.NewMetricCacheStore(pool),
		enriched:      pgstore.NewEnrichedTradeStore(pool),
		contractStats: pgstore.NewContractStatsStore(pool),
		referenceOI:   pgstore.NewReferenceOIStore(pool),

		// ClickHouse stores (analytics rollups)
		symbolRollups:   chstore.NewSymbolRollupStore(chConn),
		contractRollups: chstore.NewContractRollupStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
