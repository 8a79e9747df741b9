// Package main provides the standalone ingest worker: it polls the upstream
// feed for the current UTC day of each configured symbol and keeps the raw
// trade store and enrichment current.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"options-flow-lab/internal/chips"
	"options-flow-lab/internal/enrichment"
	"options-flow-lab/internal/ingest"
	"options-flow-lab/internal/observability"
	chstore "options-flow-lab/internal/storage/clickhouse"
	"options-flow-lab/internal/storage/migrations"
	pgstore "options-flow-lab/internal/storage/postgres"
	"options-flow-lab/internal/thetadata"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	thetaURL := flag.String("thetadata-url", os.Getenv("THETADATA_URL"), "ThetaData REST base URL")
	symbols := flag.String("symbols", os.Getenv("INGEST_SYMBOLS"), "Comma-separated symbols to poll")
	interval := flag.Duration("interval", time.Minute, "Poll interval")
	thresholdsPath := flag.String("thresholds", os.Getenv("CHIP_THRESHOLDS"), "Optional chip thresholds YAML file")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}
	if *thetaURL == "" {
		logger.Fatal("--thetadata-url is required")
	}

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}

	thresholds, err := chips.LoadThresholds(*thresholdsPath)
	if err != nil {
		logger.Fatalf("Failed to load chip thresholds: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations failed: %v", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("ClickHouse migrations failed: %v", err)
	}
	defer chConn.Close()

	client := thetadata.NewClient(*thetaURL)
	chipEngine := chips.NewEngine()

	raw := pgstore.NewRawTradeStore(pool)
	dayCache := pgstore.NewDayCacheStore(pool)
	contractStats := pgstore.NewContractStatsStore(pool)

	enricher := enrichment.NewRunner(enrichment.Stores{
		Raw:             raw,
		Enriched:        pgstore.NewEnrichedTradeStore(pool),
		MetricCache:     pgstore.NewMetricCacheStore(pool),
		ContractStats:   contractStats,
		SymbolRollups:   chstore.NewSymbolRollupStore(chConn),
		ContractRollups: chstore.NewContractRollupStore(chConn),
	},
		enrichment.NewResolver(contractStats, pgstore.NewReferenceOIStore(pool), client, logger),
		enrichment.NewBuilder(chipEngine, thresholds),
		logger,
	)

	runner := ingest.NewRunner(ingest.RunnerOptions{
		Client:   client,
		RawStore: raw,
		DayCache: dayCache,
		Enricher: enricher,
		Symbols:  symbolList,
		Interval: *interval,
		Logger:   logger,
	})

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ok")
		})
		logger.Printf("Metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Ingest runner error: %v", err)
	}
	logger.Println("Shutdown complete")
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
