// Package main provides the reference open-interest importer. It loads a
// CSV of per-contract open interest (e.g. an exchange or regulator export)
// into the read-only reference table the enrichment resolver consults.
//
// Expected CSV header: symbol,expiration,strike,right,oi
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage/migrations"
	pgstore "options-flow-lab/internal/storage/postgres"
)

const importBatchSize = 1000

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	file := flag.String("file", "", "CSV file to import")
	source := flag.String("source", "", "Reference source name (e.g. occ, finra)")
	asOfDate := flag.String("as-of-date", "", "Date the open interest is as of (YYYY-MM-DD)")

	flag.Parse()

	logger := log.New(os.Stdout, "[refoi] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *file == "" || *source == "" || *asOfDate == "" {
		logger.Fatal("--file, --source and --as-of-date are required")
	}
	if _, err := time.Parse(domain.DayFormat, *asOfDate); err != nil {
		logger.Fatalf("Invalid --as-of-date %q: want YYYY-MM-DD", *asOfDate)
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations failed: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer f.Close()

	store := pgstore.NewReferenceOIStore(pool)
	imported, skipped, err := importCSV(ctx, store, f, *source, *asOfDate, time.Now().UnixMilli())
	if err != nil {
		logger.Fatalf("Import failed: %v", err)
	}
	logger.Printf("Imported %d rows (%d skipped) from %s as source=%s asOfDate=%s",
		imported, skipped, *file, *source, *asOfDate)
}

// importCSV streams the CSV into the reference store in batches. Rows that
// fail to parse are counted and skipped, not fatal: partial reference data
// is still useful to the resolver.
func importCSV(ctx context.Context, store *pgstore.ReferenceOIStore, r io.Reader, source, asOfDate string, nowMs int64) (imported, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"symbol", "expiration", "strike", "right", "oi"} {
		if _, ok := cols[required]; !ok {
			return 0, 0, fmt.Errorf("csv missing required column %q", required)
		}
	}

	var batch []*domain.ReferenceOpenInterest
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.ImportBatch(ctx, batch); err != nil {
			return fmt.Errorf("import batch: %w", err)
		}
		imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("read csv row: %w", err)
		}

		row, ok := parseRow(record, cols, source, asOfDate, nowMs)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, row)

		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return imported, skipped, err
			}
		}
	}

	if err := flush(); err != nil {
		return imported, skipped, err
	}
	return imported, skipped, nil
}

func parseRow(record []string, cols map[string]int, source, asOfDate string, nowMs int64) (*domain.ReferenceOpenInterest, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	symbol := strings.ToUpper(field("symbol"))
	if symbol == "" {
		return nil, false
	}

	expiration := field("expiration")
	if _, err := time.Parse(domain.DayFormat, expiration); err != nil {
		return nil, false
	}

	strike, err := strconv.ParseFloat(field("strike"), 64)
	if err != nil || strike <= 0 {
		return nil, false
	}

	var right string
	switch strings.ToUpper(field("right")) {
	case "C", "CALL":
		right = domain.RightCall
	case "P", "PUT":
		right = domain.RightPut
	default:
		return nil, false
	}

	oi, err := strconv.ParseInt(field("oi"), 10, 64)
	if err != nil || oi < 0 {
		return nil, false
	}

	return &domain.ReferenceOpenInterest{
		Source:       source,
		AsOfDate:     asOfDate,
		Symbol:       symbol,
		Expiration:   expiration,
		Strike:       strike,
		Right:        right,
		OI:           oi,
		IngestedAtMs: nowMs,
	}, true
}
