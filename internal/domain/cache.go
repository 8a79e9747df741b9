package domain

// Cache status constants. A full day is considered permanently complete:
// historical trading days do not change.
const (
	CacheStatusFull    = "full"
	CacheStatusPartial = "partial"
)

// DayCacheEntry records raw-sync completeness for one (symbol, day).
// Corresponds to day_cache table in PostgreSQL. Created lazily on first
// query, updated on every sync attempt, never deleted.
type DayCacheEntry struct {
	Symbol         string  // underlying
	Day            string  // UTC calendar day, YYYY-MM-DD
	Status         string  // "full" | "partial"
	RowCount       int64   // raw trade rows stored for the day
	LastSyncAtMs   int64   // last sync attempt timestamp (ms)
	LastError      *string // last sync error message (nullable)
	SourceEndpoint *string // upstream endpoint used (nullable)
}

// MetricCacheEntry records enrichment completeness for one
// (symbol, day, metric). Corresponds to metric_cache table in PostgreSQL.
// A metric is full when every enriched row for the day carries a non-null
// value for it (trivially full on a zero-row day).
type MetricCacheEntry struct {
	Symbol       string  // underlying
	Day          string  // UTC calendar day, YYYY-MM-DD
	MetricName   string  // one of the Metric* constants
	Status       string  // "full" | "partial"
	RowCount     int64   // enriched rows covered
	LastSyncAtMs int64   // last enrichment attempt timestamp (ms)
	LastError    *string // last enrichment error message (nullable)
}

// Metric vocabulary. MetricEnrichedRows asserts the enriched rows themselves
// exist; each other metric additionally asserts per-row non-null values.
const (
	MetricEnrichedRows    = "enrichedRows"
	MetricExecution       = "execution"
	MetricValue           = "value"
	MetricSize            = "size"
	MetricDte             = "dte"
	MetricExpiration      = "expiration"
	MetricRepeat3m        = "repeat3m"
	MetricSentiment       = "sentiment"
	MetricSymbolVolStats  = "symbolVolStats"
	MetricBullishRatio15m = "bullishRatio15m"
	MetricSpot            = "spot"
	MetricOtmPct          = "otmPct"
	MetricOI              = "oi"
	MetricVolOiRatio      = "volOiRatio"
	MetricSigScore        = "sigScore"
)

// AllMetrics lists the full metric vocabulary in a stable order.
func AllMetrics() []string {
	return []string{
		MetricEnrichedRows,
		MetricExecution,
		MetricValue,
		MetricSize,
		MetricDte,
		MetricExpiration,
		MetricRepeat3m,
		MetricSentiment,
		MetricSymbolVolStats,
		MetricBullishRatio15m,
		MetricSpot,
		MetricOtmPct,
		MetricOI,
		MetricVolOiRatio,
		MetricSigScore,
	}
}
