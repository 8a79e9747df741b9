package enrichment

import (
	"options-flow-lab/internal/domain"
)

// metricPresent maps each metric to its per-row presence check. Metrics
// carried by non-nullable fields are trivially present whenever the row
// exists.
var metricPresent = map[string]func(*domain.EnrichedTrade) bool{
	domain.MetricEnrichedRows:    func(*domain.EnrichedTrade) bool { return true },
	domain.MetricExecution:       func(r *domain.EnrichedTrade) bool { return r.Side != "" },
	domain.MetricValue:           func(r *domain.EnrichedTrade) bool { return r.Value != nil },
	domain.MetricSize:            func(*domain.EnrichedTrade) bool { return true },
	domain.MetricDte:             func(r *domain.EnrichedTrade) bool { return r.Dte != nil },
	domain.MetricExpiration:      func(r *domain.EnrichedTrade) bool { return r.Expiration != "" },
	domain.MetricRepeat3m:        func(*domain.EnrichedTrade) bool { return true },
	domain.MetricSentiment:       func(r *domain.EnrichedTrade) bool { return r.Sentiment != "" },
	domain.MetricSymbolVolStats:  func(r *domain.EnrichedTrade) bool { return r.VolBaseline15m != nil },
	domain.MetricBullishRatio15m: func(r *domain.EnrichedTrade) bool { return r.BullishRatio15m != nil },
	domain.MetricSpot:            func(r *domain.EnrichedTrade) bool { return r.Spot != nil },
	domain.MetricOtmPct:          func(r *domain.EnrichedTrade) bool { return r.OtmPct != nil },
	domain.MetricOI:              func(r *domain.EnrichedTrade) bool { return r.OI != nil },
	domain.MetricVolOiRatio:      func(r *domain.EnrichedTrade) bool { return r.VolOiRatio != nil },
	domain.MetricSigScore:        func(r *domain.EnrichedTrade) bool { return r.SigScore != nil },
}

// MetricStatuses computes the full metric-cache row set for a day after a
// build. A metric is full when every row carries it (a zero-row day is
// trivially full). forcePartial downgrades everything, used when the raw set
// came from a limited sync and must not be mistaken for complete.
func MetricStatuses(symbol, day string, rows []*domain.EnrichedTrade, forcePartial bool, nowMs int64, lastErr *string) []*domain.MetricCacheEntry {
	entries := make([]*domain.MetricCacheEntry, 0, len(domain.AllMetrics()))
	rowCount := int64(len(rows))

	for _, metric := range domain.AllMetrics() {
		status := domain.CacheStatusFull
		if forcePartial {
			status = domain.CacheStatusPartial
		} else {
			present := metricPresent[metric]
			for _, row := range rows {
				if !present(row) {
					status = domain.CacheStatusPartial
					break
				}
			}
		}

		entries = append(entries, &domain.MetricCacheEntry{
			Symbol:       symbol,
			Day:          day,
			MetricName:   metric,
			Status:       status,
			RowCount:     rowCount,
			LastSyncAtMs: nowMs,
			LastError:    lastErr,
		})
	}

	return entries
}
