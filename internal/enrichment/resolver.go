package enrichment

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/observability"
	"options-flow-lab/internal/storage"
	"options-flow-lab/internal/thetadata"
)

// Supplement carries the resolved inputs the builder cannot derive from the
// trades alone.
type Supplement struct {
	Spot          *float64                       // underlying spot, nil if unresolved
	OI            map[domain.ContractKey]int64   // open interest per contract
	OIDefaultZero bool                           // a bulk OI source answered: missing contracts mean zero
}

// Resolver resolves spot and open interest for a (symbol, day) batch.
// Resolution is cost-avoiding: each source is consulted only for contracts
// still missing a value, and upstream calls are skipped entirely when the
// metric is not required. Upstream failures are swallowed here; callers
// observe unresolved values as null.
type Resolver struct {
	stats  storage.ContractStatsStore
	refOI  storage.ReferenceOIStore
	client *thetadata.Client
	logger *log.Logger
}

// NewResolver creates a Resolver. client may be an unconfigured client, in
// which case upstream sources resolve nothing.
func NewResolver(stats storage.ContractStatsStore, refOI storage.ReferenceOIStore, client *thetadata.Client, logger *log.Logger) *Resolver {
	return &Resolver{stats: stats, refOI: refOI, client: client, logger: logger}
}

// Resolve produces the supplement for a day's trades. needSpot and needOI
// gate the corresponding work: a false flag means the metric is not required
// by the current request and no source, local or upstream, is consulted.
func (r *Resolver) Resolve(ctx context.Context, symbol, day string, trades []*domain.RawTrade, needSpot, needOI bool) *Supplement {
	sup := &Supplement{OI: make(map[domain.ContractKey]int64)}

	if needOI {
		r.resolveOI(ctx, symbol, day, trades, sup)
	}
	if needSpot {
		sup.Spot = r.resolveSpot(ctx, symbol, day, trades)
	}
	return sup
}

// resolveOI fills sup.OI walking the source chain: cached contract stats,
// the reference table, a bulk upstream fetch, then per-contract fetches for
// stragglers. Inline payload values are handled per-trade by the builder and
// take precedence over everything here.
func (r *Resolver) resolveOI(ctx context.Context, symbol, day string, trades []*domain.RawTrade, sup *Supplement) {
	contracts := make(map[domain.ContractKey]struct{})
	for _, t := range trades {
		contracts[t.Contract()] = struct{}{}
	}

	// Previously cached intraday contract stats.
	fromStats := make(map[domain.ContractKey]struct{})
	if stats, err := r.stats.GetBySymbolDay(ctx, symbol, day); err == nil {
		for _, st := range stats {
			if st.LastOI == nil {
				continue
			}
			key := st.Contract()
			if _, want := contracts[key]; want {
				sup.OI[key] = *st.LastOI
				fromStats[key] = struct{}{}
			}
		}
	} else {
		r.logger.Printf("[resolver] contract stats read failed for %s %s: %v", symbol, day, err)
	}

	// Reference table. Rows arrive ordered by ingest time ascending, so a
	// later row overwrites an earlier one: the most recently ingested source
	// wins per contract. Stats-resolved contracts are not revisited.
	if refs, err := r.refOI.GetBySymbolDate(ctx, symbol, day); err == nil {
		for _, ref := range refs {
			key := ref.Contract()
			if _, want := contracts[key]; !want {
				continue
			}
			if _, have := fromStats[key]; have {
				continue
			}
			sup.OI[key] = ref.OI
		}
	} else {
		r.logger.Printf("[resolver] reference oi read failed for %s %s: %v", symbol, day, err)
	}

	if len(sup.OI) == len(contracts) {
		return
	}

	// Bulk upstream fetch for the whole symbol/day. Success makes the bulk
	// source authoritative: contracts it does not list carry zero OI.
	bulk, err := r.client.BulkOpenInterest(ctx, symbol, day)
	if err != nil {
		observability.RecordUpstreamError("bulk_oi")
		r.logger.Printf("[resolver] bulk oi fetch failed for %s %s: %v", symbol, day, err)
	} else {
		sup.OIDefaultZero = true
		for key, oi := range bulk {
			if _, want := contracts[key]; !want {
				continue
			}
			if _, have := sup.OI[key]; have {
				continue
			}
			sup.OI[key] = oi
		}
	}

	// Per-contract fetches for anything still missing.
	for key := range contracts {
		if _, have := sup.OI[key]; have {
			continue
		}
		oi, err := r.client.ContractOpenInterest(ctx, key, day)
		if err != nil {
			observability.RecordUpstreamError("contract_oi")
			r.logger.Printf("[resolver] contract oi fetch failed for %s: %v", key, err)
			continue
		}
		if oi != nil {
			sup.OI[key] = *oi
		}
	}
}

// resolveSpot returns the spot price, preferring any inline payload value
// before paying for an upstream call.
func (r *Resolver) resolveSpot(ctx context.Context, symbol, day string, trades []*domain.RawTrade) *float64 {
	for _, t := range trades {
		if spot := inlineSpot(t); spot != nil {
			return spot
		}
	}

	spot, err := r.client.SpotPrice(ctx, symbol, day)
	if err != nil {
		observability.RecordUpstreamError("spot")
		r.logger.Printf("[resolver] spot fetch failed for %s %s: %v", symbol, day, err)
		return nil
	}
	return spot
}

// Payload field aliases, priority ordered. The feed has shipped these under
// different names across versions; extraction picks the first present.
var (
	payloadSpotAliases = []string{"spot", "underlying_price", "underlying", "stock_price"}
	payloadOIAliases   = []string{"open_interest", "oi"}
)

// inlineSpot extracts a spot price embedded in the trade's original payload.
func inlineSpot(t *domain.RawTrade) *float64 {
	v, ok := payloadFloat(t.RawPayload, payloadSpotAliases)
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

// inlineOI extracts an open-interest value embedded in the trade's payload.
func inlineOI(t *domain.RawTrade) *int64 {
	v, ok := payloadFloat(t.RawPayload, payloadOIAliases)
	if !ok || v < 0 {
		return nil
	}
	oi := int64(v)
	return &oi
}

// payloadFloat picks the first present alias from a raw payload, coercing
// strings to numbers.
func payloadFloat(payload json.RawMessage, aliases []string) (float64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return 0, false
	}

	for _, a := range aliases {
		raw, ok := fields[a]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
