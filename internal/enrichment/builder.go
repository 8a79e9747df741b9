package enrichment

import (
	"math"
	"sort"

	"options-flow-lab/internal/chips"
	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/formula"
)

// Significance-score normalization caps. volOiRatio and repeat3m are
// open-ended counts; each is divided by its cap and clamped, so a ratio of
// volOiNormCap (or more) reads as maximal significance.
const (
	volOiNormCap  = 5.0
	repeatNormCap = 10.0
	otmNormCap    = 20.0
)

// BuildInput is one day's enrichment workload. Trades must already be sorted
// by (timestamp, tradeId) ascending; the read path enforces this and the
// running totals depend on it.
type BuildInput struct {
	Symbol  string
	Day     string
	Trades  []*domain.RawTrade
	Sup     *Supplement
	BuiltAt int64 // rollup build version (ms)
}

// BuildResult is the full derived output for a day.
type BuildResult struct {
	Rows            []*domain.EnrichedTrade
	Stats           []*domain.IntradayContractStats
	SymbolRollups   []*domain.SymbolMinuteRollup
	ContractRollups []*domain.ContractMinuteRollup
}

// Builder computes all derived fields, window statistics, chip sets and
// minute rollups for a day in a single deterministic pass.
type Builder struct {
	engine     *chips.Engine
	thresholds *chips.Thresholds
}

// NewBuilder creates a Builder.
func NewBuilder(engine *chips.Engine, thresholds *chips.Thresholds) *Builder {
	return &Builder{engine: engine, thresholds: thresholds}
}

// Build runs the enrichment pass. It is pure with respect to its input:
// re-running over an unchanged raw set yields identical output.
func (b *Builder) Build(in BuildInput) *BuildResult {
	result := &BuildResult{}
	if len(in.Trades) == 0 {
		return result
	}

	sup := in.Sup
	if sup == nil {
		sup = &Supplement{OI: map[domain.ContractKey]int64{}}
	}

	// Day value distribution bounds for the percentile input. Deterministic
	// pre-pass; min==max degenerates to percentile 1.0 in MinMaxNorm.
	minValue, maxValue := valueBounds(in.Trades)

	dayVolume := make(map[domain.ContractKey]int64)
	lastOI := make(map[domain.ContractKey]*int64)
	repeats := newRepeatWindow()
	var volWindow, bullishWindow, bearishWindow, amWindow minuteWindow

	for _, t := range in.Trades {
		contract := t.Contract()
		dayVolume[contract] += t.Size

		row := &domain.EnrichedTrade{
			TradeID:    t.TradeID,
			Symbol:     t.Symbol,
			TradeTsMs:  t.TradeTsMs,
			Expiration: t.Expiration,
			Strike:     t.Strike,
			Right:      t.Right,
			Price:      t.Price,
			Size:       t.Size,
		}

		row.Value = formula.Value(t.Price, t.Size)
		row.Dte = formula.Dte(t.Expiration, t.TradeTsMs)
		row.Side = formula.ExecutionSide(t.Price, t.Bid, t.Ask)
		row.Sentiment = formula.Sentiment(t.Right, row.Side)
		row.StandardExpiry = formula.IsStandardExpiry(t.Expiration)
		row.DayVolume = dayVolume[contract]

		// Spot: inline payload beats the resolved supplement.
		if spot := inlineSpot(t); spot != nil {
			row.Spot = spot
		} else {
			row.Spot = sup.Spot
		}
		row.OtmPct = formula.OtmPct(t.Right, t.Strike, row.Spot)

		// OI: inline payload, then supplement, then zero only under bulk
		// default-zero semantics.
		if oi := inlineOI(t); oi != nil {
			row.OI = oi
		} else if oi, ok := sup.OI[contract]; ok {
			v := oi
			row.OI = &v
		} else if sup.OIDefaultZero {
			var zero int64
			row.OI = &zero
		}
		lastOI[contract] = row.OI

		if row.OI != nil {
			divisor := *row.OI
			if divisor < 1 {
				divisor = 1
			}
			ratio := float64(row.DayVolume) / float64(divisor)
			row.VolOiRatio = &ratio
		}

		row.Repeat3m = repeats.Add(contract, row.Side, t.TradeTsMs)

		minute := formula.MinuteBucket(t.TradeTsMs)
		row.MinuteBucketMs = minute
		row.AMWindow = formula.InAMWindow(t.TradeTsMs)

		volWindow.Add(minute, t.Size)
		row.MinuteVolume = volWindow.Current(minute)
		baseline := volWindow.Baseline(minute)
		row.VolBaseline15m = &baseline

		switch row.Sentiment {
		case domain.SentimentBullish:
			bullishWindow.Add(minute, 1)
			bearishWindow.Add(minute, 0)
		case domain.SentimentBearish:
			bullishWindow.Add(minute, 0)
			bearishWindow.Add(minute, 1)
		default:
			bullishWindow.Add(minute, 0)
			bearishWindow.Add(minute, 0)
		}
		ratio := directionalRatio(bullishWindow.Sum(), bearishWindow.Sum())
		row.BullishRatio15m = &ratio

		if row.AMWindow {
			amWindow.Add(minute, t.Size)
			amBaseline := amWindow.Baseline(minute)
			row.AMBaseline15m = &amBaseline
		}

		row.SigScore = sigScore(row, minValue, maxValue)

		row.Chips = b.engine.Evaluate(row, b.thresholds)
		row.RuleVersion = chips.RuleVersion

		result.Rows = append(result.Rows, row)
	}

	result.Stats = contractStats(in, dayVolume, lastOI)
	result.SymbolRollups, result.ContractRollups = buildRollups(in, result.Rows)
	return result
}

// valueBounds returns the min and max non-nil trade value for the day.
func valueBounds(trades []*domain.RawTrade) (float64, float64) {
	first := true
	var minV, maxV float64
	for _, t := range trades {
		v := formula.Value(t.Price, t.Size)
		if v == nil {
			continue
		}
		if first {
			minV, maxV = *v, *v
			first = false
			continue
		}
		if *v < minV {
			minV = *v
		}
		if *v > maxV {
			maxV = *v
		}
	}
	return minV, maxV
}

func directionalRatio(bullish, bearish int64) float64 {
	total := bullish + bearish
	if total == 0 {
		return 0
	}
	return float64(bullish) / float64(total)
}

// sigScore composes the significance score. Nil value means the percentile
// input is undefined, so the score is nil rather than misleadingly low.
func sigScore(row *domain.EnrichedTrade, minValue, maxValue float64) *float64 {
	if row.Value == nil {
		return nil
	}

	valuePct := formula.MinMaxNorm(*row.Value, minValue, maxValue)

	var volOiNorm float64
	if row.VolOiRatio != nil {
		volOiNorm = formula.Clamp01(*row.VolOiRatio / volOiNormCap)
	}
	repeatNorm := formula.Clamp01(float64(row.Repeat3m) / repeatNormCap)
	var otmNorm float64
	if row.OtmPct != nil {
		otmNorm = formula.Clamp01(*row.OtmPct / otmNormCap)
	}

	score := formula.SigScore(valuePct, volOiNorm, repeatNorm, otmNorm, formula.SideConfidence(row.Side))
	return &score
}

// contractStats folds the pass accumulators into per-contract stats rows,
// ordered deterministically.
func contractStats(in BuildInput, dayVolume map[domain.ContractKey]int64, lastOI map[domain.ContractKey]*int64) []*domain.IntradayContractStats {
	stats := make([]*domain.IntradayContractStats, 0, len(dayVolume))
	for key, vol := range dayVolume {
		st := &domain.IntradayContractStats{
			Symbol:      key.Symbol,
			Expiration:  key.Expiration,
			Strike:      key.Strike,
			Right:       key.Right,
			Day:         in.Day,
			DayVolume:   vol,
			UpdatedAtMs: in.BuiltAt,
		}
		if oi := lastOI[key]; oi != nil {
			v := *oi
			st.LastOI = &v
		}
		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Expiration != b.Expiration {
			return a.Expiration < b.Expiration
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Right < b.Right
	})
	return stats
}

// buildRollups aggregates enriched rows into minute buckets at both the
// symbol and contract grain.
func buildRollups(in BuildInput, rows []*domain.EnrichedTrade) ([]*domain.SymbolMinuteRollup, []*domain.ContractMinuteRollup) {
	type agg struct {
		tradeCount   int64
		volume       int64
		premium      float64
		bullishCount int64
		bearishCount int64
		maxSig       float64
		sigSum       float64
		sigCount     int64
		chipCounts   map[string]int64
	}

	accumulate := func(a *agg, row *domain.EnrichedTrade) {
		a.tradeCount++
		a.volume += row.Size
		if row.Value != nil {
			a.premium += *row.Value
		}
		switch row.Sentiment {
		case domain.SentimentBullish:
			a.bullishCount++
		case domain.SentimentBearish:
			a.bearishCount++
		}
		if row.SigScore != nil {
			if *row.SigScore > a.maxSig {
				a.maxSig = *row.SigScore
			}
			a.sigSum += *row.SigScore
			a.sigCount++
		}
		for _, chip := range row.Chips {
			if a.chipCounts == nil {
				a.chipCounts = make(map[string]int64)
			}
			a.chipCounts[chip]++
		}
	}

	avgSig := func(a *agg) float64 {
		if a.sigCount == 0 {
			return 0
		}
		return math.Round(a.sigSum/float64(a.sigCount)*1e6) / 1e6
	}

	type contractMinute struct {
		contract domain.ContractKey
		minuteMs int64
	}

	symbolAggs := make(map[int64]*agg)
	contractAggs := make(map[contractMinute]*agg)
	var symbolOrder []int64
	var contractOrder []contractMinute

	for _, row := range rows {
		if a, ok := symbolAggs[row.MinuteBucketMs]; ok {
			accumulate(a, row)
		} else {
			a := &agg{}
			accumulate(a, row)
			symbolAggs[row.MinuteBucketMs] = a
			symbolOrder = append(symbolOrder, row.MinuteBucketMs)
		}

		key := contractMinute{
			contract: domain.ContractKey{Symbol: row.Symbol, Expiration: row.Expiration, Strike: row.Strike, Right: row.Right},
			minuteMs: row.MinuteBucketMs,
		}
		if a, ok := contractAggs[key]; ok {
			accumulate(a, row)
		} else {
			a := &agg{}
			accumulate(a, row)
			contractAggs[key] = a
			contractOrder = append(contractOrder, key)
		}
	}

	symbolRollups := make([]*domain.SymbolMinuteRollup, 0, len(symbolOrder))
	for _, minute := range symbolOrder {
		a := symbolAggs[minute]
		symbolRollups = append(symbolRollups, &domain.SymbolMinuteRollup{
			Symbol:       in.Symbol,
			Day:          in.Day,
			MinuteMs:     minute,
			TradeCount:   a.tradeCount,
			Volume:       a.volume,
			Premium:      a.premium,
			BullishCount: a.bullishCount,
			BearishCount: a.bearishCount,
			MaxSigScore:  a.maxSig,
			AvgSigScore:  avgSig(a),
			ChipCounts:   a.chipCounts,
			BuiltAtMs:    in.BuiltAt,
		})
	}

	contractRollups := make([]*domain.ContractMinuteRollup, 0, len(contractOrder))
	for _, key := range contractOrder {
		a := contractAggs[key]
		contractRollups = append(contractRollups, &domain.ContractMinuteRollup{
			Symbol:       key.contract.Symbol,
			Expiration:   key.contract.Expiration,
			Strike:       key.contract.Strike,
			Right:        key.contract.Right,
			Day:          in.Day,
			MinuteMs:     key.minuteMs,
			TradeCount:   a.tradeCount,
			Volume:       a.volume,
			Premium:      a.premium,
			BullishCount: a.bullishCount,
			BearishCount: a.bearishCount,
			MaxSigScore:  a.maxSig,
			AvgSigScore:  avgSig(a),
			ChipCounts:   a.chipCounts,
			BuiltAtMs:    in.BuiltAt,
		})
	}

	return symbolRollups, contractRollups
}
