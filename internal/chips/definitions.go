package chips

import (
	"options-flow-lab/internal/domain"
)

// RuleVersion identifies the chip rule set written into enriched rows.
// Bump whenever a definition or default threshold changes meaning.
const RuleVersion = "2026.08"

// Definition is one declarative chip rule. RequiredMetrics lists the metric
// cache entries that must be full before a request filtering on this chip
// may be answered; the predicate reads only enriched-trade fields.
type Definition struct {
	ID             string
	Label          string
	Aliases        []string
	RequiredMetrics []string
	Predicate      func(t *domain.EnrichedTrade, th *Thresholds) bool
}

// Definitions returns the full chip rule set in evaluation order. Order is
// cosmetic: chips are independent booleans.
func Definitions() []Definition {
	return []Definition{
		{
			ID:              "whales",
			Label:           "Whales",
			Aliases:         []string{"whale"},
			RequiredMetrics: []string{domain.MetricValue},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.Value != nil && *t.Value >= th.WhaleValueMin
			},
		},
		{
			ID:              "bigSize",
			Label:           "Big Size",
			Aliases:         []string{"big-size", "size"},
			RequiredMetrics: []string{domain.MetricSize},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.Size >= th.BigSizeMin
			},
		},
		{
			ID:              "aa",
			Label:           "Above Ask",
			Aliases:         []string{"above-ask", "aboveask"},
			RequiredMetrics: []string{domain.MetricExecution},
			Predicate: func(t *domain.EnrichedTrade, _ *Thresholds) bool {
				return t.Side == domain.SideAboveAsk
			},
		},
		{
			ID:              "leaps",
			Label:           "LEAPS",
			Aliases:         []string{"leap"},
			RequiredMetrics: []string{domain.MetricDte},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.Dte != nil && *t.Dte >= th.LeapsDteMin
			},
		},
		{
			ID:              "weeklies",
			Label:           "Weeklies",
			Aliases:         []string{"weekly", "non-standard"},
			RequiredMetrics: []string{domain.MetricExpiration},
			Predicate: func(t *domain.EnrichedTrade, _ *Thresholds) bool {
				return !t.StandardExpiry
			},
		},
		{
			ID:              "repeat",
			Label:           "Repeat Flow",
			Aliases:         []string{"repeat-flow", "repeatflow"},
			RequiredMetrics: []string{domain.MetricRepeat3m},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.Repeat3m >= th.RepeatMin
			},
		},
		{
			ID:              "otm",
			Label:           "Out of the Money",
			Aliases:         []string{"out-of-the-money"},
			RequiredMetrics: []string{domain.MetricSpot, domain.MetricOtmPct},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.OtmPct != nil && *t.OtmPct >= th.OtmPctMin
			},
		},
		{
			ID:              "volOverOi",
			Label:           "Volume Over OI",
			Aliases:         []string{"vol-over-oi", "voloi", "vol/oi"},
			RequiredMetrics: []string{domain.MetricOI, domain.MetricVolOiRatio},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.VolOiRatio != nil && *t.VolOiRatio >= th.VolOiRatioMin
			},
		},
		{
			ID:              "amSpike",
			Label:           "AM Spike",
			Aliases:         []string{"am-spike", "openingspike"},
			RequiredMetrics: []string{domain.MetricSymbolVolStats},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.AMWindow && t.AMBaseline15m != nil && *t.AMBaseline15m > 0 &&
					float64(t.MinuteVolume) >= th.AMSpikeMultiplier*(*t.AMBaseline15m)
			},
		},
		{
			ID:              "risingVol",
			Label:           "Rising Volume",
			Aliases:         []string{"rising-vol", "risingvolume"},
			RequiredMetrics: []string{domain.MetricSymbolVolStats},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.VolBaseline15m != nil && *t.VolBaseline15m > 0 &&
					float64(t.MinuteVolume) >= th.RisingVolMultiplier*(*t.VolBaseline15m)
			},
		},
		{
			ID:              "bullishFlow",
			Label:           "Bullish Flow",
			Aliases:         []string{"bullish-flow", "directional"},
			RequiredMetrics: []string{domain.MetricBullishRatio15m},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.BullishRatio15m != nil && *t.BullishRatio15m >= th.BullishRatioMin
			},
		},
		{
			ID:              "unusual",
			Label:           "Unusual",
			Aliases:         nil,
			RequiredMetrics: []string{domain.MetricValue, domain.MetricOI, domain.MetricVolOiRatio},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.Value != nil && *t.Value >= th.UnusualValueMin &&
					t.VolOiRatio != nil && *t.VolOiRatio >= th.VolOiRatioMin
			},
		},
		{
			ID:              "urgent",
			Label:           "Urgent",
			Aliases:         nil,
			RequiredMetrics: []string{domain.MetricExecution, domain.MetricRepeat3m, domain.MetricValue},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				return t.Side == domain.SideAboveAsk &&
					t.Repeat3m >= th.RepeatMin &&
					t.Value != nil && *t.Value >= th.UrgentValueMin
			},
		},
		{
			ID:              "positionBuilder",
			Label:           "Position Builder",
			Aliases:         []string{"position-builder", "builder"},
			RequiredMetrics: []string{domain.MetricExecution, domain.MetricRepeat3m},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				aggressive := t.Side == domain.SideAsk || t.Side == domain.SideAboveAsk
				return aggressive && t.Repeat3m >= th.BuilderRepeatMin
			},
		},
		{
			ID:              "grenade",
			Label:           "Grenade",
			Aliases:         nil,
			RequiredMetrics: []string{domain.MetricDte, domain.MetricSpot, domain.MetricOtmPct, domain.MetricExecution, domain.MetricValue},
			Predicate: func(t *domain.EnrichedTrade, th *Thresholds) bool {
				aggressive := t.Side == domain.SideAsk || t.Side == domain.SideAboveAsk
				return aggressive &&
					t.Dte != nil && *t.Dte <= th.GrenadeDteMax &&
					t.OtmPct != nil && *t.OtmPct >= th.OtmPctMin &&
					t.Value != nil && *t.Value >= th.GrenadeValueMin
			},
		},
	}
}
