// Package formula provides the pure per-trade derivation functions used by
// the enrichment builder. All functions are deterministic and stateless.
package formula

import (
	"math"
	"time"
)

// ContractMultiplier is the standard equity option contract multiplier.
const ContractMultiplier = 100

// exchangeTZ is the exchange trading-day clock. Session-window membership is
// evaluated in this zone regardless of storage timezone.
var exchangeTZ = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("load exchange timezone: " + err.Error())
	}
	return loc
}

// Value computes the premium paid: price * size * 100.
// Returns nil if price is not finite.
func Value(price float64, size int64) *float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return nil
	}
	v := price * float64(size) * ContractMultiplier
	return &v
}

// expirationAnchorHourUTC anchors a date-only expiration to the end of the
// trading day: 16:00 New York standard time, expressed as 21:00 UTC.
const expirationAnchorHourUTC = 21

// Dte computes days-to-expiry as the ceiling of calendar days between the
// trade instant and the expiration instant. Returns nil if the expiration
// date does not parse.
func Dte(expiration string, tradeTsMs int64) *int {
	exp, err := time.ParseInLocation("2006-01-02", expiration, time.UTC)
	if err != nil {
		return nil
	}
	anchor := exp.Add(expirationAnchorHourUTC * time.Hour)
	trade := time.UnixMilli(tradeTsMs).UTC()

	days := anchor.Sub(trade).Hours() / 24
	d := int(math.Ceil(days))
	return &d
}

// ExecutionSide classifies where the trade printed relative to the quote.
// spread = ask - bid; aaThreshold = ask + max(0.01, 0.10*spread).
// AA if price >= aaThreshold, else ASK if price >= ask, else BID if
// price <= bid, else OTHER. All three of price/bid/ask must be finite,
// otherwise no quote-based classification is possible and OTHER is returned.
func ExecutionSide(price float64, bid, ask *float64) string {
	if bid == nil || ask == nil {
		return SideOther
	}
	if !isFinite(price) || !isFinite(*bid) || !isFinite(*ask) {
		return SideOther
	}

	spread := *ask - *bid
	aaThreshold := *ask + math.Max(0.01, 0.10*spread)

	switch {
	case price >= aaThreshold:
		return SideAboveAsk
	case price >= *ask:
		return SideAsk
	case price <= *bid:
		return SideBid
	default:
		return SideOther
	}
}

// Execution side constants, mirrored from domain to keep this package free
// of internal imports.
const (
	SideAboveAsk = "AA"
	SideAsk      = "ASK"
	SideBid      = "BID"
	SideOther    = "OTHER"
)

// Sentiment constants
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Sentiment derives directional sentiment from option right and execution
// side. Buying calls at the ask (or above) is bullish; buying puts at the
// ask is bearish; prints at the bid invert the read.
func Sentiment(right, side string) string {
	aggressive := side == SideAsk || side == SideAboveAsk

	switch {
	case right == "CALL" && aggressive, right == "PUT" && side == SideBid:
		return SentimentBullish
	case right == "PUT" && aggressive, right == "CALL" && side == SideBid:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// OtmPct computes the signed out-of-the-money percentage. For calls,
// (strike-spot)/spot*100; for puts, (spot-strike)/spot*100. Returns nil if
// spot is missing or non-positive.
func OtmPct(right string, strike float64, spot *float64) *float64 {
	if spot == nil || *spot <= 0 {
		return nil
	}
	var pct float64
	if right == "CALL" {
		pct = (strike - *spot) / *spot * 100
	} else {
		pct = (*spot - strike) / *spot * 100
	}
	return &pct
}

// IsStandardExpiry reports whether an expiration date follows the standard
// monthly convention: a Friday whose day-of-month falls in [15, 21]
// (the 3rd Friday). Weeklies and other non-standard expirations fail this.
func IsStandardExpiry(expiration string) bool {
	exp, err := time.ParseInLocation("2006-01-02", expiration, time.UTC)
	if err != nil {
		return false
	}
	return exp.Weekday() == time.Friday && exp.Day() >= 15 && exp.Day() <= 21
}

// MinuteBucket floors a timestamp to the start of its minute.
func MinuteBucket(tsMs int64) int64 {
	return tsMs - tsMs%60_000
}

// InAMWindow reports whether a timestamp falls inside the opening session
// window, 09:30-10:30 inclusive in the exchange's local trading-day clock.
func InAMWindow(tsMs int64) bool {
	t := time.UnixMilli(tsMs).In(exchangeTZ)
	minuteOfDay := t.Hour()*60 + t.Minute()
	return minuteOfDay >= 9*60+30 && minuteOfDay <= 10*60+30
}

// Significance score weights. Inputs are clamped to [0,1] before weighting.
const (
	sigWeightValue    = 0.35
	sigWeightVolOi    = 0.25
	sigWeightRepeat   = 0.20
	sigWeightOtm      = 0.10
	sigWeightSideConf = 0.10
)

// SideConfidence is the fixed execution-confidence lookup for the
// significance score.
func SideConfidence(side string) float64 {
	switch side {
	case SideAboveAsk:
		return 1.0
	case SideAsk:
		return 0.85
	case SideBid:
		return 0.70
	default:
		return 0.25
	}
}

// SigScore blends the normalized significance inputs into a [0,1] composite,
// rounded to 6 decimal places.
func SigScore(valuePercentile, volOiNorm, repeatNorm, otmNorm, sideConfidence float64) float64 {
	score := sigWeightValue*Clamp01(valuePercentile) +
		sigWeightVolOi*Clamp01(volOiNorm) +
		sigWeightRepeat*Clamp01(repeatNorm) +
		sigWeightOtm*Clamp01(otmNorm) +
		sigWeightSideConf*Clamp01(sideConfidence)

	return math.Round(score*1e6) / 1e6
}

// Clamp01 clamps v to [0,1]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MinMaxNorm normalizes v against [min, max]. A degenerate distribution
// (min == max) maps every value to 1.0.
func MinMaxNorm(v, min, max float64) float64 {
	if max <= min {
		return 1.0
	}
	return Clamp01((v - min) / (max - min))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
