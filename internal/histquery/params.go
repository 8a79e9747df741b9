package histquery

import (
	"strings"
	"time"

	"options-flow-lab/internal/chips"
	"options-flow-lab/internal/domain"
)

// Pagination bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// QueryParams is the engine's input surface. Pointer fields are optional
// filters; nil means "no constraint".
type QueryParams struct {
	Symbol string
	FromMs int64
	ToMs   int64
	Limit  int

	Chips      []string // chip ids or aliases; resolved during validation
	Right      string   // "CALL" | "PUT" (accepts C/P shorthand)
	Expiration string   // YYYY-MM-DD
	Side       string   // "AA" | "ASK" | "BID" | "OTHER"
	Sentiment  string   // "bullish" | "bearish" | "neutral"

	MinValue    *float64
	MaxValue    *float64
	MinSize     *int64
	MaxSize     *int64
	MinDte      *int
	MaxDte      *int
	MinOtmPct   *float64
	MaxOtmPct   *float64
	MinVolOi    *float64
	MaxVolOi    *float64
	MinRepeat3m *int
	MinSigScore *float64
	MaxSigScore *float64
}

// normalized is the validated form of QueryParams.
type normalized struct {
	QueryParams
	Day           string
	ChipIDs       []string // resolved chip ids
	LimitExplicit bool     // caller supplied a limit; bounds the sync too
}

// normalize validates and canonicalizes params. Returns an invalid_query
// Error on any violation; no side effects occur before validation passes.
func normalize(p QueryParams, engine *chips.Engine) (*normalized, *Error) {
	n := &normalized{QueryParams: p}

	n.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if n.Symbol == "" {
		return nil, NewError(CodeInvalidQuery, "symbol is required")
	}

	if p.FromMs <= 0 || p.ToMs <= 0 {
		return nil, NewError(CodeInvalidQuery, "from and to are required")
	}
	if p.FromMs > p.ToMs {
		return nil, NewError(CodeInvalidQuery, "from must not be after to")
	}
	fromDay := domain.DayFromMs(p.FromMs)
	toDay := domain.DayFromMs(p.ToMs)
	if fromDay != toDay {
		return nil, NewError(CodeInvalidQuery, "range must fall on a single UTC day (got %s and %s)", fromDay, toDay)
	}
	n.Day = fromDay

	switch {
	case p.Limit == 0:
		n.Limit = DefaultLimit
	case p.Limit < 0:
		return nil, NewError(CodeInvalidQuery, "limit must be positive")
	case p.Limit > MaxLimit:
		return nil, NewError(CodeInvalidQuery, "limit exceeds maximum %d", MaxLimit)
	default:
		n.LimitExplicit = true
	}

	switch strings.ToUpper(strings.TrimSpace(p.Right)) {
	case "":
		n.Right = ""
	case "C", "CALL":
		n.Right = domain.RightCall
	case "P", "PUT":
		n.Right = domain.RightPut
	default:
		return nil, NewError(CodeInvalidQuery, "invalid right %q", p.Right)
	}

	switch side := strings.ToUpper(strings.TrimSpace(p.Side)); side {
	case "", domain.SideAboveAsk, domain.SideAsk, domain.SideBid, domain.SideOther:
		n.Side = side
	default:
		return nil, NewError(CodeInvalidQuery, "invalid side %q", p.Side)
	}

	n.Expiration = strings.TrimSpace(p.Expiration)
	if n.Expiration != "" {
		if _, err := time.Parse(domain.DayFormat, n.Expiration); err != nil {
			return nil, NewError(CodeInvalidQuery, "invalid expiration %q, want YYYY-MM-DD", p.Expiration)
		}
	}

	switch sentiment := strings.ToLower(strings.TrimSpace(p.Sentiment)); sentiment {
	case "", domain.SentimentBullish, domain.SentimentBearish, domain.SentimentNeutral:
		n.Sentiment = sentiment
	default:
		return nil, NewError(CodeInvalidQuery, "invalid sentiment %q", p.Sentiment)
	}

	if len(p.Chips) > 0 {
		ids, err := engine.Resolve(p.Chips)
		if err != nil {
			return nil, NewError(CodeInvalidQuery, "%v", err)
		}
		n.ChipIDs = ids
	}

	return n, nil
}

// requiredMetrics derives the metric set a normalized query depends on:
// the union of the requested chips' declared metrics plus the metrics
// backing each active filter. enrichedRows is always required.
func (n *normalized) requiredMetrics(engine *chips.Engine) []string {
	set := map[string]struct{}{domain.MetricEnrichedRows: {}}

	for _, m := range engine.RequiredMetrics(n.ChipIDs) {
		set[m] = struct{}{}
	}

	if n.MinValue != nil || n.MaxValue != nil {
		set[domain.MetricValue] = struct{}{}
	}
	if n.MinSize != nil || n.MaxSize != nil {
		set[domain.MetricSize] = struct{}{}
	}
	if n.MinDte != nil || n.MaxDte != nil {
		set[domain.MetricDte] = struct{}{}
	}
	if n.MinOtmPct != nil || n.MaxOtmPct != nil {
		set[domain.MetricOtmPct] = struct{}{}
		set[domain.MetricSpot] = struct{}{}
	}
	if n.MinVolOi != nil || n.MaxVolOi != nil {
		set[domain.MetricVolOiRatio] = struct{}{}
		set[domain.MetricOI] = struct{}{}
	}
	if n.MinRepeat3m != nil {
		set[domain.MetricRepeat3m] = struct{}{}
	}
	if n.MinSigScore != nil || n.MaxSigScore != nil {
		set[domain.MetricSigScore] = struct{}{}
	}
	if n.Right != "" || n.Expiration != "" {
		set[domain.MetricExpiration] = struct{}{}
	}
	if n.Side != "" {
		set[domain.MetricExecution] = struct{}{}
	}
	if n.Sentiment != "" {
		set[domain.MetricSentiment] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for _, m := range domain.AllMetrics() {
		if _, ok := set[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// matches applies every active filter to one enriched row. Range filters on
// nullable fields reject rows where the field is null; a full metric cache
// guarantees that cannot happen on a served query.
func (n *normalized) matches(row *domain.EnrichedTrade) bool {
	if n.Right != "" && row.Right != n.Right {
		return false
	}
	if n.Expiration != "" && row.Expiration != n.Expiration {
		return false
	}
	if n.Side != "" && row.Side != n.Side {
		return false
	}
	if n.Sentiment != "" && row.Sentiment != n.Sentiment {
		return false
	}

	if !inRangeF(row.Value, n.MinValue, n.MaxValue) {
		return false
	}
	if n.MinSize != nil && row.Size < *n.MinSize {
		return false
	}
	if n.MaxSize != nil && row.Size > *n.MaxSize {
		return false
	}
	if !inRangeI(row.Dte, n.MinDte, n.MaxDte) {
		return false
	}
	if !inRangeF(row.OtmPct, n.MinOtmPct, n.MaxOtmPct) {
		return false
	}
	if !inRangeF(row.VolOiRatio, n.MinVolOi, n.MaxVolOi) {
		return false
	}
	if n.MinRepeat3m != nil && row.Repeat3m < *n.MinRepeat3m {
		return false
	}
	if !inRangeF(row.SigScore, n.MinSigScore, n.MaxSigScore) {
		return false
	}

	// Chip membership: AND semantics across all requested chips.
	for _, id := range n.ChipIDs {
		if !containsChip(row.Chips, id) {
			return false
		}
	}

	return true
}

func inRangeF(v, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return false
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

func inRangeI(v, min, max *int) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return false
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

func containsChip(chips []string, id string) bool {
	for _, c := range chips {
		if c == id {
			return true
		}
	}
	return false
}
