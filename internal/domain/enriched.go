package domain

// EnrichedTrade carries all derived fields for one raw trade.
// Corresponds to enriched_trades table in PostgreSQL, keyed by trade_id and
// rebuilt wholesale whenever enrichment recomputes a day.
type EnrichedTrade struct {
	TradeID    string  // FK to raw_trades
	Symbol     string  // underlying
	TradeTsMs  int64   // trade timestamp (ms)
	Expiration string  // YYYY-MM-DD
	Strike     float64 // strike price
	Right      string  // "CALL" | "PUT"
	Price      float64 // execution price
	Size       int64   // contracts

	Value           *float64 // price * size * 100, nil if inputs non-finite
	Dte             *int     // days to expiry (ceiling)
	Side            string   // "AA" | "ASK" | "BID" | "OTHER"
	Sentiment       string   // "bullish" | "bearish" | "neutral"
	Spot            *float64 // underlying spot used for moneyness (nullable)
	OtmPct          *float64 // signed out-of-the-money percent (nullable)
	OI              *int64   // open interest for the contract (nullable)
	DayVolume       int64    // running contract volume up to this trade
	VolOiRatio      *float64 // dayVolume / max(oi,1), nil iff oi nil
	Repeat3m        int      // same-(contract,side) trades in trailing 180s
	BullishRatio15m *float64 // bullish/(bullish+bearish) over trailing 15m
	MinuteVolume    int64    // symbol volume in this trade's minute, up to and including it
	VolBaseline15m  *float64 // per-minute symbol volume baseline, trailing 15m
	AMBaseline15m   *float64 // per-minute volume baseline inside the AM session window
	SigScore        *float64 // composite significance score in [0,1]
	StandardExpiry  bool     // true if expiration is a standard 3rd-Friday monthly
	AMWindow        bool     // trade falls inside the 09:30-10:30 session window

	MinuteBucketMs int64    // trade timestamp floored to the minute
	Chips          []string // classification tags
	RuleVersion    string   // chip rule set version used
}

// Execution side constants
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
