package domain

// SymbolMinuteRollup aggregates enriched trades per (symbol, day, minute).
// Corresponds to symbol_minute_rollups table in ClickHouse. Rollups are a
// derived, rebuildable projection: a day rebuild supersedes all prior rows
// for that day via the BuiltAtMs version column.
type SymbolMinuteRollup struct {
	Symbol         string           // underlying
	Day            string           // UTC calendar day, YYYY-MM-DD
	MinuteMs       int64            // minute bucket start (ms)
	TradeCount     int64            // trades in the minute
	Volume         int64            // total contracts
	Premium        float64          // sum of trade values
	BullishCount   int64            // bullish-sentiment trades
	BearishCount   int64            // bearish-sentiment trades
	MaxSigScore    float64          // maximum significance score
	AvgSigScore    float64          // mean significance score (scored trades only)
	ChipCounts     map[string]int64 // chip id -> hit count
	BuiltAtMs      int64            // build version (ms)
}

// ContractMinuteRollup aggregates enriched trades per
// (symbol, contract, day, minute). Corresponds to contract_minute_rollups
// table in ClickHouse.
type ContractMinuteRollup struct {
	Symbol       string           // underlying
	Expiration   string           // YYYY-MM-DD
	Strike       float64          // strike price
	Right        string           // "CALL" | "PUT"
	Day          string           // UTC calendar day, YYYY-MM-DD
	MinuteMs     int64            // minute bucket start (ms)
	TradeCount   int64            // trades in the minute
	Volume       int64            // total contracts
	Premium      float64          // sum of trade values
	BullishCount int64            // bullish-sentiment trades
	BearishCount int64            // bearish-sentiment trades
	MaxSigScore  float64          // maximum significance score
	AvgSigScore  float64          // mean significance score (scored trades only)
	ChipCounts   map[string]int64 // chip id -> hit count
	BuiltAtMs    int64            // build version (ms)
}
