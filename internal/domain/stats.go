package domain

// IntradayContractStats tracks the running day volume and last-known open
// interest per contract within a day. Corresponds to intraday_contract_stats
// table in PostgreSQL; rebuilt with each enrichment pass.
type IntradayContractStats struct {
	Symbol      string  // underlying
	Expiration  string  // YYYY-MM-DD
	Strike      float64 // strike price
	Right       string  // "CALL" | "PUT"
	Day         string  // UTC calendar day, YYYY-MM-DD
	DayVolume   int64   // total contract volume for the day
	LastOI      *int64  // last resolved open interest (nullable)
	UpdatedAtMs int64   // last update timestamp (ms)
}

// Contract returns the stats row's contract key.
func (s *IntradayContractStats) Contract() ContractKey {
	return ContractKey{Symbol: s.Symbol, Expiration: s.Expiration, Strike: s.Strike, Right: s.Right}
}
