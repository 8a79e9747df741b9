package domain

// ReferenceOpenInterest is one row of the external government reference
// open-interest table. Read-only to the engine; multiple sources may coexist
// for the same contract and the most recently ingested one wins.
type ReferenceOpenInterest struct {
	Source       string  // publishing source identifier
	AsOfDate     string  // reporting date, YYYY-MM-DD
	Symbol       string  // underlying
	Expiration   string  // YYYY-MM-DD
	Strike       float64 // strike price
	Right        string  // "CALL" | "PUT"
	OI           int64   // outstanding contracts
	IngestedAtMs int64   // ingest timestamp (ms), used for precedence
}

// Contract returns the reference row's contract key.
func (r *ReferenceOpenInterest) Contract() ContractKey {
	return ContractKey{Symbol: r.Symbol, Expiration: r.Expiration, Strike: r.Strike, Right: r.Right}
}
