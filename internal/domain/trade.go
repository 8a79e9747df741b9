package domain

import (
	"encoding/json"
	"fmt"
)

// RawTrade represents a single options trade tick as received from the feed.
// Corresponds to raw_trades table in PostgreSQL. Identity is a content hash
// over (symbol, expiration, strike, right, trade_ts, price, size, condition,
// exchange), so re-ingesting the same tick is an upsert, not a duplicate.
type RawTrade struct {
	TradeID       string          // SHA256 content hash, hex
	TradeTsMs     int64           // trade timestamp, Unix ms UTC
	Symbol        string          // underlying, normalized upper-case
	Expiration    string          // contract expiration date, YYYY-MM-DD
	Strike        float64         // strike price
	Right         string          // "CALL" | "PUT"
	Price         float64         // execution price
	Size          int64           // contracts
	Bid           *float64        // NBBO bid at execution (nullable)
	Ask           *float64        // NBBO ask at execution (nullable)
	ConditionCode *string         // exchange condition code (nullable)
	Exchange      *string         // executing exchange (nullable)
	RawPayload    json.RawMessage // original upstream record
	Watermark     *string         // upstream watermark/cursor (nullable)
	CreatedAt     int64           // record creation timestamp (ms)
}

// Option right constants
const (
	RightCall = "CALL"
	RightPut  = "PUT"
)

// ContractKey identifies a single option contract.
type ContractKey struct {
	Symbol     string
	Expiration string
	Strike     float64
	Right      string
}

// Contract returns the trade's contract key.
func (t *RawTrade) Contract() ContractKey {
	return ContractKey{Symbol: t.Symbol, Expiration: t.Expiration, Strike: t.Strike, Right: t.Right}
}

// String renders the key as symbol|expiration|strike|right.
func (k ContractKey) String() string {
	return fmt.Sprintf("%s|%s|%g|%s", k.Symbol, k.Expiration, k.Strike, k.Right)
}
