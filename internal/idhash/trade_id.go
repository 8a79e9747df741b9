package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(symbol|expiration|strike|right|trade_ts|price|size|condition|exchange)
// Nullable condition/exchange contribute an empty segment so the same tick
// always hashes identically regardless of which feed shape delivered it.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	symbol string,
	expiration string,
	strike float64,
	right string,
	tradeTsMs int64,
	price float64,
	size int64,
	conditionCode string,
	exchange string,
) string {
	data := fmt.Sprintf("%s|%s|%g|%s|%d|%g|%d|%s|%s",
		symbol,
		expiration,
		strike,
		right,
		tradeTsMs,
		price,
		size,
		conditionCode,
		exchange,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
