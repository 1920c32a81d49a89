package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// ComputeTradeID computes a deterministic trade id for fills that arrive without one.
// Formula: SHA256(token_id|wallet|side|timestamp_ms|price|amount)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	tokenID string,
	wallet string,
	side string,
	timestampMs int64,
	price float64,
	amount float64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s|%s",
		tokenID,
		wallet,
		side,
		timestampMs,
		strconv.FormatFloat(price, 'g', -1, 64),
		strconv.FormatFloat(amount, 'g', -1, 64),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
