package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// GenerateNumber produces an order number of the form
// ORD-<8-digit-timestamp-suffix>-<4-digit-random>. The timestamp suffix is
// the last eight digits of the Unix timestamp in milliseconds, so collisions
// are rare but possible; the storage layer's unique index is the actual
// guarantee and callers retry with a fresh number on collision.
func GenerateNumber() string {
	ts := time.Now().UnixMilli() % 100_000_000
	return fmt.Sprintf("ORD-%08d-%04d", ts, rand.IntN(10_000))
}
