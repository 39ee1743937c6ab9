package kgo

import (
	"math/rand"
	"time"
)

const (
	defaultBackoffBase = 100 * time.Millisecond
	defaultBackoffMax  = 10 * time.Second
)

// defaultBackoff is a bounded exponential backoff with full jitter: each
// attempt waits a random duration between 0 and min(max, base*2^attempt).
// attempt is 0-indexed (the first retry passes 0).
func defaultBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := defaultBackoffBase
	for i := 0; i < attempt && d < defaultBackoffMax; i++ {
		d *= 2
	}
	if d > defaultBackoffMax {
		d = defaultBackoffMax
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
