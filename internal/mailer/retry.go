package mailer

import (
	"math/rand"
	"time"
)

// Delivery retry delays. Attempt 1: 1s, attempt 2: 5s, attempt 3: 15s.
var defaultRetryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
}

// JitterFactor is the ±percentage of jitter applied to delays.
const JitterFactor = 0.2

// nextRetryDelay picks the delay after a failed attempt with ±20% jitter.
// attempt is 0-indexed and clamps to the last configured delay.
func nextRetryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}

	base := delays[attempt]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}
