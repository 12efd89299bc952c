package mailer

import (
	"testing"
	"time"
)

func TestNextRetryDelay_Jitter(t *testing.T) {
	delays := []time.Duration{time.Second, 10 * time.Second}

	for attempt, base := range delays {
		minDelay := time.Duration(float64(base) * (1 - JitterFactor))
		maxDelay := time.Duration(float64(base) * (1 + JitterFactor))
		for i := 0; i < 100; i++ {
			got := nextRetryDelay(delays, attempt)
			if got < minDelay || got > maxDelay {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, got, minDelay, maxDelay)
			}
		}
	}
}

func TestNextRetryDelay_Clamps(t *testing.T) {
	delays := []time.Duration{time.Second, 10 * time.Second}

	if got := nextRetryDelay(delays, 99); got < 8*time.Second {
		t.Errorf("attempt past the end should use last delay, got %v", got)
	}
	if got := nextRetryDelay(delays, -1); got > 2*time.Second {
		t.Errorf("negative attempt should use first delay, got %v", got)
	}
	if got := nextRetryDelay(nil, 0); got != 0 {
		t.Errorf("no delays should yield 0, got %v", got)
	}
}
