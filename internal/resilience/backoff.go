package resilience

import (
	"math/rand/v2"
	"time"
)

// MaxBackoff caps every delay Backoff returns.
const MaxBackoff = 15 * time.Minute

// Backoff returns base doubled per attempt after the first, capped at
// MaxBackoff, then spread by ±jitterPct (0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	if d > MaxBackoff {
		d = MaxBackoff
	}
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
