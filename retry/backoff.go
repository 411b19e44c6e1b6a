package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/marcelsud/webhook-pipeline/source"
)

/* Delay computes the deterministic backoff delay for a retry attempt.
 * Exponential: base_delay * exponential_base^(attempt-1), capped at max_delay.
 * Linear: base_delay * attempt, capped at max_delay.
 */
func Delay(cfg source.BackoffConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch cfg.Strategy {
	case source.Linear:
		delay = time.Duration(attempt) * cfg.BaseDelay
	default:
		scaled := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt-1))
		if scaled > float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
		delay = time.Duration(scaled)
	}

	if delay > cfg.MaxDelay || delay < 0 {
		delay = cfg.MaxDelay
	}
	return delay
}

// Jitter adds up to 10% random jitter to a delay to spread retry bursts
func Jitter(delay time.Duration) time.Duration {
	return delay + time.Duration(rand.Float64()*0.1*float64(delay))
}
