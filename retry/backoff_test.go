package retry

import (
	"testing"
	"time"

	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/stretchr/testify/assert"
)

func TestDelay(t *testing.T) {
	exp := source.BackoffConfig{
		Strategy:        source.Exponential,
		BaseDelay:       time.Second,
		MaxDelay:        5 * time.Minute,
		ExponentialBase: 2,
	}

	t.Run("exponential growth", func(t *testing.T) {
		assert.Equal(t, 1*time.Second, Delay(exp, 1))
		assert.Equal(t, 2*time.Second, Delay(exp, 2))
		assert.Equal(t, 4*time.Second, Delay(exp, 3))
		assert.Equal(t, 8*time.Second, Delay(exp, 4))
	})

	t.Run("monotonically non-decreasing until the cap", func(t *testing.T) {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 30; attempt++ {
			d := Delay(exp, attempt)
			assert.GreaterOrEqual(t, d, prev)
			assert.LessOrEqual(t, d, exp.MaxDelay)
			prev = d
		}
	})

	t.Run("caps at max delay", func(t *testing.T) {
		assert.Equal(t, 5*time.Minute, Delay(exp, 10))
		// Large attempt numbers must not overflow into negatives
		assert.Equal(t, 5*time.Minute, Delay(exp, 500))
	})

	t.Run("linear growth", func(t *testing.T) {
		lin := source.BackoffConfig{
			Strategy:  source.Linear,
			BaseDelay: 2 * time.Second,
			MaxDelay:  10 * time.Second,
		}
		assert.Equal(t, 2*time.Second, Delay(lin, 1))
		assert.Equal(t, 4*time.Second, Delay(lin, 2))
		assert.Equal(t, 10*time.Second, Delay(lin, 5))
		assert.Equal(t, 10*time.Second, Delay(lin, 50))
	})

	t.Run("attempt below one is clamped", func(t *testing.T) {
		assert.Equal(t, time.Second, Delay(exp, 0))
		assert.Equal(t, time.Second, Delay(exp, -3))
	})
}

func TestJitter(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		jittered := Jitter(base)
		assert.GreaterOrEqual(t, jittered, base)
		assert.LessOrEqual(t, jittered, base+time.Second)
	}
}
