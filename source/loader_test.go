package source_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full configuration", func(t *testing.T) {
		path := writeSourcesFile(t, `
sources:
  - name: sendgrid
    secret: whsec_abc123
    signature_header: X-Twilio-Email-Event-Webhook-Signature
    rate_limit_per_minute: 120
    max_retries: 5
    event_types:
      - email.delivered
      - email.bounced
    type_mappings:
      delivered: email.delivered
      bounce: email.bounced
    backoff_strategy: linear
    base_delay_seconds: 2
    max_delay_seconds: 120
    failure_threshold: 10
    success_threshold: 3
    recovery_timeout_seconds: 30
`)

		loader := source.NewLoader()
		require.NoError(t, loader.Load(path))

		src, err := loader.Get("sendgrid")
		require.NoError(t, err)

		assert.True(t, src.Enabled)
		assert.Equal(t, "whsec_abc123", src.Secret)
		assert.Equal(t, 120, src.RateLimitPerMinute)
		assert.Equal(t, 5, src.MaxRetries)
		assert.Equal(t, []event.Type{event.EmailDelivered, event.EmailBounced}, src.EventTypes)
		assert.Equal(t, event.EmailBounced, src.TypeMappings["bounce"])
		assert.Equal(t, source.Linear, src.Backoff.Strategy)
		assert.Equal(t, 2*time.Second, src.Backoff.BaseDelay)
		assert.Equal(t, 2*time.Minute, src.Backoff.MaxDelay)
		assert.Equal(t, 10, src.Breaker.FailureThreshold)
		assert.Equal(t, 3, src.Breaker.SuccessThreshold)
		assert.Equal(t, 30*time.Second, src.Breaker.RecoveryTimeout)
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeSourcesFile(t, `
sources:
  - name: analytics
    event_types:
      - engagement
`)

		loader := source.NewLoader()
		require.NoError(t, loader.Load(path))

		src, err := loader.Get("analytics")
		require.NoError(t, err)

		assert.True(t, src.Enabled)
		assert.Equal(t, 60, src.RateLimitPerMinute)
		assert.Equal(t, 3, src.MaxRetries)
		assert.Equal(t, source.Exponential, src.Backoff.Strategy)
		assert.Equal(t, time.Second, src.Backoff.BaseDelay)
		assert.Equal(t, 5*time.Minute, src.Backoff.MaxDelay)
		assert.Equal(t, 2.0, src.Backoff.ExponentialBase)
		assert.Equal(t, 5, src.Breaker.FailureThreshold)
		assert.Equal(t, 2, src.Breaker.SuccessThreshold)
		assert.Equal(t, 60*time.Second, src.Breaker.RecoveryTimeout)
		assert.Equal(t, 5*time.Minute, src.Health.CheckInterval)
		assert.Equal(t, time.Hour, src.Health.Window)
		assert.Equal(t, 3, src.Health.AlertEvery)
		assert.Equal(t, 0.1, src.Health.ErrorRateThreshold)
		assert.Equal(t, 0.2, src.Health.RetryRateThreshold)
		assert.Equal(t, 0.05, src.Health.DeadLetterRateThreshold)
		assert.Equal(t, 30*time.Second, src.Health.ResponseTimeThreshold)
	})

	t.Run("disabled source", func(t *testing.T) {
		path := writeSourcesFile(t, `
sources:
  - name: legacy
    enabled: false
    event_types:
      - form.submitted
`)

		loader := source.NewLoader()
		require.NoError(t, loader.Load(path))

		src, err := loader.Get("legacy")
		require.NoError(t, err)
		assert.False(t, src.Enabled)
	})

	t.Run("unknown event type", func(t *testing.T) {
		path := writeSourcesFile(t, `
sources:
  - name: bad
    event_types:
      - not.a.type
`)

		loader := source.NewLoader()
		err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event type")
	})

	t.Run("secret without signature header", func(t *testing.T) {
		path := writeSourcesFile(t, `
sources:
  - name: bad
    secret: whsec_abc
    event_types:
      - engagement
`)

		loader := source.NewLoader()
		err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signature_header")
	})

	t.Run("missing file", func(t *testing.T) {
		loader := source.NewLoader()
		require.Error(t, loader.Load("does-not-exist.yaml"))
	})
}

func TestResolveType(t *testing.T) {
	src := &source.Source{
		Name:       "sendgrid",
		EventTypes: []event.Type{event.EmailDelivered, event.EmailBounced},
		TypeMappings: map[string]event.Type{
			"delivered": event.EmailDelivered,
			"bounce":    event.EmailBounced,
		},
	}

	t.Run("mapped value", func(t *testing.T) {
		assert.Equal(t, event.EmailBounced, src.ResolveType("bounce"))
	})

	t.Run("canonical value", func(t *testing.T) {
		assert.Equal(t, event.EmailDelivered, src.ResolveType("email.delivered"))
	})

	t.Run("unrecognized falls back to default", func(t *testing.T) {
		assert.Equal(t, event.EmailDelivered, src.ResolveType("mystery"))
	})
}
