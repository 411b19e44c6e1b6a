package validator

import (
	"testing"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/event/signature"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(t *testing.T, srcs ...*source.Source) *source.Loader {
	t.Helper()
	loader := source.NewLoader()
	for _, src := range srcs {
		require.NoError(t, loader.Add(src))
	}
	return loader
}

func testSource(name string) *source.Source {
	return &source.Source{
		Name:               name,
		Enabled:            true,
		RateLimitPerMinute: 60,
		MaxRetries:         3,
		EventTypes: []event.Type{
			event.EmailDelivered,
			event.EmailBounced,
			event.PaymentSucceeded,
			event.Engagement,
		},
		TypeMappings: map[string]event.Type{
			"delivered": event.EmailDelivered,
			"bounce":    event.EmailBounced,
		},
		Backoff: source.BackoffConfig{
			Strategy:        source.Exponential,
			BaseDelay:       time.Second,
			MaxDelay:        5 * time.Minute,
			ExponentialBase: 2,
		},
		Breaker: source.BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  60 * time.Second,
		},
		Health: source.HealthConfig{AlertEvery: 3},
	}
}

func TestValidate(t *testing.T) {
	t.Run("delivery event without secret", func(t *testing.T) {
		v := New(testLoader(t, testSource("sendgrid")))

		payload := []byte(`{"email":"user@example.com","event":"delivered","timestamp":1690000000}`)

		ev, err := v.Validate("sendgrid", payload, nil, "203.0.113.7")

		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, "sendgrid", ev.SourceName)
		assert.Equal(t, event.EmailDelivered, ev.Type)
		assert.Equal(t, event.Pending, ev.Status)
		assert.Equal(t, 3, ev.MaxRetries)
		assert.Equal(t, "203.0.113.7", ev.SourceIP)
		assert.False(t, ev.SignatureVerified)
	})

	t.Run("unknown source", func(t *testing.T) {
		v := New(testLoader(t))

		_, err := v.Validate("nope", []byte(`{}`), nil, "")

		require.ErrorIs(t, err, ErrUnknownSource)
	})

	t.Run("disabled source", func(t *testing.T) {
		src := testSource("legacy")
		src.Enabled = false
		v := New(testLoader(t, src))

		_, err := v.Validate("legacy", []byte(`{}`), nil, "")

		require.ErrorIs(t, err, ErrSourceDisabled)
	})

	t.Run("malformed payload", func(t *testing.T) {
		v := New(testLoader(t, testSource("sendgrid")))

		_, err := v.Validate("sendgrid", []byte(`{not json`), nil, "")

		require.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("valid signature", func(t *testing.T) {
		src := testSource("stripe-like")
		src.Secret = "whsec_abc"
		src.SignatureHeader = "X-Signature"
		v := New(testLoader(t, src))

		payload := []byte(`{"email":"user@example.com","event":"delivered"}`)
		headers := map[string]string{
			"X-Signature": signature.HexSignature("whsec_abc", payload),
		}

		ev, err := v.Validate("stripe-like", payload, headers, "")

		require.NoError(t, err)
		assert.True(t, ev.SignatureVerified)
	})

	t.Run("missing signature header", func(t *testing.T) {
		src := testSource("stripe-like")
		src.Secret = "whsec_abc"
		src.SignatureHeader = "X-Signature"
		v := New(testLoader(t, src))

		_, err := v.Validate("stripe-like", []byte(`{"email":"a@b.com"}`), nil, "")

		var sigErr *SignatureError
		require.ErrorAs(t, err, &sigErr)
	})

	t.Run("signature mismatch", func(t *testing.T) {
		src := testSource("stripe-like")
		src.Secret = "whsec_abc"
		src.SignatureHeader = "X-Signature"
		v := New(testLoader(t, src))

		payload := []byte(`{"email":"user@example.com","event":"delivered"}`)
		headers := map[string]string{
			"X-Signature": signature.HexSignature("wrong_secret", payload),
		}

		_, err := v.Validate("stripe-like", payload, headers, "")

		var sigErr *SignatureError
		require.ErrorAs(t, err, &sigErr)
		assert.Contains(t, sigErr.Reason, "mismatch")
	})

	t.Run("unmapped event falls back to default type", func(t *testing.T) {
		v := New(testLoader(t, testSource("sendgrid")))

		payload := []byte(`{"email":"user@example.com","event":"mystery"}`)

		ev, err := v.Validate("sendgrid", payload, nil, "")

		require.NoError(t, err)
		assert.Equal(t, event.EmailDelivered, ev.Type)
	})

	t.Run("email event requires valid address", func(t *testing.T) {
		v := New(testLoader(t, testSource("sendgrid")))

		_, err := v.Validate("sendgrid", []byte(`{"email":"not-an-address","event":"delivered"}`), nil, "")

		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "email", valErr.Field)
	})

	t.Run("payment event rejects negative amount", func(t *testing.T) {
		v := New(testLoader(t, testSource("payments")))

		_, err := v.Validate("payments", []byte(`{"event":"payment.succeeded","amount":-10}`), nil, "")

		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "amount", valErr.Field)
	})

	t.Run("engagement event requires an identifier", func(t *testing.T) {
		v := New(testLoader(t, testSource("analytics")))

		_, err := v.Validate("analytics", []byte(`{"event":"engagement","action":"click"}`), nil, "")

		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)

		_, err = v.Validate("analytics", []byte(`{"event":"engagement","user_id":42}`), nil, "")
		require.NoError(t, err)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("requests at the cap pass, the next is rejected", func(t *testing.T) {
		src := testSource("sendgrid")
		src.RateLimitPerMinute = 3
		v := New(testLoader(t, src))

		payload := []byte(`{"email":"user@example.com","event":"delivered"}`)

		for i := 0; i < 3; i++ {
			_, err := v.Validate("sendgrid", payload, nil, "")
			require.NoError(t, err)
		}

		_, err := v.Validate("sendgrid", payload, nil, "")
		require.ErrorIs(t, err, ErrRateLimitExceeded)
	})

	t.Run("window slides", func(t *testing.T) {
		src := testSource("sendgrid")
		src.RateLimitPerMinute = 2
		v := New(testLoader(t, src))

		clock := time.Now()
		v.now = func() time.Time { return clock }

		payload := []byte(`{"email":"user@example.com","event":"delivered"}`)

		_, err := v.Validate("sendgrid", payload, nil, "")
		require.NoError(t, err)
		_, err = v.Validate("sendgrid", payload, nil, "")
		require.NoError(t, err)
		_, err = v.Validate("sendgrid", payload, nil, "")
		require.ErrorIs(t, err, ErrRateLimitExceeded)

		// One minute later the old timestamps have aged out
		clock = clock.Add(time.Minute + time.Second)
		_, err = v.Validate("sendgrid", payload, nil, "")
		require.NoError(t, err)
	})

	t.Run("rejected requests do not consume capacity", func(t *testing.T) {
		w := newWindow(1)
		now := time.Now()

		assert.True(t, w.allow(now))
		assert.False(t, w.allow(now))
		assert.Len(t, w.timestamps, 1)
	})
}
