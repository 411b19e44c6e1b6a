package signature_test

import (
	"encoding/hex"
	"testing"

	"github.com/marcelsud/webhook-pipeline/event/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"email":"user@example.com","event":"delivered","timestamp":1690000000}`)

	t.Run("hex signature with prefix", func(t *testing.T) {
		header := signature.HexSignature(secret, payload)

		ok, err := signature.Verify(secret, payload, header)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("hex signature without prefix", func(t *testing.T) {
		header := hex.EncodeToString(signature.Sign(secret, payload))

		ok, err := signature.Verify(secret, payload, header)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("base64 signature", func(t *testing.T) {
		header := signature.Base64Signature(secret, payload)

		ok, err := signature.Verify(secret, payload, header)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("single byte payload mutation fails", func(t *testing.T) {
		header := signature.HexSignature(secret, payload)

		mutated := make([]byte, len(payload))
		copy(mutated, payload)
		mutated[0] ^= 0x01

		ok, err := signature.Verify(secret, mutated, header)

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		header := signature.HexSignature(secret, payload)

		ok, err := signature.Verify("other_secret", payload, header)

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty header", func(t *testing.T) {
		_, err := signature.Verify(secret, payload, "")
		require.Error(t, err)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := signature.Verify(secret, payload, "!!not-a-signature!!")
		require.Error(t, err)
	})
}

func TestStripPrefix(t *testing.T) {
	t.Run("known algorithm markers", func(t *testing.T) {
		assert.Equal(t, "abc123", signature.StripPrefix("sha256=abc123"))
		assert.Equal(t, "abc123", signature.StripPrefix("SHA256=abc123"))
		assert.Equal(t, "abc123", signature.StripPrefix("v1=abc123"))
		assert.Equal(t, "abc123", signature.StripPrefix("hmac-sha256=abc123"))
	})

	t.Run("base64 padding is not a prefix", func(t *testing.T) {
		assert.Equal(t, "YWJjZA==", signature.StripPrefix("YWJjZA=="))
	})

	t.Run("no prefix", func(t *testing.T) {
		assert.Equal(t, "abc123", signature.StripPrefix("abc123"))
	})
}
