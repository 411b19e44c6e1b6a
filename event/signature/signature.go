package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

/* Webhook providers disagree on signature encoding: some send hex digests,
 * some base64, and most prefix the value with the algorithm ("sha256=...").
 * Verification accepts either encoding and strips a single algorithm prefix.
 */

// Sign computes the HMAC-SHA256 digest of payload using secret
func Sign(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// HexSignature returns the hex-encoded signature with the sha256= prefix
func HexSignature(secret string, payload []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(secret, payload))
}

// Base64Signature returns the base64-encoded signature without a prefix
func Base64Signature(secret string, payload []byte) string {
	return base64.StdEncoding.EncodeToString(Sign(secret, payload))
}

// StripPrefix removes a leading "algorithm=" marker from a signature header value
func StripPrefix(sig string) string {
	if idx := strings.IndexByte(sig, '='); idx > 0 {
		prefix := sig[:idx]
		// Only strip recognizable algorithm markers; "=" also appears in base64 padding
		switch strings.ToLower(prefix) {
		case "sha256", "sha1", "sha512", "hmac-sha256", "v1":
			return sig[idx+1:]
		}
	}
	return sig
}

// Decode parses a signature value as hex or base64
func Decode(sig string) ([]byte, error) {
	if raw, err := hex.DecodeString(sig); err == nil {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(sig); err == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("signature is neither hex nor base64")
}

// Verify checks a signature header value against the expected HMAC-SHA256
// digest of payload, using constant-time comparison to prevent timing attacks
func Verify(secret string, payload []byte, header string) (bool, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return false, fmt.Errorf("signature header is empty")
	}

	provided, err := Decode(StripPrefix(header))
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}

	expected := Sign(secret, payload)
	return subtle.ConstantTimeCompare(provided, expected) == 1, nil
}
