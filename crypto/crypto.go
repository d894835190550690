// Package crypto provides the cryptographic primitives used by the
// authorization engine: constant-time comparison, salted PIN digests,
// Ed25519 signatures for grant tokens, and HMAC tags for voice codes.
package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/Allow2/brave-core-sub002/internal/util"
)

// PinHashAlgorithm tags PIN digests so the stored format is
// self-describing and can be migrated later.
const PinHashAlgorithm = "sha256"

// ConstantTimeEqual reports whether a and b are equal without leaking
// the position of the first mismatch through timing. Differing lengths
// return false immediately; the values compared here (hash strings,
// fixed-width codes) have fixed formats, so length is not a secret.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashPin digests pin+salt (in that order) and returns it in the
// stored "<algorithm>:<hex>" form. The raw PIN is never stored.
func HashPin(pin, salt string) string {
	sum := sha256.Sum256([]byte(pin + salt))
	return PinHashAlgorithm + ":" + util.HexEncode(sum[:])
}

// VerifyPin compares a candidate PIN against a stored digest in
// constant time. Unknown algorithm tags fail closed.
func VerifyPin(pin, salt, storedHash string) bool {
	algo, _, ok := strings.Cut(storedHash, ":")
	if !ok || algo != PinHashAlgorithm {
		return false
	}
	return ConstantTimeEqual(HashPin(pin, salt), storedHash)
}

// Sign signs payload with an Ed25519 private key. A malformed key
// returns nil rather than panicking.
func Sign(payload []byte, priv ed25519.PrivateKey) []byte {
	if len(priv) != ed25519.PrivateKeySize {
		return nil
	}
	return ed25519.Sign(priv, payload)
}

// VerifySignature reports whether sig is a valid Ed25519 signature
// over payload under pub. Malformed keys return false, never panic.
func VerifySignature(payload, sig []byte, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, payload, sig)
}

// ComputeMAC returns the HMAC-SHA256 tag of message under key.
func ComputeMAC(message, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// VerifyMAC checks an HMAC-SHA256 tag in constant time.
func VerifyMAC(message, tag, key []byte) bool {
	return hmac.Equal(ComputeMAC(message, key), tag)
}
