package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/Allow2/brave-core-sub002/internal/util"
)

// SigningKey holds an Ed25519 private key for grant-token generation.
// The seed is kept in a memguard Enclave (encrypted at rest in memory)
// because grant signing keys are long-lived parent-side secrets.
// Call Destroy() when done.
type SigningKey struct {
	keyID     string
	pub       ed25519.PublicKey
	seed      *memguard.Enclave
	destroyed bool
}

// GenerateSigningKey creates a new Ed25519 signing key with the given
// key ID. The key ID travels in token headers so verifiers can select
// the matching public key.
func GenerateSigningKey(keyID string) (*SigningKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key ID must not be empty")
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	seed := priv.Seed()
	enclave := memguard.NewEnclave(seed)
	util.WipeBytes(priv)
	return &SigningKey{keyID: keyID, pub: pub, seed: enclave}, nil
}

// ParseSigningKey reconstructs a signing key from a hex-encoded
// 32-byte Ed25519 seed.
func ParseSigningKey(keyID, seedHex string) (*SigningKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key ID must not be empty")
	}
	seed, err := util.HexDecode(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		util.WipeBytes(seed)
		return nil, fmt.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	enclave := memguard.NewEnclave(seed)
	util.WipeBytes(priv)
	return &SigningKey{keyID: keyID, pub: pub, seed: enclave}, nil
}

// ParseVerifyKey decodes a hex-encoded Ed25519 public key.
func ParseVerifyKey(pubHex string) (ed25519.PublicKey, error) {
	b, err := util.HexDecode(pubHex)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// KeyID returns the identifier embedded in token headers.
func (k *SigningKey) KeyID() string {
	if k == nil || k.destroyed {
		return ""
	}
	return k.keyID
}

// Public returns the matching Ed25519 public key.
func (k *SigningKey) Public() ed25519.PublicKey {
	if k == nil || k.destroyed {
		return nil
	}
	return k.pub
}

// PublicHex returns the hex encoding of the public key, the form
// distributed to devices.
func (k *SigningKey) PublicHex() string {
	if k == nil || k.destroyed {
		return ""
	}
	return util.HexEncode(k.pub)
}

// Sign opens the enclave, signs payload, and wipes the reconstructed
// private key before returning.
func (k *SigningKey) Sign(payload []byte) ([]byte, error) {
	if k == nil || k.destroyed {
		return nil, fmt.Errorf("signing key has been destroyed")
	}
	buf, err := k.seed.Open()
	if err != nil {
		return nil, fmt.Errorf("opening signing key enclave: %w", err)
	}
	defer buf.Destroy()
	priv := ed25519.NewKeyFromSeed(buf.Bytes())
	sig := ed25519.Sign(priv, payload)
	util.WipeBytes(priv)
	return sig, nil
}

// SeedHex exports the hex-encoded seed for offline storage. Treat the
// result as highly sensitive; anyone holding it can sign time grants.
func (k *SigningKey) SeedHex() (string, error) {
	if k == nil || k.destroyed {
		return "", fmt.Errorf("signing key has been destroyed")
	}
	buf, err := k.seed.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing key enclave: %w", err)
	}
	defer buf.Destroy()
	return util.HexEncode(buf.Bytes()), nil
}

// Destroy wipes the key material. The key must not be reused after.
func (k *SigningKey) Destroy() {
	if k == nil || k.destroyed {
		return
	}
	k.seed = nil
	k.pub = nil
	k.keyID = ""
	k.destroyed = true
}
