// Package grant implements the signed offline time-grant token. A
// parent-side tool signs a grant, the token travels as text (usually
// inside a QR code), and the device verifies it without network
// connectivity. The wire format is three dot-joined base64url
// segments, header.payload.signature, with the Ed25519 signature
// computed over the raw "header.payload" bytes so verification never
// depends on JSON canonicalization.
package grant

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	icrypto "github.com/Allow2/brave-core-sub002/crypto"
	"github.com/Allow2/brave-core-sub002/internal/util"
	"github.com/Allow2/brave-core-sub002/sched"
	"github.com/Allow2/brave-core-sub002/storage"
)

// Type enumerates what a grant authorizes.
type Type string

const (
	// TypeExtension adds minutes to today's remaining time.
	TypeExtension Type = "extension"
	// TypeQuota replaces the day's quota.
	TypeQuota Type = "quota"
	// TypeEarlier moves the allowed start time earlier.
	TypeEarlier Type = "earlier"
	// TypeLiftBan lifts an active ban.
	TypeLiftBan Type = "liftban"
)

func (t Type) valid() bool {
	switch t {
	case TypeExtension, TypeQuota, TypeEarlier, TypeLiftBan:
		return true
	}
	return false
}

// Limits enforced at generation and re-checked at parse time.
const (
	// MaxMinutes caps a single grant at eight hours.
	MaxMinutes = 480
	// MaxValidity caps the window between issuance and expiry.
	MaxValidity = 24 * time.Hour
)

const signingAlgorithm = "ed25519"

// Grant is an immutable, signed authorization. An empty DeviceID means
// the grant is valid on any device; an empty ChildID means any child.
type Grant struct {
	Type       Type      `json:"type"`
	ChildID    string    `json:"childId,omitempty"`
	ActivityID int       `json:"activityId,omitempty"`
	Minutes    int       `json:"minutes"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Nonce      string    `json:"nonce"`
	DeviceID   string    `json:"deviceId,omitempty"`
	KeyID      string    `json:"keyId"`
}

// ValidForDevice reports whether the grant may be applied on the given
// device. An empty DeviceID on the grant means "any device".
func (g Grant) ValidForDevice(deviceID string) bool {
	return g.DeviceID == "" || g.DeviceID == deviceID
}

// ValidForChild reports whether the grant targets the given child.
func (g Grant) ValidForChild(childID string) bool {
	return g.ChildID == "" || g.ChildID == childID
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Codec parses, verifies, and generates grant tokens.
type Codec struct {
	clock  sched.Clock
	nonces storage.NonceStore
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock substitutes the time source. For tests.
func WithClock(c sched.Clock) CodecOption {
	return func(cd *Codec) { cd.clock = c }
}

// WithNonceStore attaches a replay set. Without one, IsNonceUsed
// always reports false and MarkNonceUsed is a no-op.
func WithNonceStore(n storage.NonceStore) CodecOption {
	return func(cd *Codec) { cd.nonces = n }
}

// NewCodec creates a Codec.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{clock: sched.SystemClock{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseAndVerify validates a token against the parent's public key and
// returns the grant only if every check passes: three well-formed
// segments, the expected algorithm, a valid signature over the raw
// header.payload bytes, an unexpired grant, and fields within limits.
// Any failure returns (nil, false) with no partial data.
//
// Device, child, and nonce-replay checks remain the caller's
// responsibility; see ValidForDevice, ValidForChild, and IsNonceUsed.
func (c *Codec) ParseAndVerify(token string, parentPublicKey ed25519.PublicKey) (*Grant, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, false
	}

	headerRaw, err := util.B64Decode(parts[0])
	if err != nil {
		return nil, false
	}
	payloadRaw, err := util.B64Decode(parts[1])
	if err != nil {
		return nil, false
	}
	sig, err := util.B64Decode(parts[2])
	if err != nil {
		return nil, false
	}

	var hdr tokenHeader
	if err := json.Unmarshal(headerRaw, &hdr); err != nil {
		return nil, false
	}
	if hdr.Alg != signingAlgorithm {
		return nil, false
	}

	// Signature covers the two undecoded segments verbatim.
	signed := []byte(parts[0] + "." + parts[1])
	if !icrypto.VerifySignature(signed, sig, parentPublicKey) {
		return nil, false
	}

	var g Grant
	if err := json.Unmarshal(payloadRaw, &g); err != nil {
		return nil, false
	}
	g.KeyID = hdr.Kid

	if !g.Type.valid() || g.Nonce == "" {
		return nil, false
	}
	if g.Minutes < 1 || g.Minutes > MaxMinutes {
		return nil, false
	}
	if g.ExpiresAt.IsZero() || g.IssuedAt.IsZero() {
		return nil, false
	}
	if g.ExpiresAt.Sub(g.IssuedAt) > MaxValidity {
		return nil, false
	}
	if c.clock.Now().After(g.ExpiresAt) {
		return nil, false
	}
	return &g, true
}

// Generate signs a grant and returns the token text. It fills IssuedAt
// and Nonce when unset and enforces the same limits that parsing
// re-checks. This is the parent-side inverse of ParseAndVerify; the
// child device never signs.
func (c *Codec) Generate(g Grant, key *icrypto.SigningKey) (string, error) {
	if key == nil {
		return "", fmt.Errorf("signing key is required")
	}
	if !g.Type.valid() {
		return "", fmt.Errorf("invalid grant type %q", g.Type)
	}
	if g.Minutes < 1 || g.Minutes > MaxMinutes {
		return "", fmt.Errorf("minutes must be in [1, %d], got %d", MaxMinutes, g.Minutes)
	}
	if g.IssuedAt.IsZero() {
		g.IssuedAt = c.clock.Now()
	}
	if g.ExpiresAt.IsZero() {
		g.ExpiresAt = g.IssuedAt.Add(MaxValidity)
	}
	if !g.ExpiresAt.After(g.IssuedAt) {
		return "", fmt.Errorf("expiry must be after issuance")
	}
	if g.ExpiresAt.Sub(g.IssuedAt) > MaxValidity {
		return "", fmt.Errorf("validity window must not exceed %s", MaxValidity)
	}
	if g.Nonce == "" {
		g.Nonce = uuid.NewString()
	}
	g.KeyID = key.KeyID()

	payload, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encoding grant payload: %w", err)
	}
	header, err := json.Marshal(tokenHeader{Alg: signingAlgorithm, Kid: key.KeyID()})
	if err != nil {
		return "", fmt.Errorf("encoding grant header: %w", err)
	}

	signed := util.B64Encode(header) + "." + util.B64Encode(payload)
	sig, err := key.Sign([]byte(signed))
	if err != nil {
		return "", fmt.Errorf("signing grant: %w", err)
	}
	return signed + "." + util.B64Encode(sig), nil
}

// IsNonceUsed reports whether the nonce has already been consumed on
// this device.
func (c *Codec) IsNonceUsed(nonce string) bool {
	if c.nonces == nil {
		return false
	}
	used, err := c.nonces.IsUsed(nonce)
	if err != nil {
		// A broken replay store fails closed: treat as used.
		return true
	}
	return used
}

// MarkNonceUsed records a consumed nonce. Call after a grant has been
// applied.
func (c *Codec) MarkNonceUsed(nonce string) error {
	if c.nonces == nil {
		return nil
	}
	return c.nonces.MarkUsed(nonce)
}
