// Package voicecode implements the numeric challenge-response used
// when no QR or push channel is available: the device displays a
// six-digit request code, a parent derives the matching six-digit
// approval code out-of-band, and the child reads it back in. Both
// codes are self-contained, so the two legs may travel over any medium
// independently.
//
// The approval code is an HMAC-SHA256 tag over the request code,
// truncated to six digits, under a key HKDF-derived from the secret
// shared at pairing. The device-side Protocol and the parent-side
// Approver derive the same key; nothing about a specific challenge is
// transmitted between them.
package voicecode

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	icrypto "github.com/Allow2/brave-core-sub002/crypto"
	"github.com/Allow2/brave-core-sub002/internal/util"
	"github.com/Allow2/brave-core-sub002/lockout"
	"github.com/Allow2/brave-core-sub002/sched"
)

// CodeLength is the digit count of both request and approval codes.
// Short enough to read aloud, long enough that the lockout makes
// guessing impractical.
const CodeLength = 6

// DefaultChallengeTTL is how long a request code stays redeemable.
const DefaultChallengeTTL = 10 * time.Minute

var (
	// ErrLockedOut rejects an attempt during an active lockout without
	// evaluating the code at all.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrInvalidCode covers malformed and mismatched approval codes.
	ErrInvalidCode = errors.New("invalid approval code")
	// ErrUnknownChallenge means the request code was never issued here
	// or has already been redeemed.
	ErrUnknownChallenge = errors.New("unknown request code")
	// ErrChallengeExpired means the request code's window has passed.
	ErrChallengeExpired = errors.New("request code expired")
)

var hkdfInfo = []byte("voicecode:approval:v1")

// deriveKey stretches the pairing secret into the approval-code key.
func deriveKey(sharedSecret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, hkdfInfo)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving approval key: %w", err)
	}
	return key, nil
}

// codeFromMAC truncates an HMAC tag to a six-digit decimal code.
func codeFromMAC(tag []byte) string {
	n := binary.BigEndian.Uint32(tag[:4]) % 1000000
	return fmt.Sprintf("%06d", n)
}

func validFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Challenge is an outstanding voice-code request. Only the public
// request code leaves the device.
type Challenge struct {
	RequestCode      string
	ChildID          string
	ActivityID       int
	MinutesRequested int
	ExpiresAt        time.Time
}

// Protocol is the device side: it issues request codes and validates
// approval codes, guarded by the shared lockout tracker.
type Protocol struct {
	mu       sync.Mutex
	clock    sched.Clock
	lockouts *lockout.Tracker
	key      []byte
	ttl      time.Duration
	pending  map[string]Challenge
}

// ProtocolOption customizes a Protocol.
type ProtocolOption func(*Protocol)

// WithClock substitutes the time source. For tests.
func WithClock(c sched.Clock) ProtocolOption {
	return func(p *Protocol) { p.clock = c }
}

// WithChallengeTTL overrides the request-code validity window.
func WithChallengeTTL(d time.Duration) ProtocolOption {
	return func(p *Protocol) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithLockoutTracker substitutes the brute-force guard, letting the
// engine share one tracker across PIN and voice-code entry.
func WithLockoutTracker(t *lockout.Tracker) ProtocolOption {
	return func(p *Protocol) { p.lockouts = t }
}

// NewProtocol creates the device side of the exchange. sharedSecret is
// the pairing secret; the approval key is derived from it, never
// stored raw.
func NewProtocol(sharedSecret []byte, opts ...ProtocolOption) (*Protocol, error) {
	if len(sharedSecret) == 0 {
		return nil, fmt.Errorf("shared secret must not be empty")
	}
	key, err := deriveKey(sharedSecret)
	if err != nil {
		return nil, err
	}
	p := &Protocol{
		clock:   sched.SystemClock{},
		key:     key,
		ttl:     DefaultChallengeTTL,
		pending: make(map[string]Challenge),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.lockouts == nil {
		p.lockouts = lockout.New(lockout.VoiceCodeConfig(), p.clock)
	}
	return p, nil
}

// NewChallenge issues a fresh request code for the given child and
// activity. The code is displayed/read to the parent; the challenge
// stays pending until redeemed or expired.
func (p *Protocol) NewChallenge(childID string, activityID, minutesRequested int) (Challenge, error) {
	if minutesRequested < 1 {
		return Challenge{}, fmt.Errorf("minutes requested must be positive, got %d", minutesRequested)
	}
	code, err := util.RandomDigits(CodeLength)
	if err != nil {
		return Challenge{}, fmt.Errorf("generating request code: %w", err)
	}
	ch := Challenge{
		RequestCode:      code,
		ChildID:          childID,
		ActivityID:       activityID,
		MinutesRequested: minutesRequested,
		ExpiresAt:        p.clock.Now().Add(p.ttl),
	}
	p.mu.Lock()
	p.pending[code] = ch
	p.mu.Unlock()
	return ch, nil
}

// lockoutIdentity namespaces voice-code lockouts away from PIN
// lockouts sharing the same tracker.
func lockoutIdentity(requestCode string) string {
	return "voice:" + requestCode
}

// IsLockedOut reports whether submissions for the request code are
// currently rejected, and for how long. Pure query for countdown UIs.
func (p *Protocol) IsLockedOut(requestCode string) (bool, time.Duration) {
	return p.lockouts.IsLockedOut(lockoutIdentity(requestCode))
}

// SubmitApprovalCode validates an approval code against its pending
// challenge. Order of checks: challenge existence and expiry, then
// lockout (rejecting without evaluation), then format, then a
// constant-time comparison. On success the challenge is consumed, the
// lockout identity cleared, and the requested minutes returned.
func (p *Protocol) SubmitApprovalCode(requestCode, approvalCode string) (int, error) {
	p.mu.Lock()
	ch, ok := p.pending[requestCode]
	p.mu.Unlock()
	if !ok {
		return 0, ErrUnknownChallenge
	}
	if p.clock.Now().After(ch.ExpiresAt) {
		p.mu.Lock()
		delete(p.pending, requestCode)
		p.mu.Unlock()
		return 0, ErrChallengeExpired
	}

	identity := lockoutIdentity(requestCode)
	if locked, _ := p.lockouts.IsLockedOut(identity); locked {
		return 0, ErrLockedOut
	}

	// Malformed input is rejected before any comparison and does not
	// count a strike: the six-digit space is only guessable with
	// well-formed codes.
	if !validFormat(approvalCode) {
		return 0, fmt.Errorf("%w: code must be exactly %d digits", ErrInvalidCode, CodeLength)
	}

	expected := codeFromMAC(icrypto.ComputeMAC([]byte(requestCode), p.key))
	if !icrypto.ConstantTimeEqual(expected, approvalCode) {
		p.lockouts.RecordFailure(identity)
		return 0, ErrInvalidCode
	}

	p.lockouts.RecordSuccess(identity)
	p.mu.Lock()
	delete(p.pending, requestCode)
	p.mu.Unlock()
	return ch.MinutesRequested, nil
}

// Expire drops pending challenges whose window has passed.
func (p *Protocol) Expire() {
	now := p.clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for code, ch := range p.pending {
		if now.After(ch.ExpiresAt) {
			delete(p.pending, code)
		}
	}
}

// Approver is the parent/service side: it derives approval codes from
// the same shared secret. It holds no challenge state.
type Approver struct {
	key []byte
}

// NewApprover creates an Approver from the pairing secret.
func NewApprover(sharedSecret []byte) (*Approver, error) {
	if len(sharedSecret) == 0 {
		return nil, fmt.Errorf("shared secret must not be empty")
	}
	key, err := deriveKey(sharedSecret)
	if err != nil {
		return nil, err
	}
	return &Approver{key: key}, nil
}

// ApprovalCodeFor computes the approval code for a request code read
// aloud by the child.
func (a *Approver) ApprovalCodeFor(requestCode string) (string, error) {
	if !validFormat(requestCode) {
		return "", fmt.Errorf("request code must be exactly %d digits", CodeLength)
	}
	return codeFromMAC(icrypto.ComputeMAC([]byte(requestCode), a.key)), nil
}
