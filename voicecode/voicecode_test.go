package voicecode

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Allow2/brave-core-sub002/sched"
)

var sharedSecret = []byte("pair-token-shared-at-pairing")

func newTestProtocol(t *testing.T) (*Protocol, *Approver, *sched.ManualClock) {
	t.Helper()
	clock := sched.NewManualClock(time.Date(2026, 5, 1, 16, 0, 0, 0, time.UTC))
	p, err := NewProtocol(sharedSecret, WithClock(clock))
	require.NoError(t, err)
	a, err := NewApprover(sharedSecret)
	require.NoError(t, err)
	return p, a, clock
}

func TestChallengeAndApproval(t *testing.T) {
	p, a, _ := newTestProtocol(t)

	ch, err := p.NewChallenge("child-1", 3, 45)
	require.NoError(t, err)
	assert.Len(t, ch.RequestCode, CodeLength)
	assert.Equal(t, 45, ch.MinutesRequested)

	code, err := a.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)

	minutes, err := p.SubmitApprovalCode(ch.RequestCode, code)
	require.NoError(t, err)
	assert.Equal(t, 45, minutes)
}

func TestChallenge_SingleUse(t *testing.T) {
	p, a, _ := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 20)
	require.NoError(t, err)
	code, err := a.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)

	_, err = p.SubmitApprovalCode(ch.RequestCode, code)
	require.NoError(t, err)

	_, err = p.SubmitApprovalCode(ch.RequestCode, code)
	assert.ErrorIs(t, err, ErrUnknownChallenge, "a redeemed challenge cannot be replayed")
}

func TestSubmit_WrongCode(t *testing.T) {
	p, a, _ := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 20)
	require.NoError(t, err)

	correct, err := a.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)
	wrong := "000000"
	if wrong == correct {
		wrong = "000001"
	}

	_, err = p.SubmitApprovalCode(ch.RequestCode, wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)

	// The correct code still works afterwards.
	minutes, err := p.SubmitApprovalCode(ch.RequestCode, correct)
	require.NoError(t, err)
	assert.Equal(t, 20, minutes)
}

func TestSubmit_FormatValidatedBeforeComparison(t *testing.T) {
	p, _, _ := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 10)
	require.NoError(t, err)

	for _, bad := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		_, err := p.SubmitApprovalCode(ch.RequestCode, bad)
		assert.ErrorIs(t, err, ErrInvalidCode, "code %q", bad)
	}
	// Malformed input never counts a strike.
	locked, _ := p.IsLockedOut(ch.RequestCode)
	assert.False(t, locked)
}

func TestSubmit_LockoutAfterThreeFailures(t *testing.T) {
	p, a, clock := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 30)
	require.NoError(t, err)

	correct, err := a.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)
	wrong := "999999"
	if wrong == correct {
		wrong = "999998"
	}

	for i := 0; i < 3; i++ {
		_, err := p.SubmitApprovalCode(ch.RequestCode, wrong)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	locked, remaining := p.IsLockedOut(ch.RequestCode)
	require.True(t, locked, "three failures trigger the lockout")
	assert.Equal(t, 30*time.Second, remaining)

	// A fourth attempt during lockout is rejected even when correct.
	_, err = p.SubmitApprovalCode(ch.RequestCode, correct)
	assert.ErrorIs(t, err, ErrLockedOut)

	// After expiry the correct code succeeds and clears the identity.
	clock.Advance(31 * time.Second)
	minutes, err := p.SubmitApprovalCode(ch.RequestCode, correct)
	require.NoError(t, err)
	assert.Equal(t, 30, minutes)
	locked, _ = p.IsLockedOut(ch.RequestCode)
	assert.False(t, locked)
}

func TestSubmit_UnknownChallenge(t *testing.T) {
	p, _, _ := newTestProtocol(t)
	_, err := p.SubmitApprovalCode("123456", "654321")
	assert.ErrorIs(t, err, ErrUnknownChallenge)
}

func TestChallenge_Expiry(t *testing.T) {
	p, a, clock := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 15)
	require.NoError(t, err)
	code, err := a.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)

	clock.Advance(DefaultChallengeTTL + time.Minute)
	_, err = p.SubmitApprovalCode(ch.RequestCode, code)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestExpire_DropsStaleChallenges(t *testing.T) {
	p, _, clock := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 15)
	require.NoError(t, err)

	clock.Advance(DefaultChallengeTTL + time.Minute)
	p.Expire()

	_, err = p.SubmitApprovalCode(ch.RequestCode, "123456")
	assert.ErrorIs(t, err, ErrUnknownChallenge)
}

func TestApprover_DerivesSameCodeIndependently(t *testing.T) {
	// The two legs are independent: a second approver built from the
	// same shared secret, with no challenge state, derives the same
	// approval code.
	p, _, _ := newTestProtocol(t)
	ch, err := p.NewChallenge("child-1", 1, 5)
	require.NoError(t, err)

	a1, err := NewApprover(sharedSecret)
	require.NoError(t, err)
	a2, err := NewApprover(sharedSecret)
	require.NoError(t, err)

	c1, err := a1.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)
	c2, err := a2.ApprovalCodeFor(ch.RequestCode)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestApprover_DifferentSecretsDiffer(t *testing.T) {
	a1, err := NewApprover([]byte("secret-one"))
	require.NoError(t, err)
	a2, err := NewApprover([]byte("secret-two"))
	require.NoError(t, err)

	c1, err := a1.ApprovalCodeFor("123456")
	require.NoError(t, err)
	c2, err := a2.ApprovalCodeFor("123456")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestNewProtocol_RequiresSecret(t *testing.T) {
	_, err := NewProtocol(nil)
	assert.Error(t, err)
	_, err = NewApprover(nil)
	assert.Error(t, err)
}

func TestSubmit_ErrorsAreSentinels(t *testing.T) {
	p, _, _ := newTestProtocol(t)
	_, err := p.SubmitApprovalCode("000000", "000000")
	assert.True(t, errors.Is(err, ErrUnknownChallenge))
}
