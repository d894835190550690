// Package session implements the device-side authorization engine: the
// pairing lifecycle, child selection with PIN verification, the
// periodic usage-check loop, warning escalation, and blocking. One
// Engine instance owns all session state; callers construct it
// explicitly and inject collaborators, there is no process-wide
// singleton.
package session

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	icrypto "github.com/Allow2/brave-core-sub002/crypto"
	"github.com/Allow2/brave-core-sub002/grant"
	"github.com/Allow2/brave-core-sub002/lockout"
	"github.com/Allow2/brave-core-sub002/remote"
	"github.com/Allow2/brave-core-sub002/sched"
	"github.com/Allow2/brave-core-sub002/storage"
)

const (
	// DefaultCheckInterval is the usage-check loop period.
	DefaultCheckInterval = 10 * time.Second
	// DefaultCacheTTL is how long a check verdict stays usable for
	// offline fallback.
	DefaultCacheTTL = 5 * time.Minute
)

// DefaultWarningThresholds are the remaining-time marks, in seconds,
// at which a warning fires: 15 minutes, 5 minutes, 1 minute.
var DefaultWarningThresholds = []int{900, 300, 60}

// UsageSource reports the activity time consumed since the previous
// check, for inclusion in the check call. The default reports one
// browsing activity whose log equals the check interval.
type UsageSource func() []remote.Activity

// Engine is the authorization engine. All state mutation is serialized
// behind one mutex; events are delivered outside it.
type Engine struct {
	mu        sync.Mutex
	svc       remote.Service
	store     storage.Store
	clock     sched.Clock
	scheduler sched.Scheduler
	events    *notifier
	lockouts  *lockout.Tracker
	pairing   *Coordinator
	grants    *grant.Codec

	lockoutCfg *lockout.Config
	nonceStore storage.NonceStore

	deviceID          string
	tz                string
	usage             UsageSource
	checkInterval     time.Duration
	cacheTTL          time.Duration
	pollInterval      time.Duration
	pairingTimeout    time.Duration
	warningThresholds []int // sorted descending

	paired          bool
	creds           Credentials
	children        []Child
	selectedChildID string
	cached          *CachedCheckResult
	blocked         bool
	blockReason     string
	firedWarnings   map[int]bool
	lastRemaining   int

	checkCancel   sched.CancelFunc
	checkGen      int
	checkInFlight bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock substitutes the time source. For tests.
func WithClock(c sched.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithScheduler substitutes the repeating-task scheduler. Platform
// ports supply their own; tests use sched.ManualScheduler.
func WithScheduler(s sched.Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithCheckInterval overrides the usage-check period.
func WithCheckInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.checkInterval = d
		}
	}
}

// WithCacheTTL overrides how long check verdicts remain usable offline.
func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cacheTTL = d
		}
	}
}

// WithPairingPollInterval overrides the pairing status poll period.
func WithPairingPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithPairingTimeout overrides the wall-clock pairing expiry.
func WithPairingTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pairingTimeout = d
		}
	}
}

// WithWarningThresholds replaces the remaining-time warning marks,
// in seconds.
func WithWarningThresholds(thresholds []int) Option {
	return func(e *Engine) {
		ts := append([]int(nil), thresholds...)
		sort.Sort(sort.Reverse(sort.IntSlice(ts)))
		e.warningThresholds = ts
	}
}

// WithLockoutConfig replaces the PIN lockout policy.
func WithLockoutConfig(cfg lockout.Config) Option {
	return func(e *Engine) { e.lockoutCfg = &cfg }
}

// WithUsageSource replaces the activity usage reporter.
func WithUsageSource(u UsageSource) Option {
	return func(e *Engine) { e.usage = u }
}

// WithDeviceID sets the device identity used for grant-token scoping.
func WithDeviceID(id string) Option {
	return func(e *Engine) { e.deviceID = id }
}

// WithTimezone sets the tz reported on check calls. Defaults to the
// host's local zone.
func WithTimezone(tz string) Option {
	return func(e *Engine) { e.tz = tz }
}

// WithNonceStore attaches a replay set for offline grant tokens.
func WithNonceStore(n storage.NonceStore) Option {
	return func(e *Engine) { e.nonceStore = n }
}

// New constructs an Engine, restoring any persisted credentials,
// children, and session state from the store.
func New(svc remote.Service, store storage.Store, opts ...Option) (*Engine, error) {
	if svc == nil {
		return nil, fmt.Errorf("remote service is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	e := &Engine{
		svc:               svc,
		store:             store,
		clock:             sched.SystemClock{},
		scheduler:         sched.TickerScheduler{},
		events:            newNotifier(),
		checkInterval:     DefaultCheckInterval,
		cacheTTL:          DefaultCacheTTL,
		pollInterval:      DefaultPollInterval,
		pairingTimeout:    DefaultPairingTimeout,
		warningThresholds: append([]int(nil), DefaultWarningThresholds...),
		firedWarnings:     make(map[int]bool),
		lastRemaining:     -1,
		tz:                time.Local.String(),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Built after all options have run so the tracker and codec bind
	// to the final clock regardless of option order.
	lockoutCfg := lockout.DefaultConfig()
	if e.lockoutCfg != nil {
		lockoutCfg = *e.lockoutCfg
	}
	e.lockouts = lockout.New(lockoutCfg, e.clock)
	codecOpts := []grant.CodecOption{grant.WithClock(e.clock)}
	if e.nonceStore != nil {
		codecOpts = append(codecOpts, grant.WithNonceStore(e.nonceStore))
	}
	e.grants = grant.NewCodec(codecOpts...)
	if e.usage == nil {
		interval := int(e.checkInterval / time.Second)
		e.usage = func() []remote.Activity {
			return []remote.Activity{{ID: 1, Log: interval}}
		}
	}
	if err := e.restore(); err != nil {
		return nil, err
	}
	if e.paired && e.selectedChildID != "" {
		// Resume monitoring across a restart.
		e.mu.Lock()
		e.startCheckLoopLocked()
		e.mu.Unlock()
	}
	e.pairing = newCoordinator(svc, store, e.clock, e.scheduler,
		e.pollInterval, e.pairingTimeout, e.events.emit, e.OnPairingCompleted)
	return e, nil
}

// restore loads persisted state. A missing record means a fresh
// device; anything else is a real storage fault.
func (e *Engine) restore() error {
	load := func(key string, v any) (bool, error) {
		raw, err := e.store.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("loading %s: %w", key, err)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return false, fmt.Errorf("decoding %s: %w", key, err)
		}
		return true, nil
	}

	var creds Credentials
	if ok, err := load(storage.KeyCredentials, &creds); err != nil {
		return err
	} else if ok && creds.Valid() {
		e.creds = creds
		e.paired = true
	}
	if _, err := load(storage.KeyChildren, &e.children); err != nil {
		return err
	}
	var state SessionState
	if ok, err := load(storage.KeySessionState, &state); err != nil {
		return err
	} else if ok && e.paired {
		e.selectedChildID = state.SelectedChildID
	}
	var cached CachedCheckResult
	if ok, err := load(storage.KeyCachedCheck, &cached); err != nil {
		return err
	} else if ok && e.paired {
		e.cached = &cached
		e.blocked = !cached.Allowed
		e.blockReason = cached.BlockReason
		e.lastRemaining = cached.RemainingSeconds
	}
	return nil
}

// Subscribe registers a listener for engine events and returns an
// unsubscribe func.
func (e *Engine) Subscribe(l Listener) func() {
	return e.events.subscribe(l)
}

// Pairing returns the pairing coordinator.
func (e *Engine) Pairing() *Coordinator {
	return e.pairing
}

// State returns the current session state value object.
func (e *Engine) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() SessionState {
	return SessionState{
		Paired:           e.paired,
		SelectedChildID:  e.selectedChildID,
		SharedDeviceMode: e.paired && e.selectedChildID == "" && len(e.children) > 1,
	}
}

// Children returns the cached child snapshot.
func (e *Engine) Children() []Child {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Child(nil), e.children...)
}

// LastCheckResult returns the last cached verdict, if any, and whether
// it is still within its validity window.
func (e *Engine) LastCheckResult() (CachedCheckResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached == nil {
		return CachedCheckResult{}, false
	}
	out := *e.cached
	out.Stale = out.Expired(e.clock.Now())
	return out, true
}

// Blocked reports whether browsing is currently blocked, and why.
func (e *Engine) Blocked() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocked, e.blockReason
}

// OnPairingCompleted installs credentials and the child snapshot,
// transitioning Unpaired -> Paired. Idempotent: a duplicate completion
// with the same credentials is a no-op. With exactly one child, that
// child is auto-selected and the check loop starts; otherwise the
// device enters shared-device mode awaiting explicit selection.
func (e *Engine) OnPairingCompleted(creds Credentials, children []Child) {
	if !creds.Valid() {
		return
	}
	e.mu.Lock()
	if e.paired && e.creds == creds {
		e.mu.Unlock()
		return
	}
	e.creds = creds
	e.children = append([]Child(nil), children...)
	e.paired = true
	e.selectedChildID = ""
	if len(e.children) == 1 {
		e.selectedChildID = e.children[0].ID
	}
	e.persistLocked()
	events := []Event{{Type: EventPaired}}
	if e.selectedChildID != "" {
		e.startCheckLoopLocked()
		events = append(events, Event{Type: EventChildSelected, ChildID: e.selectedChildID})
	}
	e.mu.Unlock()
	e.events.emit(events...)
}

// persistLocked writes credentials, children, and session state
// through to the store. Persistence faults do not abort the in-memory
// transition; quota truth lives remotely and state is rebuilt on the
// next pairing if the store is broken.
func (e *Engine) persistLocked() {
	put := func(key string, v any) {
		raw, err := json.Marshal(v)
		if err != nil {
			return
		}
		_ = e.store.Put(key, raw)
	}
	put(storage.KeyCredentials, e.creds)
	put(storage.KeyChildren, e.children)
	put(storage.KeySessionState, e.stateLocked())
}

// SelectChild authenticates and selects a child. Lockout is consulted
// before any verification; a child with no PIN set skips hash
// comparison but still requires explicit selection.
func (e *Engine) SelectChild(childID, pin string) error {
	e.mu.Lock()
	if !e.paired {
		e.mu.Unlock()
		return ErrNotPaired
	}
	var child *Child
	for i := range e.children {
		if e.children[i].ID == childID {
			child = &e.children[i]
			break
		}
	}
	if child == nil {
		e.mu.Unlock()
		return ErrChildNotFound
	}

	if locked, remaining := e.lockouts.IsLockedOut(childID); locked {
		e.mu.Unlock()
		return fmt.Errorf("%w: retry in %s", ErrLockedOut, remaining.Round(time.Second))
	}

	if child.PinHash != "" {
		if !icrypto.VerifyPin(pin, child.PinSalt, child.PinHash) {
			e.lockouts.RecordFailure(childID)
			e.mu.Unlock()
			return ErrInvalidPin
		}
	}
	e.lockouts.RecordSuccess(childID)
	if childID != e.selectedChildID {
		// The previous child's verdict does not transfer: the new
		// child starts clean and gets their own quota on the next
		// check.
		e.cached = nil
		e.blocked = false
		e.blockReason = ""
		e.clearWarningsLocked()
		_ = e.store.Delete(storage.KeyCachedCheck)
	}
	e.selectedChildID = childID
	e.persistLocked()
	e.startCheckLoopLocked()
	e.mu.Unlock()
	e.events.emit(Event{Type: EventChildSelected, ChildID: childID})
	return nil
}

// ChildLockout reports the lockout status for a child's PIN entry,
// for proactively disabling input and driving countdowns.
func (e *Engine) ChildLockout(childID string) (bool, time.Duration) {
	return e.lockouts.IsLockedOut(childID)
}

// ClearChildSelection stops the check loop and returns the device to
// shared-device mode. Switching children afterwards re-applies the new
// child's own quota; it never bypasses the previous child's block.
func (e *Engine) ClearChildSelection() {
	e.mu.Lock()
	if e.selectedChildID == "" {
		e.mu.Unlock()
		return
	}
	e.stopCheckLoopLocked()
	e.selectedChildID = ""
	e.blocked = false
	e.blockReason = ""
	e.cached = nil
	e.clearWarningsLocked()
	e.persistLocked()
	_ = e.store.Delete(storage.KeyCachedCheck)
	e.mu.Unlock()
	e.events.emit(Event{Type: EventSelectionCleared})
}

// Unpair clears all pairing state locally. The remote side is not
// notified; revocation authority lives with the service.
func (e *Engine) Unpair() {
	e.mu.Lock()
	if !e.paired {
		e.mu.Unlock()
		return
	}
	e.unpairLocked()
	e.mu.Unlock()
	e.events.emit(Event{Type: EventUnpaired})
}

// unpairLocked clears credentials, children, selection, and the cached
// result in one atomic unit.
func (e *Engine) unpairLocked() {
	e.stopCheckLoopLocked()
	e.paired = false
	e.creds = Credentials{}
	e.children = nil
	e.selectedChildID = ""
	e.cached = nil
	e.blocked = false
	e.blockReason = ""
	e.clearWarningsLocked()
	_ = e.store.DeleteAll(
		storage.KeyCredentials,
		storage.KeyChildren,
		storage.KeySessionState,
		storage.KeyCachedCheck,
	)
}

// CheckAllowance performs one usage check. With no pairing or no
// selected child it synthesizes an allowed default: tracking is simply
// inactive, which is not the same as a verified allowance. On success
// the clamped result is cached and warning/block transitions are
// evaluated. A 401 unpairs immediately. Any other failure falls back
// to the cached result while it is fresh; once the cache has expired
// the previous allowed/blocked state stands and ErrStaleCache is
// returned — a transient fault never flips the device to blocked.
func (e *Engine) CheckAllowance(ctx context.Context, activities []remote.Activity) (CachedCheckResult, error) {
	e.mu.Lock()
	if !e.paired || e.selectedChildID == "" {
		now := e.clock.Now()
		e.mu.Unlock()
		return CachedCheckResult{
			Allowed:          true,
			RemainingSeconds: MaxRemainingSeconds,
			FetchedAt:        now,
			ExpiresAt:        now,
		}, nil
	}
	req := remote.CheckRequest{
		UserID:     e.creds.UserID,
		PairID:     e.creds.PairID,
		PairToken:  e.creds.PairToken,
		ChildID:    e.selectedChildID,
		Activities: activities,
		TZ:         e.tz,
	}
	e.mu.Unlock()

	res, err := e.svc.Check(ctx, req)
	if err != nil {
		return e.handleCheckError(err)
	}
	return e.applyCheckResult(res), nil
}

func (e *Engine) handleCheckError(err error) (CachedCheckResult, error) {
	if errors.Is(err, remote.ErrUnauthorized) {
		e.mu.Lock()
		e.unpairLocked()
		e.mu.Unlock()
		e.events.emit(Event{Type: EventUnpaired})
		return CachedCheckResult{}, fmt.Errorf("pairing revoked: %w", err)
	}

	e.mu.Lock()
	if e.cached != nil && !e.cached.Expired(e.clock.Now()) {
		out := *e.cached
		out.Stale = true
		e.mu.Unlock()
		e.events.emit(Event{
			Type:             EventCheckUpdated,
			RemainingSeconds: out.RemainingSeconds,
			Stale:            true,
		})
		return out, nil
	}
	e.mu.Unlock()
	return CachedCheckResult{}, fmt.Errorf("%w: %v", ErrStaleCache, err)
}

// applyCheckResult ingests a fresh verdict: clamp, cache, persist,
// then evaluate warning thresholds and the blocked transition.
func (e *Engine) applyCheckResult(res remote.CheckResult) CachedCheckResult {
	e.mu.Lock()
	now := e.clock.Now()
	cached := ingestCheckResult(res, now, e.cacheTTL)
	e.cached = &cached
	if raw, err := json.Marshal(cached); err == nil {
		_ = e.store.Put(storage.KeyCachedCheck, raw)
	}

	var events []Event
	events = append(events, Event{
		Type:             EventCheckUpdated,
		RemainingSeconds: cached.RemainingSeconds,
	})

	if cached.Allowed {
		if ev, ok := e.evaluateWarningsLocked(cached.RemainingSeconds); ok {
			events = append(events, ev)
		}
	}
	e.lastRemaining = cached.RemainingSeconds

	switch {
	case !cached.Allowed && !e.blocked:
		e.blocked = true
		e.blockReason = cached.BlockReason
		events = append(events, Event{Type: EventBlocked, Reason: cached.BlockReason})
	case cached.Allowed && e.blocked:
		e.blocked = false
		e.blockReason = ""
		events = append(events, Event{Type: EventUnblocked})
	}
	e.mu.Unlock()

	e.events.emit(events...)
	return cached
}

// evaluateWarningsLocked fires at most one warning per call: the
// smallest configured threshold at or above the remaining time that
// has not yet fired. Larger thresholds skipped over in the same drop
// are marked fired too, so they never fire late. The fired set resets
// whenever remaining time increases (a grant was applied). A negative
// lastRemaining means no prior observation: the first verdict is
// evaluated against the thresholds, never treated as an increase.
func (e *Engine) evaluateWarningsLocked(remaining int) (Event, bool) {
	if e.lastRemaining >= 0 && remaining > e.lastRemaining {
		e.resetWarningsLocked(remaining)
		return Event{}, false
	}
	fire := 0
	found := false
	for _, t := range e.warningThresholds { // sorted descending
		if t >= remaining && !e.firedWarnings[t] {
			e.firedWarnings[t] = true
			fire = t
			found = true
		}
	}
	if !found {
		return Event{}, false
	}
	return Event{
		Type:             EventWarning,
		ThresholdSeconds: fire,
		RemainingSeconds: remaining,
	}, true
}

func (e *Engine) resetWarningsLocked(remaining int) {
	e.firedWarnings = make(map[int]bool)
	e.lastRemaining = remaining
}

// clearWarningsLocked forgets the last observation entirely; the next
// verdict is evaluated as the first.
func (e *Engine) clearWarningsLocked() {
	e.firedWarnings = make(map[int]bool)
	e.lastRemaining = -1
}

// startCheckLoopLocked begins the periodic usage check. A generation
// counter guards against ticks and completions that straddle a stop.
func (e *Engine) startCheckLoopLocked() {
	e.stopCheckLoopLocked()
	e.checkGen++
	gen := e.checkGen
	e.checkCancel = e.scheduler.ScheduleRepeating(e.checkInterval, func() {
		e.checkTick(gen)
	})
}

func (e *Engine) stopCheckLoopLocked() {
	if e.checkCancel != nil {
		e.checkCancel()
		e.checkCancel = nil
	}
	e.checkGen++
	e.checkInFlight = false
}

// checkTick runs one loop iteration. A tick is skipped while the
// previous call is in flight, and dropped entirely when its generation
// is stale.
func (e *Engine) checkTick(gen int) {
	e.mu.Lock()
	if gen != e.checkGen || e.checkInFlight || !e.paired || e.selectedChildID == "" {
		e.mu.Unlock()
		return
	}
	e.checkInFlight = true
	activities := e.usage()
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), remote.DefaultRequestTimeout)
	_, _ = e.CheckAllowance(ctx, activities)
	cancel()

	e.mu.Lock()
	if gen == e.checkGen {
		e.checkInFlight = false
	}
	e.mu.Unlock()
}

// RedeemGrantToken verifies an offline grant token end to end: parse
// and signature, device and child scope, replay. A valid grant
// provisionally extends the cached remaining time, lifts a block, and
// leaves the verdict to be confirmed by the next online check.
func (e *Engine) RedeemGrantToken(token string, parentPublicKey ed25519.PublicKey) (*grant.Grant, error) {
	g, ok := e.grants.ParseAndVerify(token, parentPublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrGrantRejected)
	}

	e.mu.Lock()
	if !e.paired {
		e.mu.Unlock()
		return nil, ErrNotPaired
	}
	if e.selectedChildID == "" {
		e.mu.Unlock()
		return nil, ErrNoChildSelected
	}
	deviceID := e.deviceID
	childID := e.selectedChildID
	e.mu.Unlock()

	if !g.ValidForDevice(deviceID) {
		return nil, fmt.Errorf("%w: token is for a different device", ErrGrantRejected)
	}
	if !g.ValidForChild(childID) {
		return nil, fmt.Errorf("%w: token is for a different child", ErrGrantRejected)
	}
	if e.grants.IsNonceUsed(g.Nonce) {
		return nil, fmt.Errorf("%w: token already used", ErrGrantRejected)
	}

	// The nonce is consumed before the extension is applied: a
	// recording fault must never leave an applied grant replayable.
	if err := e.grants.MarkNonceUsed(g.Nonce); err != nil {
		return nil, fmt.Errorf("recording grant nonce: %w", err)
	}
	e.ExtendAllowance(g.Minutes, string(g.Type))
	return g, nil
}

// ExtendAllowance applies a locally authorized extension (grant token
// or voice code): remaining time increases, the warning set resets,
// and a block lifts provisionally. The decision stays provisional
// until the next successful online check.
func (e *Engine) ExtendAllowance(minutes int, reason string) {
	if minutes < 1 {
		return
	}
	e.mu.Lock()
	now := e.clock.Now()
	var cached CachedCheckResult
	if e.cached != nil {
		cached = *e.cached
	}
	cached.Allowed = true
	cached.RemainingSeconds = ClampRemainingSeconds(cached.RemainingSeconds + minutes*60)
	cached.BlockReason = ""
	cached.FetchedAt = now
	cached.ExpiresAt = now.Add(e.cacheTTL)
	e.cached = &cached
	if raw, err := json.Marshal(cached); err == nil {
		_ = e.store.Put(storage.KeyCachedCheck, raw)
	}
	e.resetWarningsLocked(cached.RemainingSeconds)

	var events []Event
	events = append(events, Event{
		Type:             EventCheckUpdated,
		RemainingSeconds: cached.RemainingSeconds,
		Reason:           reason,
	})
	if e.blocked {
		e.blocked = false
		e.blockReason = ""
		events = append(events, Event{Type: EventUnblocked, Reason: reason})
	}
	e.mu.Unlock()
	e.events.emit(events...)
}

// RequestMoreTime asks the parent for additional minutes through the
// online request channel.
func (e *Engine) RequestMoreTime(ctx context.Context, activityID, minutes int, message string) (remote.CreateRequestResult, error) {
	e.mu.Lock()
	if !e.paired {
		e.mu.Unlock()
		return remote.CreateRequestResult{}, ErrNotPaired
	}
	if e.selectedChildID == "" {
		e.mu.Unlock()
		return remote.CreateRequestResult{}, ErrNoChildSelected
	}
	body := remote.CreateRequestBody{
		UserID:           e.creds.UserID,
		PairID:           e.creds.PairID,
		PairToken:        e.creds.PairToken,
		ChildID:          e.selectedChildID,
		ActivityID:       activityID,
		RequestedMinutes: minutes,
		Message:          message,
	}
	e.mu.Unlock()

	res, err := e.svc.CreateRequest(ctx, body)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			e.mu.Lock()
			e.unpairLocked()
			e.mu.Unlock()
			e.events.emit(Event{Type: EventUnpaired})
		}
		return remote.CreateRequestResult{}, err
	}
	return res, nil
}

// PairingSecret exposes the pairing token bytes for deriving the
// voice-code approval key. Empty when unpaired.
func (e *Engine) PairingSecret() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paired {
		return nil
	}
	return []byte(e.creds.PairToken)
}

// Lockouts exposes the shared brute-force tracker so the voice-code
// protocol uses the same guard under its own identity namespace.
func (e *Engine) Lockouts() *lockout.Tracker {
	return e.lockouts
}
