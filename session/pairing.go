package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Allow2/brave-core-sub002/remote"
	"github.com/Allow2/brave-core-sub002/sched"
	"github.com/Allow2/brave-core-sub002/storage"
)

// PairingPhase is the coordinator's state machine position.
// Completed, Expired, and Cancelled are terminal; Failed is retryable
// by starting a new pairing.
type PairingPhase int

const (
	PhaseIdle PairingPhase = iota
	PhaseInitializing
	PhaseQRReady
	PhasePINReady
	PhaseCompleted
	PhaseExpired
	PhaseFailed
	PhaseCancelled
)

func (p PairingPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInitializing:
		return "initializing"
	case PhaseQRReady:
		return "qr_ready"
	case PhasePINReady:
		return "pin_ready"
	case PhaseCompleted:
		return "completed"
	case PhaseExpired:
		return "expired"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (p PairingPhase) terminal() bool {
	return p == PhaseCompleted || p == PhaseExpired || p == PhaseCancelled
}

// active means a remote session exists and the poll loop may run.
func (p PairingPhase) active() bool {
	return p == PhaseInitializing || p == PhaseQRReady || p == PhasePINReady
}

// PairingSession is the ephemeral state of one handshake attempt. A
// new attempt supersedes it wholesale; it is never mutated in place.
type PairingSession struct {
	SessionID string
	QRPayload string
	PINCode   string
	CreatedAt time.Time
	ExpiresIn time.Duration
}

const (
	// DefaultPollInterval is how often the coordinator polls the
	// status endpoint.
	DefaultPollInterval = 2 * time.Second
	// DefaultPairingTimeout hard-expires a pairing session on the
	// device's own clock, independent of server responsiveness.
	DefaultPairingTimeout = 5 * time.Minute
)

// Coordinator drives the QR/PIN pairing handshake: init, poll, and
// hand-off of the final credentials. It never sees parent credentials;
// only the opaque pairing secret crosses to the device.
type Coordinator struct {
	mu           sync.Mutex
	svc          remote.Service
	store        storage.Store
	clock        sched.Clock
	scheduler    sched.Scheduler
	notify       func(...Event)
	onCompleted  func(Credentials, []Child)
	pollInterval time.Duration
	hardTimeout  time.Duration

	phase      PairingPhase
	session    PairingSession
	scanned    bool
	deadline   time.Time
	retryable  bool
	lastErr    error
	generation int
	inFlight   bool
	pollCancel sched.CancelFunc
}

func newCoordinator(svc remote.Service, store storage.Store, clock sched.Clock, scheduler sched.Scheduler,
	pollInterval, hardTimeout time.Duration, notify func(...Event), onCompleted func(Credentials, []Child)) *Coordinator {
	return &Coordinator{
		svc:          svc,
		store:        store,
		clock:        clock,
		scheduler:    scheduler,
		notify:       notify,
		onCompleted:  onCompleted,
		pollInterval: pollInterval,
		hardTimeout:  hardTimeout,
		phase:        PhaseIdle,
	}
}

// Phase returns the current state machine position.
func (c *Coordinator) Phase() PairingPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns a copy of the current pairing session, valid while
// the phase is QRReady or PINReady.
func (c *Coordinator) Session() PairingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Scanned reports whether the parent has scanned the QR code while
// completion is still pending.
func (c *Coordinator) Scanned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanned
}

// Retryable reports, after a Failed phase, whether the failure was
// transient and the pairing may be retried.
func (c *Coordinator) Retryable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryable
}

// LastError returns the error behind the most recent Failed phase.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// StartQRPairing begins a QR handshake. Allowed from Idle and from any
// terminal or failed phase; a pairing already in progress returns
// ErrPairingActive.
func (c *Coordinator) StartQRPairing(ctx context.Context) (PairingSession, error) {
	return c.start(ctx, true)
}

// StartPINPairing begins a PIN handshake.
func (c *Coordinator) StartPINPairing(ctx context.Context) (PairingSession, error) {
	return c.start(ctx, false)
}

func (c *Coordinator) start(ctx context.Context, qr bool) (PairingSession, error) {
	c.mu.Lock()
	if c.phase.active() {
		c.mu.Unlock()
		return PairingSession{}, ErrPairingActive
	}
	c.stopPollingLocked()
	c.generation++
	gen := c.generation
	c.phase = PhaseInitializing
	c.scanned = false
	c.lastErr = nil
	c.session = PairingSession{}
	c.mu.Unlock()
	c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseInitializing})

	deviceToken, err := c.deviceToken()
	if err != nil {
		return PairingSession{}, c.fail(gen, err, true)
	}

	var res remote.InitPairingResult
	if qr {
		res, err = c.svc.InitQRPairing(ctx, deviceToken)
	} else {
		res, err = c.svc.InitPINPairing(ctx, deviceToken)
	}
	if err != nil {
		return PairingSession{}, c.fail(gen, err, retryableError(err))
	}

	c.mu.Lock()
	if c.generation != gen {
		// Superseded or cancelled while the init call was in flight.
		c.mu.Unlock()
		return PairingSession{}, ErrPairingActive
	}
	now := c.clock.Now()
	c.session = PairingSession{
		SessionID: res.SessionID,
		QRPayload: res.QRCodeURL,
		PINCode:   res.PIN,
		CreatedAt: now,
		ExpiresIn: time.Duration(res.ExpiresIn) * time.Second,
	}
	c.deadline = now.Add(c.hardTimeout)
	if qr {
		c.phase = PhaseQRReady
	} else {
		c.phase = PhasePINReady
	}
	phase := c.phase
	session := c.session
	c.pollCancel = c.scheduler.ScheduleRepeating(c.pollInterval, c.poll)
	c.mu.Unlock()

	c.notify(Event{Type: EventPairingPhase, PairingPhase: phase})
	return session, nil
}

// deviceToken returns the locally generated, persisted device token,
// creating one on first use.
func (c *Coordinator) deviceToken() (string, error) {
	raw, err := c.store.Get(storage.KeyDeviceToken)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("loading device token: %w", err)
	}
	token := uuid.NewString()
	if err := c.store.Put(storage.KeyDeviceToken, []byte(token)); err != nil {
		return "", fmt.Errorf("persisting device token: %w", err)
	}
	return token, nil
}

func (c *Coordinator) fail(gen int, err error, retryable bool) error {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return err
	}
	c.stopPollingLocked()
	c.phase = PhaseFailed
	c.retryable = retryable
	c.lastErr = err
	c.mu.Unlock()
	c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseFailed, Reason: err.Error()})
	return err
}

// retryableError classifies init/poll failures: network faults, bad
// bodies, and 5xx are transient; explicit rejections are not.
func retryableError(err error) bool {
	if errors.Is(err, remote.ErrNetwork) || errors.Is(err, remote.ErrInvalidResponse) {
		return true
	}
	var se *remote.StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}

// poll is one tick of the status loop. At most one request is in
// flight; an overdue tick is skipped, not queued.
func (c *Coordinator) poll() {
	c.mu.Lock()
	if !c.phase.active() || c.inFlight {
		c.mu.Unlock()
		return
	}
	if c.clock.Now().After(c.deadline) {
		// Wall-clock timeout fires even if the server never answers.
		c.stopPollingLocked()
		c.phase = PhaseExpired
		c.mu.Unlock()
		c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseExpired})
		return
	}
	gen := c.generation
	sessionID := c.session.SessionID
	c.inFlight = true
	c.mu.Unlock()

	status, err := c.svc.GetPairingStatus(context.Background(), sessionID)

	c.mu.Lock()
	c.inFlight = false
	if c.generation != gen || !c.phase.active() {
		// Cancelled or superseded while the request was in flight:
		// drop the completion instead of applying it.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.stopPollingLocked()
		c.phase = PhaseFailed
		c.retryable = retryableError(err)
		c.lastErr = err
		c.mu.Unlock()
		c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseFailed, Reason: err.Error()})
		return
	}

	switch status.State {
	case remote.PairingPending:
		var events []Event
		if status.Scanned && !c.scanned {
			c.scanned = true
			phase := c.phase
			events = append(events, Event{Type: EventPairingPhase, PairingPhase: phase, Scanned: true})
		}
		c.mu.Unlock()
		c.notify(events...)

	case remote.PairingCompleted:
		c.stopPollingLocked()
		c.phase = PhaseCompleted
		creds := status.Credentials
		children := status.Children
		c.mu.Unlock()
		c.onCompleted(creds, children)
		c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseCompleted})

	case remote.PairingExpired:
		c.stopPollingLocked()
		c.phase = PhaseExpired
		c.mu.Unlock()
		c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseExpired})

	default:
		c.stopPollingLocked()
		c.phase = PhaseFailed
		c.retryable = true
		c.lastErr = fmt.Errorf("pairing session failed")
		c.mu.Unlock()
		c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseFailed, Reason: "pairing session failed"})
	}
}

// Cancel stops polling, best-effort notifies the service, and moves to
// Cancelled. Idempotent; a no-op once the pairing completed.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.phase.terminal() || c.phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.stopPollingLocked()
	c.generation++
	sessionID := c.session.SessionID
	c.phase = PhaseCancelled
	c.mu.Unlock()

	if sessionID != "" {
		// Fire-and-forget: the session expires server-side regardless.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), remote.DefaultRequestTimeout)
			defer cancel()
			_ = c.svc.CancelPairing(ctx, sessionID)
		}()
	}
	c.notify(Event{Type: EventPairingPhase, PairingPhase: PhaseCancelled})
}

func (c *Coordinator) stopPollingLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.inFlight = false
}
