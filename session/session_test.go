package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Allow2/brave-core-sub002/crypto"
	"github.com/Allow2/brave-core-sub002/remote"
	"github.com/Allow2/brave-core-sub002/sched"
	"github.com/Allow2/brave-core-sub002/session"
	"github.com/Allow2/brave-core-sub002/storage/memory"
)

var testCreds = remote.Credentials{
	UserID:    "user-1",
	PairID:    "pair-1",
	PairToken: "pair-token-secret",
}

func oneChild() []remote.Child {
	return []remote.Child{{
		ID:      "child-1",
		Name:    "Alex",
		PinHash: crypto.HashPin("1234", "salt-1"),
		PinSalt: "salt-1",
	}}
}

func twoChildren() []remote.Child {
	return append(oneChild(), remote.Child{
		ID:      "child-2",
		Name:    "Sam",
		PinHash: crypto.HashPin("5678", "salt-2"),
		PinSalt: "salt-2",
	})
}

type statusReply struct {
	status remote.PairingStatus
	err    error
}

type checkReply struct {
	res remote.CheckResult
	err error
}

// fakeService is a scripted remote.Service. Queued replies are consumed
// one per call; once a queue drains, the last served reply repeats.
type fakeService struct {
	mu sync.Mutex

	initResult remote.InitPairingResult
	initErr    error
	initCalls  int
	lastToken  string

	statuses     []statusReply
	servedStatus *statusReply
	statusCalls  int

	checks      []checkReply
	servedCheck *checkReply
	checkCalls  int
	lastCheck   remote.CheckRequest

	cancelled []string

	createResult remote.CreateRequestResult
	createErr    error
	lastCreate   remote.CreateRequestBody
}

var _ remote.Service = (*fakeService)(nil)

func newFakeService() *fakeService {
	return &fakeService{
		initResult: remote.InitPairingResult{
			SessionID: "sess-1",
			QRCodeURL: "https://pair.example/qr/sess-1",
			PIN:       "246810",
			ExpiresIn: 300,
		},
		createResult: remote.CreateRequestResult{Success: true, RequestID: "req-1"},
	}
}

func (f *fakeService) queueStatus(s remote.PairingStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusReply{status: s, err: err})
}

func (f *fakeService) queueCheck(res remote.CheckResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, checkReply{res: res, err: err})
}

func (f *fakeService) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

func (f *fakeService) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls
}

func (f *fakeService) InitQRPairing(_ context.Context, deviceToken string) (remote.InitPairingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.lastToken = deviceToken
	if f.initErr != nil {
		return remote.InitPairingResult{}, f.initErr
	}
	res := f.initResult
	res.PIN = ""
	return res, nil
}

func (f *fakeService) InitPINPairing(_ context.Context, deviceToken string) (remote.InitPairingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.lastToken = deviceToken
	if f.initErr != nil {
		return remote.InitPairingResult{}, f.initErr
	}
	res := f.initResult
	res.QRCodeURL = ""
	return res, nil
}

func (f *fakeService) GetPairingStatus(_ context.Context, _ string) (remote.PairingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) > 0 {
		reply := f.statuses[0]
		f.statuses = f.statuses[1:]
		f.servedStatus = &reply
	}
	if f.servedStatus == nil {
		return remote.PairingStatus{State: remote.PairingPending}, nil
	}
	return f.servedStatus.status, f.servedStatus.err
}

func (f *fakeService) CancelPairing(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, sessionID)
	return nil
}

func (f *fakeService) Check(_ context.Context, req remote.CheckRequest) (remote.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	f.lastCheck = req
	if len(f.checks) > 0 {
		reply := f.checks[0]
		f.checks = f.checks[1:]
		f.servedCheck = &reply
	}
	if f.servedCheck == nil {
		return remote.CheckResult{Allowed: true, MinimumRemainingSeconds: 3600}, nil
	}
	return f.servedCheck.res, f.servedCheck.err
}

func (f *fakeService) CreateRequest(_ context.Context, body remote.CreateRequestBody) (remote.CreateRequestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = body
	if f.createErr != nil {
		return remote.CreateRequestResult{}, f.createErr
	}
	return f.createResult, nil
}

// eventRecorder captures engine events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *eventRecorder) listen(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofType(t session.EventType) []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []session.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) count(t session.EventType) int {
	return len(r.ofType(t))
}

type testRig struct {
	engine    *session.Engine
	svc       *fakeService
	store     *memory.Store
	clock     *sched.ManualClock
	scheduler *sched.ManualScheduler
	events    *eventRecorder
}

func newTestRig(t *testing.T, opts ...session.Option) *testRig {
	t.Helper()
	rig := &testRig{
		svc:       newFakeService(),
		store:     memory.NewStore(),
		clock:     sched.NewManualClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		scheduler: sched.NewManualScheduler(),
		events:    &eventRecorder{},
	}
	base := []session.Option{
		session.WithClock(rig.clock),
		session.WithScheduler(rig.scheduler),
		session.WithTimezone("UTC"),
	}
	engine, err := session.New(rig.svc, rig.store, append(base, opts...)...)
	require.NoError(t, err)
	rig.engine = engine
	t.Cleanup(engine.Subscribe(rig.events.listen))
	return rig
}

// pair installs credentials and the given children directly, bypassing
// the handshake.
func (r *testRig) pair(children []remote.Child) {
	r.engine.OnPairingCompleted(testCreds, children)
}
