package session

import "sync"

// EventType enumerates the state changes the engine reports to the UI
// layer. Each transition fires exactly once: one event per warning
// threshold crossing, one per blocked/unblocked flip, one per pairing
// phase change.
type EventType int

const (
	// EventPairingPhase reports a pairing state-machine transition.
	// Event.PairingPhase carries the new phase; Scanned is set when the
	// QR code has been scanned but completion is still pending.
	EventPairingPhase EventType = iota
	// EventPaired fires once when credentials are installed.
	EventPaired
	// EventUnpaired fires once when credentials are cleared, locally
	// or by remote revocation.
	EventUnpaired
	// EventChildSelected fires when a child is authenticated and
	// selected.
	EventChildSelected
	// EventSelectionCleared fires when the device returns to
	// shared-device mode.
	EventSelectionCleared
	// EventBlocked fires when a check verdict turns disallowed.
	EventBlocked
	// EventUnblocked fires when a subsequent verdict allows again.
	EventUnblocked
	// EventWarning fires once per threshold as remaining time falls
	// through it. ThresholdSeconds carries the crossed threshold.
	EventWarning
	// EventCheckUpdated fires on every accepted check result, fresh or
	// cached, so UIs can refresh countdowns.
	EventCheckUpdated
)

// Event is a state-change notification.
type Event struct {
	Type             EventType
	PairingPhase     PairingPhase
	Scanned          bool
	ChildID          string
	Reason           string
	ThresholdSeconds int
	RemainingSeconds int
	Stale            bool
}

// Listener receives engine events. Listeners run synchronously on the
// emitting goroutine and must not block; they may call back into the
// engine (no engine lock is held during delivery).
type Listener func(Event)

// notifier is an explicit observer list. Subscribe returns an
// unsubscribe func; emission copies the list so delivery happens
// outside the lock.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[int]Listener)}
}

func (n *notifier) subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func (n *notifier) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	n.mu.Lock()
	ls := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		ls = append(ls, l)
	}
	n.mu.Unlock()
	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}
