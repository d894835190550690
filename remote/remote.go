// Package remote speaks the family service's HTTP API: pairing
// init/status/cancel, usage checks, and time requests. The engine
// consumes the Service interface; Client is the production
// implementation and remotetest provides an in-process fake.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy. Callers distinguish transport failures (cache
// fallback applies) from an explicit revocation (unconditional unpair).
var (
	// ErrNetwork covers no-response and timeout failures. Recoverable;
	// the engine falls back to its cached result.
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized is returned on HTTP 401 from any endpoint. The
	// pairing has been revoked remotely; the engine must unpair.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidResponse covers malformed or missing-field bodies.
	// Treated like ErrNetwork for fallback purposes.
	ErrInvalidResponse = errors.New("invalid response")
)

// StatusError reports a non-2xx HTTP status other than 401. Server
// errors (5xx) are transient and callers treat them like ErrNetwork;
// other 4xx statuses are explicit rejections and are not retried.
type StatusError struct {
	Code   int
	Method string
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// Transient reports whether the status indicates a server-side fault
// worth retrying or falling back on.
func (e *StatusError) Transient() bool {
	return e.Code >= 500
}

// Credentials is the opaque secret issued at pairing completion. It is
// exclusively owned by the device and only ever sent back as bearer
// material on authenticated calls.
type Credentials struct {
	UserID    string `json:"userId"`
	PairID    string `json:"pairId"`
	PairToken string `json:"pairToken"`
}

// Valid reports whether all three fields are present.
func (c Credentials) Valid() bool {
	return c.UserID != "" && c.PairID != "" && c.PairToken != ""
}

// Child is the wire form of a child profile. PinHash is
// "<algorithm>:<hex>" of pin+salt; the raw PIN never crosses the wire.
type Child struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PinHash   string `json:"pinHash,omitempty"`
	PinSalt   string `json:"pinSalt,omitempty"`
	ColorHint string `json:"colorHint,omitempty"`
}

// InitPairingResult is the response to POST /pair/qr/init and
// /pair/pin/init.
type InitPairingResult struct {
	SessionID string `json:"sessionId"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
	PIN       string `json:"pin,omitempty"`
	ExpiresIn int    `json:"expiresIn"`
}

// PairingState is the decoded state of a pairing session.
type PairingState int

const (
	PairingPending PairingState = iota
	PairingCompleted
	PairingExpired
	PairingFailed
)

func (s PairingState) String() string {
	switch s {
	case PairingPending:
		return "pending"
	case PairingCompleted:
		return "completed"
	case PairingExpired:
		return "expired"
	default:
		return "failed"
	}
}

// PairingStatus is the decoded response to GET /pair/status/{id}.
type PairingStatus struct {
	State       PairingState
	Scanned     bool
	Credentials Credentials
	Children    []Child
}

// pairingStatusWire is the raw shape. Older service builds omit the
// status string and signal completion with a bare boolean, so both
// fields exist and DecodePairingStatus documents the precedence.
type pairingStatusWire struct {
	Status      string          `json:"status"`
	Completed   *bool           `json:"completed,omitempty"`
	Scanned     bool            `json:"scanned,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
	Children    []Child      `json:"children,omitempty"`
}

// DecodePairingStatus decodes a status body. Precedence:
//  1. a recognized "status" string (pending/completed/expired/failed)
//  2. the legacy "completed" boolean, when true
//  3. presence of credentials implies completed
//  4. anything else decodes as failed
//
// A completed status without usable credentials is downgraded to
// failed rather than handing the engine an empty secret.
func DecodePairingStatus(body []byte) (PairingStatus, error) {
	var w pairingStatusWire
	if err := json.Unmarshal(body, &w); err != nil {
		return PairingStatus{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	out := PairingStatus{Scanned: w.Scanned}
	if w.Credentials != nil {
		out.Credentials = *w.Credentials
	}
	out.Children = w.Children

	switch w.Status {
	case "pending":
		out.State = PairingPending
		return out, nil
	case "expired":
		out.State = PairingExpired
		return out, nil
	case "failed":
		out.State = PairingFailed
		return out, nil
	case "completed":
		return completedOrFailed(out)
	}

	if w.Completed != nil && *w.Completed {
		return completedOrFailed(out)
	}
	if w.Credentials != nil {
		return completedOrFailed(out)
	}
	return PairingStatus{State: PairingFailed, Scanned: w.Scanned}, nil
}

func completedOrFailed(s PairingStatus) (PairingStatus, error) {
	if !s.Credentials.Valid() {
		s.State = PairingFailed
		return s, fmt.Errorf("%w: completed status without credentials", ErrInvalidResponse)
	}
	s.State = PairingCompleted
	return s, nil
}

// Activity identifies one tracked activity in a check call. Log is
// the number of seconds consumed since the last successful check.
type Activity struct {
	ID  int `json:"id"`
	Log int `json:"log"`
}

// CheckRequest is the body of POST /check.
type CheckRequest struct {
	UserID     string     `json:"userId"`
	PairID     string     `json:"pairId"`
	PairToken  string     `json:"pairToken"`
	ChildID    string     `json:"childId"`
	Activities []Activity `json:"activities"`
	TZ         string     `json:"tz"`
}

// ActivityResult is the per-activity verdict inside a check response.
type ActivityResult struct {
	Allowed          bool   `json:"allowed"`
	RemainingSeconds int    `json:"remainingSeconds"`
	Banned           bool   `json:"banned,omitempty"`
	BlockReason      string `json:"blockReason,omitempty"`
}

// CheckResult is the response to POST /check.
type CheckResult struct {
	Allowed                 bool                      `json:"allowed"`
	MinimumRemainingSeconds int                       `json:"minimumRemainingSeconds"`
	DayType                 string                    `json:"dayType,omitempty"`
	Banned                  bool                      `json:"banned,omitempty"`
	BlockReason             string                    `json:"blockReason,omitempty"`
	Activities              map[string]ActivityResult `json:"activities,omitempty"`
}

// CreateRequestBody is the body of POST /request/createRequest, asking
// the parent for more time on an activity.
type CreateRequestBody struct {
	UserID           string `json:"userId"`
	PairID           string `json:"pairId"`
	PairToken        string `json:"pairToken"`
	ChildID          string `json:"childId"`
	ActivityID       int    `json:"activityId"`
	RequestedMinutes int    `json:"requestedMinutes"`
	Message          string `json:"message,omitempty"`
}

// CreateRequestResult is the response to POST /request/createRequest.
type CreateRequestResult struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Service is the set of remote operations the engine consumes.
// Implementations must map HTTP 401 on any call to ErrUnauthorized,
// transport failures to ErrNetwork, and undecodable bodies to
// ErrInvalidResponse.
type Service interface {
	InitQRPairing(ctx context.Context, deviceToken string) (InitPairingResult, error)
	InitPINPairing(ctx context.Context, deviceToken string) (InitPairingResult, error)
	GetPairingStatus(ctx context.Context, sessionID string) (PairingStatus, error)
	CancelPairing(ctx context.Context, sessionID string) error
	Check(ctx context.Context, req CheckRequest) (CheckResult, error)
	CreateRequest(ctx context.Context, body CreateRequestBody) (CreateRequestResult, error)
}
