// Package remotetest provides a scriptable in-process fake of the
// family service. Tests drive pairing and check outcomes directly;
// the warden CLI can also run it as a local stub server.
package remotetest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Allow2/brave-core-sub002/internal/util"
	"github.com/Allow2/brave-core-sub002/remote"
)

type pairingSession struct {
	id        string
	pin       string
	scanned   bool
	completed bool
	expired   bool
	cancelled bool
}

// Server is the fake service. Zero value is not usable; call New.
type Server struct {
	mu       sync.Mutex
	router   chi.Router
	sessions map[string]*pairingSession

	credentials remote.Credentials
	children    []remote.Child

	checkResult remote.CheckResult
	forceStatus int // when non-zero, every authenticated endpoint returns it

	// LegacyStatus omits the "status" string from pairing status
	// bodies, exercising the fallback decode rules.
	LegacyStatus bool
}

// New creates a fake service with one child and a permissive default
// check verdict.
func New() *Server {
	s := &Server{
		sessions: make(map[string]*pairingSession),
		credentials: remote.Credentials{
			UserID:    "user-1",
			PairID:    "pair-1",
			PairToken: uuid.NewString(),
		},
		children: []remote.Child{
			{ID: "child-1", Name: "Alex"},
		},
		checkResult: remote.CheckResult{
			Allowed:                 true,
			MinimumRemainingSeconds: 3600,
			DayType:                 "weekday",
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/pair/qr/init", s.handleInit(true))
	r.Post("/pair/pin/init", s.handleInit(false))
	r.Get("/pair/status/{sessionID}", s.handleStatus)
	r.Post("/pair/cancel", s.handleCancel)
	r.Post("/check", s.handleCheck)
	r.Post("/request/createRequest", s.handleCreateRequest)
	s.router = r
	return s
}

// Router returns the HTTP handler, for httptest.NewServer or a real
// listener.
func (s *Server) Router() http.Handler {
	return s.router
}

// Credentials returns the credentials handed out on completion.
func (s *Server) Credentials() remote.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials
}

// SetChildren replaces the child list included with completion.
func (s *Server) SetChildren(children []remote.Child) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append([]remote.Child(nil), children...)
}

// SetCheckResult scripts the verdict returned by /check.
func (s *Server) SetCheckResult(r remote.CheckResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkResult = r
	s.forceStatus = 0
}

// ForceStatus makes every authenticated endpoint return the given HTTP
// status (401 to simulate revocation, 500 for outages). Zero restores
// normal behavior.
func (s *Server) ForceStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceStatus = code
}

// MarkScanned flags the session's QR code as scanned.
func (s *Server) MarkScanned(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[sessionID]; sess != nil {
		sess.scanned = true
	}
}

// CompletePairing moves the session to completed, as if the parent
// approved it.
func (s *Server) CompletePairing(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[sessionID]; sess != nil {
		sess.completed = true
	}
}

// ExpirePairing moves the session to expired.
func (s *Server) ExpirePairing(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[sessionID]; sess != nil {
		sess.expired = true
	}
}

// Cancelled reports whether the device cancelled the session.
func (s *Server) Cancelled(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[sessionID]
	return sess != nil && sess.cancelled
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleInit(qr bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.forceStatus != 0 {
			w.WriteHeader(s.forceStatus)
			return
		}
		sess := &pairingSession{id: uuid.NewString()}
		out := remote.InitPairingResult{SessionID: sess.id, ExpiresIn: 300}
		if qr {
			out.QRCodeURL = "https://pair.example/qr/" + sess.id
		} else {
			pin, _ := util.RandomDigits(6)
			sess.pin = pin
			out.PIN = pin
		}
		s.sessions[sess.id] = sess
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceStatus != 0 {
		w.WriteHeader(s.forceStatus)
		return
	}
	sess := s.sessions[chi.URLParam(r, "sessionID")]
	if sess == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body := map[string]any{}
	switch {
	case sess.completed:
		if s.LegacyStatus {
			body["completed"] = true
		} else {
			body["status"] = "completed"
		}
		body["credentials"] = s.credentials
		body["children"] = s.children
	case sess.expired:
		body["status"] = "expired"
	case sess.cancelled:
		body["status"] = "failed"
	default:
		if !s.LegacyStatus {
			body["status"] = "pending"
		}
		body["scanned"] = sess.scanned
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[req.SessionID]; sess != nil {
		sess.cancelled = true
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req remote.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceStatus != 0 {
		w.WriteHeader(s.forceStatus)
		return
	}
	if req.PairToken != s.credentials.PairToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.checkResult)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req remote.CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceStatus != 0 {
		w.WriteHeader(s.forceStatus)
		return
	}
	if req.PairToken != s.credentials.PairToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, remote.CreateRequestResult{
		Success:   true,
		RequestID: uuid.NewString(),
	})
}
