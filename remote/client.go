package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds every remote call. A call that exceeds
// it is reported as ErrNetwork, never left pending.
const DefaultRequestTimeout = 30 * time.Second

// Client is the production Service implementation over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Service = (*Client)(nil)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying *http.Client. The caller
// is responsible for setting a sane timeout on it.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) InitQRPairing(ctx context.Context, deviceToken string) (InitPairingResult, error) {
	var out InitPairingResult
	err := c.post(ctx, "/pair/qr/init", map[string]string{"deviceToken": deviceToken}, &out)
	if err != nil {
		return InitPairingResult{}, err
	}
	if out.SessionID == "" {
		return InitPairingResult{}, fmt.Errorf("%w: init response missing sessionId", ErrInvalidResponse)
	}
	return out, nil
}

func (c *Client) InitPINPairing(ctx context.Context, deviceToken string) (InitPairingResult, error) {
	var out InitPairingResult
	err := c.post(ctx, "/pair/pin/init", map[string]string{"deviceToken": deviceToken}, &out)
	if err != nil {
		return InitPairingResult{}, err
	}
	if out.SessionID == "" {
		return InitPairingResult{}, fmt.Errorf("%w: init response missing sessionId", ErrInvalidResponse)
	}
	return out, nil
}

func (c *Client) GetPairingStatus(ctx context.Context, sessionID string) (PairingStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/pair/status/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return PairingStatus{}, err
	}
	return DecodePairingStatus(body)
}

func (c *Client) CancelPairing(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/pair/cancel", map[string]string{"sessionId": sessionID}, nil)
}

func (c *Client) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	var out CheckResult
	if err := c.post(ctx, "/check", req, &out); err != nil {
		return CheckResult{}, err
	}
	return out, nil
}

func (c *Client) CreateRequest(ctx context.Context, body CreateRequestBody) (CreateRequestResult, error) {
	var out CreateRequestResult
	if err := c.post(ctx, "/request/createRequest", body, &out); err != nil {
		return CreateRequestResult{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrInvalidResponse, path, err)
	}
	return nil
}

// do performs one HTTP exchange and sorts the outcome into the error
// taxonomy: transport problems become ErrNetwork, HTTP 401 becomes
// ErrUnauthorized, other non-2xx statuses become plain errors.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ErrNetwork, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Method: method, Path: path}
	}
	return raw, nil
}
