package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// attachCredentials sets the bearer and CSRF headers on req when both tokens are
// present; an incomplete pair leaves the request untouched, and the API will reject it
func attachCredentials(req *http.Request, tokens Tokens) {
	if !tokens.Complete() {
		return
	}
	req.Header.Set(headerAuthorization, "Bearer "+tokens.AccessToken)
	req.Header.Set(headerCSRFToken, tokens.CSRFToken)
}

// Client returns an *http.Client whose requests pass through the guard's transport
func (g *Guard) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: g.Transport(nil),
	}
}

// Transport wraps base (http.DefaultTransport if nil) so that every request carries
// the session credentials and every 401/403 response is handled centrally:
//
//   - auth failures (expired or invalid token) terminate the session and fail the
//     request with ErrAuthExpired
//   - a rejected CSRF token is refreshed once and the original request retried; if the
//     refresh fails the session is terminated
//   - permission failures and all other responses are passed back unchanged, to be
//     surfaced by feature code (see CheckResponse)
func (g *Guard) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{guard: g, base: base}
}

type transport struct {
	guard *Guard
	base  http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	// send always reads a copy from GetBody when there is one, so the original is ours to close
	if req.Body != nil && req.GetBody != nil {
		defer req.Body.Close()
	}
	tokens, err := t.guard.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session tokens: %w", err)
	}

	res, err := t.send(req, tokens)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized && res.StatusCode != http.StatusForbidden {
		return res, nil
	}

	apiErr := decodeAPIError(res)
	switch {
	case errors.Is(apiErr, ErrPermissionDenied):
		return res, nil
	case errors.Is(apiErr, ErrAuthExpired):
		res.Body.Close()
		t.guard.log.Info("Request rejected with expired session",
			zap.String("url", req.URL.String()),
			zap.String("code", string(apiErr.Code)),
		)
		t.guard.ForceLogout(ctx, ReasonTokenExpired)
		return nil, apiErr
	}

	// CSRF rejection: we can only retry if the request body can be replayed
	if req.Body != nil && req.GetBody == nil {
		return res, nil
	}
	fresh, err := t.guard.RefreshCSRF(ctx, tokens)
	if err != nil && ctx.Err() != nil {
		res.Body.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		res.Body.Close()
		t.guard.log.Info("CSRF refresh failed", zap.String("url", req.URL.String()), zap.Error(err))
		t.guard.ForceLogout(ctx, ReasonCSRF)
		return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	res.Body.Close()

	tokens.CSRFToken = fresh
	return t.send(req, tokens)
}

// send clones req with credentials and a request ID attached and performs it
func (t *transport) send(req *http.Request, tokens Tokens) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	} else {
		out.Body = req.Body
	}
	attachCredentials(out, tokens)
	if out.Header.Get(headerRequestID) == "" {
		out.Header.Set(headerRequestID, uuid.NewString())
	}

	res, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return res, nil
}

var _ http.RoundTripper = (*transport)(nil)
