package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acer-hub/hubclient"
	"github.com/acer-hub/hubclient/internal/bus"
)

// Reasons attached to a LogoutEvent; these are shown to the user as-is
const (
	ReasonTokenExpired   = "Token expiré ou invalide"
	ReasonMissingTokens  = "Session absente ou incomplète"
	ReasonCSRF           = "Jeton CSRF invalide"
	ReasonNetwork        = "Impossible de vérifier la session"
	ReasonInvalidSession = "Session invalide"
	ReasonUserLogout     = "Déconnexion"
)

const (
	headerAuthorization = "Authorization"
	headerCSRFToken     = "X-CSRF-Token"
	headerRequestID     = "X-Request-ID"
)

// State is the position of a Guard in the session lifecycle
type State int

const (
	StateUnknown State = iota
	StateValidating
	StateRefreshing
	StateValid
	StateInvalid
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateValidating:
		return "validating"
	case StateRefreshing:
		return "refreshing"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateLoggedOut:
		return "logged-out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders a State by name in JSON payloads
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LogoutEvent is published whenever the guard terminates a session. Subscribers are
// expected to send the user to RedirectTo.
type LogoutEvent struct {
	ID         uuid.UUID `json:"id"`
	Reason     string    `json:"reason"`
	RedirectTo string    `json:"redirectTo"`
	At         time.Time `json:"at"`
}

// EventName identifies the event on the shell's event stream
func (LogoutEvent) EventName() string { return hubclient.EventForceLogout }

// GuardConfig describes how a Guard talks to the API
type GuardConfig struct {
	// BaseURL is the root of the ACER HUB REST API, e.g. https://hub.example.org/api
	BaseURL string
	// LoginURL is where logged-out users are sent; defaults to /login
	LoginURL string
	// Interval between periodic validations; defaults to 5 minutes
	Interval time.Duration
	// HTTPClient performs the guard's own requests (probes, login, logout). It must not
	// be a client built from the guard's own Transport.
	HTTPClient *http.Client
	Metrics    *Metrics
}

// Guard keeps the session's token pair honest: it validates the session against the
// API, refreshes the CSRF token when the API rejects it, and terminates the session
// (clearing both tokens and publishing a LogoutEvent) whenever validity can't be
// positively confirmed
type Guard struct {
	cfg    GuardConfig
	store  Store
	events *bus.Bus[LogoutEvent]
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
}

// NewGuard initializes a Guard in the Unknown state
func NewGuard(cfg GuardConfig, store Store, events *bus.Bus[LogoutEvent], log *zap.Logger) *Guard {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.LoginURL == "" {
		cfg.LoginURL = hubclient.LoginPath
	}
	if cfg.Interval <= 0 {
		cfg.Interval = hubclient.DefaultValidationInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{
		cfg:    cfg,
		store:  store,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// State returns the guard's current lifecycle state
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) setState(s State) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.state
	g.state = s
	return prev
}

// ValidateSession probes GET /auth/me with the stored tokens and reports whether the
// session is still valid. Any outcome other than a confirmed-valid session ends in
// ForceLogout, including transport errors; cancellation of ctx itself does not.
func (g *Guard) ValidateSession(ctx context.Context) bool {
	tokens, err := g.store.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		g.log.Error("Failed to load session tokens", zap.Error(err))
		g.fail(ctx, ReasonMissingTokens)
		return false
	}
	if !tokens.Complete() {
		g.fail(ctx, ReasonMissingTokens)
		return false
	}

	prev := g.setState(StateValidating)
	res, err := g.probe(ctx, tokens, true)
	if err != nil {
		// Our own cancellation (shutdown, a dropped request) says nothing about the session
		if ctx.Err() != nil {
			g.setState(prev)
			return false
		}
		g.log.Warn("Session probe failed", zap.Error(err))
		g.fail(ctx, ReasonNetwork)
		return false
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		if fresh := res.Header.Get(headerCSRFToken); fresh != "" && fresh != tokens.CSRFToken {
			if err := g.store.SetCSRFToken(ctx, fresh); err != nil {
				g.log.Error("Failed to store rotated CSRF token", zap.Error(err))
			}
		}
		g.setState(StateValid)
		g.cfg.Metrics.validation(true)
		return true
	case res.StatusCode == http.StatusUnauthorized:
		g.fail(ctx, ReasonTokenExpired)
		return false
	case res.StatusCode == http.StatusForbidden:
		if _, err := g.RefreshCSRF(ctx, tokens); err != nil {
			if ctx.Err() != nil {
				g.setState(prev)
				return false
			}
			g.log.Info("CSRF refresh failed during validation", zap.Error(err))
			g.fail(ctx, ReasonCSRF)
			return false
		}
		g.cfg.Metrics.validation(true)
		return true
	default:
		g.log.Warn("Unexpected session probe status", zap.Int("status", res.StatusCode))
		g.fail(ctx, ReasonInvalidSession)
		return false
	}
}

// fail records a failed validation and terminates the session
func (g *Guard) fail(ctx context.Context, reason string) {
	g.mu.Lock()
	if g.state != StateLoggedOut {
		g.state = StateInvalid
	}
	g.mu.Unlock()
	g.cfg.Metrics.validation(false)
	g.ForceLogout(ctx, reason)
}

// RefreshCSRF repeats the session probe with only the bearer token attached, and stores
// the fresh CSRF token the API returns in the X-CSRF-Token response header. The probe
// must succeed and carry that header; otherwise the refresh has failed.
func (g *Guard) RefreshCSRF(ctx context.Context, tokens Tokens) (string, error) {
	prev := g.setState(StateRefreshing)
	fresh, err := g.refreshCSRF(ctx, tokens)
	if err != nil && ctx.Err() != nil {
		g.setState(prev)
		return "", err
	}
	g.cfg.Metrics.csrfRefresh(err == nil)
	if err != nil {
		g.setState(StateInvalid)
		return "", err
	}
	g.setState(StateValid)
	return fresh, nil
}

func (g *Guard) refreshCSRF(ctx context.Context, tokens Tokens) (string, error) {
	if tokens.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	res, err := g.probe(ctx, tokens, false)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return "", decodeAPIError(res)
		}
		return "", fmt.Errorf("%w: got status %d from CSRF refresh", ErrCSRFInvalid, res.StatusCode)
	}
	fresh := res.Header.Get(headerCSRFToken)
	if fresh == "" {
		return "", fmt.Errorf("%w: no fresh token in refresh response", ErrCSRFInvalid)
	}
	if err := g.store.SetCSRFToken(ctx, fresh); err != nil {
		return "", fmt.Errorf("failed to store refreshed CSRF token: %w", err)
	}
	return fresh, nil
}

// probe calls GET /auth/me, attaching the CSRF token only when withCSRF is set
func (g *Guard) probe(ctx context.Context, tokens Tokens, withCSRF bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAuthorization, "Bearer "+tokens.AccessToken)
	if withCSRF {
		req.Header.Set(headerCSRFToken, tokens.CSRFToken)
	}
	req.Header.Set(headerRequestID, uuid.NewString())

	res, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return res, nil
}

// ForceLogout clears both tokens and publishes a LogoutEvent carrying the given reason.
// It is safe to call repeatedly: tokens are cleared every time, but an event is only
// published when the session transitions into the LoggedOut state.
func (g *Guard) ForceLogout(ctx context.Context, reason string) {
	if err := g.store.Clear(ctx); err != nil {
		g.log.Error("Failed to clear session tokens", zap.Error(err))
	}
	if prev := g.setState(StateLoggedOut); prev == StateLoggedOut {
		return
	}

	g.log.Info("Session terminated", zap.String("reason", reason))
	g.cfg.Metrics.logout(reason)
	if g.events != nil {
		g.events.Publish(LogoutEvent{
			ID:         uuid.New(),
			Reason:     reason,
			RedirectTo: g.cfg.LoginURL,
			At:         g.now(),
		})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	CSRFToken string `json:"csrfToken"`
}

// Login exchanges credentials for a fresh token pair via POST /auth/login and stores
// it. A CSRF token in the X-CSRF-Token response header takes precedence over the one
// in the body. A successful login restarts the guard at the Unknown state.
func (g *Guard) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())

	res, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return decodeAPIError(res)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		return fmt.Errorf("login failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload loginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if fresh := res.Header.Get(headerCSRFToken); fresh != "" {
		payload.CSRFToken = fresh
	}
	tokens := Tokens{AccessToken: payload.Token, CSRFToken: payload.CSRFToken}
	if !tokens.Complete() {
		return fmt.Errorf("%w: login response did not include both tokens", ErrNotAuthenticated)
	}
	if err := g.store.Save(ctx, tokens); err != nil {
		return fmt.Errorf("failed to store session tokens: %w", err)
	}
	g.setState(StateUnknown)
	g.log.Info("Logged in", zap.String("username", username))
	return nil
}

// Logout notifies the API that the session is over (best effort: a failure to reach
// the API doesn't keep the session alive) and then terminates it locally
func (g *Guard) Logout(ctx context.Context) {
	tokens, err := g.store.Load(ctx)
	if err == nil && tokens.Complete() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/auth/logout", nil)
		if err == nil {
			attachCredentials(req, tokens)
			if res, err := g.cfg.HTTPClient.Do(req); err != nil {
				g.log.Warn("Logout request failed", zap.Error(err))
			} else {
				res.Body.Close()
			}
		}
	}
	g.ForceLogout(ctx, ReasonUserLogout)
}

// Run validates the session immediately and then once per configured interval, until
// the context is canceled
func (g *Guard) Run(ctx context.Context) error {
	g.ValidateSession(ctx)

	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.ValidateSession(ctx)
		}
	}
}

// Validator is anything that can confirm the session is valid before a sensitive
// operation goes ahead
type Validator interface {
	ValidateSession(ctx context.Context) bool
}

var _ Validator = (*Guard)(nil)

// ValidateBeforeAction runs action only if the session validates, returning its result
// and true; otherwise it returns the zero value and false without running action
func ValidateBeforeAction[T any](ctx context.Context, v Validator, action func() T) (T, bool) {
	if !v.ValidateSession(ctx) {
		var zero T
		return zero, false
	}
	return action(), true
}
