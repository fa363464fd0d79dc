// Package shell serves the local HTTP API that the ACER HUB web front end talks to: it
// exposes the session guard, one chain-of-impact viewer per church, and preference
// changes
package shell

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/acer-hub/hubclient/internal/impact"
	"github.com/acer-hub/hubclient/internal/prefs"
	"github.com/acer-hub/hubclient/internal/session"
)

// Guard is the subset of *session.Guard used by the shell
type Guard interface {
	session.Validator
	State() session.State
	Logout(ctx context.Context)
}

var _ Guard = (*session.Guard)(nil)

// Preferences is the subset of *prefs.Notifier used by the shell
type Preferences interface {
	Save(language, theme string) (prefs.Change, error)
	Current() prefs.Change
}

var _ Preferences = (*prefs.Notifier)(nil)

type Server struct {
	guard   Guard
	prefs   Preferences
	viewers *Registry
	log     *zap.Logger
}

func New(guard Guard, preferences Preferences, viewers *Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		guard:   guard,
		prefs:   preferences,
		viewers: viewers,
		log:     log,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/session").Methods("GET").HandlerFunc(s.handleGetSession)
	r.Path("/session/validate").Methods("POST").HandlerFunc(s.handlePostValidate)
	r.Path("/session/logout").Methods("POST").HandlerFunc(s.handlePostLogout)

	r.Path("/impact/{churchId}").Methods("GET").HandlerFunc(s.handleGetImpact)
	r.Path("/impact/{churchId}/reload").Methods("POST").HandlerFunc(s.handlePostReload)
	r.Path("/impact/{churchId}/rebuild").Methods("POST").HandlerFunc(s.handlePostRebuild)
	r.Path("/impact/{churchId}/nodes/{nodeId}/toggle").Methods("POST").HandlerFunc(s.handlePostToggle)
	r.Path("/impact/{churchId}/expansion").Methods("POST").HandlerFunc(s.handlePostExpansion)
	r.Path("/impact/{churchId}/viewport").Methods("POST").HandlerFunc(s.handlePostViewport)

	r.Path("/preferences").Methods("GET").HandlerFunc(s.handleGetPreferences)
	r.Path("/preferences").Methods("POST").HandlerFunc(s.handlePostPreferences)
}

// Registry lazily creates one viewer per church, so that state (expansion, viewport)
// survives between requests from the front end
type Registry struct {
	mu        sync.Mutex
	newViewer func() *impact.Viewer
	viewers   map[string]*impact.Viewer
}

// NewRegistry initializes an empty registry whose viewers fetch through client
func NewRegistry(client impact.Client, log *zap.Logger) *Registry {
	return &Registry{
		newViewer: func() *impact.Viewer { return impact.NewViewer(client, log) },
		viewers:   make(map[string]*impact.Viewer),
	}
}

// Get returns the viewer for a church, and whether it was created by this call
func (r *Registry) Get(churchID string) (*impact.Viewer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.viewers[churchID]; ok {
		return v, false
	}
	v := r.newViewer()
	r.viewers[churchID] = v
	return v, true
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("content-type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
