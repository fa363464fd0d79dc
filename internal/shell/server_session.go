package shell

import (
	"net/http"

	"github.com/acer-hub/hubclient/internal/session"
)

type SessionStatus struct {
	State session.State `json:"state"`
	Valid bool          `json:"valid"`
}

func (s *Server) handleGetSession(res http.ResponseWriter, req *http.Request) {
	state := s.guard.State()
	writeJSON(res, http.StatusOK, SessionStatus{State: state, Valid: state == session.StateValid})
}

func (s *Server) handlePostValidate(res http.ResponseWriter, req *http.Request) {
	valid := s.guard.ValidateSession(req.Context())
	status := http.StatusOK
	if !valid {
		status = http.StatusUnauthorized
	}
	writeJSON(res, status, SessionStatus{State: s.guard.State(), Valid: valid})
}

func (s *Server) handlePostLogout(res http.ResponseWriter, req *http.Request) {
	s.guard.Logout(req.Context())
	res.WriteHeader(http.StatusNoContent)
}
