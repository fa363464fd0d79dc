package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/acer-hub/hubclient/internal/session"
)

// Status is the JSON payload served by the health endpoint
type Status struct {
	IsReady bool          `json:"isReady"`
	Session session.State `json:"session"`
	Message string        `json:"message"`
}

type GetSessionStateFunc func() session.State
type PingAPIFunc func(ctx context.Context) error

// Server reports whether the shell is ready to serve the front end: the API must be
// reachable and the session must have been validated
type Server struct {
	getSessionState GetSessionStateFunc
	pingAPI         PingAPIFunc
}

func NewServer(guard *session.Guard, apiBaseURL string, client *http.Client) *Server {
	return &Server{
		getSessionState: guard.State,
		pingAPI: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, apiBaseURL, nil)
			if err != nil {
				return err
			}
			res, err := client.Do(req)
			if err != nil {
				return err
			}
			res.Body.Close()
			return nil
		},
	}
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	status := s.resolveStatus(req.Context())
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(status); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) resolveStatus(ctx context.Context) Status {
	state := s.getSessionState()
	if err := s.pingAPI(ctx); err != nil {
		return Status{
			IsReady: false,
			Session: state,
			Message: fmt.Sprintf("The ACER HUB API is unreachable. (Error: %s)", err),
		}
	}

	switch state {
	case session.StateValid:
		return Status{
			IsReady: true,
			Session: state,
			Message: "The session is valid and the ACER HUB API is reachable. The shell is fully operational!",
		}
	case session.StateInvalid, session.StateLoggedOut:
		return Status{
			IsReady: false,
			Session: state,
			Message: "There is no active session: the user must sign in again.",
		}
	default:
		return Status{
			IsReady: false,
			Session: state,
			Message: "The session has not been validated yet.",
		}
	}
}
