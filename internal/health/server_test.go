package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acer-hub/hubclient/internal/session"
)

func Test_Server(t *testing.T) {
	tests := []struct {
		name              string
		state             session.State
		pingErr           error
		wantStatus        int
		wantIsReady       bool
		wantMessageSubstr string
	}{
		{
			"returns 200 with isReady if the session is valid and the API is reachable",
			session.StateValid,
			nil,
			http.StatusOK,
			true,
			"fully operational",
		},
		{
			"returns 200 with !isReady if the API is unreachable",
			session.StateValid,
			fmt.Errorf("connection refused"),
			http.StatusOK,
			false,
			"unreachable. (Error: connection refused)",
		},
		{
			"returns 200 with !isReady if the session was terminated",
			session.StateLoggedOut,
			nil,
			http.StatusOK,
			false,
			"must sign in again",
		},
		{
			"returns 200 with !isReady while the session is being validated",
			session.StateValidating,
			nil,
			http.StatusOK,
			false,
			"not been validated yet",
		},
	}
	for _, tt := range tests {
		s := &Server{
			getSessionState: func() session.State {
				return tt.state
			},
			pingAPI: func(ctx context.Context) error {
				return tt.pingErr
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		res := httptest.NewRecorder()
		s.ServeHTTP(res, req)

		r := res.Result()
		assert.Equal(t, tt.wantStatus, r.StatusCode)

		var status struct {
			IsReady bool   `json:"isReady"`
			Session string `json:"session"`
			Message string `json:"message"`
		}
		err := json.NewDecoder(r.Body).Decode(&status)
		assert.NoError(t, err)
		assert.Equal(t, tt.wantIsReady, status.IsReady)
		assert.Equal(t, tt.state.String(), status.Session)
		assert.Contains(t, status.Message, tt.wantMessageSubstr)
	}
}

func Test_NewServer(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodHead, req.Method)
		res.WriteHeader(http.StatusNotFound)
	}))
	defer api.Close()

	guard := session.NewGuard(session.GuardConfig{BaseURL: api.URL}, session.NewMemoryStore(session.Tokens{}), nil, nil)
	s := NewServer(guard, api.URL, api.Client())

	status := s.resolveStatus(context.Background())
	assert.False(t, status.IsReady)
	assert.Equal(t, session.StateUnknown, status.Session)
	assert.Contains(t, status.Message, "not been validated yet")
}
