package shell

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acer-hub/hubclient/internal/prefs"
)

type PreferencesRequest struct {
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

func (s *Server) handleGetPreferences(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, s.prefs.Current())
}

func (s *Server) handlePostPreferences(res http.ResponseWriter, req *http.Request) {
	var payload PreferencesRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return
	}
	change, err := s.prefs.Save(payload.Language, payload.Theme)
	if errors.Is(err, prefs.ErrInvalidPreferences) {
		http.Error(res, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(res, http.StatusOK, change)
}
