package shell

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/acer-hub/hubclient/internal/impact"
	"github.com/acer-hub/hubclient/internal/session"
)

type ExpansionRequest struct {
	Mode  string `json:"mode"`
	Level int    `json:"level"`
}

type ViewportRequest struct {
	Action string  `json:"action"`
	Button int     `json:"button"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"deltaY"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ViewportResponse struct {
	Viewport       impact.Viewport  `json:"viewport"`
	Transform      impact.Transform `json:"transform"`
	CSS            string           `json:"css"`
	PreventDefault bool             `json:"preventDefault"`
}

func (s *Server) viewer(res http.ResponseWriter, req *http.Request) (*impact.Viewer, string, bool) {
	v, churchID, _, ok := s.resolveViewer(res, req)
	return v, churchID, ok
}

// resolveViewer finds (or creates) the viewer for the church named in the URL
func (s *Server) resolveViewer(res http.ResponseWriter, req *http.Request) (*impact.Viewer, string, bool, bool) {
	churchID, ok := mux.Vars(req)["churchId"]
	if !ok || churchID == "" {
		http.Error(res, "failed to parse 'churchId' from URL", http.StatusInternalServerError)
		return nil, "", false, false
	}
	v, created := s.viewers.Get(churchID)
	return v, churchID, created, true
}

// writeView responds with the viewer's current state. Feature errors are carried in
// the view for the front end to display in place; only a terminated session changes
// the status code.
func (s *Server) writeView(res http.ResponseWriter, v *impact.Viewer, err error) {
	status := http.StatusOK
	if errors.Is(err, session.ErrAuthExpired) {
		status = http.StatusUnauthorized
	}
	writeJSON(res, status, v.Snapshot())
}

func (s *Server) handleGetImpact(res http.ResponseWriter, req *http.Request) {
	v, churchID, created, ok := s.resolveViewer(res, req)
	if !ok {
		return
	}

	// The first request for a church loads its tree; later ones just report state
	var err error
	if created {
		err = v.LoadTree(req.Context(), churchID)
	}
	s.writeView(res, v, err)
}

func (s *Server) handlePostReload(res http.ResponseWriter, req *http.Request) {
	v, churchID, ok := s.viewer(res, req)
	if !ok {
		return
	}
	err := v.LoadTree(req.Context(), churchID)
	s.writeView(res, v, err)
}

func (s *Server) handlePostRebuild(res http.ResponseWriter, req *http.Request) {
	v, churchID, ok := s.viewer(res, req)
	if !ok {
		return
	}

	// Rebuilding is a sensitive mutation, so confirm the session first
	ctx := req.Context()
	rebuildErr, valid := session.ValidateBeforeAction(ctx, s.guard, func() error {
		return v.RebuildTree(ctx, churchID)
	})
	if !valid {
		s.log.Info("Refused chain of impact rebuild without a valid session", zap.String("churchId", churchID))
		writeJSON(res, http.StatusUnauthorized, SessionStatus{State: s.guard.State()})
		return
	}
	s.writeView(res, v, rebuildErr)
}

func (s *Server) handlePostToggle(res http.ResponseWriter, req *http.Request) {
	v, _, ok := s.viewer(res, req)
	if !ok {
		return
	}
	nodeID := impact.NodeID(mux.Vars(req)["nodeId"])
	if _, found := v.Lookup(nodeID); !found {
		http.Error(res, "no such node", http.StatusNotFound)
		return
	}
	v.ToggleNode(nodeID)
	s.writeView(res, v, nil)
}

func (s *Server) handlePostExpansion(res http.ResponseWriter, req *http.Request) {
	v, _, ok := s.viewer(res, req)
	if !ok {
		return
	}
	var payload ExpansionRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return
	}
	switch payload.Mode {
	case "all":
		v.ExpandAll()
	case "none":
		v.CollapseAll()
	case "level":
		if payload.Level < 0 {
			http.Error(res, "level must not be negative", http.StatusBadRequest)
			return
		}
		v.ExpandToLevel(payload.Level)
	default:
		http.Error(res, fmt.Sprintf("unsupported expansion mode %q", payload.Mode), http.StatusBadRequest)
		return
	}
	s.writeView(res, v, nil)
}

func (s *Server) handlePostViewport(res http.ResponseWriter, req *http.Request) {
	v, _, ok := s.viewer(res, req)
	if !ok {
		return
	}
	var payload ViewportRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return
	}

	preventDefault := false
	var actionErr error
	vp := v.UpdateViewport(func(port *impact.Viewport) {
		switch payload.Action {
		case "pointerDown":
			port.PointerDown(payload.Button, payload.X, payload.Y)
		case "pointerMove":
			port.PointerMove(payload.X, payload.Y)
		case "pointerUp":
			port.PointerUp()
		case "wheel":
			preventDefault = port.Wheel(payload.DeltaY)
		case "zoomIn":
			port.ZoomIn()
		case "zoomOut":
			port.ZoomOut()
		case "reset":
			port.Reset()
		case "", "get":
		default:
			actionErr = fmt.Errorf("unsupported viewport action %q", payload.Action)
		}
	})
	if actionErr != nil {
		http.Error(res, actionErr.Error(), http.StatusBadRequest)
		return
	}

	transform := vp.Transform(payload.Width, payload.Height)
	writeJSON(res, http.StatusOK, ViewportResponse{
		Viewport:       vp,
		Transform:      transform,
		CSS:            transform.CSS(),
		PreventDefault: preventDefault,
	})
}
