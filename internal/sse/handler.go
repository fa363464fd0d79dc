package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acer-hub/hubclient/internal/bus"
)

// Named is implemented by messages that should be sent with an explicit SSE event
// name, so that the browser can listen for them with addEventListener(name, ...)
type Named interface {
	EventName() string
}

// DefaultKeepalive is how long a connection may sit idle before we send a comment line
// to keep intermediaries from closing it
const DefaultKeepalive = 30 * time.Second

// Handler is an HTTP handler that serves a stream of data using Server-Sent Events
type Handler[T any] struct {
	ctx    context.Context
	events *bus.Bus[T]
	log    *zap.Logger

	Keepalive          time.Duration
	OnConnectEventFunc func() T
}

// NewHandler initializes an SSE handler that subscribes each incoming HTTP connection
// to the given bus, for as long as both the connection and ctx remain open
func NewHandler[T any](ctx context.Context, events *bus.Bus[T], log *zap.Logger) *Handler[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler[T]{
		ctx:       ctx,
		events:    events,
		log:       log,
		Keepalive: DefaultKeepalive,
	}
}

// ServeHTTP responds by opening a long-lived HTTP connection to which events will be
// written as they're published, formatted as text/event-stream messages with 'data'
// consisting of a JSON-encoded message payload
func (h *Handler[T]) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	// If a content-type is explicitly requested, require that it's text/event-stream
	accept := req.Header.Get("accept")
	if accept != "" && accept != "*/*" && !strings.HasPrefix(accept, "text/event-stream") {
		message := fmt.Sprintf("content-type %s is not supported", accept)
		http.Error(res, message, http.StatusBadRequest)
		return
	}
	flusher, ok := res.(http.Flusher)
	if !ok {
		http.Error(res, "streaming is not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before writing anything, so no event published after the client sees
	// the stream open can be missed
	ch, unsubscribe := h.events.Subscribe(32)
	defer unsubscribe()

	res.Header().Set("content-type", "text/event-stream")
	res.Header().Set("cache-control", "no-cache")
	res.Header().Set("connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	// If configured to send an initial value immediately upon connect, send it:
	// otherwise send an initial keepalive so the client knows the stream is open
	if h.OnConnectEventFunc != nil {
		h.write(res, h.OnConnectEventFunc())
	} else {
		res.Write([]byte(":\n\n"))
	}
	flusher.Flush()

	log := h.log.With(zap.String("remoteAddr", req.RemoteAddr))
	log.Debug("Opened SSE connection")

	keepalive := time.NewTicker(h.Keepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-keepalive.C:
			res.Write([]byte(":\n\n"))
			flusher.Flush()
		case message, ok := <-ch:
			if !ok {
				log.Debug("Event bus closed; ending SSE connection")
				return
			}
			h.write(res, message)
			flusher.Flush()
		case <-h.ctx.Done():
			log.Debug("Server is shutting down; abandoning SSE connection")
			return
		case <-req.Context().Done():
			log.Debug("SSE connection closed by client")
			return
		}
	}
}

func (h *Handler[T]) write(res http.ResponseWriter, message T) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("Failed to serialize SSE message as JSON", zap.Error(err))
		return
	}
	if named, ok := any(message).(Named); ok {
		fmt.Fprintf(res, "event: %s\n", named.EventName())
	}
	fmt.Fprintf(res, "data: %s\n\n", data)
}
