// Package prefs announces changes to the user's language and theme preferences, so that
// every open view can re-render without polling
package prefs

import (
	"errors"
	"sync"
	"time"

	"github.com/acer-hub/hubclient"
	"github.com/acer-hub/hubclient/internal/bus"
)

// ErrInvalidPreferences is returned when a change names neither a language nor a theme
var ErrInvalidPreferences = errors.New("a language or a theme is required")

// Change is published whenever preferences are saved
type Change struct {
	Language  string    `json:"language"`
	Theme     string    `json:"theme"`
	Timestamp time.Time `json:"timestamp"`
}

// EventName identifies the event on the shell's event stream
func (Change) EventName() string { return hubclient.EventPreferencesChanged }

// Notifier keeps the current preferences and publishes a Change each time they're saved
type Notifier struct {
	events *bus.Bus[Change]
	now    func() time.Time

	mu      sync.Mutex
	current Change
}

// NewNotifier initializes a Notifier with default preferences
func NewNotifier(events *bus.Bus[Change], language, theme string) *Notifier {
	return &Notifier{
		events:  events,
		now:     time.Now,
		current: Change{Language: language, Theme: theme},
	}
}

// Save records new preferences and publishes them. An empty language or theme keeps
// the current value.
func (n *Notifier) Save(language, theme string) (Change, error) {
	if language == "" && theme == "" {
		return Change{}, ErrInvalidPreferences
	}

	n.mu.Lock()
	if language != "" {
		n.current.Language = language
	}
	if theme != "" {
		n.current.Theme = theme
	}
	n.current.Timestamp = n.now()
	change := n.current
	n.mu.Unlock()

	n.events.Publish(change)
	return change, nil
}

// Current returns the most recently saved preferences
func (n *Notifier) Current() Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
