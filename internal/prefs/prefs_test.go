package prefs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/acer-hub/hubclient/internal/bus"
)

func Test_Notifier_Save(t *testing.T) {
	events := bus.New[Change]()
	ch, _ := events.Subscribe(4)

	n := NewNotifier(events, "fr", "light")
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return at }

	change, err := n.Save("en", "")
	assert.NoError(t, err)
	assert.Equal(t, Change{Language: "en", Theme: "light", Timestamp: at}, change)
	assert.Equal(t, change, <-ch)

	change, err = n.Save("", "dark")
	assert.NoError(t, err)
	assert.Equal(t, Change{Language: "en", Theme: "dark", Timestamp: at}, change)
	assert.Equal(t, change, <-ch)
	assert.Equal(t, change, n.Current())
}

func Test_Notifier_SaveRequiresAValue(t *testing.T) {
	events := bus.New[Change]()
	ch, _ := events.Subscribe(4)

	n := NewNotifier(events, "fr", "light")
	_, err := n.Save("", "")
	assert.ErrorIs(t, err, ErrInvalidPreferences)
	assert.Len(t, ch, 0)
	assert.Equal(t, Change{Language: "fr", Theme: "light"}, n.Current())
}
