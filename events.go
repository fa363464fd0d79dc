package hubclient

import "time"

// Event names used on the shell's SSE streams: the web front end listens for these in
// place of the window-level custom events it used to rely on
const (
	EventForceLogout        = "forceLogout"
	EventPreferencesChanged = "languageOrThemeChanged"
)

// LoginPath is where the front end sends the user once their session has been
// terminated
const LoginPath = "/login"

// DefaultValidationInterval controls how often an active session guard re-checks that
// the session is still valid
const DefaultValidationInterval = 5 * time.Minute
