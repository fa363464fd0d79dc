package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acer-hub/hubclient/internal/bus"
	"github.com/acer-hub/hubclient/internal/config"
	"github.com/acer-hub/hubclient/internal/impact"
	"github.com/acer-hub/hubclient/internal/session"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hubctl",
		Short:         "Command-line client for the ACER HUB session and chain of impact",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newTreeCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// app holds everything a command needs to talk to the API on the user's behalf
type app struct {
	cfg     config.Config
	log     *zap.Logger
	guard   *session.Guard
	logouts *bus.Bus[session.LogoutEvent]
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("error opening session store: %w", err)
	}

	logouts := bus.New[session.LogoutEvent]()
	guard := session.NewGuard(session.GuardConfig{
		BaseURL:    cfg.APIBaseURL,
		LoginURL:   cfg.LoginURL,
		Interval:   cfg.ValidationInterval,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}, store, logouts, log.Named("session"))

	return &app{
		cfg:     cfg,
		log:     log,
		guard:   guard,
		logouts: logouts,
	}, nil
}

// newViewer returns a viewer whose API requests carry the stored session
func (a *app) newViewer() *impact.Viewer {
	client := impact.NewClient(a.cfg.APIBaseURL, a.guard.Client(a.cfg.APITimeout))
	return impact.NewViewer(client, a.log.Named("impact"))
}

// resolveLoginURL makes a relative login path absolute against the API's origin, so it
// can be opened in a browser
func resolveLoginURL(apiBaseURL, loginURL string) (string, error) {
	base, err := url.Parse(apiBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	ref, err := url.Parse(loginURL)
	if err != nil {
		return "", fmt.Errorf("invalid login URL: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
