package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type loginOptions struct {
	Username string
	Password string
}

func newLoginCmd() *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login --username <name>",
		Short: "Sign in and store the session tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.Username) == "" {
				return errors.New("--username is required")
			}
			password := opts.Password
			if password == "" {
				password = os.Getenv("HUB_PASSWORD")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				var err error
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.guard.Login(ctx, opts.Username, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if !a.guard.ValidateSession(ctx) {
				return errors.New("login succeeded but the session could not be validated")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", opts.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Username, "username", "", "ACER HUB username")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (prompted for if omitted; HUB_PASSWORD is also read)")

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.guard.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored session against the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if !a.guard.ValidateSession(cmd.Context()) {
				return fmt.Errorf("session is %s; run 'hubctl login' to sign in again", a.guard.State())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session is valid.")
			return nil
		},
	}
}

type watchOptions struct {
	OpenBrowser bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Revalidate the session periodically, reporting when it ends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, close := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer close()

			logouts, unsubscribe := a.logouts.Subscribe(1)
			defer unsubscribe()

			var wg errgroup.Group
			wg.Go(func() error { return a.guard.Run(ctx) })
			wg.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case event, ok := <-logouts:
						if !ok {
							return nil
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Session ended: %s\n", event.Reason)
						if opts.OpenBrowser {
							a.openLogin(event.RedirectTo)
						}
					}
				}
			})
			return wg.Wait()
		},
	}

	cmd.Flags().BoolVar(&opts.OpenBrowser, "open", true, "open the login page in a browser when the session ends")

	return cmd
}

func (a *app) openLogin(redirectTo string) {
	target, err := resolveLoginURL(a.cfg.APIBaseURL, redirectTo)
	if err != nil {
		a.log.Error("Failed to resolve login URL", zap.Error(err))
		return
	}
	if err := browser.OpenURL(target); err != nil {
		a.log.Warn("Failed to open browser", zap.String("url", target), zap.Error(err))
	}
}
