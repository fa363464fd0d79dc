package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/acer-hub/hubclient/internal/impact"
	"github.com/acer-hub/hubclient/internal/session"
)

type treeOptions struct {
	ChurchID  string
	ExpandAll bool
	Level     int
}

func (o *treeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ChurchID, "church", "", "church id")
	cmd.Flags().BoolVar(&o.ExpandAll, "expand-all", false, "expand every node")
	cmd.Flags().IntVar(&o.Level, "level", -1, "expand nodes fewer than this many levels below the root")
}

func (o *treeOptions) validate() error {
	if strings.TrimSpace(o.ChurchID) == "" {
		return errors.New("--church is required")
	}
	return nil
}

// applyExpansion sets the viewer's expanded nodes as requested by the flags; with
// neither flag, the viewer keeps its default of only the root expanded
func (o *treeOptions) applyExpansion(v *impact.Viewer) {
	switch {
	case o.ExpandAll:
		v.ExpandAll()
	case o.Level >= 0:
		v.ExpandToLevel(o.Level)
	}
}

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect and maintain a church's chain of impact",
	}
	cmd.AddCommand(newTreeShowCmd())
	cmd.AddCommand(newTreeRebuildCmd())
	cmd.AddCommand(newTreeExportCmd())
	return cmd
}

func newTreeShowCmd() *cobra.Command {
	var opts treeOptions

	cmd := &cobra.Command{
		Use:   "show --church <id>",
		Short: "Print the chain of impact as a tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}

			v := a.newViewer()
			loadErr := v.LoadTree(cmd.Context(), opts.ChurchID)
			if errors.Is(loadErr, session.ErrAuthExpired) {
				return fmt.Errorf("session ended; run 'hubctl login' to sign in again: %w", loadErr)
			}
			opts.applyExpansion(v)
			fmt.Fprint(cmd.OutOrStdout(), impact.RenderText(v.Snapshot()))
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}

func newTreeRebuildCmd() *cobra.Command {
	var opts treeOptions

	cmd := &cobra.Command{
		Use:   "rebuild --church <id>",
		Short: "Recompute the chain of impact on the server, then print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			v := a.newViewer()
			rebuildErr, valid := session.ValidateBeforeAction(ctx, a.guard, func() error {
				return v.RebuildTree(ctx, opts.ChurchID)
			})
			if !valid {
				return fmt.Errorf("session is %s; run 'hubctl login' to sign in again", a.guard.State())
			}
			if rebuildErr != nil {
				return fmt.Errorf("rebuild failed: %w", rebuildErr)
			}
			opts.applyExpansion(v)
			fmt.Fprint(cmd.OutOrStdout(), impact.RenderText(v.Snapshot()))
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}

func newTreeExportCmd() *cobra.Command {
	var opts treeOptions

	cmd := &cobra.Command{
		Use:   "export --church <id>",
		Short: "Upload a JSON snapshot of the chain of impact to the snapshot bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			if !a.cfg.HasSnapshotStore() {
				return errors.New("HUB_SNAPSHOT_ENDPOINT and HUB_SNAPSHOT_BUCKET must be set to export snapshots")
			}
			store, err := impact.NewSnapshotStore(a.cfg.SnapshotConfig())
			if err != nil {
				return fmt.Errorf("error initializing snapshot store: %w", err)
			}

			ctx := cmd.Context()
			v := a.newViewer()
			if err := v.LoadTree(ctx, opts.ChurchID); err != nil {
				return fmt.Errorf("error loading chain of impact: %w", err)
			}
			url, err := impact.ExportSnapshot(ctx, v, store, time.Now())
			if err != nil {
				return fmt.Errorf("error exporting snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ChurchID, "church", "", "church id")

	return cmd
}
