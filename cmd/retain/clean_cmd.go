package main

import (
	"context"
	"fmt"

	"github.com/coldvault/coldvault-agent/internal/backup"
	"github.com/spf13/cobra"
)

// cleanCmd implements `clean hide|delete [--fast] [--force]` (§6/§4.8).
func cleanCmd() *cobra.Command {
	var (
		fast  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Reconcile the remote object set against the current manifest",
	}
	cmd.PersistentFlags().BoolVar(&fast, "fast", false, "Skip the remote listing; only hide objects just evicted from the manifest")
	cmd.PersistentFlags().BoolVar(&force, "force", false, "Skip the remote-manifest-newer-than-local guard")
	cmd.PersistentFlags().StringVar(&storageEndpoint, "endpoint", "https://api.backblazeb2.com", "Object-storage API root")

	cmd.AddCommand(&cobra.Command{
		Use:   "hide",
		Short: "Soft-delete orphaned objects by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(backup.ModeHide, fast, force)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Hard-delete orphaned objects by id (requires a full remote listing)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(backup.ModeDelete, fast, force)
		},
	})

	return cmd
}

func runClean(mode backup.CleanMode, fast, force bool) error {
	if fast && mode == backup.ModeDelete {
		return fmt.Errorf("clean: --fast is incompatible with delete mode")
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	return e.Clean(context.Background(), backup.CleanOptions{Mode: mode, Force: force, Fast: fast})
}
