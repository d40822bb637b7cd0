package main

import (
	"context"
	"fmt"

	"github.com/coldvault/coldvault-agent/internal/backup"
	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/logger"
	"github.com/coldvault/coldvault-agent/internal/storage"
	"github.com/spf13/cobra"
)

var storageEndpoint string

// backupCmd implements `backup upload|download|sync` (§6).
func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Run the upload, download or sync backup operation",
	}
	cmd.PersistentFlags().StringVar(&storageEndpoint, "endpoint", "https://api.backblazeb2.com", "Object-storage API root")

	cmd.AddCommand(&cobra.Command{
		Use:   "upload",
		Short: "Encrypt and upload every new or changed file in the backup list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "download",
		Short: "Fetch the remote manifest and every missing or stale file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Upload followed immediately by a full clean (hide mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync()
		},
	})
	return cmd
}

func newEngine() (*backup.Engine, error) {
	cfgMgr, err := config.NewManager(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New("info", "stdout")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store := storage.NewHTTPClient(storageEndpoint)
	return backup.New(cfgMgr, store, log)
}

func runUpload() error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	interrupt := setupInterrupt()
	return e.Upload(context.Background(), interrupt)
}

func runDownload() error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	interrupt := setupInterrupt()
	return e.Download(context.Background(), interrupt)
}

func runSync() error {
	if err := runUpload(); err != nil {
		return err
	}
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	return e.Clean(context.Background(), backup.CleanOptions{Mode: backup.ModeHide})
}
