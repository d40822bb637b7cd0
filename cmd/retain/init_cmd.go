package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/coldvault/coldvault-agent/internal/backup"
	"github.com/coldvault/coldvault-agent/internal/colorutil"
	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/key"
	"github.com/coldvault/coldvault-agent/internal/manifest"
	"github.com/coldvault/coldvault-agent/internal/storage"
	"github.com/spf13/cobra"
)

// initCmd implements `init` (§6): an interactive first-run wizard. It
// refuses to overwrite an existing keyfile, warns (but does not refuse)
// if a manifest is already present, authenticates against the configured
// credentials, lets the operator confirm the bucket, and produces an
// empty backup-list file and a fresh manifest.
func initCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively initialize a new backup configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(endpoint)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "https://api.backblazeb2.com", "Object-storage API root")
	return cmd
}

func runInit(endpoint string) error {
	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	cfg, err := config.Load(configFile)
	if err != nil {
		colorutil.Status(colorutil.Yellow, "no existing configuration found, starting fresh")
		cfg = &config.Config{}
		cfg.SetDefaults()
	}

	if cfg.KeyFilePath == "" {
		cfg.KeyFilePath = config.DefaultKeyFilePath
	}
	if _, err := os.Stat(cfg.KeyFilePath); err == nil {
		return fmt.Errorf("init: refusing to run, keyfile %s already exists", cfg.KeyFilePath)
	}
	if _, err := os.Stat(backup.ManifestPath); err == nil {
		colorutil.Statusf(colorutil.Yellow, "warning: %s already exists and will not be overwritten until backup runs", backup.ManifestPath)
	}

	cfg.RemoteKeyID = prompt(reader, "Remote key id", cfg.RemoteKeyID)
	cfg.RemoteKey = prompt(reader, "Remote application key", cfg.RemoteKey)

	client := storage.NewHTTPClient(endpoint)
	if err := client.Authorize(ctx, cfg.RemoteKeyID, cfg.RemoteKey); err != nil {
		return fmt.Errorf("init: authenticate: %w", err)
	}
	colorutil.Status(colorutil.Green, "authenticated")

	buckets, err := client.ListBuckets(ctx, "")
	if err != nil {
		return fmt.Errorf("init: list buckets: %w", err)
	}
	fmt.Println("Available buckets:")
	for _, b := range buckets {
		fmt.Printf("  - %s\n", b.Name)
	}
	cfg.Bucket = prompt(reader, "Bucket to use", cfg.Bucket)

	cfg.BackupListPath = prompt(reader, "Backup list file path", cfg.BackupListPath)
	if _, err := os.Stat(cfg.BackupListPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.BackupListPath, nil, 0644); err != nil {
			return fmt.Errorf("init: create backup list: %w", err)
		}
		colorutil.Statusf(colorutil.Green, "created empty backup list at %s", cfg.BackupListPath)
	}

	encAnswer := strings.ToLower(prompt(reader, "Enable encryption? (y/n)", "y"))
	cfg.EncryptionEnabled = encAnswer == "y" || encAnswer == "yes"

	if err := cfg.Save(configFile); err != nil {
		return fmt.Errorf("init: save config: %w", err)
	}
	colorutil.Statusf(colorutil.Green, "configuration saved to %s", configFile)

	if cfg.EncryptionEnabled {
		if err := key.Generate(cfg.KeyFilePath); err != nil {
			return fmt.Errorf("init: generate key: %w", err)
		}
		colorutil.Statusf(colorutil.Green, "generated keyfile at %s; back this up separately from your backups", cfg.KeyFilePath)
	}

	if _, err := os.Stat(backup.ManifestPath); os.IsNotExist(err) {
		m := manifest.New(cfg.EncryptionEnabled)
		if err := m.Save(backup.ManifestPath); err != nil {
			return fmt.Errorf("init: create manifest: %w", err)
		}
		colorutil.Statusf(colorutil.Green, "created empty manifest at %s", backup.ManifestPath)
	}

	colorutil.Status(colorutil.Green, "initialization complete")
	return nil
}

func prompt(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}
