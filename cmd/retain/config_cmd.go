package main

import (
	"fmt"

	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/spf13/cobra"
)

// configCmd implements `config -a <id> -k <key> -b <bucket> -l <list-path>
// -s <keyfile>` (§6): partial updates to the on-disk config, creating it if
// absent.
func configCmd() *cobra.Command {
	var (
		accountID string
		appKey    string
		bucket    string
		listPath  string
		keyFile   string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or update the agent configuration",
		Example: `  retain config -a my-key-id -k my-app-key -b my-bucket -l backup-list.txt
  retain config -s /secure/retain-rs-key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				cfg = &config.Config{}
				cfg.SetDefaults()
			}

			if accountID != "" {
				cfg.RemoteKeyID = accountID
			}
			if appKey != "" {
				cfg.RemoteKey = appKey
			}
			if bucket != "" {
				cfg.Bucket = bucket
			}
			if listPath != "" {
				cfg.BackupListPath = listPath
			}
			if keyFile != "" {
				cfg.KeyFilePath = keyFile
			}

			if err := cfg.Save(configFile); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("configuration written to %s\n", configFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&accountID, "account-id", "a", "", "Remote storage key id")
	cmd.Flags().StringVarP(&appKey, "key", "k", "", "Remote storage application key")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Remote bucket name")
	cmd.Flags().StringVarP(&listPath, "list", "l", "", "Backup list file path")
	cmd.Flags().StringVarP(&keyFile, "secret", "s", "", "Local symmetric keyfile path")

	return cmd
}
