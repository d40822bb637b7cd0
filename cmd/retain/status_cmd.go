package main

import (
	"fmt"

	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/spf13/cobra"
)

// statusCmd implements `status` (§6): print the configuration and whether
// it currently validates.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print configuration and validity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fmt.Printf("config file:        %s\n", cfg.Path())
			fmt.Printf("remote key id:       %s\n", cfg.RemoteKeyID)
			fmt.Printf("bucket:              %s\n", cfg.Bucket)
			fmt.Printf("backup list:         %s\n", cfg.BackupListPath)
			fmt.Printf("encryption enabled:  %t\n", cfg.EncryptionEnabled)
			fmt.Printf("keyfile:             %s\n", cfg.KeyFilePath)
			fmt.Printf("nonce allocation:    %s\n", cfg.NonceAlloc.String())

			if err := cfg.Validate(); err != nil {
				fmt.Printf("status:              INVALID (%v)\n", err)
				return nil
			}
			fmt.Println("status:              valid")
			return nil
		},
	}
}
