// Command retain is the operator-facing CLI for the encrypted incremental
// backup agent: configuration management, key/backup-list initialization,
// one-off encryption, and the upload/download/clean backup operations
// (§6).
package main

import (
	"fmt"
	"os"

	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/version"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:     "retain",
		Short:   "Encrypted incremental backup agent",
		Long:    `retain backs up a set of local files to object storage, encrypting each one with a stream cipher under a single local key before it ever leaves the machine.`,
		Version: version.FullVersion(),
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigPath, "Configuration file path")

	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(encryptionCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(cleanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
