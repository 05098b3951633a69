package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "odindex",
	Short: "odindex serves a OneDrive drive as a password-protectable file index",
	Long: `odindex exposes a Microsoft OneDrive drive over HTTP: folder listing,
raw downloads, search and a sitemap, with per-directory password protection
driven by .password files stored in the drive itself.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
}
