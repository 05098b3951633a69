package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvbbnn00/onedrive-index/config"
	"github.com/vvbbnn00/onedrive-index/drive"
	"github.com/vvbbnn00/onedrive-index/kv"
)

var tokenTTL int

var tokenCmd = &cobra.Command{
	Use:   "token <access-token>",
	Short: "Store a Microsoft Graph access token in the kv store",
	Long: `Stores an OAuth access token for the drive API. The server reads the
token from the kv store on every upstream request, so a refresher process can
run this command periodically without restarting the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store, err := openStore(cfg.KV)
		if err != nil {
			return fmt.Errorf("opening kv store: %w", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		source := drive.NewKVTokenSource(kv.WithPrefix(store, cfg.KV.Prefix))
		if err := source.Store(ctx, args[0], tokenTTL); err != nil {
			return fmt.Errorf("storing access token: %w", err)
		}

		fmt.Printf("Access token stored (expires in %ds)\n", tokenTTL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().IntVar(&tokenTTL, "ttl", 3600, "Token lifetime in seconds")
}
