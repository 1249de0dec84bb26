package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd はgrosyncctlのルートコマンドを生成する。
func NewRootCmd() *cobra.Command {
	cfg := DefaultConfig()
	var client *Client

	rootCmd := &cobra.Command{
		Use:   "grosyncctl",
		Short: "Operator CLI for the grosync profile sync API",
		Long: `grosyncctl calls the grosync HTTP API on behalf of a player.

Authenticated commands need a Firebase ID token whose subject is the target uid.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Output != "text" && cfg.Output != "json" {
				return fmt.Errorf("unsupported output format %q (text, json)", cfg.Output)
			}
			client = NewClient(cfg.ServerURL, cfg.Token)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: GROSYNC_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Firebase ID token (env: GROSYNC_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	deps := func() (*Client, *Config) { return client, cfg }

	rootCmd.AddCommand(newGetCmd(deps))
	rootCmd.AddCommand(newSyncCmd(deps))
	rootCmd.AddCommand(newPurchaseCmd(deps))
	rootCmd.AddCommand(newCancelCmd(deps))
	rootCmd.AddCommand(newHealthCmd(deps))

	return rootCmd
}

// Execute はルートコマンドを実行する。
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
