package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// depsFunc はPersistentPreRunEで構築したクライアントと設定を返す。
type depsFunc func() (*Client, *Config)

func newGetCmd(deps depsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <uid>",
		Short: "Show a player profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg := deps()

			var result ProfileResult
			if err := client.Get(cmd.Context(), userPath(args[0], ""), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newSyncCmd(deps depsFunc) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sync <uid>",
		Short: "Sync a player profile from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg := deps()

			var data []byte
			var err error
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s is not valid JSON", file)
			}

			var result SyncResult
			if err := client.Post(cmd.Context(), userPath(args[0], ""), json.RawMessage(data), &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Profile JSON file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newPurchaseCmd(deps depsFunc) *cobra.Command {
	var plan string

	cmd := &cobra.Command{
		Use:   "purchase <uid>",
		Short: "Activate a premium subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg := deps()

			req := map[string]string{"planId": plan}
			var result PurchaseResult
			if err := client.Post(cmd.Context(), userPath(args[0], "/purchase"), req, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&plan, "plan", "monthly", "Plan id (monthly, quarterly, yearly)")

	return cmd
}

func newCancelCmd(deps depsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <uid>",
		Short: "Cancel a premium subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg := deps()

			var result CancelResult
			if err := client.Post(cmd.Context(), userPath(args[0], "/cancel"), nil, &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newHealthCmd(deps depsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg := deps()

			var result HealthResult
			if err := client.Get(cmd.Context(), "/health", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}
