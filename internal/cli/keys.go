package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"api-keys"},
		Short:   "Manage your API keys",
	}
	cmd.AddCommand(
		newKeysListCmd(a),
		newKeysCreateCmd(a),
		newKeysDeleteCmd(a),
	)
	return cmd
}

func newKeysListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.client.ListAPIKeys(cmd.Context())
			if err != nil {
				return fmt.Errorf("list api keys: %w", err)
			}
			if len(keys) == 0 && a.flagOutput == outputTable {
				fmt.Fprintln(cmd.OutOrStdout(), "No API keys found.")
				return nil
			}
			now := time.Now()
			return a.print(cmd.OutOrStdout(), keys, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "KEY\tEXPIRES\tSTATUS")
				for _, k := range keys {
					status := "active"
					if k.Expired(now) {
						status = "expired"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Key, ago(k.Expiration), status)
				}
			})
		},
	}
}

func newKeysCreateCmd(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				return fmt.Errorf("--expires must be positive")
			}
			key, err := a.client.CreateAPIKey(cmd.Context(), time.Now().Add(ttl).UTC())
			if err != nil {
				return fmt.Errorf("create api key: %w", err)
			}
			return a.print(cmd.OutOrStdout(), key, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Key:\t%s\n", key.Key)
				fmt.Fprintf(tw, "Expires:\t%s (%s)\n", key.Expiration.Format(time.RFC3339), ago(key.Expiration))
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "expires", 30*24*time.Hour, "Lifetime of the key")
	return cmd
}

func newKeysDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteAPIKey(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted API key")
			return nil
		},
	}
}
