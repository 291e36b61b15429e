package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ayofemiade/ConvergsAI/internal/gwclient"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	var gatewayURL string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or remove backend sessions through the gateway",
	}
	cmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "gateway base URL")

	client := func() *gwclient.Client {
		cfg := loadConfig()
		if gatewayURL != "" {
			cfg.Call.GatewayURL = gatewayURL
		}
		return gwclient.New(cfg.GatewayURL(), cfg.BackendTimeout())
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Create a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			}
			created, err := client().CreateSession(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			return printJSON(cmd, created)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <session-id>",
		Short: "Show session state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := client().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
