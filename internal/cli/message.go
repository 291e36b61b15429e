package cli

import (
	"fmt"
	"strings"

	"github.com/ayofemiade/ConvergsAI/internal/gwclient"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send text turns to a session",
	}

	cmd.AddCommand(newMessageSendCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		sessionID  string
		gatewayURL string
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to the agent and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if gatewayURL != "" {
				cfg.Call.GatewayURL = gatewayURL
			}
			client := gwclient.New(cfg.GatewayURL(), cfg.BackendTimeout())

			if sessionID == "" {
				created, err := client.CreateSession(cmd.Context(), cfg.Call.Prompt)
				if err != nil {
					return err
				}
				sessionID = created.SessionID
				fmt.Fprintf(cmd.ErrOrStderr(), "[session=%s]\n", sessionID)
			}

			resp, err := client.SendMessage(cmd.Context(), sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !resp.Success && resp.Error != "" {
				return fmt.Errorf("agent error: %s", resp.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
			if resp.Stage != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[stage=%s qualification=%s]\n", resp.Stage, formatQualification(resp.Qualification))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default: create a new session)")
	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "gateway base URL")

	return cmd
}
