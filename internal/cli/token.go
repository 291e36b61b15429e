package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ayofemiade/ConvergsAI/internal/gateway"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		identity string
		decode   bool
	)

	cmd := &cobra.Command{
		Use:   "token <room>",
		Short: "Mint a room join token from the configured credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			issuer := gateway.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL, cfg.TokenTTL())
			tok, err := issuer.Issue(args[0], identity)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if !decode {
				return enc.Encode(tok)
			}

			claims, err := gateway.ParseToken(tok.Token, cfg.LiveKit.APISecret)
			if err != nil {
				return err
			}
			if err := enc.Encode(tok); err != nil {
				return err
			}
			fmt.Fprintln(out, "claims:")
			return enc.Encode(claims)
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "participant identity (default: generated)")
	cmd.Flags().BoolVar(&decode, "decode", false, "also print the verified token claims")
	return cmd
}
