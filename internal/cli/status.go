package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ayofemiade/ConvergsAI/internal/config"
	"github.com/ayofemiade/ConvergsAI/internal/gwclient"
	"github.com/ayofemiade/ConvergsAI/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and gateway health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ConvergsAI %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}
			if _, statErr := os.Stat(paths.Config); os.IsNotExist(statErr) {
				fmt.Fprintln(out, "Config:  not found (using defaults)")
			}

			fmt.Fprintf(out, "Gateway: port=%d bind=%s tls=%v rateLimit=%g/s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled, cfg.Gateway.RateLimit.RPS)
			fmt.Fprintf(out, "Backend: %s (timeout %s)\n", cfg.Backend.URL, cfg.BackendTimeout())

			creds := "configured"
			if cfg.LiveKit.APIKey == "" || cfg.LiveKit.APISecret == "" {
				creds = "missing"
			}
			fmt.Fprintf(out, "LiveKit: url=%s credentials=%s\n", cfg.LiveKit.URL, creds)
			fmt.Fprintf(out, "Call:    transport=%s mode=%s window=%s\n",
				cfg.Call.Transport, cfg.Call.Mode, cfg.InterimWindow())
			if cfg.Archive.Enabled {
				fmt.Fprintf(out, "Archive: %s\n", paths.ArchivePath(&cfg))
			} else {
				fmt.Fprintln(out, "Archive: disabled")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			health, err := gwclient.New(cfg.GatewayURL(), 3*time.Second).Health(ctx)
			if err != nil {
				fmt.Fprintf(out, "Health:  gateway unreachable at %s\n", cfg.GatewayURL())
			} else {
				backend := "unreachable"
				if health.Backend.Reachable {
					backend = strings.TrimSpace("reachable " + health.Backend.Status)
				}
				fmt.Fprintf(out, "Health:  %s (gateway %s, backend %s)\n", health.Status, health.Version, backend)
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
