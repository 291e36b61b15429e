package cli

import (
	"io"

	"github.com/ayofemiade/ConvergsAI/internal/config"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths     config.Paths
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convergs",
		Short: "ConvergsAI voice session gateway and call client",
		Long:  "ConvergsAI brokers realtime voice sessions between callers and an AI sales or support agent.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			log, logCloser, err = logging.Open(level, cfg.Logging.ConsoleStyle, cfg.Logging.File)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.convergs/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newGatewayCmd())
	cmd.AddCommand(newCallCmd())
	cmd.AddCommand(newCallsCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newMessageCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads the active config file, falling back to defaults when it
// cannot be read.
func loadConfig() config.Config {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		log.Warn().Err(err).Str("path", paths.Config).Msg("config unreadable, using defaults")
		return config.Defaults()
	}
	return cfg
}
