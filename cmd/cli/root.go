package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tradechat/pkg/config"
	"github.com/kcaldas/tradechat/pkg/logging"
	"github.com/kcaldas/tradechat/pkg/version"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	envFiles   []string
	verbose    bool
	quiet      bool
}

// NewRootCommand builds the tradechat command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "tradechat",
		Short:         "Streaming client for the trade information chat service",
		Long:          `tradechat sends questions to the trade information chat service and prints the answer as it streams in.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Answers go to stdout, so only warnings reach stderr by default.
			level := slog.LevelWarn
			switch {
			case flags.quiet:
				level = slog.LevelError
			case flags.verbose:
				level = slog.LevelDebug
			}
			logging.SetGlobalLogger(logging.NewLogger(logging.Config{
				Level:  level,
				Format: logging.FormatText,
				Output: cmd.ErrOrStderr(),
			}))

			if err := config.LoadDotEnv(flags.envFiles...); err != nil {
				return fmt.Errorf("failed to load environment: %w", err)
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("tradechat version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", config.DefaultConfigPath, "YAML settings file")
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output (debug level)")
	cmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "quiet output (errors only)")

	cmd.AddCommand(
		newAskCommand(flags),
		newReplayCommand(flags),
		newVersionCommand(),
	)
	return cmd
}
