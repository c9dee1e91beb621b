package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tradechat/internal/di"
	"github.com/kcaldas/tradechat/pkg/chat"
)

func newAskCommand(root *rootFlags) *cobra.Command {
	var (
		flags     turnFlags
		sessionID string
		locale    string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Ask a trade question and stream the answer",
		Long: `Ask sends one question and prints the answer as it streams in.

Without arguments the question is read from stdin when it is piped.

Examples:
  tradechat ask "What are the current steel tariffs into the EU?"
  echo "HS code for frozen shrimp" | tradechat ask --json
  tradechat ask --session 3f2c... "and for Japan?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := readMessage(cmd, args)
			if err != nil {
				return err
			}

			opts := di.Options{
				ConfigFile:     root.configFile,
				Locale:         locale,
				IdleTimeout:    timeout,
				IdleTimeoutSet: cmd.Flags().Changed("timeout"),
			}
			return runTurn(cmd, opts, chat.NewRequest(message, sessionID), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().StringVar(&locale, "locale", "", "answer locale, e.g. en-US")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "idle timeout between chunks (0 disables)")

	return cmd
}

// readMessage joins the arguments, falling back to piped stdin.
func readMessage(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if !hasStdinInput(cmd.InOrStdin()) {
		return "", errors.New("no message given: pass it as arguments or pipe it on stdin")
	}
	message, err := readStdinInput(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("no message given on stdin")
	}
	return message, nil
}
