package cli

import (
	"github.com/spf13/cobra"

	"github.com/kcaldas/tradechat/internal/di"
	"github.com/kcaldas/tradechat/pkg/chat"
)

func newReplayCommand(root *rootFlags) *cobra.Command {
	var (
		flags     turnFlags
		chunkSize int
		message   string
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a captured event stream through the client",
		Long: `Replay feeds a captured server-sent event transcript through the same
decoding and aggregation as a live turn. No network access is made.

Examples:
  tradechat replay turn.sse
  tradechat replay --chunk-size 1 --json turn.sse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := di.Options{
				ConfigFile: root.configFile,
				ReplayFile: args[0],
				ChunkSize:  chunkSize,
			}
			return runTurn(cmd, opts, chat.NewRequest(message, ""), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "split the transcript into reads of this many bytes")
	cmd.Flags().StringVar(&message, "message", "replay", "message recorded as the request")

	return cmd
}
