package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/kcaldas/tradechat/internal/di"
	"github.com/kcaldas/tradechat/pkg/chat"
	"github.com/kcaldas/tradechat/pkg/events"
	"github.com/kcaldas/tradechat/pkg/logging"
	"github.com/kcaldas/tradechat/pkg/turn"
)

var errTurnCancelled = errors.New("turn cancelled")

// turnFlags are shared by ask and replay.
type turnFlags struct {
	showThinking bool
	jsonOutput   bool
	copyAnswer   bool
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.showThinking, "show-thinking", false, "print thinking blocks along with the answer")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the final outcome as JSON instead of streaming text")
	cmd.Flags().BoolVar(&f.copyAnswer, "copy", false, "copy the final answer to the clipboard")
}

// runTurn sends one request and prints it until the turn ends. Ctrl-C
// cancels the turn.
func runTurn(cmd *cobra.Command, opts di.Options, req chat.Request, flags turnFlags) error {
	app, err := di.InitializeApp(opts)
	if err != nil {
		return err
	}
	defer app.Bus.Shutdown()

	logger := logging.NewComponentLogger("cli")
	app.Bus.Subscribe(events.TopicTurnStarted, func(ev interface{}) {
		if started, ok := ev.(events.TurnStartedEvent); ok {
			logger.Debug("turn accepted by server", "turn_id", started.TurnID)
		}
	})

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt)
	defer stop()

	p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), printerOptions{
		showThinking: flags.showThinking,
		jsonOutput:   flags.jsonOutput,
		progress:     isTerminal(cmd.ErrOrStderr()),
	})

	t, err := app.Client.Start(ctx, req, app.Credentials, p)
	if err != nil {
		return fmt.Errorf("failed to start chat: %w", err)
	}
	out := t.Wait()

	if err := p.finish(t.ID(), out); err != nil {
		return err
	}
	if flags.copyAnswer && out.Answer.Text != "" {
		if err := clipboard.WriteAll(out.Answer.Text); err != nil {
			logger.Warn("could not copy answer to clipboard", "error", err)
		}
	}
	return outcomeError(out)
}

func outcomeError(out turn.Outcome) error {
	switch out.Status {
	case turn.StatusCompleted:
		return nil
	case turn.StatusCancelled:
		return errTurnCancelled
	default:
		return fmt.Errorf("chat failed: %w", out.Err)
	}
}

// contextOrBackground keeps commands runnable when executed without a
// context, as cobra does for Execute.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
