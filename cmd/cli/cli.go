package cli

import (
	"errors"
	"fmt"
	"os"
)

// Execute runs the CLI with all commands
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errTurnCancelled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
