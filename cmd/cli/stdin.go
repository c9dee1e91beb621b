package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// hasStdinInput checks if data is available from stdin (pipe or redirect).
// Readers that are not files, as used in tests, always count as piped.
func hasStdinInput(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// readStdinInput reads all available input from stdin
func readStdinInput(in io.Reader) (string, error) {
	var content strings.Builder
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		content.WriteString(scanner.Text())
		content.WriteString("\n")
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}

	return strings.TrimSuffix(content.String(), "\n"), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
