package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kcaldas/tradechat/pkg/protocol"
	"github.com/kcaldas/tradechat/pkg/turn"
)

type printerOptions struct {
	showThinking bool
	jsonOutput   bool
	progress     bool
}

// printer renders a turn as it streams. Deltas go to out, progress to errOut.
// It runs on the turn goroutine until the turn ends and on the command
// goroutine afterwards.
type printer struct {
	out    io.Writer
	errOut io.Writer
	opts   printerOptions

	blocks  map[int]protocol.BlockKind
	printed bool
}

func newPrinter(out, errOut io.Writer, opts printerOptions) *printer {
	return &printer{
		out:    out,
		errOut: errOut,
		opts:   opts,
		blocks: make(map[int]protocol.BlockKind),
	}
}

func (p *printer) HandleEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.ProcessingStatus:
		if p.opts.progress && !p.opts.jsonOutput {
			fmt.Fprintf(p.errOut, "… %s %s\n", e.Stage, e.Message)
		}
	case protocol.ContentBlockStart:
		p.blocks[e.Index] = e.BlockKind
		p.write(e.Index, e.Text)
	case protocol.ContentBlockDelta:
		if _, ok := p.blocks[e.Index]; !ok {
			p.blocks[e.Index] = deltaBlockKind(e.DeltaKind)
		}
		p.write(e.Index, e.Text)
	}
}

// HandleWarning does nothing: warnings are already logged by the client.
func (p *printer) HandleWarning(error) {}

func (p *printer) write(index int, text string) {
	if text == "" || p.opts.jsonOutput {
		return
	}
	if p.blocks[index] == protocol.BlockThinking && !p.opts.showThinking {
		return
	}
	fmt.Fprint(p.out, text)
	p.printed = true
}

func deltaBlockKind(deltaKind string) protocol.BlockKind {
	if deltaKind == "thinking_delta" {
		return protocol.BlockThinking
	}
	return protocol.BlockText
}

type jsonOutcome struct {
	TurnID string `json:"turn_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	turn.Outcome
}

// finish prints the parts of the outcome that are only known at the end.
func (p *printer) finish(turnID string, out turn.Outcome) error {
	if p.opts.jsonOutput {
		doc := jsonOutcome{TurnID: turnID, Status: out.Status.String(), Outcome: out}
		if out.Err != nil {
			doc.Error = out.Err.Error()
		}
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	if p.printed {
		fmt.Fprintln(p.out)
	}
	if len(out.Citations) > 0 {
		fmt.Fprintln(p.out, "\nSources:")
		for _, c := range out.Citations {
			fmt.Fprintf(p.out, "  - %s (%s)\n", c.Title, c.URL)
		}
	}
	if len(out.Links.Links) > 0 {
		fmt.Fprintln(p.out, "\nRelated:")
		for i, l := range out.Links.Links {
			fmt.Fprintf(p.out, "  %d. %s <%s>\n", i+1, strings.TrimSpace(l.Title), l.URL)
		}
	}
	if out.Session.SessionID != "" && p.opts.progress {
		fmt.Fprintf(p.errOut, "session: %s\n", out.Session.SessionID)
	}
	return nil
}
