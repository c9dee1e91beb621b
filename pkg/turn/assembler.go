package turn

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kcaldas/tradechat/pkg/protocol"
)

var (
	// ErrBlockClosed is reported for a delta that targets a stopped block.
	ErrBlockClosed = errors.New("delta for a closed content block")
	// ErrDuplicateBlock is reported when a block index is started twice.
	ErrDuplicateBlock = errors.New("content block started twice")
	// ErrUnknownBlock is reported when a stop arrives for a block never started.
	ErrUnknownBlock = errors.New("stop for an unknown content block")
	// ErrOrphanedDelta is reported when a turn ends with deltas whose block
	// never started.
	ErrOrphanedDelta = errors.New("deltas for a content block that never started")
)

// Block is a snapshot of one content block.
type Block struct {
	Index  int                `json:"index"`
	Kind   protocol.BlockKind `json:"kind"`
	Text   string             `json:"text"`
	Closed bool               `json:"closed"`
}

// Answer is the assembled text of a turn.
type Answer struct {
	// Text concatenates every non-thinking block in ascending index order.
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
	// Orphaned holds text buffered for blocks that never started. It is not
	// part of Text.
	Orphaned []Block `json:"orphaned,omitempty"`
}

type block struct {
	kind   protocol.BlockKind
	text   strings.Builder
	closed bool
}

// Assembler rebuilds content blocks from deltas that may arrive before the
// start of their block. Deltas for an unseen index are held back and
// replayed once the block starts.
type Assembler struct {
	blocks  map[int]*block
	pending map[int][]string
}

func NewAssembler() *Assembler {
	return &Assembler{
		blocks:  make(map[int]*block),
		pending: make(map[int][]string),
	}
}

// Start opens block index with an optional initial text.
func (a *Assembler) Start(index int, kind protocol.BlockKind, initial string) error {
	if _, ok := a.blocks[index]; ok {
		return fmt.Errorf("%w: index %d", ErrDuplicateBlock, index)
	}
	if kind == "" {
		kind = protocol.BlockText
	}
	b := &block{kind: kind}
	b.text.WriteString(initial)
	for _, text := range a.pending[index] {
		b.text.WriteString(text)
	}
	delete(a.pending, index)
	a.blocks[index] = b
	return nil
}

// Open starts block index unless it already exists.
func (a *Assembler) Open(index int, kind protocol.BlockKind) {
	if _, ok := a.blocks[index]; ok {
		return
	}
	_ = a.Start(index, kind, "")
}

// Delta appends text to block index, or buffers it when the block has not
// started yet.
func (a *Assembler) Delta(index int, text string) error {
	b, ok := a.blocks[index]
	if !ok {
		a.pending[index] = append(a.pending[index], text)
		return nil
	}
	if b.closed {
		return fmt.Errorf("%w: index %d", ErrBlockClosed, index)
	}
	b.text.WriteString(text)
	return nil
}

// Stop freezes block index.
func (a *Assembler) Stop(index int) error {
	b, ok := a.blocks[index]
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownBlock, index)
	}
	b.closed = true
	return nil
}

// PendingDeltas counts deltas still waiting for their block to start.
func (a *Assembler) PendingDeltas() int {
	n := 0
	for _, texts := range a.pending {
		n += len(texts)
	}
	return n
}

// Snapshot returns the assembled answer.
func (a *Assembler) Snapshot() Answer {
	indices := make([]int, 0, len(a.blocks))
	for index := range a.blocks {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	var answer Answer
	var text strings.Builder
	for _, index := range indices {
		b := a.blocks[index]
		answer.Blocks = append(answer.Blocks, Block{
			Index:  index,
			Kind:   b.kind,
			Text:   b.text.String(),
			Closed: b.closed,
		})
		if b.kind != protocol.BlockThinking {
			text.WriteString(b.text.String())
		}
	}
	answer.Text = text.String()
	answer.Orphaned = a.Orphans()
	return answer
}

// Orphans returns the buffered deltas of every block that has not started,
// one entry per index in ascending order.
func (a *Assembler) Orphans() []Block {
	if len(a.pending) == 0 {
		return nil
	}
	indices := make([]int, 0, len(a.pending))
	for index := range a.pending {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	orphans := make([]Block, 0, len(indices))
	for _, index := range indices {
		orphans = append(orphans, Block{
			Index: index,
			Kind:  protocol.BlockText,
			Text:  strings.Join(a.pending[index], ""),
		})
	}
	return orphans
}
