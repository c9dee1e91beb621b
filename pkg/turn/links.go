package turn

import (
	"errors"
	"sort"

	"github.com/kcaldas/tradechat/pkg/protocol"
)

// ErrLinksSettled is reported for detail-link events after the sub-task ended.
var ErrLinksSettled = errors.New("detail links already settled")

// LinkState is the detail-link sub-state.
type LinkState int

const (
	LinksIdle LinkState = iota
	LinksAwaiting
	LinksComplete
	LinksFailed
)

func (s LinkState) String() string {
	switch s {
	case LinksIdle:
		return "idle"
	case LinksAwaiting:
		return "awaiting"
	case LinksComplete:
		return "complete"
	case LinksFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LinkSet is whatever the aggregator collected, complete or not.
type LinkSet struct {
	Expected  *int            `json:"expected,omitempty"`
	Links     []protocol.Link `json:"links"`
	Complete  bool            `json:"complete"`
	State     LinkState       `json:"-"`
	ErrorCode string          `json:"error_code,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
}

// LinkAggregator tracks the asynchronously prepared detail links. Reaching
// the announced count and an explicit complete frame are equivalent
// terminal signals; an error frame is terminal too and keeps the links
// gathered so far.
type LinkAggregator struct {
	state     LinkState
	expected  *int
	links     []protocol.Link
	errorCode string
	retryable bool
}

func NewLinkAggregator() *LinkAggregator {
	return &LinkAggregator{}
}

// Start announces the sub-task. A nil expected count means unknown.
func (l *LinkAggregator) Start(expected *int) error {
	if l.Terminal() {
		return ErrLinksSettled
	}
	l.state = LinksAwaiting
	if expected != nil {
		n := *expected
		l.expected = &n
	}
	if l.links == nil {
		l.links = make([]protocol.Link, 0, l.capacity())
	}
	l.checkCount()
	return nil
}

func (l *LinkAggregator) capacity() int {
	if l.expected != nil && *l.expected > 0 {
		return *l.expected
	}
	return 0
}

// Ready adds a link, keeping the list ordered by priority with ties in
// arrival order. A link arriving before Start implicitly starts the sub-task.
func (l *LinkAggregator) Ready(link protocol.Link) error {
	if l.Terminal() {
		return ErrLinksSettled
	}
	l.state = LinksAwaiting

	pos := sort.Search(len(l.links), func(i int) bool {
		return l.links[i].Priority > link.Priority
	})
	l.links = append(l.links, protocol.Link{})
	copy(l.links[pos+1:], l.links[pos:])
	l.links[pos] = link

	l.checkCount()
	return nil
}

// Complete marks the sub-task finished regardless of how many links arrived.
func (l *LinkAggregator) Complete() error {
	if l.Terminal() {
		return ErrLinksSettled
	}
	l.state = LinksComplete
	return nil
}

// Fail ends the sub-task, keeping partial results.
func (l *LinkAggregator) Fail(code string, retryable bool) error {
	if l.Terminal() {
		return ErrLinksSettled
	}
	l.state = LinksFailed
	l.errorCode = code
	l.retryable = retryable
	return nil
}

func (l *LinkAggregator) checkCount() {
	if l.expected != nil && len(l.links) >= *l.expected {
		l.state = LinksComplete
	}
}

func (l *LinkAggregator) State() LinkState {
	return l.state
}

func (l *LinkAggregator) Started() bool {
	return l.state != LinksIdle
}

func (l *LinkAggregator) Terminal() bool {
	return l.state == LinksComplete || l.state == LinksFailed
}

// Result returns the links collected so far.
func (l *LinkAggregator) Result() LinkSet {
	set := LinkSet{
		Links:     append([]protocol.Link(nil), l.links...),
		Complete:  l.state == LinksComplete,
		State:     l.state,
		ErrorCode: l.errorCode,
		Retryable: l.retryable,
	}
	if l.expected != nil {
		n := *l.expected
		set.Expected = &n
	}
	return set
}
