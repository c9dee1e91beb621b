// Package protocol defines the canonical stream events of a chat turn and
// classifies decoded JSON payloads into them.
//
// The backend speaks two dialects: objects tagged with a "type" field and
// objects tagged with an "event" field carrying their payload under "data".
// Both are mapped into the same closed set of Event variants here so nothing
// downstream has to know which dialect a frame arrived in.
package protocol

// Kind identifies an Event variant.
type Kind int

const (
	KindSessionInfo Kind = iota + 1
	KindProcessingStatus
	KindMessageStart
	KindContentBlockStart
	KindContentBlockDelta
	KindWebSearchResults
	KindContentBlockStop
	KindMessageDelta
	KindMessageStop
	KindDetailLinksStart
	KindDetailLinkReady
	KindDetailLinksComplete
	KindDetailLinksError
	KindMemberRecordSaved
	KindHeartbeat
	KindProtocolError
)

var kindNames = map[Kind]string{
	KindSessionInfo:         "session_info",
	KindProcessingStatus:    "processing_status",
	KindMessageStart:        "message_start",
	KindContentBlockStart:   "content_block_start",
	KindContentBlockDelta:   "content_block_delta",
	KindWebSearchResults:    "web_search_results",
	KindContentBlockStop:    "content_block_stop",
	KindMessageDelta:        "message_delta",
	KindMessageStop:         "message_stop",
	KindDetailLinksStart:    "detail_links_start",
	KindDetailLinkReady:     "detail_link_ready",
	KindDetailLinksComplete: "detail_links_complete",
	KindDetailLinksError:    "detail_links_error",
	KindMemberRecordSaved:   "member_record_saved",
	KindHeartbeat:           "heartbeat",
	KindProtocolError:       "protocol_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a sealed interface over the stream event variants. The unexported
// marker keeps the set closed so a type switch in a consumer covers it.
type Event interface {
	Kind() Kind
	event()
}

// UserKind tells members and guests apart.
type UserKind int

const (
	UserUnknown UserKind = iota
	UserMember
	UserGuest
)

func (u UserKind) String() string {
	switch u {
	case UserMember:
		return "member"
	case UserGuest:
		return "guest"
	default:
		return "unknown"
	}
}

func parseUserKind(s string) UserKind {
	switch s {
	case "member", "MEMBER", "Member":
		return UserMember
	case "guest", "GUEST", "Guest":
		return UserGuest
	default:
		return UserUnknown
	}
}

// BlockKind distinguishes visible answer text from reasoning text.
type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockThinking BlockKind = "thinking"
)

// SessionInfo describes the session the turn runs in.
type SessionInfo struct {
	SessionID        string
	Timestamp        float64
	UserKind         UserKind
	RecordingEnabled bool
}

// ProcessingStatus reports a pipeline stage such as intent analysis or search.
type ProcessingStatus struct {
	Stage    string
	Progress float64
	Message  string
}

type MessageStart struct {
	MessageID string
}

type ContentBlockStart struct {
	Index     int
	BlockKind BlockKind
	Text      string
}

// ContentBlockDelta appends Text to block Index. OpensBlock is set by
// dialects that never announce a block before streaming into it.
type ContentBlockDelta struct {
	Index      int
	DeltaKind  string
	Text       string
	OpensBlock bool
}

// SearchItem is one web search citation.
type SearchItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type WebSearchResults struct {
	Items []SearchItem
}

type ContentBlockStop struct {
	Index int
}

type MessageDelta struct {
	StopReason string
}

type MessageStop struct{}

// DetailLinksStart opens the detail-link sub-task. ExpectedCount is nil when
// the server did not announce how many links to expect.
type DetailLinksStart struct {
	ExpectedCount       *int
	EstimatedPrepMillis float64
}

// Link is a contextual follow-up page prepared alongside the answer.
type Link struct {
	Priority    int    `json:"priority"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Ready       bool   `json:"ready"`
}

type DetailLinkReady struct {
	Link Link
}

type DetailLinksComplete struct {
	PreparedCount   int
	TotalPrepMillis float64
}

type DetailLinksError struct {
	Code      string
	Message   string
	Retryable bool
}

type MemberRecordSaved struct {
	MessageCount int
}

type Heartbeat struct {
	Timestamp float64
}

// ProtocolErrorKind separates unknown payload shapes from errors the server
// declared itself.
type ProtocolErrorKind int

const (
	UnrecognizedShape ProtocolErrorKind = iota + 1
	ServerDeclared
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case UnrecognizedShape:
		return "unrecognized_shape"
	case ServerDeclared:
		return "server_declared"
	default:
		return "unknown"
	}
}

type ProtocolError struct {
	ErrorKind ProtocolErrorKind
	Code      string
	Message   string
}

func (SessionInfo) Kind() Kind         { return KindSessionInfo }
func (ProcessingStatus) Kind() Kind    { return KindProcessingStatus }
func (MessageStart) Kind() Kind        { return KindMessageStart }
func (ContentBlockStart) Kind() Kind   { return KindContentBlockStart }
func (ContentBlockDelta) Kind() Kind   { return KindContentBlockDelta }
func (WebSearchResults) Kind() Kind    { return KindWebSearchResults }
func (ContentBlockStop) Kind() Kind    { return KindContentBlockStop }
func (MessageDelta) Kind() Kind        { return KindMessageDelta }
func (MessageStop) Kind() Kind         { return KindMessageStop }
func (DetailLinksStart) Kind() Kind    { return KindDetailLinksStart }
func (DetailLinkReady) Kind() Kind     { return KindDetailLinkReady }
func (DetailLinksComplete) Kind() Kind { return KindDetailLinksComplete }
func (DetailLinksError) Kind() Kind    { return KindDetailLinksError }
func (MemberRecordSaved) Kind() Kind   { return KindMemberRecordSaved }
func (Heartbeat) Kind() Kind           { return KindHeartbeat }
func (ProtocolError) Kind() Kind       { return KindProtocolError }

func (SessionInfo) event()         {}
func (ProcessingStatus) event()    {}
func (MessageStart) event()        {}
func (ContentBlockStart) event()   {}
func (ContentBlockDelta) event()   {}
func (WebSearchResults) event()    {}
func (ContentBlockStop) event()    {}
func (MessageDelta) event()        {}
func (MessageStop) event()         {}
func (DetailLinksStart) event()    {}
func (DetailLinkReady) event()     {}
func (DetailLinksComplete) event() {}
func (DetailLinksError) event()    {}
func (MemberRecordSaved) event()   {}
func (Heartbeat) event()           {}
func (ProtocolError) event()       {}

var (
	_ Event = SessionInfo{}
	_ Event = ProcessingStatus{}
	_ Event = MessageStart{}
	_ Event = ContentBlockStart{}
	_ Event = ContentBlockDelta{}
	_ Event = WebSearchResults{}
	_ Event = ContentBlockStop{}
	_ Event = MessageDelta{}
	_ Event = MessageStop{}
	_ Event = DetailLinksStart{}
	_ Event = DetailLinkReady{}
	_ Event = DetailLinksComplete{}
	_ Event = DetailLinksError{}
	_ Event = MemberRecordSaved{}
	_ Event = Heartbeat{}
	_ Event = ProtocolError{}
)
