package protocol

import "encoding/json"

// dialectRule maps one discriminant value to a canonical event. requires
// lists fields that must be present for the rule to apply, which is how two
// shapes sharing a discriminant value are told apart.
type dialectRule struct {
	value    string
	requires []string
	adapt    func(f fields) (Event, error)
}

// typeDialect covers objects tagged with a "type" field: the message
// streaming frames plus the detail-link frames. Order matters where values
// repeat.
var typeDialect = []dialectRule{
	{value: "message_start", adapt: adaptMessageStart},
	{value: "content_block_start", requires: []string{"index"}, adapt: adaptContentBlockStart},
	{value: "content_block_delta", requires: []string{"index"}, adapt: adaptContentBlockDelta},
	{value: "content_block_stop", requires: []string{"index"}, adapt: adaptContentBlockStop},
	{value: "message_delta", adapt: adaptTypeMessageDelta},
	{value: "message_stop", adapt: adaptMessageStop},
	{value: "processing_status", adapt: adaptProcessingStatus},
	{value: "web_search_results", adapt: adaptWebSearchResults},
	{value: "member_record_saved", adapt: adaptMemberRecordSaved},
	{value: "heartbeat", adapt: adaptHeartbeat},
	{value: "start", adapt: adaptLinksStart},
	{value: "button", requires: []string{"url"}, adapt: adaptLinkReady},
	{value: "complete", adapt: adaptLinksComplete},
	{value: "error", requires: []string{"errorCode"}, adapt: adaptLinksError},
	{value: "error", requires: []string{"error"}, adapt: adaptTypeServerError},
}

func adaptMessageStart(f fields) (Event, error) {
	msg, err := f.object("message")
	if err != nil {
		return nil, err
	}
	id, err := msg.str("id")
	if err != nil {
		return nil, err
	}
	return MessageStart{MessageID: id}, nil
}

func adaptContentBlockStart(f fields) (Event, error) {
	var index int
	if err := f.decode("index", &index); err != nil {
		return nil, err
	}
	block, err := f.object("content_block")
	if err != nil {
		return nil, err
	}
	kind, err := block.str("type")
	if err != nil {
		return nil, err
	}
	text, err := block.firstString("text", "thinking")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = string(BlockText)
	}
	return ContentBlockStart{Index: index, BlockKind: BlockKind(kind), Text: text}, nil
}

func adaptContentBlockDelta(f fields) (Event, error) {
	var index int
	if err := f.decode("index", &index); err != nil {
		return nil, err
	}
	delta, err := f.object("delta")
	if err != nil {
		return nil, err
	}
	kind, text, err := deltaText(delta)
	if err != nil {
		return nil, err
	}
	return ContentBlockDelta{Index: index, DeltaKind: kind, Text: text}, nil
}

// deltaText reads the text carried by a delta object. The field holding it
// depends on the delta type.
func deltaText(delta fields) (kind, text string, err error) {
	kind, err = delta.str("type")
	if err != nil {
		return "", "", err
	}
	switch kind {
	case "thinking_delta":
		text, err = delta.str("thinking")
	case "input_json_delta":
		text, err = delta.str("partial_json")
	default:
		text, err = delta.firstString("text", "thinking", "partial_json")
	}
	return kind, text, err
}

func adaptContentBlockStop(f fields) (Event, error) {
	var index int
	if err := f.decode("index", &index); err != nil {
		return nil, err
	}
	return ContentBlockStop{Index: index}, nil
}

func adaptTypeMessageDelta(f fields) (Event, error) {
	delta, err := f.object("delta")
	if err != nil {
		return nil, err
	}
	reason, err := delta.str("stop_reason")
	if err != nil {
		return nil, err
	}
	return MessageDelta{StopReason: reason}, nil
}

func adaptMessageStop(fields) (Event, error) {
	return MessageStop{}, nil
}

func adaptProcessingStatus(f fields) (Event, error) {
	var status ProcessingStatus
	var err error
	if status.Stage, err = f.str("stage"); err != nil {
		return nil, err
	}
	if err = f.decode("progress", &status.Progress); err != nil {
		return nil, err
	}
	if status.Message, err = f.str("message"); err != nil {
		return nil, err
	}
	return status, nil
}

func adaptWebSearchResults(f fields) (Event, error) {
	var items []SearchItem
	if err := f.decode("results", &items); err != nil {
		return nil, err
	}
	if items == nil {
		if err := f.decode("items", &items); err != nil {
			return nil, err
		}
	}
	return WebSearchResults{Items: items}, nil
}

func adaptMemberRecordSaved(f fields) (Event, error) {
	var saved MemberRecordSaved
	if err := f.decode("message_count", &saved.MessageCount); err != nil {
		return nil, err
	}
	if !f.has("message_count") {
		if err := f.decode("messageCount", &saved.MessageCount); err != nil {
			return nil, err
		}
	}
	return saved, nil
}

func adaptHeartbeat(f fields) (Event, error) {
	var hb Heartbeat
	if err := f.decode("timestamp", &hb.Timestamp); err != nil {
		return nil, err
	}
	return hb, nil
}

func adaptLinksStart(f fields) (Event, error) {
	var start DetailLinksStart
	if f.has("buttonsCount") {
		var count int
		if err := f.decode("buttonsCount", &count); err != nil {
			return nil, err
		}
		start.ExpectedCount = &count
	}
	if err := f.decode("estimatedPreparationTime", &start.EstimatedPrepMillis); err != nil {
		return nil, err
	}
	return start, nil
}

func adaptLinkReady(f fields) (Event, error) {
	var link Link
	var err error
	if err = f.decode("priority", &link.Priority); err != nil {
		return nil, err
	}
	if link.URL, err = f.str("url"); err != nil {
		return nil, err
	}
	if link.Title, err = f.str("title"); err != nil {
		return nil, err
	}
	if link.Description, err = f.str("description"); err != nil {
		return nil, err
	}
	if link.Kind, err = f.firstString("kind", "category"); err != nil {
		return nil, err
	}
	link.Ready = true
	if f.has("isReady") {
		if err = f.decode("isReady", &link.Ready); err != nil {
			return nil, err
		}
	}
	return DetailLinkReady{Link: link}, nil
}

func adaptLinksComplete(f fields) (Event, error) {
	var done DetailLinksComplete
	if err := f.decode("buttonsGenerated", &done.PreparedCount); err != nil {
		return nil, err
	}
	if err := f.decode("totalPreparationTime", &done.TotalPrepMillis); err != nil {
		return nil, err
	}
	return done, nil
}

func adaptLinksError(f fields) (Event, error) {
	var linkErr DetailLinksError
	var err error
	if linkErr.Code, err = f.str("errorCode"); err != nil {
		return nil, err
	}
	if linkErr.Message, err = f.str("errorMessage"); err != nil {
		return nil, err
	}
	if linkErr.Retryable, err = retryable(f["retryInfo"]); err != nil {
		return nil, err
	}
	return linkErr, nil
}

// retryable accepts retryInfo either as a bare boolean or as an object with
// a retryable flag.
func retryable(raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return false, nil
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag, nil
	}
	info, err := decodeFields(raw)
	if err != nil {
		return false, err
	}
	if err := info.decode("retryable", &flag); err != nil {
		return false, err
	}
	return flag, nil
}

func adaptTypeServerError(f fields) (Event, error) {
	body, err := f.object("error")
	if err != nil {
		return nil, err
	}
	code, err := body.str("type")
	if err != nil {
		return nil, err
	}
	msg, err := body.str("message")
	if err != nil {
		return nil, err
	}
	return ProtocolError{ErrorKind: ServerDeclared, Code: code, Message: msg}, nil
}
