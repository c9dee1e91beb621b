package protocol

// eventDialect covers objects tagged with an "event" field. Every payload
// sits under "data"; adapters receive that inner object.
var eventDialect = []dialectRule{
	{value: "heartbeat", adapt: adaptHeartbeat},
	{value: "session_info", adapt: adaptSessionInfo},
	{value: "processing_status", adapt: adaptProcessingStatus},
	{value: "content_delta", adapt: adaptEventContentDelta},
	{value: "message_delta", adapt: adaptEventMessageDelta},
	{value: "error", adapt: adaptEventServerError},
	{value: "message_stop", adapt: adaptMessageStop},
}

// unwrapData lifts the "data" object of an event-dialect frame so the
// adapters can share field handling with the type dialect.
func unwrapData(adapt func(fields) (Event, error)) func(fields) (Event, error) {
	return func(f fields) (Event, error) {
		data, err := f.object("data")
		if err != nil {
			return nil, err
		}
		return adapt(data)
	}
}

func adaptSessionInfo(f fields) (Event, error) {
	var info SessionInfo
	var err error
	if info.SessionID, err = f.str("session_uuid"); err != nil {
		return nil, err
	}
	if err = f.decode("timestamp", &info.Timestamp); err != nil {
		return nil, err
	}
	userType, err := f.str("user_type")
	if err != nil {
		return nil, err
	}
	info.UserKind = parseUserKind(userType)
	if err = f.decode("recording_enabled", &info.RecordingEnabled); err != nil {
		return nil, err
	}
	return info, nil
}

// adaptEventContentDelta accepts the text either inline or inside a nested
// delta object. This dialect never sends a block start, so the delta opens
// its block.
func adaptEventContentDelta(f fields) (Event, error) {
	var index int
	if err := f.decode("index", &index); err != nil {
		return nil, err
	}
	var kind, text string
	var err error
	if f.has("delta") {
		delta, derr := f.object("delta")
		if derr != nil {
			return nil, derr
		}
		kind, text, err = deltaText(delta)
	} else {
		text, err = f.str("text")
		kind = "text_delta"
	}
	if err != nil {
		return nil, err
	}
	return ContentBlockDelta{Index: index, DeltaKind: kind, Text: text, OpensBlock: true}, nil
}

func adaptEventMessageDelta(f fields) (Event, error) {
	if f.has("delta") {
		return adaptTypeMessageDelta(f)
	}
	reason, err := f.str("stop_reason")
	if err != nil {
		return nil, err
	}
	return MessageDelta{StopReason: reason}, nil
}

func adaptEventServerError(f fields) (Event, error) {
	code, err := f.firstString("code", "type")
	if err != nil {
		return nil, err
	}
	msg, err := f.firstString("message", "error")
	if err != nil {
		return nil, err
	}
	return ProtocolError{ErrorKind: ServerDeclared, Code: code, Message: msg}, nil
}
