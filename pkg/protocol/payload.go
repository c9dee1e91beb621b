package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ParseError reports a single record whose payload could not be decoded.
// It never ends a turn.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errNotObject = errors.New("payload is not a JSON object")

// fields is a decoded JSON object with its values left raw until an adapter
// asks for them.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotObject
	}
	return f, nil
}

func (f fields) has(key string) bool {
	raw, ok := f[key]
	return ok && !isNull(raw)
}

func (f fields) decode(key string, v any) error {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func (f fields) str(key string) (string, error) {
	var s string
	err := f.decode(key, &s)
	return s, err
}

// object returns a nested object, or an empty one when the key is absent.
func (f fields) object(key string) (fields, error) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return fields{}, nil
	}
	nested, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return nested, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// firstString returns the first non-empty string among keys.
func (f fields) firstString(keys ...string) (string, error) {
	for _, key := range keys {
		s, err := f.str(key)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}
