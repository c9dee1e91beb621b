// Package sse splits a server-sent event byte stream into discrete records.
//
// The decoder buffers raw bytes and only converts a record to text once the
// blank line terminating it has been seen, so chunk boundaries that fall
// inside a multi-byte character never corrupt the payload.
package sse

import (
	"bytes"
	"errors"
	"fmt"
)

// DefaultMaxFrameSize bounds a single buffered record when no limit is configured.
const DefaultMaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when a record grows past the decoder's limit
// before its terminator arrives.
var ErrFrameTooLarge = errors.New("sse: frame exceeds maximum size")

// Frame is one complete record.
type Frame struct {
	Event string
	ID    string
	Data  []byte
}

// String returns the record payload as text.
func (f Frame) String() string {
	return string(f.Data)
}

// Decoder turns successive chunks into frames. It is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	scanFrom int
	maxSize  int
}

// NewDecoder creates a decoder. A non-positive maxFrameSize selects DefaultMaxFrameSize.
func NewDecoder(maxFrameSize int) *Decoder {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Decoder{maxSize: maxFrameSize}
}

// Buffered reports how many bytes are held waiting for a record terminator.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends chunk to the buffer and returns every frame it completed, in
// stream order. Frames decoded before an ErrFrameTooLarge are still returned.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	offset := 0
	for {
		end, next, resume := nextRecord(d.buf[offset:], d.scanFrom)
		if end < 0 {
			d.scanFrom = resume
			break
		}
		if end > d.maxSize {
			d.reset()
			return frames, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, end, d.maxSize)
		}
		if frame, ok := parseRecord(d.buf[offset : offset+end]); ok {
			frames = append(frames, frame)
		}
		offset += next
		d.scanFrom = 0
	}

	if offset > 0 {
		d.buf = append(d.buf[:0], d.buf[offset:]...)
	}
	if len(d.buf) > d.maxSize {
		size := len(d.buf)
		d.reset()
		return frames, fmt.Errorf("%w: %d bytes buffered without a terminator (limit %d)", ErrFrameTooLarge, size, d.maxSize)
	}
	return frames, nil
}

// Flush decodes whatever remains in the buffer as a final record. Servers
// that close the stream without a trailing blank line still get their last
// record delivered.
func (d *Decoder) Flush() (Frame, bool) {
	defer d.reset()
	if len(bytes.TrimSpace(d.buf)) == 0 {
		return Frame{}, false
	}
	return parseRecord(d.buf)
}

func (d *Decoder) reset() {
	d.buf = d.buf[:0]
	d.scanFrom = 0
}

// nextRecord finds the first blank line in buf, scanning lines from the
// given offset. It returns the end of the record content and the index just
// past the blank line, or end=-1 plus the offset to resume scanning from.
func nextRecord(buf []byte, from int) (end, next, resume int) {
	start := from
	for {
		i := bytes.IndexByte(buf[start:], '\n')
		if i < 0 {
			return -1, -1, start
		}
		line := buf[start : start+i]
		lineEnd := start + i + 1
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			return start, lineEnd, 0
		}
		start = lineEnd
	}
}

func parseRecord(record []byte) (Frame, bool) {
	var (
		frame   Frame
		data    [][]byte
		hasData bool
	)
	for _, line := range bytes.Split(record, []byte{'\n'}) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte{':'})
		value = bytes.TrimPrefix(value, []byte{' '})
		switch string(field) {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			frame.Event = string(value)
		case "id":
			frame.ID = string(value)
		}
	}
	if !hasData {
		return Frame{}, false
	}
	frame.Data = bytes.Join(data, []byte{'\n'})
	return frame, true
}
