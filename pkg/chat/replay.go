package chat

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mitchellh/go-homedir"
)

// ReplayDoer answers every request with a captured event stream read from a
// file. ChunkSize > 0 splits the body into reads of at most that many bytes.
type ReplayDoer struct {
	Path      string
	ChunkSize int
}

// Do serves the transcript as a 200 text/event-stream response.
func (d ReplayDoer) Do(req *http.Request) (*http.Response, error) {
	path, err := homedir.Expand(d.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", d.Path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	var body io.Reader = bytes.NewReader(data)
	if d.ChunkSize > 0 {
		body = &chunkedReader{r: body, size: d.ChunkSize}
	}

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(body),
		Request:    req,
	}, nil
}

// chunkedReader limits every Read to size bytes.
type chunkedReader struct {
	r    io.Reader
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}
