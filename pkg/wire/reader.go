package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"clinical-advisor-be/pkg/stream"
)

// FrameReader decodes the blank-line-delimited JSON frame stream produced by
// FrameWriter. Next blocks until a complete frame arrives, the stream ends
// (io.EOF), or the transport fails.
type FrameReader struct {
	scanner *bufio.Scanner
}

func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitFrames)
	return &FrameReader{scanner: scanner}
}

// Next returns the next event on the stream.
func (fr *FrameReader) Next() (stream.Event, error) {
	for fr.scanner.Scan() {
		raw := bytes.TrimSpace(fr.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev stream.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return stream.Event{}, fmt.Errorf("decode frame: %w", err)
		}
		return ev, nil
	}
	if err := fr.scanner.Err(); err != nil {
		return stream.Event{}, err
	}
	return stream.Event{}, io.EOF
}

// splitFrames tokenizes on the blank-line frame terminator.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
