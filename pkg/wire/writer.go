package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"

	"clinical-advisor-be/pkg/stream"
)

// ErrClosed is returned by Emit after the writer has been closed, either
// explicitly or because a write to the client failed.
var ErrClosed = errors.New("wire: frame writer closed")

// FrameWriter serializes stream events as one JSON object per frame with a
// blank-line terminator, flushing each frame as it is produced. A failed
// write or flush means the client disconnected; the writer closes itself so
// no further frames are attempted. One writer serves one session and is
// driven by a single goroutine.
type FrameWriter struct {
	w      *bufio.Writer
	closed bool
}

var _ stream.EventSink = &FrameWriter{}

func NewFrameWriter(w *bufio.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// Emit writes one frame and flushes it to the transport.
func (fw *FrameWriter) Emit(ev stream.Event) error {
	if fw.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fw.w.Write(payload); err != nil {
		fw.closed = true
		return fmt.Errorf("client disconnected: %w", err)
	}
	if _, err := fw.w.WriteString("\n\n"); err != nil {
		fw.closed = true
		return fmt.Errorf("client disconnected: %w", err)
	}
	if err := fw.w.Flush(); err != nil {
		fw.closed = true
		return fmt.Errorf("client disconnected: %w", err)
	}
	return nil
}

// Close marks the writer closed. Closing twice is a no-op; the underlying
// transport is owned and closed by the HTTP server once the handler returns.
func (fw *FrameWriter) Close() {
	fw.closed = true
}

// Closed reports whether the writer no longer accepts frames.
func (fw *FrameWriter) Closed() bool {
	return fw.closed
}
