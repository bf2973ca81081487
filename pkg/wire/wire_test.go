package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-advisor-be/pkg/stream"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(bufio.NewWriter(&buf))

	sent := []stream.Event{
		stream.BlockEvent("s1", &stream.Block{Element: stream.ElementParagraph, Text: "Take with food."}),
		stream.FallbackEvent("s1", "no structured output before deadline"),
		stream.ChunkEvent("s1", "## Dosing\n"),
		stream.EndEvent("s1"),
	}
	for _, ev := range sent {
		require.NoError(t, fw.Emit(ev))
	}

	fr := NewFrameReader(&buf)
	var got []stream.Event
	for {
		ev, err := fr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, ev)
	}

	require.Len(t, got, len(sent))
	assert.Equal(t, sent[0].Element.Text, got[0].Element.Text)
	assert.Equal(t, sent[1].Reason, got[1].Reason)
	assert.Equal(t, sent[2].Content, got[2].Content)
	assert.Equal(t, stream.EventStreamEnd, got[3].Type)
	for _, ev := range got {
		assert.Equal(t, "s1", ev.SessionID)
	}
}

func TestFramesAreFlushedIndividually(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(bufio.NewWriter(&buf))

	require.NoError(t, fw.Emit(stream.ChunkEvent("s1", "first")))
	// The frame and its terminator must be on the transport already, not
	// sitting in the buffer waiting for the next frame.
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n\n")))
	one := buf.Len()

	require.NoError(t, fw.Emit(stream.ChunkEvent("s1", "second")))
	assert.Greater(t, buf.Len(), one)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriterClosesOnTransportFailure(t *testing.T) {
	fw := NewFrameWriter(bufio.NewWriterSize(failingWriter{}, 16))

	err := fw.Emit(stream.ChunkEvent("s1", "this frame exceeds the tiny buffer"))
	require.Error(t, err)
	assert.True(t, fw.Closed())

	// Every later emit short-circuits without touching the transport.
	err = fw.Emit(stream.EndEvent("s1"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReaderHandlesSplitReads(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(bufio.NewWriter(&buf))
	require.NoError(t, fw.Emit(stream.ChunkEvent("s1", "hello")))
	require.NoError(t, fw.Emit(stream.EndEvent("s1")))

	// One byte per Read: frame assembly must not depend on read boundaries.
	fr := NewFrameReader(iotest(buf.Bytes()))

	first, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, stream.EventMarkdownChunk, first.Type)

	second, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, stream.EventStreamEnd, second.Type)

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsMalformedFrame(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader([]byte("{not json}\n\n")))
	_, err := fr.Next()
	require.Error(t, err)
}

// iotest returns a reader that yields one byte per Read call.
func iotest(data []byte) io.Reader {
	return &oneByteReader{data: data}
}

type oneByteReader struct {
	data []byte
	pos  int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}
