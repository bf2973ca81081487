package client

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-advisor-be/pkg/markdown"
	"clinical-advisor-be/pkg/stream"
	"clinical-advisor-be/pkg/wire"
)

func encodeFrames(t *testing.T, events ...stream.Event) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	fw := wire.NewFrameWriter(bufio.NewWriter(&buf))
	for _, ev := range events {
		require.NoError(t, fw.Emit(ev))
	}
	return &buf
}

func newTestConsumer(r io.Reader) (*Consumer, map[string]*markdown.SliceSink) {
	sinks := make(map[string]*markdown.SliceSink)
	factory := func(sessionID string) markdown.InstructionSink {
		s := &markdown.SliceSink{}
		sinks[sessionID] = s
		return s
	}
	return NewConsumer(r, factory, log.New(io.Discard, "", 0)), sinks
}

func TestConsumerStructuredFlow(t *testing.T) {
	frames := encodeFrames(t,
		stream.BlockEvent("s1", &stream.Block{Element: stream.ElementParagraph, Text: "Take with food."}),
		stream.BlockEvent("s1", &stream.Block{Element: stream.ElementReferences, References: map[string]string{"1": "BNF 86"}}),
		stream.EndEvent("s1"),
	)
	c, sinks := newTestConsumer(frames)

	var live []*stream.Block
	c.OnBlock = func(_ string, b *stream.Block) { live = append(live, b) }

	require.NoError(t, c.Run())

	msg, ok := c.Message("s1")
	require.True(t, ok)
	assert.Len(t, msg.Blocks, 2)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.Fallback)
	assert.Empty(t, msg.Err)
	assert.Len(t, live, 2)
	assert.Empty(t, sinks, "no fallback, no parser should be bound")
}

func TestConsumerFallbackFlow(t *testing.T) {
	frames := encodeFrames(t,
		stream.BlockEvent("s1", &stream.Block{Element: stream.ElementParagraph, Text: "Before fallback."}),
		stream.FallbackEvent("s1", "no structured output before deadline"),
		stream.ChunkEvent("s1", "## Dosing\n500 mg every "),
		stream.ChunkEvent("s1", "8 hours.\n"),
		stream.EndEvent("s1"),
	)
	c, sinks := newTestConsumer(frames)

	require.NoError(t, c.Run())

	msg, ok := c.Message("s1")
	require.True(t, ok)
	assert.True(t, msg.Fallback)
	assert.Len(t, msg.Blocks, 1, "blocks received before fallback stay in place")
	assert.False(t, msg.IsStreaming)

	sink := sinks["s1"]
	require.NotNil(t, sink)
	assert.NotEmpty(t, sink.Instructions)
	assert.Equal(t, markdown.BlockHeading, sink.Instructions[0].Block)
}

func TestConsumerImplicitFallback(t *testing.T) {
	// A chunk with no fallback_initiated announcement still binds a parser.
	frames := encodeFrames(t,
		stream.ChunkEvent("s1", "plain text\n"),
		stream.EndEvent("s1"),
	)
	c, sinks := newTestConsumer(frames)

	require.NoError(t, c.Run())

	msg, _ := c.Message("s1")
	assert.True(t, msg.Fallback)
	assert.NotEmpty(t, sinks["s1"].Instructions)
}

func TestConsumerServerError(t *testing.T) {
	frames := encodeFrames(t,
		stream.BlockEvent("s1", &stream.Block{Element: stream.ElementParagraph, Text: "partial"}),
		stream.ErrorEvent("s1", "upstream stream failed"),
	)
	c, _ := newTestConsumer(frames)

	require.NoError(t, c.Run())

	msg, _ := c.Message("s1")
	assert.Equal(t, "upstream stream failed", msg.Err)
	assert.False(t, msg.IsStreaming)
	assert.Len(t, msg.Blocks, 1)
}

func TestConsumerTransportDropWithoutStreamEnd(t *testing.T) {
	frames := encodeFrames(t,
		stream.BlockEvent("s1", &stream.Block{Element: stream.ElementParagraph, Text: "cut off"}),
	)
	c, _ := newTestConsumer(frames)

	err := c.Run()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	msg, _ := c.Message("s1")
	assert.False(t, msg.IsStreaming)
	assert.NotEmpty(t, msg.Notice)
}

func TestConsumerDropsEventsAfterEnd(t *testing.T) {
	frames := encodeFrames(t,
		stream.ChunkEvent("s1", "body\n"),
		stream.EndEvent("s1"),
		stream.ChunkEvent("s1", "late chunk\n"),
	)
	c, sinks := newTestConsumer(frames)

	require.NoError(t, c.Run())

	msg, _ := c.Message("s1")
	assert.False(t, msg.IsStreaming)

	for _, ins := range sinks["s1"].Instructions {
		assert.NotContains(t, ins.Text, "late chunk")
	}
}

func TestConsumerMessagesInArrivalOrder(t *testing.T) {
	frames := encodeFrames(t,
		stream.ChunkEvent("s1", "a\n"),
		stream.ChunkEvent("s2", "b\n"),
		stream.EndEvent("s1"),
		stream.EndEvent("s2"),
	)
	c, _ := newTestConsumer(frames)
	require.NoError(t, c.Run())

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "s1", msgs[0].SessionID)
	assert.Equal(t, "s2", msgs[1].SessionID)
}
