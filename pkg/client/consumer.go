package client

import (
	"errors"
	"io"
	"log"

	"clinical-advisor-be/pkg/markdown"
	"clinical-advisor-be/pkg/stream"
	"clinical-advisor-be/pkg/wire"
)

// Message is the client-side projection of one streaming session. Content is
// either a growing block sequence (structured mode) or a parser bound to a
// render target (fallback mode). Once IsStreaming flips false the message no
// longer accepts events.
type Message struct {
	SessionID   string
	Role        string
	Blocks      []*stream.Block
	Fallback    bool
	IsStreaming bool
	Err         string
	Notice      string

	parser *markdown.Parser
}

// SinkFactory builds the render target for a message's fallback parser.
type SinkFactory func(sessionID string) markdown.InstructionSink

// Consumer reads the frame stream and maintains one Message per session id,
// dispatching each event to the block list or the markdown parser. Events
// for unknown or already-ended sessions are logged and dropped, never fatal.
type Consumer struct {
	reader   *wire.FrameReader
	newSink  SinkFactory
	logger   *log.Logger
	messages map[string]*Message
	order    []string

	// OnBlock, when set, fires for every accepted structured block so live
	// hosts can render blocks as they arrive.
	OnBlock func(sessionID string, block *stream.Block)
}

func NewConsumer(r io.Reader, newSink SinkFactory, logger *log.Logger) *Consumer {
	return &Consumer{
		reader:   wire.NewFrameReader(r),
		newSink:  newSink,
		logger:   logger,
		messages: make(map[string]*Message),
	}
}

// Run consumes frames until the stream ends. A clean EOF (all sessions
// finalized by stream_end or error events) returns nil. A transport failure
// or EOF with a session still streaming is an implicit end: the message is
// marked not-streaming with a connectivity notice and the error returned.
// Closing the underlying reader interrupts a blocked Run.
func (c *Consumer) Run() error {
	for {
		ev, err := c.reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if c.finalizeDangling("stream closed before completion") {
					return io.ErrUnexpectedEOF
				}
				return nil
			}
			c.finalizeDangling("connection lost: " + err.Error())
			return err
		}

		if done := c.dispatch(ev); done {
			return nil
		}
	}
}

// dispatch applies one event. Returns true when the consumer should stop
// reading (server-reported terminal error).
func (c *Consumer) dispatch(ev stream.Event) bool {
	if ev.SessionID == "" {
		c.logger.Printf("[CONSUMER] dropping frame without session id (type=%s)", ev.Type)
		return false
	}

	msg := c.messages[ev.SessionID]
	if msg == nil {
		msg = &Message{
			SessionID:   ev.SessionID,
			Role:        "assistant",
			IsStreaming: true,
		}
		c.messages[ev.SessionID] = msg
		c.order = append(c.order, ev.SessionID)
	}

	if !msg.IsStreaming {
		c.logger.Printf("[CONSUMER] dropping %s for ended session %s", ev.Type, ev.SessionID)
		return false
	}

	switch ev.Type {
	case stream.EventStructuredBlock:
		if ev.Element == nil {
			c.logger.Printf("[CONSUMER] structured_block without element for session %s", ev.SessionID)
			return false
		}
		msg.Blocks = append(msg.Blocks, ev.Element)
		msg.Fallback = false
		if c.OnBlock != nil {
			c.OnBlock(ev.SessionID, ev.Element)
		}

	case stream.EventFallbackInitiated:
		// Already-received blocks stay in place, displayed ahead of the
		// fallback text.
		c.bindParser(msg)

	case stream.EventMarkdownChunk:
		if !msg.Fallback {
			// Chunk without an announced fallback: implicit fallback start.
			c.bindParser(msg)
		}
		if msg.parser == nil {
			c.logger.Printf("[CONSUMER] markdown_chunk with no live parser for session %s", ev.SessionID)
			return false
		}
		msg.parser.Write(ev.Content)

	case stream.EventError:
		msg.Err = ev.Message
		c.finalize(msg)
		return true

	case stream.EventStreamEnd:
		c.finalize(msg)

	default:
		c.logger.Printf("[CONSUMER] unknown event type %q for session %s", ev.Type, ev.SessionID)
	}
	return false
}

func (c *Consumer) bindParser(msg *Message) {
	msg.Fallback = true
	if msg.parser == nil {
		msg.parser = markdown.NewParser(c.newSink(msg.SessionID))
	}
}

// finalize flushes the parser and releases per-message resources; the
// message is immutable afterwards.
func (c *Consumer) finalize(msg *Message) {
	if msg.parser != nil {
		msg.parser.End()
		msg.parser = nil
	}
	msg.IsStreaming = false
}

// finalizeDangling ends every message still streaming after a transport
// close without stream_end. Returns true if any message was dangling.
func (c *Consumer) finalizeDangling(notice string) bool {
	dangling := false
	for _, id := range c.order {
		msg := c.messages[id]
		if msg.IsStreaming {
			msg.Notice = notice
			c.finalize(msg)
			dangling = true
		}
	}
	return dangling
}

// Messages returns the messages in arrival order.
func (c *Consumer) Messages() []*Message {
	out := make([]*Message, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.messages[id])
	}
	return out
}

// Message returns the message for a session id, if one exists.
func (c *Consumer) Message(sessionID string) (*Message, bool) {
	msg, ok := c.messages[sessionID]
	return msg, ok
}
