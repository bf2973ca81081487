package stream

// EventType discriminates the wire event union.
type EventType string

const (
	EventStructuredBlock   EventType = "structured_block"
	EventFallbackInitiated EventType = "fallback_initiated"
	EventMarkdownChunk     EventType = "markdown_chunk"
	EventError             EventType = "error"
	EventStreamEnd         EventType = "stream_end"
)

// Event is one wire frame. Every event carries its session id so consumers
// index directly instead of scanning for "the streaming message".
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Element   *Block    `json:"element,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Content   string    `json:"content,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func BlockEvent(sessionID string, b *Block) Event {
	return Event{Type: EventStructuredBlock, SessionID: sessionID, Element: b}
}

func FallbackEvent(sessionID, reason string) Event {
	return Event{Type: EventFallbackInitiated, SessionID: sessionID, Reason: reason}
}

func ChunkEvent(sessionID, content string) Event {
	return Event{Type: EventMarkdownChunk, SessionID: sessionID, Content: content}
}

func ErrorEvent(sessionID, message string) Event {
	return Event{Type: EventError, SessionID: sessionID, Message: message}
}

func EndEvent(sessionID string) Event {
	return Event{Type: EventStreamEnd, SessionID: sessionID}
}

// EventSink receives orchestrator output in emission order. A sink error
// means the client can no longer be reached and the session should abort.
type EventSink interface {
	Emit(ev Event) error
}
