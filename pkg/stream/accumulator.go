package stream

import (
	"strings"
)

// Accumulator buffers incremental function-call argument deltas until they
// form a syntactically complete JSON object, then parses and validates it.
// It never fails a session: the only outcomes of Accept are "no block yet"
// and "one block".
type Accumulator struct {
	buf strings.Builder
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Accept appends delta to the buffer and returns a validated Block when the
// buffer holds a complete, schema-valid object. Balanced-but-unparseable
// buffers are kept (false positive of the brace scan); parseable objects
// with an unknown or empty discriminant are discarded and the buffer is
// cleared.
func (a *Accumulator) Accept(delta string) *Block {
	a.buf.WriteString(delta)

	candidate := a.buf.String()
	if !BracesBalanced(candidate) {
		return nil
	}

	block, err := ParseBlock([]byte(strings.TrimSpace(candidate)))
	if err != nil {
		// Balance was a false positive (braces inside string literals);
		// keep accumulating.
		return nil
	}

	a.buf.Reset()
	if !block.Valid() {
		return nil
	}
	return block
}

// InFlight reports whether a partial object is currently buffered. The
// orchestrator consults this before triggering fallback so a block that is
// mid-arrival is not thrown away.
func (a *Accumulator) InFlight() bool {
	return strings.TrimSpace(a.buf.String()) != ""
}

// Reset discards any buffered partial object.
func (a *Accumulator) Reset() {
	a.buf.Reset()
}

// BracesBalanced reports whether the trimmed string starts with '{', ends
// with '}', and the running brace count never goes negative and ends at
// zero. Braces inside JSON string literals are deliberately not excluded;
// a false "balanced" read is recovered by the parse attempt in Accept.
func BracesBalanced(s string) bool {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return false
	}

	depth := 0
	for _, r := range trimmed {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
