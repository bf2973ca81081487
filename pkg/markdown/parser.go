package markdown

import (
	"strings"
)

// Parser is a restartable, chunk-fed markdown tokenizer. Each streaming
// message owns one instance; structural decisions are deferred until a full
// line has accumulated, so a marker split across two Write calls parses
// exactly as it would in one call. Output is a sequence of render
// instructions, not HTML.
type Parser struct {
	sink    InstructionSink
	pending string
	ended   bool

	inFence     bool
	fenceMarker string

	paragraphOpen bool
	paraHasText   bool
	quoteOpen     bool
	quoteHasText  bool
	listKind      BlockKind // "" when no list is open
}

func NewParser(sink InstructionSink) *Parser {
	return &Parser{sink: sink}
}

// Write feeds a text fragment into the parser. Only complete lines are
// processed; the trailing partial line is carried over to the next Write.
// Writes after End are no-ops.
func (p *Parser) Write(text string) {
	if p.ended {
		return
	}
	p.pending += text
	for {
		i := strings.IndexByte(p.pending, '\n')
		if i < 0 {
			return
		}
		line := p.pending[:i]
		p.pending = p.pending[i+1:]
		p.processLine(line)
	}
}

// End flushes the pending partial line, closes any open structures with
// best-effort rules (an unterminated fence is closed at the document
// boundary), and marks the parser inert.
func (p *Parser) End() {
	if p.ended {
		return
	}
	if p.pending != "" {
		p.processLine(p.pending)
		p.pending = ""
	}
	if p.inFence {
		p.emit(Instruction{Op: OpEndBlock, Block: BlockCodeFence})
		p.inFence = false
	}
	p.closeParagraph()
	p.closeQuote()
	p.closeList()
	p.ended = true
}

// Ended reports whether the parser has been finalized.
func (p *Parser) Ended() bool {
	return p.ended
}

func (p *Parser) emit(ins Instruction) {
	p.sink.Render(ins)
}

func (p *Parser) processLine(line string) {
	line = strings.TrimSuffix(line, "\r")

	if p.inFence {
		trimmed := strings.TrimSpace(line)
		if isFenceMarker(trimmed, p.fenceMarker[0]) {
			p.emit(Instruction{Op: OpEndBlock, Block: BlockCodeFence})
			p.inFence = false
			return
		}
		p.emit(Instruction{Op: OpText, Text: line + "\n"})
		return
	}

	trimmed := strings.TrimSpace(line)

	if trimmed == "" {
		p.closeParagraph()
		p.closeQuote()
		p.closeList()
		return
	}

	if marker, info, ok := parseFenceOpen(trimmed); ok {
		p.closeParagraph()
		p.closeQuote()
		p.closeList()
		p.inFence = true
		p.fenceMarker = marker
		p.emit(Instruction{Op: OpStartBlock, Block: BlockCodeFence, Info: info})
		return
	}

	if level, rest, ok := parseHeading(trimmed); ok {
		p.closeParagraph()
		p.closeQuote()
		p.closeList()
		p.emit(Instruction{Op: OpStartBlock, Block: BlockHeading, Level: level})
		p.inline(rest)
		p.emit(Instruction{Op: OpEndBlock, Block: BlockHeading, Level: level})
		return
	}

	if isHorizontalRule(trimmed) {
		p.closeParagraph()
		p.closeQuote()
		p.closeList()
		p.emit(Instruction{Op: OpStartBlock, Block: BlockHorizontalRule})
		p.emit(Instruction{Op: OpEndBlock, Block: BlockHorizontalRule})
		return
	}

	if content, ok := strings.CutPrefix(trimmed, ">"); ok {
		p.closeParagraph()
		p.closeList()
		content = strings.TrimPrefix(content, " ")
		if !p.quoteOpen {
			p.emit(Instruction{Op: OpStartBlock, Block: BlockQuote})
			p.quoteOpen = true
			p.quoteHasText = false
		}
		if p.quoteHasText {
			p.emit(Instruction{Op: OpText, Text: " "})
		}
		p.inline(content)
		p.quoteHasText = true
		return
	}

	if content, kind, ok := parseListItem(trimmed); ok {
		p.closeParagraph()
		p.closeQuote()
		if p.listKind != kind {
			p.closeList()
			p.emit(Instruction{Op: OpStartBlock, Block: kind})
			p.listKind = kind
		}
		p.emit(Instruction{Op: OpStartBlock, Block: BlockListItem})
		p.inline(content)
		p.emit(Instruction{Op: OpEndBlock, Block: BlockListItem})
		return
	}

	// Plain paragraph text; consecutive lines join with a soft break.
	p.closeQuote()
	p.closeList()
	if !p.paragraphOpen {
		p.emit(Instruction{Op: OpStartBlock, Block: BlockParagraph})
		p.paragraphOpen = true
		p.paraHasText = false
	}
	if p.paraHasText {
		p.emit(Instruction{Op: OpText, Text: " "})
	}
	p.inline(trimmed)
	p.paraHasText = true
}

// inline tokenizes emphasis, strong, and code spans within one line.
// Unterminated spans are closed at the end of the line.
func (p *Parser) inline(text string) {
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			p.emit(Instruction{Op: OpText, Text: run.String()})
			run.Reset()
		}
	}

	var emOpen, strongOpen, codeOpen bool
	i := 0
	for i < len(text) {
		c := text[i]

		if c == '\\' && i+1 < len(text) {
			run.WriteByte(text[i+1])
			i += 2
			continue
		}

		if c == '`' {
			flush()
			if codeOpen {
				p.emit(Instruction{Op: OpEndInline, Inline: InlineCode})
			} else {
				p.emit(Instruction{Op: OpStartInline, Inline: InlineCode})
			}
			codeOpen = !codeOpen
			i++
			continue
		}

		// Inside a code span every other marker is literal
		if codeOpen {
			run.WriteByte(c)
			i++
			continue
		}

		if c == '*' && i+1 < len(text) && text[i+1] == '*' {
			flush()
			if strongOpen {
				p.emit(Instruction{Op: OpEndInline, Inline: InlineStrong})
			} else {
				p.emit(Instruction{Op: OpStartInline, Inline: InlineStrong})
			}
			strongOpen = !strongOpen
			i += 2
			continue
		}

		if c == '*' || c == '_' {
			flush()
			if emOpen {
				p.emit(Instruction{Op: OpEndInline, Inline: InlineEmphasis})
			} else {
				p.emit(Instruction{Op: OpStartInline, Inline: InlineEmphasis})
			}
			emOpen = !emOpen
			i++
			continue
		}

		run.WriteByte(c)
		i++
	}
	flush()

	if codeOpen {
		p.emit(Instruction{Op: OpEndInline, Inline: InlineCode})
	}
	if emOpen {
		p.emit(Instruction{Op: OpEndInline, Inline: InlineEmphasis})
	}
	if strongOpen {
		p.emit(Instruction{Op: OpEndInline, Inline: InlineStrong})
	}
}

func (p *Parser) closeParagraph() {
	if p.paragraphOpen {
		p.emit(Instruction{Op: OpEndBlock, Block: BlockParagraph})
		p.paragraphOpen = false
	}
}

func (p *Parser) closeQuote() {
	if p.quoteOpen {
		p.emit(Instruction{Op: OpEndBlock, Block: BlockQuote})
		p.quoteOpen = false
	}
}

func (p *Parser) closeList() {
	if p.listKind != "" {
		p.emit(Instruction{Op: OpEndBlock, Block: p.listKind})
		p.listKind = ""
	}
}

// --- line classification helpers ---

func parseFenceOpen(trimmed string) (marker, info string, ok bool) {
	for _, c := range []byte{'`', '~'} {
		n := runLength(trimmed, c)
		if n >= 3 {
			return trimmed[:n], strings.TrimSpace(trimmed[n:]), true
		}
	}
	return "", "", false
}

func isFenceMarker(trimmed string, c byte) bool {
	n := runLength(trimmed, c)
	return n >= 3 && n == len(trimmed)
}

func parseHeading(trimmed string) (level int, rest string, ok bool) {
	n := runLength(trimmed, '#')
	if n < 1 || n > 6 {
		return 0, "", false
	}
	if len(trimmed) == n {
		return n, "", true
	}
	if trimmed[n] != ' ' {
		return 0, "", false
	}
	return n, strings.TrimSpace(trimmed[n:]), true
}

func isHorizontalRule(trimmed string) bool {
	if len(trimmed) < 3 {
		return false
	}
	c := trimmed[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	return runLength(trimmed, c) == len(trimmed)
}

func parseListItem(trimmed string) (content string, kind BlockKind, ok bool) {
	if len(trimmed) >= 2 && (trimmed[0] == '-' || trimmed[0] == '*' || trimmed[0] == '+') && trimmed[1] == ' ' {
		return strings.TrimSpace(trimmed[2:]), BlockUnorderedList, true
	}

	digits := 0
	for digits < len(trimmed) && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits+1 < len(trimmed) &&
		(trimmed[digits] == '.' || trimmed[digits] == ')') && trimmed[digits+1] == ' ' {
		return strings.TrimSpace(trimmed[digits+2:]), BlockOrderedList, true
	}
	return "", "", false
}

func runLength(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}
