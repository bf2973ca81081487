package markdown

// InstructionOp is the operation of one render instruction.
type InstructionOp string

const (
	OpStartBlock  InstructionOp = "start_block"
	OpEndBlock    InstructionOp = "end_block"
	OpText        InstructionOp = "text"
	OpStartInline InstructionOp = "start_inline"
	OpEndInline   InstructionOp = "end_inline"
)

// BlockKind identifies a block-level element.
type BlockKind string

const (
	BlockParagraph      BlockKind = "paragraph"
	BlockHeading        BlockKind = "heading"
	BlockCodeFence      BlockKind = "code_fence"
	BlockQuote          BlockKind = "blockquote"
	BlockUnorderedList  BlockKind = "unordered_list"
	BlockOrderedList    BlockKind = "ordered_list"
	BlockListItem       BlockKind = "list_item"
	BlockHorizontalRule BlockKind = "horizontal_rule"
)

// InlineKind identifies an inline span.
type InlineKind string

const (
	InlineEmphasis InlineKind = "emphasis"
	InlineStrong   InlineKind = "strong"
	InlineCode     InlineKind = "code"
)

// Instruction is one unit of parser output. The instruction set, not HTML,
// is the parser's product; hosts decide how to render it. Text carries the
// run for OpText, Block/Level/Info describe block ops, Inline describes
// inline ops.
type Instruction struct {
	Op     InstructionOp
	Block  BlockKind
	Inline InlineKind
	Level  int    // heading level, 1-6
	Info   string // code fence info string
	Text   string
}

// InstructionSink consumes render instructions in emission order. Text runs
// are untrusted model output; hosts that produce HTML must sanitize them.
type InstructionSink interface {
	Render(ins Instruction)
}

// SliceSink collects instructions for tests and buffered hosts.
type SliceSink struct {
	Instructions []Instruction
}

func (s *SliceSink) Render(ins Instruction) {
	s.Instructions = append(s.Instructions, ins)
}
