package markdown

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// TermSink renders instructions as styled terminal output. It is the live
// render host for fallback text: instructions arrive mid-stream and are
// printed immediately, so a reader watches the answer appear block by block.
type TermSink struct {
	w io.Writer

	heading *color.Color
	strong  *color.Color
	em      *color.Color
	code    *color.Color
	rule    *color.Color

	inHeading bool
	inFence   bool
	strongOn  bool
	emOn      bool
	codeOn    bool
	ordinal   int
	listKind  BlockKind
}

func NewTermSink(w io.Writer) *TermSink {
	return &TermSink{
		w:       w,
		heading: color.New(color.FgCyan, color.Bold),
		strong:  color.New(color.Bold),
		em:      color.New(color.Italic),
		code:    color.New(color.FgYellow),
		rule:    color.New(color.FgHiBlack),
	}
}

func (t *TermSink) Render(ins Instruction) {
	switch ins.Op {
	case OpStartBlock:
		t.startBlock(ins)
	case OpEndBlock:
		t.endBlock(ins)
	case OpText:
		t.text(ins.Text)
	case OpStartInline:
		t.setInline(ins.Inline, true)
	case OpEndInline:
		t.setInline(ins.Inline, false)
	}
}

func (t *TermSink) startBlock(ins Instruction) {
	switch ins.Block {
	case BlockHeading:
		t.inHeading = true
		fmt.Fprint(t.w, "\n")
	case BlockCodeFence:
		t.inFence = true
		fmt.Fprint(t.w, "\n")
	case BlockUnorderedList, BlockOrderedList:
		t.listKind = ins.Block
		t.ordinal = 0
	case BlockListItem:
		if t.listKind == BlockOrderedList {
			t.ordinal++
			fmt.Fprintf(t.w, "  %d. ", t.ordinal)
		} else {
			fmt.Fprint(t.w, "  • ")
		}
	case BlockQuote:
		fmt.Fprint(t.w, "  │ ")
	case BlockHorizontalRule:
		t.rule.Fprintln(t.w, strings.Repeat("─", 40))
	}
}

func (t *TermSink) endBlock(ins Instruction) {
	switch ins.Block {
	case BlockHeading:
		t.inHeading = false
		fmt.Fprint(t.w, "\n")
	case BlockCodeFence:
		t.inFence = false
		fmt.Fprint(t.w, "\n")
	case BlockParagraph, BlockQuote:
		fmt.Fprint(t.w, "\n\n")
	case BlockListItem:
		fmt.Fprint(t.w, "\n")
	case BlockUnorderedList, BlockOrderedList:
		t.listKind = ""
		fmt.Fprint(t.w, "\n")
	}
}

func (t *TermSink) text(s string) {
	switch {
	case t.inHeading:
		t.heading.Fprint(t.w, s)
	case t.inFence || t.codeOn:
		t.code.Fprint(t.w, s)
	case t.strongOn:
		t.strong.Fprint(t.w, s)
	case t.emOn:
		t.em.Fprint(t.w, s)
	default:
		fmt.Fprint(t.w, s)
	}
}

func (t *TermSink) setInline(kind InlineKind, on bool) {
	switch kind {
	case InlineStrong:
		t.strongOn = on
	case InlineEmphasis:
		t.emOn = on
	case InlineCode:
		t.codeOn = on
	}
}
