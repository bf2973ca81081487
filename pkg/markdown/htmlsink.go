package markdown

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSink renders instructions into an HTML fragment. Model output is
// untrusted: every text run passes through a strict bluemonday policy
// before being written, so embedded markup never reaches the page.
type HTMLSink struct {
	sb     strings.Builder
	policy *bluemonday.Policy

	headingLevel int
}

func NewHTMLSink() *HTMLSink {
	return &HTMLSink{
		policy: bluemonday.StrictPolicy(),
	}
}

func (h *HTMLSink) Render(ins Instruction) {
	switch ins.Op {
	case OpStartBlock:
		h.sb.WriteString(h.blockTag(ins, false))
	case OpEndBlock:
		h.sb.WriteString(h.blockTag(ins, true))
	case OpText:
		h.sb.WriteString(h.policy.Sanitize(ins.Text))
	case OpStartInline:
		h.sb.WriteString(inlineTag(ins.Inline, false))
	case OpEndInline:
		h.sb.WriteString(inlineTag(ins.Inline, true))
	}
}

// HTML returns the fragment rendered so far.
func (h *HTMLSink) HTML() string {
	return h.sb.String()
}

func (h *HTMLSink) blockTag(ins Instruction, closing bool) string {
	var tag string
	switch ins.Block {
	case BlockParagraph:
		tag = "p"
	case BlockHeading:
		if !closing {
			h.headingLevel = ins.Level
		}
		level := ins.Level
		if level == 0 {
			level = h.headingLevel
		}
		if level < 1 || level > 6 {
			level = 1
		}
		tag = fmt.Sprintf("h%d", level)
	case BlockCodeFence:
		if closing {
			return "</code></pre>\n"
		}
		return "<pre><code>"
	case BlockQuote:
		tag = "blockquote"
	case BlockUnorderedList:
		tag = "ul"
	case BlockOrderedList:
		tag = "ol"
	case BlockListItem:
		tag = "li"
	case BlockHorizontalRule:
		if closing {
			return ""
		}
		return "<hr/>\n"
	default:
		return ""
	}
	if closing {
		return "</" + tag + ">\n"
	}
	return "<" + tag + ">"
}

func inlineTag(kind InlineKind, closing bool) string {
	var tag string
	switch kind {
	case InlineEmphasis:
		tag = "em"
	case InlineStrong:
		tag = "strong"
	case InlineCode:
		tag = "code"
	default:
		return ""
	}
	if closing {
		return "</" + tag + ">"
	}
	return "<" + tag + ">"
}
