package stream

import (
	"encoding/json"
)

// Block element discriminants
const (
	ElementParagraph     = "paragraph"
	ElementUnorderedList = "unordered_list"
	ElementOrderedList   = "ordered_list"
	ElementTable         = "table"
	ElementReferences    = "references"
)

// Block is one typed UI element emitted by the model in structured mode.
// Element is the discriminant; the other fields are element-specific.
type Block struct {
	Element    string            `json:"element"`
	Text       string            `json:"text,omitempty"`
	Items      []string          `json:"items,omitempty"`
	Header     []string          `json:"header,omitempty"`
	Rows       [][]string        `json:"rows,omitempty"`
	References map[string]string `json:"references,omitempty"`
}

// Valid reports whether the block carries a recognized discriminant with its
// required fields. Blocks that fail this check are treated as noise and
// silently discarded by the accumulator.
func (b *Block) Valid() bool {
	switch b.Element {
	case ElementParagraph:
		return b.Text != ""
	case ElementUnorderedList, ElementOrderedList:
		return len(b.Items) > 0
	case ElementTable:
		return len(b.Header) > 0
	case ElementReferences:
		return len(b.References) > 0
	default:
		return false
	}
}

// ParseBlock decodes a complete JSON object into a Block.
func ParseBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
