package stream

import (
	"strings"
)

// Trivial greeting/ping prompts go straight to markdown fallback; spinning
// up the structured tool call for "hi" wastes a round trip.
var trivialPrompts = map[string]struct{}{
	"hi":             {},
	"hello":          {},
	"hey":            {},
	"yo":             {},
	"ping":           {},
	"ok":             {},
	"okay":           {},
	"thanks":         {},
	"thank you":      {},
	"good morning":   {},
	"good afternoon": {},
	"good evening":   {},
	"how are you":    {},
}

// IsTrivialPrompt reports whether the prompt is a greeting/ping-style
// message that should bypass structured mode entirely.
func IsTrivialPrompt(prompt string) bool {
	p := strings.ToLower(strings.TrimSpace(prompt))
	p = strings.TrimRight(p, "!?. ")
	_, ok := trivialPrompts[p]
	return ok
}
