package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// GenerationMode selects how the upstream model is asked to answer.
type GenerationMode string

const (
	// ModeStructured requests discrete typed UI blocks via function-call arguments
	ModeStructured GenerationMode = "structured"
	// ModePlain requests plain incremental markdown text
	ModePlain GenerationMode = "plain"
)

// Delta is one unit of streamed upstream output. Exactly one of Text or
// FunctionArgs is set on a content delta; Err is set on the terminal delta
// when the upstream call failed.
type Delta struct {
	Text         string
	FunctionArgs string
	Err          error
}

// IsFunctionArgs reports whether this delta carries function-call arguments.
func (d Delta) IsFunctionArgs() bool {
	return d.FunctionArgs != ""
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the full response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Stream sends a chat history and returns a lazy sequence of deltas.
	// In ModeStructured the deltas carry incremental function-call arguments;
	// in ModePlain they carry text fragments. The returned channel is closed
	// when the upstream finishes or the context is canceled. After ctx is
	// done no further deltas are yielded and the underlying connection is
	// released.
	Stream(ctx context.Context, history []Message, mode GenerationMode, options ...Option) (<-chan Delta, error)
}
