package stream

import (
	"context"
	"fmt"
	"log"
	"time"

	"clinical-advisor-be/pkg/llm"
)

// Policy bounds the structured-mode failure detection. Fallback fires when
// TokenCeiling deltas arrive with no block emitted and nothing buffered, or
// when FirstBlockTimeout elapses before the first block.
type Policy struct {
	TokenCeiling      int
	FirstBlockTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		TokenCeiling:      32,
		FirstBlockTimeout: 8 * time.Second,
	}
}

// Orchestrator owns the dual-mode generation state machine for one session
// at a time: structured first, one-way transition to markdown fallback, and
// a single guarded terminal event on every exit path.
type Orchestrator struct {
	provider        llm.LLMProvider
	policy          Policy
	logger          *log.Logger
	fallbackHistory func([]llm.Message) []llm.Message
}

type OrchestratorOption func(*Orchestrator)

// WithFallbackHistory rewrites the conversation before the fallback call,
// typically to swap a function-calling system prompt for a plain-markdown
// one. The structured call always sees the original history.
func WithFallbackHistory(fn func([]llm.Message) []llm.Message) OrchestratorOption {
	return func(o *Orchestrator) {
		o.fallbackHistory = fn
	}
}

func NewOrchestrator(provider llm.LLMProvider, policy Policy, logger *log.Logger, options ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		policy:   policy,
		logger:   logger,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run drives the session to a terminal state. External cancellation (ctx)
// closes the session silently without a stream_end frame; every other exit
// emits exactly one terminal event through the sink.
func (o *Orchestrator) Run(ctx context.Context, session *Session, history []llm.Message, sink EventSink) error {
	if session.Mode == ModeFallback {
		o.logger.Printf("[ORCH] session %s: markdown mode requested by client", session.ID)
		return o.runFallback(ctx, session, history, sink, "markdown mode requested by client")
	}
	if IsTrivialPrompt(lastUserPrompt(history)) {
		o.logger.Printf("[ORCH] session %s: trivial prompt, skipping structured mode", session.ID)
		return o.runFallback(ctx, session, history, sink, "trivial prompt routed directly to markdown")
	}
	return o.runStructured(ctx, session, history, sink)
}

func (o *Orchestrator) runStructured(ctx context.Context, session *Session, history []llm.Message, sink EventSink) error {
	// Own cancel scope so the structured call can be released when the
	// fallback call replaces it.
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltas, err := o.provider.Stream(sctx, history, llm.ModeStructured)
	if err != nil {
		if ctx.Err() != nil {
			session.close(StateAborted)
			return nil
		}
		o.logger.Printf("[ORCH] session %s: structured call failed: %v", session.ID, err)
		return o.runFallback(ctx, session, history, sink, fmt.Sprintf("structured call failed: %v", err))
	}

	acc := NewAccumulator()
	blockSent := false

	var deadline <-chan time.Time
	if o.policy.FirstBlockTimeout > 0 {
		timer := time.NewTimer(o.policy.FirstBlockTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			session.close(StateAborted)
			return nil

		case <-deadline:
			cancel()
			return o.runFallback(ctx, session, history, sink, "no structured output before deadline")

		case d, ok := <-deltas:
			if !ok {
				if blockSent {
					return o.finishEnded(session, sink)
				}
				cancel()
				return o.runFallback(ctx, session, history, sink, "structured stream ended without blocks")
			}
			if d.Err != nil {
				if !blockSent {
					cancel()
					return o.runFallback(ctx, session, history, sink, fmt.Sprintf("upstream error: %v", d.Err))
				}
				return o.finishError(session, sink, d.Err)
			}

			session.ConsumeToken()

			if d.IsFunctionArgs() {
				if block := acc.Accept(d.FunctionArgs); block != nil {
					if err := sink.Emit(BlockEvent(session.ID.String(), block)); err != nil {
						session.close(StateAborted)
						return nil
					}
					if !blockSent {
						blockSent = true
						// Once a block is out, fallback must never trigger.
						deadline = nil
					}
				}
			}

			if !blockSent && session.TokensConsumed >= o.policy.TokenCeiling && !acc.InFlight() {
				cancel()
				return o.runFallback(ctx, session, history, sink, "token budget exceeded without structured output")
			}
		}
	}
}

// runFallback performs the one-way transition and streams a second,
// independent plain-text call replaying the same history.
func (o *Orchestrator) runFallback(ctx context.Context, session *Session, history []llm.Message, sink EventSink, reason string) error {
	if ctx.Err() != nil {
		session.close(StateAborted)
		return nil
	}

	session.EnterFallback()
	o.logger.Printf("[ORCH] session %s: fallback initiated: %s", session.ID, reason)

	if o.fallbackHistory != nil {
		history = o.fallbackHistory(history)
	}

	if err := sink.Emit(FallbackEvent(session.ID.String(), reason)); err != nil {
		session.close(StateAborted)
		return nil
	}

	// Own cancel scope, same as the structured call: a client disconnect
	// mid-stream must release the upstream call immediately instead of
	// waiting for the outer ctx, which in production lives as long as the
	// server connection.
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltas, err := o.provider.Stream(fctx, history, llm.ModePlain)
	if err != nil {
		if ctx.Err() != nil {
			session.close(StateAborted)
			return nil
		}
		return o.finishError(session, sink, err)
	}

	for {
		select {
		case <-ctx.Done():
			session.close(StateAborted)
			return nil

		case d, ok := <-deltas:
			if !ok {
				return o.finishEnded(session, sink)
			}
			if d.Err != nil {
				return o.finishError(session, sink, d.Err)
			}
			if d.Text == "" {
				continue
			}

			session.ConsumeToken()
			if err := sink.Emit(ChunkEvent(session.ID.String(), d.Text)); err != nil {
				session.close(StateAborted)
				return nil
			}
		}
	}
}

func (o *Orchestrator) finishEnded(session *Session, sink EventSink) error {
	if session.close(StateEnded) {
		if err := sink.Emit(EndEvent(session.ID.String())); err != nil {
			o.logger.Printf("[ORCH] session %s: stream_end not delivered: %v", session.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) finishError(session *Session, sink EventSink, cause error) error {
	if session.close(StateEnded) {
		if err := sink.Emit(ErrorEvent(session.ID.String(), cause.Error())); err != nil {
			o.logger.Printf("[ORCH] session %s: error event not delivered: %v", session.ID, err)
		}
	}
	return fmt.Errorf("upstream stream failed: %w", cause)
}

func lastUserPrompt(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}
