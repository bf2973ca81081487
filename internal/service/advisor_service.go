package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinical-advisor-be/internal/constant"
	"clinical-advisor-be/internal/dto"
	"clinical-advisor-be/internal/pkg/logger"
	"clinical-advisor-be/internal/pkg/serverutils"
	"clinical-advisor-be/internal/repository/memory"
	"clinical-advisor-be/pkg/llm"
	"clinical-advisor-be/pkg/stream"
)

// IAdvisorService defines the advisor streaming service interface
type IAdvisorService interface {
	StreamChat(ctx context.Context, request *dto.StreamChatRequest, sink stream.EventSink) (*stream.Session, error)
	GetSession(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStatusResponse, error)
}

type advisorService struct {
	llmProvider  llm.LLMProvider
	sessionRepo  *memory.SessionRepository
	orchestrator *stream.Orchestrator
	sysLogger    logger.ILogger
	streamLogger *log.Logger
}

func NewAdvisorService(
	llmProvider llm.LLMProvider,
	sessionRepo *memory.SessionRepository,
	policy stream.Policy,
	sysLogger logger.ILogger,
) IAdvisorService {
	// Per-delta orchestration trace goes to its own file so the main log
	// stays readable.
	streamLogger := logger.NewIsolatedLogger("logs/advisor_stream.log").StdLogger()

	orchestrator := stream.NewOrchestrator(
		llmProvider,
		policy,
		streamLogger,
		stream.WithFallbackHistory(swapToPlainPrompt),
	)

	return &advisorService{
		llmProvider:  llmProvider,
		sessionRepo:  sessionRepo,
		orchestrator: orchestrator,
		sysLogger:    sysLogger,
		streamLogger: streamLogger,
	}
}

// StreamChat creates a session, drives the orchestrator against the sink,
// and records the terminal session state for later status queries. The
// returned session reflects the final mode, state, and token count.
func (as *advisorService) StreamChat(ctx context.Context, request *dto.StreamChatRequest, sink stream.EventSink) (*stream.Session, error) {
	session := stream.NewSession()
	if stream.Mode(request.Mode) == stream.ModeFallback {
		session.EnterFallback()
	}
	record := &memory.SessionRecord{
		Session: session,
		Title:   constant.DefaultSessionTitle,
	}
	as.sessionRepo.Save(record)

	as.sysLogger.Info("ADVISOR", "stream started", map[string]interface{}{
		"session_id":    session.ID.String(),
		"history_turns": len(request.History),
	})

	// Title generation runs on its own clock; the stream never waits for it.
	go as.generateTitle(record, request.Message)

	history := buildHistory(request)
	err := as.orchestrator.Run(ctx, session, history, sink)

	now := time.Now()
	record.EndedAt = &now
	as.sessionRepo.Save(record)

	if err != nil {
		as.sysLogger.Error("ADVISOR", "stream failed", map[string]interface{}{
			"session_id": session.ID.String(),
			"error":      err.Error(),
		})
		return session, err
	}

	as.sysLogger.Info("ADVISOR", "stream finished", map[string]interface{}{
		"session_id":      session.ID.String(),
		"mode":            string(session.Mode),
		"state":           string(session.State),
		"tokens_consumed": session.TokensConsumed,
	})
	return session, nil
}

func (as *advisorService) GetSession(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStatusResponse, error) {
	record, found := as.sessionRepo.Get(sessionId.String())
	if !found {
		return nil, serverutils.ErrNotFound
	}

	return &dto.SessionStatusResponse{
		Id:             record.Session.ID,
		Title:          record.Title,
		Mode:           string(record.Session.Mode),
		State:          string(record.Session.State),
		TokensConsumed: record.Session.TokensConsumed,
		StartedAt:      record.Session.StartedAt,
		EndedAt:        record.EndedAt,
	}, nil
}

// generateTitle asks the provider for a short session title via the
// non-streaming path. Failures keep the default title; the stream is
// unaffected either way.
func (as *advisorService) generateTitle(record *memory.SessionRecord, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	title, err := as.llmProvider.Chat(ctx, []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: constant.AdvisorTitlePromptV1},
		{Role: constant.ChatMessageRoleUser, Content: message},
	})
	if err != nil {
		as.sysLogger.Warn("ADVISOR", "title generation failed", map[string]interface{}{
			"session_id": record.Session.ID.String(),
			"error":      err.Error(),
		})
		return
	}

	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		return
	}
	record.Title = title
	as.sessionRepo.Save(record)
}

// buildHistory composes the upstream conversation: structured system prompt,
// replayed client turns, then the new user message.
func buildHistory(request *dto.StreamChatRequest) []llm.Message {
	history := make([]llm.Message, 0, len(request.History)+2)
	history = append(history, llm.Message{
		Role:    constant.ChatMessageRoleSystem,
		Content: constant.AdvisorStructuredSystemPromptV1,
	})
	for _, turn := range request.History {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	history = append(history, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: request.Message,
	})
	return history
}

// swapToPlainPrompt rewrites the system turn for the fallback call so the
// model stops trying to emit function calls.
func swapToPlainPrompt(history []llm.Message) []llm.Message {
	out := make([]llm.Message, len(history))
	copy(out, history)
	for i := range out {
		if out[i].Role == constant.ChatMessageRoleSystem {
			out[i].Content = constant.AdvisorPlainSystemPromptV1
			return out
		}
	}
	return out
}
