package dto

import (
	"time"

	"github.com/google/uuid"
)

// ChatTurnDTO is one prior exchange replayed by the client. Only user and
// model turns are accepted; the system prompt is owned by the server.
type ChatTurnDTO struct {
	Role    string `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content" validate:"required"`
}

type StreamChatRequest struct {
	Message string        `json:"message" validate:"required"`
	History []ChatTurnDTO `json:"history,omitempty" validate:"max=50,dive"`
	// Mode selects the entry generation mode. Empty or "structured" attempts
	// typed blocks first; "fallback" asks for plain markdown outright.
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=structured fallback"`
}

type SessionStatusResponse struct {
	Id             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Mode           string     `json:"mode"`
	State          string     `json:"state"`
	TokensConsumed int        `json:"tokens_consumed"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}
