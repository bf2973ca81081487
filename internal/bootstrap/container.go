package bootstrap

import (
	"log"
	"time"

	"clinical-advisor-be/internal/config"
	"clinical-advisor-be/internal/controller"
	"clinical-advisor-be/internal/pkg/logger"
	"clinical-advisor-be/internal/repository/memory"
	"clinical-advisor-be/internal/service"
	"clinical-advisor-be/pkg/llm/factory"
	"clinical-advisor-be/pkg/stream"
)

type Container struct {
	// Controllers
	AdvisorController controller.IAdvisorController

	// Exposed for graceful shutdown in main.go
	SysLogger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3. In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository(time.Duration(cfg.Stream.SessionTTLMinutes) * time.Minute)

	// 4. Services
	policy := stream.Policy{
		TokenCeiling:      cfg.Stream.TokenCeiling,
		FirstBlockTimeout: time.Duration(cfg.Stream.FirstBlockTimeoutSecs) * time.Second,
	}
	advisorService := service.NewAdvisorService(llmProvider, sessionRepo, policy, sysLogger)

	// 5. Controllers
	return &Container{
		AdvisorController: controller.NewAdvisorController(advisorService),
		SysLogger:         sysLogger,
	}
}
