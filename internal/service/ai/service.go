package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

// Service builds advisory prompts and runs them through a Generator.
type Service struct {
	generator Generator
	prompts   *PromptBook
	logger    *zap.Logger
}

// NewService wires a Service. A nil prompt book uses the embedded defaults.
func NewService(generator Generator, prompts *PromptBook, logger *zap.Logger) (*Service, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if prompts == nil {
		prompts = DefaultPromptBook()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{generator: generator, prompts: prompts, logger: logger.Named("ai")}, nil
}

// Fallback is the text the AI endpoint returns alongside a failure status.
func (s *Service) Fallback() string {
	return s.prompts.Fallback
}

// Respond generates advice for message in the requested language and shapes
// it for the delivery channel. Unsupported codes are answered in English.
func (s *Service) Respond(ctx context.Context, message string, code language.Code, channel Postprocess) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message is required")
	}
	if !code.Valid() {
		code = language.Default
	}

	p := s.prompts.Build(message, code)
	text, err := s.generator.Generate(ctx, p)
	if err != nil {
		s.logger.Warn("generation failed", zap.String("language", code.String()), zap.Error(err))
		return "", fmt.Errorf("generate response: %w", err)
	}

	text = channel.Apply(text)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	s.logger.Debug("generated response", zap.String("language", code.String()), zap.Int("length", len(text)))
	return text, nil
}
