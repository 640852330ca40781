package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"qaforum/internal/assistant"
	"qaforum/internal/models"
)

const maxPromptLen = 4000

// AssistantService answers study prompts through the configured model.
type AssistantService struct {
	gen assistant.Generator
}

func NewAssistantService(gen assistant.Generator) *AssistantService {
	return &AssistantService{gen: gen}
}

// Generate returns the model's reply. An empty reply from the model is
// replaced by a fixed message.
func (s *AssistantService) Generate(ctx context.Context, userID uint, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", models.NewValidationError("Prompt is required.")
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "", models.NewValidationError("Prompt is too long.")
	}

	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		slog.WarnContext(ctx, "assistant request failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return "", models.NewDependencyError("The assistant is unavailable right now.", err)
	}
	if strings.TrimSpace(out) == "" {
		return "No response from the assistant.", nil
	}
	return out, nil
}
