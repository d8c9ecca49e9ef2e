package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ArkGenerator runs prompts through an eino chain backed by an Ark chat model.
type ArkGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGenerator compiles the system/query chain around chatModel.
func NewArkGenerator(ctx context.Context, chatModel model.ChatModel) (*ArkGenerator, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile advisory chain: %w", err)
	}

	return &ArkGenerator{chain: runnable}, nil
}

// Generate implements Generator.
func (g *ArkGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	response, err := g.chain.Invoke(ctx, map[string]any{
		"system": p.System,
		"query":  p.Query(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run advisory chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}
	return response.Content, nil
}

// GeminiConfig wires Gemini access.
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
}

// GeminiGenerator sends prompts to Gemini.
type GeminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiGenerator returns a Generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: modelName, maxTokens: maxTokens}, nil
}

// Generate implements Generator. The whole prompt goes out as one user turn.
func (g *GeminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(p.Text(), genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return "", ErrEmptyResponse
	}
	return output, nil
}
