package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/YatingPan/chat-room/internal/domain"
	"github.com/sashabaranov/go-openai"
)

// OpenAIModerator implements Moderator against an OpenAI-compatible chat
// completion API.
type OpenAIModerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIModerator creates a moderator client. baseURL may be empty to use
// the default endpoint.
func NewOpenAIModerator(apiKey, baseURL, model string) *OpenAIModerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIModerator{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const systemPrompt = "You are the moderator of a timed online group discussion. " +
	"Given the discussion log so far, write one short comment that surfaces a " +
	"perspective or democratic discussion element the participants are missing. " +
	"Reply with the comment text only."

// Generate builds a prompt from the windowed log and returns the model's
// comment text.
func (m *OpenAIModerator) Generate(ctx context.Context, log domain.WindowedLog, usedArgumentIDs []string) (string, error) {
	prompt, err := buildPrompt(log, usedArgumentIDs)
	if err != nil {
		return "", err
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(log domain.WindowedLog, usedArgumentIDs []string) (string, error) {
	encoded, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode log: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze the following chat log and identify missing democratic discussion elements:\n\n")
	b.Write(encoded)
	if len(usedArgumentIDs) > 0 {
		b.WriteString("\n\nArguments already raised (do not repeat): ")
		b.WriteString(strings.Join(usedArgumentIDs, ", "))
	}
	return b.String(), nil
}
