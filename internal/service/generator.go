// internal/service/generator.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/unclebandit/leadengage-backend/internal/model"
)

// Generator produces the final message text for a template. Implementations
// must return quickly or error; callers fall back to the rendered raw
// template, a send is never blocked indefinitely on generation.
type Generator interface {
	Generate(ctx context.Context, templateBody string, lead *model.Lead) (string, error)
}

// RenderTemplate fills the placeholders a template may carry from lead
// context. This is also the fallback text when AI generation fails.
func RenderTemplate(template string, lead *model.Lead) string {
	name := lead.Name
	if name == "" {
		name = "there"
	}
	out := strings.ReplaceAll(template, "{name}", name)
	out = strings.ReplaceAll(out, "{phone}", lead.PhoneNumber)
	return out
}

// OpenAIGenerator rewrites the template into a natural message for this
// specific lead.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: 15 * time.Second,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, templateBody string, lead *model.Lead) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Rewrite the following SMS so it reads naturally for a customer named %q. Keep it under 300 characters, keep the intent, no emojis.\n\n%s",
		lead.Name, RenderTemplate(templateBody, lead),
	)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You write short, friendly SMS replies for small businesses."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion for model %s", g.model)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("blank completion for model %s", g.model)
	}
	return text, nil
}
