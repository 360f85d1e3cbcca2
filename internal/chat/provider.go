package chat

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator is the opaque "generate streaming text" capability the relay
// depends on. Implementations must call onDelta once per output chunk, in
// production order, and stop as soon as ctx is cancelled.
type Generator interface {
	Stream(ctx context.Context, systemPrompt string, history []Message, onDelta func(delta string) error) error
}

// LangchainGenerator implements Generator using langchain abstractions
type LangchainGenerator struct {
	llm       llms.Model
	modelName string
}

// GeneratorConfig holds the upstream provider settings
type GeneratorConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// NewLangchainGenerator creates a generator backed by an OpenAI-compatible API
func NewLangchainGenerator(config GeneratorConfig) (*LangchainGenerator, error) {
	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &LangchainGenerator{
		llm:       llm,
		modelName: config.Model,
	}, nil
}

// Stream forwards the system prompt and conversation history to the model
// and relays output chunks through onDelta as they are produced.
func (g *LangchainGenerator) Stream(ctx context.Context, systemPrompt string, history []Message, onDelta func(delta string) error) error {
	content := make([]llms.MessageContent, 0, len(history)+1)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))

	for _, msg := range history {
		text := msg.Text()
		if text == "" {
			continue
		}
		switch msg.Role {
		case RoleAssistant:
			content = append(content, llms.TextParts(llms.ChatMessageTypeAI, text))
		case RoleSystem:
			content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, text))
		default:
			content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, text))
		}
	}

	_, err := g.llm.GenerateContent(ctx, content,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	return nil
}
