package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient implements Client on top of eino chat models, covering
// OpenAI-compatible endpoints and local Ollama servers.
type EinoClient struct {
	config *Config
	models map[string]model.BaseChatModel // keyed by model name
}

// NewEinoClient builds one chat model per distinct model name in the config
func NewEinoClient(ctx context.Context, config *Config, apiKey string) (*EinoClient, error) {
	if config.Provider == ProviderOpenAI && apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	models := make(map[string]model.BaseChatModel)
	for _, name := range config.Models {
		if _, ok := models[name]; ok || name == "" {
			continue
		}
		cm, err := newChatModel(ctx, config, apiKey, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s chat model %s: %w", config.Provider, name, err)
		}
		models[name] = cm
	}

	return newEinoClient(config, models), nil
}

func newEinoClient(config *Config, models map[string]model.BaseChatModel) *EinoClient {
	return &EinoClient{config: config, models: models}
}

func newChatModel(ctx context.Context, config *Config, apiKey, name string) (model.BaseChatModel, error) {
	switch config.Provider {
	case ProviderOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: config.BaseURL,
			Model:   name,
		})
	default:
		temperature := config.Temperature
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      apiKey,
			BaseURL:     config.BaseURL,
			Model:       name,
			Temperature: &temperature,
		})
	}
}

func (c *EinoClient) chatModel(tier ModelTier) (model.BaseChatModel, string, error) {
	name := c.config.GetModel(tier)
	if name == "" {
		return nil, "", fmt.Errorf("no model configured for tier %s", tier)
	}
	cm, ok := c.models[name]
	if !ok {
		return nil, "", fmt.Errorf("model %s is not initialized", name)
	}
	return cm, name, nil
}

// Complete generates text content using the specified model tier
func (c *EinoClient) Complete(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, c.config.Temperature)
}

// CompleteJSON generates JSON content using the specified model tier
func (c *EinoClient) CompleteJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, 0.1)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *EinoClient) generate(ctx context.Context, prompt string, tier ModelTier, temperature float32) (string, error) {
	cm, name, err := c.chatModel(tier)
	if err != nil {
		return "", err
	}

	msg, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, model.WithTemperature(temperature))
	if err != nil {
		return "", &APICallError{Provider: c.config.Provider, Model: name, Message: "generate", Cause: err}
	}
	if msg == nil || msg.Content == "" {
		return "", &APICallError{Provider: c.config.Provider, Model: name, Message: "empty response"}
	}
	return msg.Content, nil
}

// StreamComplete streams content deltas from the chat model
func (c *EinoClient) StreamComplete(ctx context.Context, prompt string, tier ModelTier, onDelta DeltaFunc) (string, error) {
	cm, name, err := c.chatModel(tier)
	if err != nil {
		return "", err
	}

	sr, err := cm.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)}, model.WithTemperature(c.config.Temperature))
	if err != nil {
		return "", &APICallError{Provider: c.config.Provider, Model: name, Message: "stream", Cause: err}
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", &APICallError{Provider: c.config.Provider, Model: name, Message: "stream", Cause: err}
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	return sb.String(), nil
}

// Close is a no-op; eino chat models hold no long-lived resources
func (c *EinoClient) Close() error {
	return nil
}
