package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply   string
	chunks  []string
	err     error
	prompts []string
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.prompts = append(f.prompts, input[len(input)-1].Content)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.prompts = append(f.prompts, input[len(input)-1].Content)
	if f.err != nil {
		return nil, f.err
	}
	sr, sw := schema.Pipe[*schema.Message](len(f.chunks))
	go func() {
		defer sw.Close()
		for _, c := range f.chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
	}()
	return sr, nil
}

func newTestEinoClient(fake *fakeChatModel) *EinoClient {
	cfg := DefaultOllamaConfig()
	return newEinoClient(cfg, map[string]model.BaseChatModel{"qwen2.5:7b": fake})
}

func TestEinoClient_Complete(t *testing.T) {
	fake := &fakeChatModel{reply: "从前有一只小兔。"}
	client := newTestEinoClient(fake)

	text, err := client.Complete(context.Background(), "写一个故事", TierStandard)
	require.NoError(t, err)
	assert.Equal(t, "从前有一只小兔。", text)
	assert.Equal(t, []string{"写一个故事"}, fake.prompts)
}

func TestEinoClient_CompleteJSON_CleansFence(t *testing.T) {
	fake := &fakeChatModel{reply: "```json\n{\"name\": \"小兔\"}\n```"}
	client := newTestEinoClient(fake)

	text, err := client.CompleteJSON(context.Background(), "extract", TierLite)
	require.NoError(t, err)
	assert.Equal(t, `{"name": "小兔"}`, text)
}

func TestEinoClient_Complete_WrapsError(t *testing.T) {
	cause := errors.New("connection refused")
	client := newTestEinoClient(&fakeChatModel{err: cause})

	_, err := client.Complete(context.Background(), "x", TierStandard)
	require.Error(t, err)

	var apiErr *APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ProviderOllama, apiErr.Provider)
	assert.ErrorIs(t, err, cause)
}

func TestEinoClient_StreamComplete(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"从前", "", "有一只", "小兔。"}}
	client := newTestEinoClient(fake)

	var deltas []string
	text, err := client.StreamComplete(context.Background(), "写", TierStandard, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "从前有一只小兔。", text)
	assert.Equal(t, []string{"从前", "有一只", "小兔。"}, deltas)
}

func TestEinoClient_StreamComplete_StopsOnCallbackError(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"a", "b", "c"}}
	client := newTestEinoClient(fake)
	stop := errors.New("stop")

	calls := 0
	_, err := client.StreamComplete(context.Background(), "写", TierStandard, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestEinoClient_MissingModel(t *testing.T) {
	client := newEinoClient(DefaultOpenAIConfig(), map[string]model.BaseChatModel{})

	_, err := client.Complete(context.Background(), "x", TierStandard)
	assert.ErrorContains(t, err, "not initialized")
}

func TestBuildExtractionPrompt_Character(t *testing.T) {
	prompt := BuildExtractionPrompt(CharacterSchema(), "小兔住在森林里。")

	assert.Contains(t, prompt, `"name": string（必填）`)
	assert.Contains(t, prompt, `"features": string（必填）`)
	assert.Contains(t, prompt, "小兔住在森林里。")
}
