package llm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/finqueryai/finquery-engine/config"
	"github.com/finqueryai/finquery-engine/observability"
)

// OpenAIProvider implements Provider against any OpenAI-compatible chat
// completions API, demonstrating that the pipeline's LLM client contract is
// provider-agnostic rather than Ollama-specific.
type OpenAIProvider struct {
	cfg    config.LLMProviderConfig
	client *openai.Client
}

// NewOpenAIProvider validates cfg and builds an OpenAIProvider bound to it.
func NewOpenAIProvider(cfg config.LLMProviderConfig) (*OpenAIProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config_error: %w", err)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient.Timeout = time.Duration(cfg.TimeoutS) * time.Second

	return &OpenAIProvider{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}, nil
}

func (p *OpenAIProvider) ModelName() string { return p.cfg.ModelName }

func (p *OpenAIProvider) Identity() string {
	return fmt.Sprintf("openai|%s|%s|%.2f|%d", p.cfg.BaseURL, p.cfg.ModelName, p.cfg.Temperature, p.cfg.MaxTokens)
}

func (p *OpenAIProvider) chatRequest(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: p.cfg.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:      float32(p.cfg.Temperature),
		MaxTokens:        p.cfg.MaxTokens,
		TopP:             float32(p.cfg.TopP),
		FrequencyPenalty: float32(p.cfg.FrequencyPenalty),
		PresencePenalty:  float32(p.cfg.PresencePenalty),
		Stream:           stream,
	}
}

func (p *OpenAIProvider) Invoke(ctx context.Context, prompt string) (*Response, error) {
	tracer := observability.GetTracer("llm.openai")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String("llm.model", p.cfg.ModelName),
			attribute.Int("llm.prompt_length", len(prompt)),
		))
	defer span.End()

	start := time.Now()
	requestID := uuid.NewString()

	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(prompt, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm_error: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("empty choices in completion response")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm_error: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	return &Response{
		RequestID:        requestID,
		ModelName:        p.cfg.ModelName,
		Prompt:           prompt,
		Response:         resp.Choices[0].Message.Content,
		DurationS:        measure(start),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (p *OpenAIProvider) InvokeAsync(ctx context.Context, prompt string) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		resp, err := p.Invoke(ctx, prompt)
		out <- AsyncResult{Response: resp, Err: err}
	}()
	return out
}

func (p *OpenAIProvider) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.chatRequest(prompt, true))
	if err != nil {
		return nil, fmt.Errorf("llm_error: %w", err)
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			resp, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				return
			}
			if len(resp.Choices) > 0 {
				delta := resp.Choices[0].Delta.Content
				if delta != "" {
					select {
					case ch <- delta:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// ListModels calls the OpenAI-compatible /models endpoint.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm_error: %w", err)
	}

	models := make([]Model, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, Model{Name: m.ID})
	}
	return models, nil
}
