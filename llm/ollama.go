package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/finqueryai/finquery-engine/config"
	"github.com/finqueryai/finquery-engine/httpclient"
	"github.com/finqueryai/finquery-engine/observability"
)

// OllamaProvider implements Provider against Ollama's native HTTP API:
// POST /api/generate for completions (streaming via newline-delimited JSON
// when "stream": true) and GET /api/tags for model listing.
type OllamaProvider struct {
	cfg        config.LLMProviderConfig
	baseURL    string
	httpClient *httpclient.Client
}

// NewOllamaProvider validates cfg and builds an OllamaProvider bound to it.
func NewOllamaProvider(cfg config.LLMProviderConfig) (*OllamaProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config_error: %w", err)
	}

	return &OllamaProvider{
		cfg:     cfg,
		baseURL: cfg.BaseURL,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second}),
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(2*time.Second),
		),
	}, nil
}

func (o *OllamaProvider) ModelName() string { return o.cfg.ModelName }

func (o *OllamaProvider) Identity() string {
	return fmt.Sprintf("ollama|%s|%s|%.2f|%d", o.baseURL, o.cfg.ModelName, o.cfg.Temperature, o.cfg.MaxTokens)
}

func (o *OllamaProvider) generateRequest(prompt string, stream bool) map[string]interface{} {
	return map[string]interface{}{
		"model":  o.cfg.ModelName,
		"prompt": prompt,
		"stream": stream,
		"options": map[string]interface{}{
			"temperature": o.cfg.Temperature,
			"num_predict": o.cfg.MaxTokens,
			"top_p":       o.cfg.TopP,
		},
	}
}

// Invoke performs one synchronous, non-streaming completion.
func (o *OllamaProvider) Invoke(ctx context.Context, prompt string) (*Response, error) {
	tracer := observability.GetTracer("llm.ollama")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String("llm.model", o.cfg.ModelName),
			attribute.Int("llm.prompt_length", len(prompt)),
		))
	defer span.End()

	start := time.Now()
	requestID := uuid.NewString()

	resp, err := o.post(ctx, "/api/generate", o.generateRequest(prompt, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm_error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm_error: %w", err)
	}

	var payload struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm_error: decode response: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	return &Response{
		RequestID:        requestID,
		ModelName:        o.cfg.ModelName,
		Prompt:           prompt,
		Response:         payload.Response,
		DurationS:        measure(start),
		PromptTokens:     payload.PromptEvalCount,
		CompletionTokens: payload.EvalCount,
		TotalTokens:      payload.PromptEvalCount + payload.EvalCount,
	}, nil
}

// InvokeAsync runs Invoke on its own goroutine and delivers exactly one
// AsyncResult.
func (o *OllamaProvider) InvokeAsync(ctx context.Context, prompt string) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		resp, err := o.Invoke(ctx, prompt)
		out <- AsyncResult{Response: resp, Err: err}
	}()
	return out
}

// InvokeStreaming streams incremental text chunks as Ollama emits them via
// its newline-delimited JSON streaming response.
func (o *OllamaProvider) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, error) {
	resp, err := o.postStreaming(ctx, "/api/generate", o.generateRequest(prompt, true))
	if err != nil {
		return nil, fmt.Errorf("llm_error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm_error: ollama api error (status %d): %s", resp.StatusCode, string(body))
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			var chunk struct {
				Response string `json:"response"`
				Done     bool   `json:"done"`
			}
			if err := decoder.Decode(&chunk); err != nil {
				return
			}
			if chunk.Response != "" {
				select {
				case ch <- chunk.Response:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				return
			}
		}
	}()

	return ch, nil
}

// ListModels calls GET /api/tags.
func (o *OllamaProvider) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("llm_error: build request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm_error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm_error: ollama api error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("llm_error: decode tags response: %w", err)
	}

	models := make([]Model, 0, len(payload.Models))
	for _, m := range payload.Models {
		models = append(models, Model{Name: m.Name})
	}
	return models, nil
}

func (o *OllamaProvider) post(ctx context.Context, endpoint string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return o.httpClient.Do(req)
}

func (o *OllamaProvider) postStreaming(ctx context.Context, endpoint string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	return o.httpClient.Do(req)
}
