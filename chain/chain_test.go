package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finqueryai/finquery-engine/llm"
)

type stubProvider struct {
	response string
}

func (s *stubProvider) Invoke(ctx context.Context, prompt string) (*llm.Response, error) {
	return &llm.Response{Response: s.response, Prompt: prompt}, nil
}
func (s *stubProvider) InvokeAsync(ctx context.Context, prompt string) <-chan llm.AsyncResult {
	ch := make(chan llm.AsyncResult, 1)
	resp, err := s.Invoke(ctx, prompt)
	ch <- llm.AsyncResult{Response: resp, Err: err}
	close(ch)
	return ch
}
func (s *stubProvider) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (s *stubProvider) ListModels(ctx context.Context) ([]llm.Model, error) { return nil, nil }
func (s *stubProvider) ModelName() string                                  { return "stub" }
func (s *stubProvider) Identity() string                                   { return "stub" }

func TestChainInvoke(t *testing.T) {
	c, err := New("greeting", "hello {{.name}}", &stubProvider{response: "hi there"}, nil)
	require.NoError(t, err)

	parsed, resp, err := c.Invoke(context.Background(), map[string]interface{}{"name": "world"})
	require.NoError(t, err)
	require.Equal(t, "hi there", parsed)
	require.Equal(t, "hello world", resp.Prompt)
}

func TestChainInvokeMissingVariable(t *testing.T) {
	c, err := New("greeting", "hello {{.name}}", &stubProvider{response: "hi there"}, nil)
	require.NoError(t, err)

	_, _, err = c.Invoke(context.Background(), map[string]interface{}{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "template_error")
}

func TestChainInvokeFillsTokenEstimateWhenProviderReportsNone(t *testing.T) {
	c, err := New("greeting", "hello {{.name}}", &stubProvider{response: "hi there friend"}, nil)
	require.NoError(t, err)

	_, resp, err := c.Invoke(context.Background(), map[string]interface{}{"name": "world"})
	require.NoError(t, err)
	require.Greater(t, resp.PromptTokens, 0)
	require.Greater(t, resp.CompletionTokens, 0)
	require.Equal(t, resp.PromptTokens+resp.CompletionTokens, resp.TotalTokens)
}

func TestChainInvokeWithParser(t *testing.T) {
	parser := func(raw string) (string, error) { return "[" + raw + "]", nil }
	c, err := New("greeting", "hello {{.name}}", &stubProvider{response: "hi"}, parser)
	require.NoError(t, err)

	parsed, _, err := c.Invoke(context.Background(), map[string]interface{}{"name": "world"})
	require.NoError(t, err)
	require.Equal(t, "[hi]", parsed)
}
