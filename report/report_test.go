package report

import (
	"context"
	"testing"

	"github.com/finqueryai/finquery-engine/llm"
	"github.com/finqueryai/finquery-engine/state"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	response string
	err      error
}

func (p *stubProvider) Invoke(ctx context.Context, prompt string) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Response: p.response}, nil
}

func (p *stubProvider) InvokeAsync(ctx context.Context, prompt string) <-chan llm.AsyncResult {
	out := make(chan llm.AsyncResult, 1)
	resp, err := p.Invoke(ctx, prompt)
	out <- llm.AsyncResult{Response: resp, Err: err}
	close(out)
	return out
}

func (p *stubProvider) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, error) {
	out := make(chan string)
	close(out)
	return out, nil
}

func (p *stubProvider) ListModels(ctx context.Context) ([]llm.Model, error) { return nil, nil }
func (p *stubProvider) ModelName() string                                   { return "stub" }
func (p *stubProvider) Identity() string                                    { return "stub" }

func TestGeneratorProducesReport(t *testing.T) {
	provider := &stubProvider{response: `{
		"overview": "Revenue grew 12% quarter over quarter.",
		"key_indicators": ["Revenue: $1.2M"],
		"trends": ["West region outpacing East"],
		"risks": ["East region concentration"],
		"recommendations": ["Invest in East region marketing"]
	}`}
	gen, err := New(provider)
	require.NoError(t, err)

	st := state.New("how is revenue trending?", 3)
	st.Markdown = "| region | amount |\n|---|---|\n| west | 100 |\n"

	require.NoError(t, gen.Invoke(context.Background(), st))
	require.NotNil(t, st.Report)
	require.Equal(t, "Revenue grew 12% quarter over quarter.", st.Report.Overview)
	require.Len(t, st.Report.KeyIndicators, 1)
	require.Len(t, st.History, 1)
}

func TestGeneratorReturnsParseErrorOnInvalidJSON(t *testing.T) {
	provider := &stubProvider{response: "not json"}
	gen, err := New(provider)
	require.NoError(t, err)

	st := state.New("q", 3)
	err = gen.Invoke(context.Background(), st)
	require.Error(t, err)
	require.Nil(t, st.Report)
	require.Len(t, st.History, 1)
	require.NotEmpty(t, st.History[0].Error)
}
