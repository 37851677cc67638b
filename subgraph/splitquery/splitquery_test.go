package splitquery

import (
	"context"
	"testing"

	"github.com/finqueryai/finquery-engine/llm"
	"github.com/finqueryai/finquery-engine/state"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Invoke(ctx context.Context, prompt string) (*llm.Response, error) {
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return &llm.Response{Response: p.responses[idx]}, nil
}

func (p *scriptedProvider) InvokeAsync(ctx context.Context, prompt string) <-chan llm.AsyncResult {
	out := make(chan llm.AsyncResult, 1)
	resp, err := p.Invoke(ctx, prompt)
	out <- llm.AsyncResult{Response: resp, Err: err}
	close(out)
	return out
}

func (p *scriptedProvider) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, error) {
	out := make(chan string)
	close(out)
	return out, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]llm.Model, error) { return nil, nil }
func (p *scriptedProvider) ModelName() string                                   { return "stub" }
func (p *scriptedProvider) Identity() string                                    { return "stub" }

func TestSplitQuerySucceedsFirstAttempt(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"plan": ["revenue by region", "headcount by region"]}`}}
	sg, err := New(provider, 2)
	require.NoError(t, err)

	st := state.New("how does revenue compare to headcount by region?", 3)
	st.DBStruc = "# Database Schema"

	require.NoError(t, sg.Invoke(context.Background(), st))
	require.Equal(t, []string{"revenue by region", "headcount by region"}, st.Plan)
	require.Len(t, st.History, 1)
	require.Empty(t, st.History[0].Error)
}

func TestSplitQueryRetriesOnParseFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"not json at all",
		`{"plan": ["revenue by region"]}`,
	}}
	sg, err := New(provider, 2)
	require.NoError(t, err)

	st := state.New("revenue by region", 3)
	require.NoError(t, sg.Invoke(context.Background(), st))

	require.Equal(t, []string{"revenue by region"}, st.Plan)
	require.Len(t, st.History, 2)
	require.NotEmpty(t, st.History[0].Error)
	require.Empty(t, st.History[1].Error)
}

func TestSplitQueryDegradesAfterBudgetExhausted(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"garbage", "still garbage", "more garbage"}}
	sg, err := New(provider, 2)
	require.NoError(t, err)

	st := state.New("total revenue", 3)
	require.NoError(t, sg.Invoke(context.Background(), st))

	require.Equal(t, []string{"total revenue"}, st.Plan)
	require.Len(t, st.History, 3)
}

func TestSplitQueryRespectsCancellation(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"garbage"}}
	sg, err := New(provider, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := state.New("total revenue", 3)
	err = sg.Invoke(ctx, st)
	require.Error(t, err)
}
