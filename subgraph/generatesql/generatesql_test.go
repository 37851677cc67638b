package generatesql

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

func newPipelineState(plan []string, retries int) *state.Pipeline {
	st := state.New("ignored", retries)
	st.Plan = plan
	st.CurrentPlanIdx = 0
	return st
}

func TestGenerateSQLAcceptsValidStatement(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"sql": "SELECT region, amount FROM fact_revenue", "explanation": "direct lookup", "warnings": []}`,
	}}
	sg, err := New(provider, 3)
	require.NoError(t, err)

	st := newPipelineState([]string{"revenue by region"}, 3)
	require.NoError(t, sg.Invoke(context.Background(), st))

	require.Len(t, st.SQL, 1)
	require.Equal(t, "SELECT region, amount FROM fact_revenue", st.SQL[0])
	require.Empty(t, st.SQLError)
}

func TestGenerateSQLRepairsAfterRejection(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"sql": "DROP TABLE fact_revenue"}`,
		`{"sql": "SELECT region FROM fact_revenue"}`,
	}}
	sg, err := New(provider, 3)
	require.NoError(t, err)

	st := newPipelineState([]string{"regions"}, 3)
	require.NoError(t, sg.Invoke(context.Background(), st))

	require.Len(t, st.SQL, 1)
	require.Equal(t, "SELECT region FROM fact_revenue", st.SQL[0])
	require.Equal(t, 2, st.RetriesRemaining)
	require.Len(t, st.History, 2)
}

func TestGenerateSQLExhaustsBudget(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"sql": "DROP TABLE a"}`,
		`{"sql": "DROP TABLE b"}`,
	}}
	sg, err := New(provider, 1)
	require.NoError(t, err)

	st := newPipelineState([]string{"regions"}, 1)
	err = sg.Invoke(context.Background(), st)

	require.Error(t, err)
	require.Empty(t, st.SQL)
	require.Equal(t, 0, st.RetriesRemaining)
	require.NotEmpty(t, st.SQLError)
}

func TestGenerateSQLReturnsParseErrorOnInvalidPayload(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"not json at all"}}
	sg, err := New(provider, 0)
	require.NoError(t, err)

	st := newPipelineState([]string{"regions"}, 0)
	err = sg.Invoke(context.Background(), st)

	require.Error(t, err)
	require.Empty(t, st.SQL)
}

func TestGenerateSQLResetsRetryBudgetPerPlanStep(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"sql": "DROP TABLE fact_revenue"}`,
		`{"sql": "SELECT region FROM fact_revenue"}`,
		`{"sql": "SELECT headcount FROM fact_headcount"}`,
	}}
	sg, err := New(provider, 3)
	require.NoError(t, err)

	st := newPipelineState([]string{"regions", "headcount"}, 3)

	require.NoError(t, sg.Invoke(context.Background(), st))
	require.Equal(t, 2, st.RetriesRemaining, "step 0 consumed one repair out of its budget")

	st.CurrentPlanIdx = 1
	require.NoError(t, sg.Invoke(context.Background(), st))
	require.Equal(t, 3, st.RetriesRemaining, "step 1 must start with a fresh budget, not step 0's leftover 2")

	require.Len(t, st.SQL, 2)
	require.Equal(t, "SELECT headcount FROM fact_headcount", st.SQL[1])
}
