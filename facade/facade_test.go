package facade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finqueryai/finquery-engine/state"
	"github.com/finqueryai/finquery-engine/subgraph"
)

// New's full wiring (LLM registry, SQL pool, schema introspector) requires
// a live database and LLM backend and is exercised by the orchestrator and
// subgraph package tests instead. These tests cover the registry-management
// surface directly, since Engine's fields are reachable from this package.

type fakeSubgraph struct {
	name string
}

func (f *fakeSubgraph) Name() string { return f.name }
func (f *fakeSubgraph) Invoke(ctx context.Context, st *state.Pipeline) error {
	st.Markdown += "invoked:" + f.name
	return nil
}

func newTestEngine() *Engine {
	return &Engine{subgraphs: subgraph.NewRegistry()}
}

func TestEngineRegisterListGetRemoveSubgraph(t *testing.T) {
	e := newTestEngine()
	sg := &fakeSubgraph{name: "custom_stage"}

	require.NoError(t, e.RegisterSubgraph(sg, subgraph.Capabilities{SupportsStreaming: true}))
	require.Contains(t, e.ListSubgraphs(), "custom_stage")

	desc, ok := e.GetSubgraph("custom_stage")
	require.True(t, ok)
	require.True(t, desc.Capabilities.SupportsStreaming)

	require.NoError(t, e.RemoveSubgraph("custom_stage"))
	require.NotContains(t, e.ListSubgraphs(), "custom_stage")
}

func TestEngineRunSubgraph(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RegisterSubgraph(&fakeSubgraph{name: "custom_stage"}, subgraph.Capabilities{}))

	st := state.New("q", 3)
	require.NoError(t, e.RunSubgraph(context.Background(), "custom_stage", st))
	require.Equal(t, "invoked:custom_stage", st.Markdown)
}

func TestEngineStreamSubgraph(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RegisterSubgraph(&fakeSubgraph{name: "custom_stage"}, subgraph.Capabilities{}))

	st := state.New("q", 3)
	var last *state.Pipeline
	for snap := range e.StreamSubgraph(context.Background(), "custom_stage", st) {
		last = snap
	}
	require.NotNil(t, last)
	require.Equal(t, "invoked:custom_stage", last.Markdown)
}
