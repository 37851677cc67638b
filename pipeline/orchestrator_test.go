package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finqueryai/finquery-engine/state"
	"github.com/finqueryai/finquery-engine/subgraph"
)

type fakeSubgraph struct {
	name string
	fn   func(ctx context.Context, st *state.Pipeline) error
}

func (f *fakeSubgraph) Name() string { return f.name }
func (f *fakeSubgraph) Invoke(ctx context.Context, st *state.Pipeline) error {
	return f.fn(ctx, st)
}

func newHappyPathRegistry(t *testing.T) *subgraph.Registry {
	t.Helper()
	reg := subgraph.NewRegistry()

	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "split_query",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.Plan = []string{"revenue by region", "headcount by region"}
			return nil
		},
	}, subgraph.Capabilities{}))

	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "generate_sql",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.SQL = append(st.SQL, fmt.Sprintf("SELECT * FROM t%d", st.CurrentPlanIdx))
			return nil
		},
	}, subgraph.Capabilities{SupportsParallel: true}))

	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "fetch_data",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.RawData = append(st.RawData, state.ResultBlock{SQLIndex: st.CurrentPlanIdx, RowCount: 1})
			st.Markdown += fmt.Sprintf("block %d\n", st.CurrentPlanIdx)
			st.CurrentPlanIdx++
			return nil
		},
	}, subgraph.Capabilities{SupportsParallel: true}))

	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "report_gen",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.Report = &state.Report{Overview: "ok"}
			return nil
		},
	}, subgraph.Capabilities{}))

	return reg
}

func TestOrchestratorInvokeHappyPath(t *testing.T) {
	reg := newHappyPathRegistry(t)
	orch := New(reg, 3, false, 200)

	st, err := orch.Invoke(context.Background(), "how is revenue trending by region?", "# schema")
	require.NoError(t, err)
	require.Len(t, st.Plan, 2)
	require.Len(t, st.SQL, 2)
	require.Len(t, st.RawData, 2)
	require.Equal(t, 2, st.CurrentPlanIdx)
	require.NotNil(t, st.Report)
	require.Equal(t, "ok", st.Report.Overview)
	require.True(t, st.Success)
}

func TestOrchestratorInvokeParallel(t *testing.T) {
	reg := newHappyPathRegistry(t)
	orch := New(reg, 3, true, 200)

	st, err := orch.Invoke(context.Background(), "how is revenue trending by region?", "# schema")
	require.NoError(t, err)
	require.Len(t, st.SQL, 2)
	require.Len(t, st.RawData, 2)
	require.Equal(t, 2, st.CurrentPlanIdx)
	require.NotNil(t, st.Report)
	require.True(t, st.Success)
}

func TestOrchestratorStreamEmitsSnapshotPerStage(t *testing.T) {
	reg := newHappyPathRegistry(t)
	orch := New(reg, 3, false, 200)

	var snapshots []*state.Pipeline
	for snap := range orch.Stream(context.Background(), "q", "# schema") {
		snapshots = append(snapshots, snap)
	}

	require.NotEmpty(t, snapshots)
	require.False(t, snapshots[0].Success, "no snapshot before report_gen runs should read as successful")
	last := snapshots[len(snapshots)-1]
	require.NotNil(t, last.Report)
	require.True(t, last.Success)
}

func TestOrchestratorInvokeStopsOnGenerateSQLBudgetExhaustion(t *testing.T) {
	reg := subgraph.NewRegistry()
	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "split_query",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.Plan = []string{"revenue by region"}
			return nil
		},
	}, subgraph.Capabilities{}))
	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "generate_sql",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.SQLError = "rejected: not read-only"
			return fmt.Errorf("%w: rejected", ErrBudgetExhausted)
		},
	}, subgraph.Capabilities{}))
	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "fetch_data",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			t.Fatal("fetch_data should not run when generate_sql exhausts its budget")
			return nil
		},
	}, subgraph.Capabilities{}))
	require.NoError(t, reg.RegisterSubgraph(&fakeSubgraph{
		name: "report_gen",
		fn: func(ctx context.Context, st *state.Pipeline) error {
			st.Report = &state.Report{Overview: "partial"}
			return nil
		},
	}, subgraph.Capabilities{}))

	orch := New(reg, 3, false, 200)
	st, err := orch.Invoke(context.Background(), "q", "# schema")

	require.NoError(t, err)
	require.NotNil(t, st.Report)
	require.Equal(t, "partial", st.Report.Overview)
	require.False(t, st.Success, "a report over partial data after budget exhaustion is not a success")
}

func TestOrchestratorInvokeRespectsCancellation(t *testing.T) {
	reg := newHappyPathRegistry(t)
	orch := New(reg, 3, false, 200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Invoke(ctx, "q", "# schema")
	require.Error(t, err)
}
