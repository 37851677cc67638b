package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/finqueryai/finquery-engine/state"
	"github.com/finqueryai/finquery-engine/subgraph"
	"github.com/finqueryai/finquery-engine/subgraph/fetchdata"
)

const (
	stageSplitQuery  = "split_query"
	stageGenerateSQL = "generate_sql"
	stageFetchData   = "fetch_data"
	stageReportGen   = "report_gen"
)

// Orchestrator drives a natural language query through SplitQuery, the
// GenerateSQL/FetchData loop over the resulting plan, and ReportGen,
// dispatching each stage through the Subgraph Registry rather than calling
// subgraph implementations directly.
type Orchestrator struct {
	registry          *subgraph.Registry
	sqlRetryBudget    int
	parallelPlanSteps bool
	maxCellChars      int
}

// New binds an Orchestrator to registry. sqlRetryBudget seeds every fresh
// Pipeline's RetriesRemaining (spec default 3). parallelPlanSteps, when
// true, runs GenerateSQL+FetchData for every plan step concurrently instead
// of one step at a time; each concurrent step runs against its own
// Pipeline clone, so no RetriesRemaining counter is shared between
// goroutines (see DESIGN.md). maxCellChars
// is only used to render Markdown for plan steps completed in parallel;
// the sequential path renders through the registered fetch_data subgraph,
// which carries its own configured value.
func New(registry *subgraph.Registry, sqlRetryBudget int, parallelPlanSteps bool, maxCellChars int) *Orchestrator {
	return &Orchestrator{
		registry:          registry,
		sqlRetryBudget:    sqlRetryBudget,
		parallelPlanSteps: parallelPlanSteps,
		maxCellChars:      maxCellChars,
	}
}

// Invoke runs the full pipeline for query and returns the final state,
// including a populated Report on success.
func (o *Orchestrator) Invoke(ctx context.Context, query string, dbStruc string) (*state.Pipeline, error) {
	st := state.New(query, o.sqlRetryBudget)
	st.DBStruc = dbStruc

	err := o.run(ctx, st)
	st.Success = st.DeriveSuccess()
	return st, err
}

// Stream runs the full pipeline for query, emitting a read-only snapshot of
// Pipeline state after every stage transition. The channel closes when the
// pipeline completes, fails, or ctx is cancelled.
func (o *Orchestrator) Stream(ctx context.Context, query string, dbStruc string) <-chan *state.Pipeline {
	out := make(chan *state.Pipeline)

	go func() {
		defer close(out)

		st := state.New(query, o.sqlRetryBudget)
		st.DBStruc = dbStruc

		emit := func() {
			st.Success = st.DeriveSuccess()
			select {
			case out <- st.Clone():
			case <-ctx.Done():
			}
		}

		o.runWithHook(ctx, st, emit)
		emit()
	}()

	return out
}

func (o *Orchestrator) run(ctx context.Context, st *state.Pipeline) error {
	return o.runWithHook(ctx, st, func() {})
}

// runWithHook drives st through every stage, calling afterStage once per
// stage transition (used by Stream to emit snapshots; a no-op for Invoke).
func (o *Orchestrator) runWithHook(ctx context.Context, st *state.Pipeline, afterStage func()) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	if err := o.registry.Invoke(ctx, stageSplitQuery, st); err != nil {
		return err
	}
	afterStage()

	if err := o.runPlan(ctx, st, afterStage); err != nil {
		if !errors.Is(err, ErrBudgetExhausted) {
			return err
		}
		// SQL synthesis exhausted its retry budget: stop advancing the
		// plan but still attempt a report from whatever was fetched.
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	if err := o.registry.Invoke(ctx, stageReportGen, st); err != nil {
		return err
	}
	afterStage()

	return nil
}

func (o *Orchestrator) runPlan(ctx context.Context, st *state.Pipeline, afterStage func()) error {
	if o.parallelPlanSteps && len(st.Plan) > 1 {
		return o.runPlanParallel(ctx, st, afterStage)
	}
	return o.runPlanSequential(ctx, st, afterStage)
}

func (o *Orchestrator) runPlanSequential(ctx context.Context, st *state.Pipeline, afterStage func()) error {
	for st.CurrentPlanIdx < len(st.Plan) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		if err := o.registry.Invoke(ctx, stageGenerateSQL, st); err != nil {
			return err
		}
		afterStage()

		if err := o.registry.Invoke(ctx, stageFetchData, st); err != nil {
			return err
		}
		afterStage()
	}
	return nil
}

// stepResult is the outcome of running GenerateSQL+FetchData for a single
// plan step in isolation, to be merged back into the shared Pipeline state
// in plan order once every step completes.
type stepResult struct {
	sql      string
	block    state.ResultBlock
	sqlError string
	history  []state.HistoryEntry
	err      error
}

func (o *Orchestrator) runPlanParallel(ctx context.Context, st *state.Pipeline, afterStage func()) error {
	remaining := st.Plan[st.CurrentPlanIdx:]
	results := make([]stepResult, len(remaining))

	group, gctx := errgroup.WithContext(ctx)
	for i, subquery := range remaining {
		i, subquery := i, subquery
		group.Go(func() error {
			step := state.New(st.Query, o.sqlRetryBudget)
			step.DBStruc = st.DBStruc
			step.Plan = []string{subquery}
			step.CurrentPlanIdx = 0

			if err := o.registry.Invoke(gctx, stageGenerateSQL, step); err != nil {
				results[i] = stepResult{sqlError: step.SQLError, history: step.History, err: err}
				return nil
			}
			if err := o.registry.Invoke(gctx, stageFetchData, step); err != nil {
				results[i] = stepResult{sqlError: step.SQLError, history: step.History, err: err}
				return nil
			}

			results[i] = stepResult{sql: step.SQL[0], block: step.RawData[0], history: step.History}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	var firstErr error
	for _, res := range results {
		st.History = append(st.History, res.history...)
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			if res.sqlError != "" {
				st.SQLError = res.sqlError
			}
			continue
		}
		st.SQL = append(st.SQL, res.sql)
		res.block.SQLIndex = len(st.SQL) - 1
		st.RawData = append(st.RawData, res.block)
		st.Markdown += fetchdata.RenderBlockMarkdown(res.block, o.maxCellChars)
	}
	st.CurrentPlanIdx = len(st.Plan)
	afterStage()

	return firstErr
}
