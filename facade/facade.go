// Package facade is the pipeline core's invocation surface: the set of
// functions an embedding application (a CLI, a job runner, an HTTP layer
// built on top of this module) calls to run the pipeline or an individual
// subgraph, and to manage the Subgraph Registry. It deliberately does not
// expose an HTTP/gRPC transport of its own.
package facade

import (
	"context"
	"time"

	"github.com/finqueryai/finquery-engine/config"
	"github.com/finqueryai/finquery-engine/llm"
	"github.com/finqueryai/finquery-engine/pipeline"
	"github.com/finqueryai/finquery-engine/report"
	"github.com/finqueryai/finquery-engine/schema"
	"github.com/finqueryai/finquery-engine/sqlexec"
	"github.com/finqueryai/finquery-engine/state"
	"github.com/finqueryai/finquery-engine/subgraph"
	"github.com/finqueryai/finquery-engine/subgraph/fetchdata"
	"github.com/finqueryai/finquery-engine/subgraph/generatesql"
	"github.com/finqueryai/finquery-engine/subgraph/splitquery"
)

// Engine wires every component (LLM registry, SQL pool, schema
// introspector, Subgraph Registry, orchestrator) into the single object
// the invocation surface operates on.
type Engine struct {
	cfg          *config.Config
	llms         *llm.Registry
	pool         *sqlexec.Pool
	introspector *schema.CachedIntrospector
	subgraphs    *subgraph.Registry
	orchestrator *pipeline.Orchestrator
}

// New builds an Engine from cfg: it resolves the default LLM provider,
// opens the analytical database pool, constructs every subgraph, and
// registers them all under the names the orchestrator expects
// (split_query, generate_sql, fetch_data, report_gen).
func New(cfg *config.Config) (*Engine, error) {
	llmCfg, _, _ := cfg.DefaultLLM()

	llmRegistry := llm.NewRegistry()
	provider, err := llmRegistry.CreateFromConfig("default", llmCfg)
	if err != nil {
		return nil, err
	}

	pool := sqlexec.NewPool()
	db, err := pool.Get(cfg.Database)
	if err != nil {
		return nil, err
	}

	introspector := schema.NewCachedIntrospector(
		schema.NewIntrospector(db, cfg.Database.Schema, cfg.Database.MaxFKValues),
		5*time.Minute,
	)

	executor := sqlexec.NewExecutor(db, cfg.Database.TimeoutS)

	splitQuery, err := splitquery.New(provider, cfg.Pipeline.RetryBudgetSplit)
	if err != nil {
		return nil, err
	}
	generateSQL, err := generatesql.New(provider, cfg.Pipeline.RetryBudgetSQL)
	if err != nil {
		return nil, err
	}
	fetchData := fetchdata.New(executor, cfg.Database.MaxCellChars)
	reportGen, err := report.New(provider)
	if err != nil {
		return nil, err
	}

	subgraphs := subgraph.NewRegistry()
	if err := subgraphs.RegisterSubgraph(splitQuery, subgraph.Capabilities{}); err != nil {
		return nil, err
	}
	if err := subgraphs.RegisterSubgraph(generateSQL, subgraph.Capabilities{SupportsParallel: true}); err != nil {
		return nil, err
	}
	if err := subgraphs.RegisterSubgraph(fetchData, subgraph.Capabilities{SupportsParallel: true, SupportsStreaming: true}); err != nil {
		return nil, err
	}
	if err := subgraphs.RegisterSubgraph(reportGen, subgraph.Capabilities{}); err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(subgraphs, cfg.Pipeline.RetryBudgetSQL, cfg.Pipeline.ParallelPlanSteps, cfg.Database.MaxCellChars)

	return &Engine{
		cfg:          cfg,
		llms:         llmRegistry,
		pool:         pool,
		introspector: introspector,
		subgraphs:    subgraphs,
		orchestrator: orchestrator,
	}, nil
}

// Close releases the Engine's database connections.
func (e *Engine) Close() error {
	return e.pool.Close()
}

// RunPipeline runs the full pipeline synchronously for a natural language
// query and returns the final state.
func (e *Engine) RunPipeline(ctx context.Context, query string) (*state.Pipeline, error) {
	dbStruc, err := e.introspector.DescribeMarkdown(ctx, e.cfg.Database.Schema, time.Now())
	if err != nil {
		return nil, err
	}
	return e.orchestrator.Invoke(ctx, query, dbStruc)
}

// StreamPipeline runs the full pipeline, emitting a read-only Pipeline
// snapshot after every stage transition.
func (e *Engine) StreamPipeline(ctx context.Context, query string) (<-chan *state.Pipeline, error) {
	dbStruc, err := e.introspector.DescribeMarkdown(ctx, e.cfg.Database.Schema, time.Now())
	if err != nil {
		return nil, err
	}
	return e.orchestrator.Stream(ctx, query, dbStruc), nil
}

// RunSubgraph invokes a single named subgraph against an already-built
// Pipeline state, synchronously.
func (e *Engine) RunSubgraph(ctx context.Context, name string, st *state.Pipeline) error {
	return e.subgraphs.Invoke(ctx, name, st)
}

// StreamSubgraph invokes a single named subgraph, emitting one snapshot of
// st once the subgraph call returns.
func (e *Engine) StreamSubgraph(ctx context.Context, name string, st *state.Pipeline) <-chan *state.Pipeline {
	out := make(chan *state.Pipeline, 1)
	go func() {
		defer close(out)
		_ = e.subgraphs.Invoke(ctx, name, st)
		out <- st.Clone()
	}()
	return out
}

// RegisterSubgraph adds a custom subgraph to the Engine's registry.
func (e *Engine) RegisterSubgraph(sg subgraph.Subgraph, caps subgraph.Capabilities) error {
	return e.subgraphs.RegisterSubgraph(sg, caps)
}

// ListSubgraphs returns the names of every registered subgraph.
func (e *Engine) ListSubgraphs() []string {
	return e.subgraphs.ListNames()
}

// GetSubgraph looks up a registered subgraph descriptor by name.
func (e *Engine) GetSubgraph(name string) (subgraph.Descriptor, bool) {
	return e.subgraphs.Get(name)
}

// RemoveSubgraph unregisters a subgraph by name.
func (e *Engine) RemoveSubgraph(name string) error {
	return e.subgraphs.Remove(name)
}
