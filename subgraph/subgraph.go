// Package subgraph defines the uniform contract every pipeline stage
// (SplitQuery, GenerateSQL, FetchData, ReportGen, and any future stage)
// implements, and the Subgraph Registry (C10) that the orchestrator and any
// external caller use to look one up by name.
package subgraph

import (
	"context"
	"fmt"

	"github.com/finqueryai/finquery-engine/registry"
	"github.com/finqueryai/finquery-engine/state"
)

// Subgraph is the uniform interface every pipeline stage implements: a
// name for registry lookup, and an Invoke that mutates Pipeline state in
// place. Subgraphs never return a new state value; they advance the one
// they are given.
type Subgraph interface {
	Name() string
	Invoke(ctx context.Context, st *state.Pipeline) error
}

// Capabilities describes what a registered subgraph supports: whether it
// may run concurrently with sibling plan steps, and whether it can usefully
// participate in streaming snapshots.
type Capabilities struct {
	SupportsParallel  bool
	SupportsStreaming bool
}

// Descriptor pairs a registered Subgraph with its capability metadata.
type Descriptor struct {
	Subgraph     Subgraph
	Capabilities Capabilities
}

// Registry is the process-wide Subgraph Registry (C10): a uniform
// name -> Descriptor store built on the same generic BaseRegistry used for
// LLM providers.
type Registry struct {
	base *registry.BaseRegistry[Descriptor]
}

// NewRegistry creates an empty Subgraph Registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Descriptor]()}
}

// RegisterSubgraph adds sg under its own Name(), failing if a subgraph is
// already registered under that name.
func (r *Registry) RegisterSubgraph(sg Subgraph, caps Capabilities) error {
	return r.base.Register(sg.Name(), Descriptor{Subgraph: sg, Capabilities: caps})
}

// ReplaceSubgraph registers sg under its own Name(), overwriting any
// existing entry.
func (r *Registry) ReplaceSubgraph(sg Subgraph, caps Capabilities) error {
	return r.base.Replace(sg.Name(), Descriptor{Subgraph: sg, Capabilities: caps})
}

// Get looks up a registered subgraph descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	return r.base.Get(name)
}

// ListNames returns every registered subgraph's name.
func (r *Registry) ListNames() []string {
	return r.base.ListNames()
}

// Remove unregisters a subgraph by name.
func (r *Registry) Remove(name string) error {
	return r.base.Remove(name)
}

// Invoke looks up name and runs it against st, returning an error if no
// subgraph is registered under that name.
func (r *Registry) Invoke(ctx context.Context, name string, st *state.Pipeline) error {
	desc, ok := r.base.Get(name)
	if !ok {
		return fmt.Errorf("subgraph '%s' is not registered", name)
	}
	return desc.Subgraph.Invoke(ctx, st)
}
