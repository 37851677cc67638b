// Package splitquery implements C6: decomposing a natural-language
// analytical question into an ordered plan of single-table sub-queries
// that GenerateSQL and FetchData process one at a time.
package splitquery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/finqueryai/finquery-engine/chain"
	"github.com/finqueryai/finquery-engine/llm"
	"github.com/finqueryai/finquery-engine/parsers"
	"github.com/finqueryai/finquery-engine/pipeline"
	"github.com/finqueryai/finquery-engine/state"
)

const promptTemplate = `You are decomposing an analytical question into an ordered plan of
single-table sub-queries against the following database:

{{.db_struc}}

Question: {{.query}}

Respond with a JSON object of the shape {"plan": ["sub-query 1", "sub-query 2", ...]}.
Each entry must describe data retrievable from a single table. Order the
entries so that a sub-query only depends on ones that precede it.`

type planPayload struct {
	Plan []string `json:"plan" mapstructure:"plan"`
}

func cleanParser(raw string) (string, error) {
	return parsers.Clean(raw), nil
}

// Subgraph decomposes Pipeline.Query into Pipeline.Plan using an LLM chain,
// retrying on parse failure up to retryBudget times before degrading to a
// single-step plan containing the original query unmodified.
type Subgraph struct {
	chain       *chain.Chain
	retryBudget int
}

// New builds a SplitQuery subgraph bound to provider. retryBudget is the
// pipeline's configured split retry budget (spec default 2).
func New(provider llm.Provider, retryBudget int) (*Subgraph, error) {
	c, err := chain.New("split_query", promptTemplate, provider, cleanParser)
	if err != nil {
		return nil, err
	}
	if retryBudget < 0 {
		retryBudget = 0
	}
	return &Subgraph{chain: c, retryBudget: retryBudget}, nil
}

// Name identifies this subgraph in the Subgraph Registry.
func (s *Subgraph) Name() string { return "split_query" }

// Invoke decomposes st.Query into st.Plan, appending one history entry per
// LLM attempt. On persistent parse failure across retryBudget+1 attempts it
// degrades to a single-step plan of [st.Query] rather than failing the
// pipeline, since a single-step plan is always a valid fallback.
func (s *Subgraph) Invoke(ctx context.Context, st *state.Pipeline) error {
	attempts := s.retryBudget + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", pipeline.ErrCancelled, err)
		}

		entry := state.NewHistoryEntry("split_query")
		cleaned, resp, err := s.chain.Invoke(ctx, map[string]interface{}{
			"query":    st.Query,
			"db_struc": st.DBStruc,
		})
		if resp != nil {
			entry.RequestID = resp.RequestID
			entry.Prompt = resp.Prompt
			entry.Response = resp.Response
			entry.DurationS = resp.DurationS
			entry.PromptTokens = resp.PromptTokens
			entry.CompletionTokens = resp.CompletionTokens
			entry.TotalTokens = resp.TotalTokens
		}
		if err != nil {
			entry.Error = err.Error()
			st.AppendHistory(entry)
			continue
		}

		plan, parseErr := parsePlan(cleaned)
		if parseErr != nil {
			entry.Error = parseErr.Error()
			st.AppendHistory(entry)
			continue
		}

		st.AppendHistory(entry)
		st.Plan = plan
		st.CurrentPlanIdx = 0
		return nil
	}

	st.Plan = []string{st.Query}
	st.CurrentPlanIdx = 0
	return nil
}

func parsePlan(cleaned string) ([]string, error) {
	obj, err := parsers.ExtractJSON(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrParse, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshal plan: %v", pipeline.ErrParse, err)
	}

	var payload planPayload
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode plan: %v", pipeline.ErrParse, err)
	}

	if len(payload.Plan) == 0 {
		return nil, fmt.Errorf("%w: plan is empty", pipeline.ErrParse)
	}

	return payload.Plan, nil
}
