// Package generatesql implements C7: synthesizing one read-only SQL
// statement per SplitQuery plan step, through a
// Prepare -> Synthesise -> Validate -> (Accept|Repair) -> Terminal state
// machine bounded by the pipeline's SQL retry budget.
package generatesql

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/finqueryai/finquery-engine/chain"
	"github.com/finqueryai/finquery-engine/llm"
	"github.com/finqueryai/finquery-engine/parsers"
	"github.com/finqueryai/finquery-engine/pipeline"
	"github.com/finqueryai/finquery-engine/state"
	"github.com/finqueryai/finquery-engine/validator"
)

const synthesisTemplate = `You write a single read-only SQL SELECT statement (CTEs allowed) against
the following database:

{{.db_struc}}

Sub-query: {{.subquery}}
{{if .prior_error}}
Your previous attempt was rejected: {{.prior_error}}
Previous SQL: {{.prior_sql}}
{{end}}
Respond with a single JSON object matching this schema:

{{.schema}}`

// sqlPayload is the structured shape GenerateSQL asks the LLM to return: a
// single statement, a short rationale, and any caveats about the result
// (e.g. an assumption made to resolve an ambiguous column reference).
type sqlPayload struct {
	SQL         string   `json:"sql" mapstructure:"sql"`
	Explanation string   `json:"explanation" mapstructure:"explanation"`
	Warnings    []string `json:"warnings" mapstructure:"warnings"`
}

var (
	schemaOnce sync.Once
	schemaJSON string
)

func promptSchema() string {
	schemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{ExpandedStruct: true}
		schema := reflector.Reflect(&sqlPayload{})
		b, err := json.MarshalIndent(schema, "", "  ")
		if err == nil {
			schemaJSON = string(b)
		}
	})
	return schemaJSON
}

// Subgraph synthesizes and validates one SQL statement per call to Invoke,
// advancing st.CurrentPlanIdx's corresponding entry in st.SQL on success.
type Subgraph struct {
	chain       *chain.Chain
	retryBudget int
}

// New builds a GenerateSQL subgraph bound to provider. retryBudget is the
// pipeline's configured SQL retry budget (spec default 3), re-seeded onto
// st.RetriesRemaining at the start of every Invoke so each plan step starts
// with a full budget regardless of how much a prior step consumed.
func New(provider llm.Provider, retryBudget int) (*Subgraph, error) {
	c, err := chain.New("generate_sql", synthesisTemplate, provider, cleanParser)
	if err != nil {
		return nil, err
	}
	if retryBudget < 0 {
		retryBudget = 0
	}
	return &Subgraph{chain: c, retryBudget: retryBudget}, nil
}

// Name identifies this subgraph in the Subgraph Registry.
func (s *Subgraph) Name() string { return "generate_sql" }

// Invoke synthesizes a single validated SQL statement for
// st.Plan[st.CurrentPlanIdx], retrying (Synthesise -> Validate -> Repair)
// until accepted or st.RetriesRemaining is exhausted. On acceptance it
// appends to st.SQL and clears st.SQLError. On exhaustion it returns
// ErrBudgetExhausted and leaves st.SQLError populated with the last
// rejection reason.
func (s *Subgraph) Invoke(ctx context.Context, st *state.Pipeline) error {
	if st.CurrentPlanIdx >= len(st.Plan) {
		return fmt.Errorf("%w: no plan step at index %d", pipeline.ErrConfig, st.CurrentPlanIdx)
	}
	subquery := st.Plan[st.CurrentPlanIdx]

	// Prepare: each plan step gets a fresh repair budget, independent of
	// how much a prior step in the same Pipeline consumed.
	st.RetriesRemaining = s.retryBudget

	var priorSQL, priorError string

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", pipeline.ErrCancelled, err)
		}

		entry := state.NewHistoryEntry("generate_sql")
		cleaned, resp, err := s.chain.Invoke(ctx, map[string]interface{}{
			"db_struc":    st.DBStruc,
			"subquery":    subquery,
			"prior_sql":   priorSQL,
			"prior_error": priorError,
			"schema":      promptSchema(),
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

		var payload sqlPayload
		var validationErr error
		switch {
		case err != nil:
			validationErr = err
		default:
			payload, validationErr = parsePayload(cleaned)
			if validationErr == nil {
				validationErr = validator.ValidateReadOnly(payload.SQL)
			}
		}

		if validationErr == nil {
			st.AppendHistory(entry)
			st.SQL = append(st.SQL, payload.SQL)
			st.SQLError = ""
			return nil
		}

		entry.Error = validationErr.Error()
		st.AppendHistory(entry)
		priorSQL = payload.SQL
		priorError = validationErr.Error()
		st.SQLError = priorError

		if st.RetriesRemaining <= 0 {
			return fmt.Errorf("%w: %v", pipeline.ErrBudgetExhausted, validationErr)
		}
		st.RetriesRemaining--
	}
}

func parsePayload(cleaned string) (sqlPayload, error) {
	obj, err := parsers.ExtractJSON(cleaned)
	if err != nil {
		return sqlPayload{}, fmt.Errorf("%w: %v", pipeline.ErrParse, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return sqlPayload{}, fmt.Errorf("%w: unmarshal sql payload: %v", pipeline.ErrParse, err)
	}

	var payload sqlPayload
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return sqlPayload{}, fmt.Errorf("%w: decode sql payload: %v", pipeline.ErrParse, err)
	}

	if payload.SQL == "" {
		return sqlPayload{}, fmt.Errorf("%w: sql payload is missing 'sql'", pipeline.ErrParse)
	}

	return payload, nil
}

func cleanParser(raw string) (string, error) {
	return parsers.Clean(raw), nil
}
