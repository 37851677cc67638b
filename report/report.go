// Package report implements C11: turning the pipeline's accumulated
// Markdown of fetched data into a structured analytical report via an LLM
// chain.
package report

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
)

const promptTemplate = `You are a financial analyst. Given the original question and the data
retrieved to answer it, write a structured report.

Question: {{.query}}

Data:
{{.md}}

Respond with a single JSON object matching this schema:

{{.schema}}`

var (
	schemaOnce sync.Once
	schemaJSON string
)

func promptSchema() string {
	schemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{ExpandedStruct: true}
		schema := reflector.Reflect(&state.Report{})
		b, err := json.MarshalIndent(schema, "", "  ")
		if err == nil {
			schemaJSON = string(b)
		}
	})
	return schemaJSON
}

// Generator produces the final Report from a Pipeline's accumulated
// Markdown.
type Generator struct {
	chain *chain.Chain
}

// New builds a Report Generator bound to provider.
func New(provider llm.Provider) (*Generator, error) {
	c, err := chain.New("report", promptTemplate, provider, cleanParser)
	if err != nil {
		return nil, err
	}
	return &Generator{chain: c}, nil
}

// Name identifies this subgraph in the Subgraph Registry.
func (g *Generator) Name() string { return "report_gen" }

// Invoke renders st.Report from st.Query and st.Markdown. A single attempt
// is made; parse failure surfaces as ErrParse rather than degrading,
// because an unparsable final report has no safe fallback shape.
func (g *Generator) Invoke(ctx context.Context, st *state.Pipeline) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrCancelled, err)
	}

	entry := state.NewHistoryEntry("report_gen")
	cleaned, resp, err := g.chain.Invoke(ctx, map[string]interface{}{
		"query":  st.Query,
		"md":     st.Markdown,
		"schema": promptSchema(),
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
		return err
	}

	rep, parseErr := parseReport(cleaned)
	if parseErr != nil {
		entry.Error = parseErr.Error()
		st.AppendHistory(entry)
		return parseErr
	}

	st.AppendHistory(entry)
	st.Report = rep
	return nil
}

func parseReport(cleaned string) (*state.Report, error) {
	obj, err := parsers.ExtractJSON(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrParse, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshal report: %v", pipeline.ErrParse, err)
	}

	var rep state.Report
	if err := mapstructure.Decode(raw, &rep); err != nil {
		return nil, fmt.Errorf("%w: decode report: %v", pipeline.ErrParse, err)
	}

	if rep.Overview == "" {
		return nil, fmt.Errorf("%w: report is missing an overview", pipeline.ErrParse)
	}

	return &rep, nil
}

func cleanParser(raw string) (string, error) {
	return parsers.Clean(raw), nil
}
