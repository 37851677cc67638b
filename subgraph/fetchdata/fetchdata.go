// Package fetchdata implements C8: executing the SQL statement synthesized
// for the current plan step, normalizing its result rows into
// prompt-friendly values, and rendering them as a Markdown table appended
// to the pipeline's running Markdown document.
package fetchdata

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finqueryai/finquery-engine/sqlexec"
	"github.com/finqueryai/finquery-engine/state"
)

// Subgraph executes the most recently synthesized SQL statement and
// appends its normalized, rendered result to the pipeline state.
type Subgraph struct {
	executor     *sqlexec.Executor
	maxCellChars int
}

// New binds a FetchData subgraph to executor. maxCellChars caps how many
// characters of a single cell are rendered into Markdown before truncation
// (spec default 200).
func New(executor *sqlexec.Executor, maxCellChars int) *Subgraph {
	if maxCellChars <= 0 {
		maxCellChars = 200
	}
	return &Subgraph{executor: executor, maxCellChars: maxCellChars}
}

// Name identifies this subgraph in the Subgraph Registry.
func (s *Subgraph) Name() string { return "fetch_data" }

// Invoke executes st.SQL[st.CurrentPlanIdx], appends the resulting
// ResultBlock to st.RawData, appends its Markdown rendering to st.Markdown,
// and advances st.CurrentPlanIdx to the next plan step. A failing statement
// still produces a (errored) ResultBlock and does not return an error: the
// pipeline decides whether to repair or move on based on RawData's Error
// field, not on Invoke's return value.
func (s *Subgraph) Invoke(ctx context.Context, st *state.Pipeline) error {
	idx := st.CurrentPlanIdx
	if idx >= len(st.SQL) {
		return fmt.Errorf("fetch_data: no synthesized SQL at plan index %d", idx)
	}

	blocks := s.executor.Execute(ctx, []string{st.SQL[idx]})
	block := blocks[0]
	block.SQLIndex = idx
	block = normalizeBlock(block)

	st.RawData = append(st.RawData, block)
	st.Markdown += RenderBlockMarkdown(block, s.maxCellChars)
	st.CurrentPlanIdx++

	return nil
}

func normalizeBlock(block state.ResultBlock) state.ResultBlock {
	for r, row := range block.Rows {
		for c, cell := range row {
			block.Rows[r][c] = normalizeCell(cell)
		}
	}
	return block
}

func normalizeCell(cell interface{}) interface{} {
	switch v := cell.(type) {
	case []byte:
		if isPrintable(v) {
			return string(v)
		}
		return base64.StdEncoding.EncodeToString(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x09 || (c > 0x0d && c < 0x20) {
			return false
		}
	}
	return true
}

// RenderBlockMarkdown renders a single ResultBlock as the same Markdown
// table shape Invoke appends to Pipeline.Markdown, for callers (such as
// the orchestrator's parallel plan-step path) that fetch data outside of
// Invoke's normal sequential flow.
func RenderBlockMarkdown(block state.ResultBlock, maxCellChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n### Result %d\n\n", block.SQLIndex)
	fmt.Fprintf(&b, "```sql\n%s\n```\n\n", block.SQL)

	if block.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n\n", block.Error)
		return b.String()
	}

	if len(block.Columns) == 0 {
		b.WriteString("(no columns returned)\n\n")
		return b.String()
	}

	b.WriteString("| " + strings.Join(block.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(block.Columns)) + "\n")

	for _, row := range block.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = truncate(formatCell(cell), maxCellChars)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")

	return b.String()
}

func formatCell(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
