// Package state defines the Pipeline State that flows through every stage
// of the analytical pipeline: query decomposition, SQL synthesis, data
// fetch, and report generation all read and append to the same value.
package state

import (
	"time"

	"github.com/google/uuid"
)

// ResultBlock is the per-statement outcome of executing one SQL statement
// against the analytical database. A failing statement does not abort the
// batch; its Error field is populated instead.
type ResultBlock struct {
	SQLIndex int             `json:"sql_index"`
	SQL      string          `json:"sql"`
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`
	Error    string          `json:"error,omitempty"`
}

// HistoryEntry records one LLM invocation made anywhere in the pipeline,
// kept for audit and token accounting. History is append-only.
type HistoryEntry struct {
	ID               string    `json:"id"`
	Stage            string    `json:"stage"`
	RequestID        string    `json:"request_id"`
	Prompt           string    `json:"prompt"`
	Response         string    `json:"response"`
	Error            string    `json:"error,omitempty"`
	DurationS        float64   `json:"duration_s"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewHistoryEntry stamps a fresh history entry with a stable ID.
func NewHistoryEntry(stage string) HistoryEntry {
	return HistoryEntry{
		ID:        uuid.NewString(),
		Stage:     stage,
		CreatedAt: time.Now(),
	}
}

// Pipeline is the state threaded through SplitQuery, GenerateSQL, FetchData,
// and ReportGen. Every field maps directly to the data model: Plan is the
// ordered list of single-table sub-queries produced by SplitQuery;
// CurrentPlanIdx is the 0-based cursor into Plan that GenerateSQL/FetchData
// are currently processing; SQL holds the accepted SQL statement for each
// completed plan index (len(SQL) == CurrentPlanIdx once a step succeeds);
// RawData holds one ResultBlock per executed statement, with
// RawData[i].SQLIndex == i; History is append-only across every stage.
type Pipeline struct {
	Query            string         `json:"query"`
	Plan             []string       `json:"plan"`
	CurrentPlanIdx   int            `json:"current_plan_idx"`
	SQL              []string       `json:"sql"`
	SQLError         string         `json:"sql_error,omitempty"`
	DBStruc          string         `json:"db_struc"`
	RawData          []ResultBlock  `json:"raw_data"`
	Markdown         string         `json:"md"`
	History          []HistoryEntry `json:"history"`
	Report           *Report        `json:"report,omitempty"`
	RetriesRemaining int            `json:"retries_remaining"`
	Success          bool           `json:"success"`
}

// Report is the structured output of C11 Report Generator.
type Report struct {
	Overview        string   `json:"overview" mapstructure:"overview"`
	KeyIndicators   []string `json:"key_indicators" mapstructure:"key_indicators"`
	Trends          []string `json:"trends" mapstructure:"trends"`
	Risks           []string `json:"risks" mapstructure:"risks"`
	Recommendations []string `json:"recommendations" mapstructure:"recommendations"`
}

// New creates a fresh Pipeline state for a natural-language query, with the
// SQL synthesis retry budget pre-loaded.
func New(query string, sqlRetryBudget int) *Pipeline {
	return &Pipeline{
		Query:            query,
		Plan:             nil,
		CurrentPlanIdx:   0,
		SQL:              make([]string, 0),
		RawData:          make([]ResultBlock, 0),
		History:          make([]HistoryEntry, 0),
		RetriesRemaining: sqlRetryBudget,
	}
}

// Clone returns a deep-enough copy suitable for emitting as a read-only
// streaming snapshot: slices are copied so a caller mutating the snapshot
// cannot race with the orchestrator continuing to advance the original.
func (p *Pipeline) Clone() *Pipeline {
	clone := *p
	clone.Plan = append([]string(nil), p.Plan...)
	clone.SQL = append([]string(nil), p.SQL...)
	clone.RawData = append([]ResultBlock(nil), p.RawData...)
	clone.History = append([]HistoryEntry(nil), p.History...)
	if p.Report != nil {
		report := *p.Report
		clone.Report = &report
	}
	return &clone
}

// AppendHistory appends a history entry. History is append-only: callers
// must never mutate or remove prior entries.
func (p *Pipeline) AppendHistory(entry HistoryEntry) {
	p.History = append(p.History, entry)
}

// DeriveSuccess reports whether the pipeline reached a usable result: a
// Report was produced and no stage left an unresolved error behind it. A
// plan step that exhausted its SQL repair budget leaves SQLError populated
// even though ReportGen still runs against whatever was fetched, and a
// failing database statement leaves its ResultBlock.Error populated without
// aborting the batch; either makes the result unsuccessful even though
// Report is non-nil.
func (p *Pipeline) DeriveSuccess() bool {
	if p.Report == nil || p.SQLError != "" {
		return false
	}
	for _, block := range p.RawData {
		if block.Error != "" {
			return false
		}
	}
	return true
}
