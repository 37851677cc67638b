// Package pipeline implements the orchestrator (C9) that drives a natural
// language query through SplitQuery, the GenerateSQL/FetchData loop over the
// resulting plan, and ReportGen.
package pipeline

import "errors"

// Sentinel errors for the pipeline's error taxonomy. The orchestrator and
// the SplitQuery, GenerateSQL and ReportGen subgraphs wrap one of these with
// fmt.Errorf's %w for the cancellation, parse, validation, config and
// budget errors they create, so callers can branch with errors.Is. Errors
// created in the chain, llm, sqlexec and fetchdata packages (template, LLM
// and database failures) carry the taxonomy name only as a text prefix
// such as "llm_error:" and do not match these sentinels with errors.Is.
var (
	// ErrConfig signals an invalid or incomplete configuration (LLM, DB, or
	// pipeline settings). Fatal: surfaces to the caller of run_pipeline.
	ErrConfig = errors.New("config_error")

	// ErrParse signals the LLM's output could not be parsed into the
	// expected shape (plan array, SQL payload, report JSON). SplitQuery and
	// GenerateSQL retry on it within their retry budgets; ReportGen makes a
	// single attempt and returns it.
	ErrParse = errors.New("parse_error")

	// ErrValidation signals a synthesized SQL statement failed the
	// read-only validator (write/DDL attempt, multi-statement). Recoverable
	// via the GenerateSQL repair loop.
	ErrValidation = errors.New("validation_error")

	// ErrDB signals a non-timeout failure executing SQL against the
	// analytical database.
	ErrDB = errors.New("db_error")

	// ErrDBTimeout signals a SQL execution exceeded its deadline.
	ErrDBTimeout = errors.New("db_timeout")

	// ErrLLM signals the LLM backend itself failed (network, non-2xx,
	// malformed envelope) as opposed to returning unparsable content.
	ErrLLM = errors.New("llm_error")

	// ErrTemplate signals a prompt template was invoked with a missing
	// variable.
	ErrTemplate = errors.New("template_error")

	// ErrCancelled signals the caller's context was cancelled. The
	// orchestrator checks ctx between stages and returns ErrCancelled
	// wrapping ctx.Err(); Invoke returns that error together with the
	// partial state. No "cancelled" entry is appended to History.
	ErrCancelled = errors.New("cancelled")

	// ErrBudgetExhausted signals GenerateSQL consumed its entire retry
	// budget (default 3) without reaching an accepted statement. SplitQuery
	// never returns it: on exhaustion it degrades to a single-step plan.
	ErrBudgetExhausted = errors.New("budget_exhausted")
)
