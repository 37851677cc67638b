// Package finquery turns natural-language financial questions into
// executable analytical reports against a relational database.
//
// A query moves through a staged pipeline: SplitQuery decomposes it into an
// ordered plan of single-table sub-queries, GenerateSQL synthesizes and
// validates one read-only SQL statement per plan step (repairing on
// rejection within a retry budget), FetchData executes each statement and
// renders its result as Markdown, and ReportGen turns the accumulated
// Markdown into a structured report.
//
// # Using as a Go library
//
// The facade package is the entry point for an embedding application:
//
//	cfg, err := config.LoadConfig("finquery.yaml")
//	engine, err := facade.New(cfg)
//	result, err := engine.RunPipeline(ctx, "how did revenue trend by region last quarter?")
//
// Individual stages are also addressable through the Subgraph Registry, by
// name, for callers that want to run or stream one stage at a time:
//
//	engine.RunSubgraph(ctx, "generate_sql", state)
//
// # Architecture
//
//	Query -> SplitQuery -> [GenerateSQL -> FetchData]* -> ReportGen -> Report
//
// Every stage reads and appends to one shared Pipeline state value; no
// stage constructs its own.
package finquery
