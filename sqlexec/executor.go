package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finqueryai/finquery-engine/state"
)

// Executor runs one or more read-only SQL statements against the
// analytical database and returns one ResultBlock per statement. A failing
// statement never aborts the batch: its ResultBlock carries the error
// instead, and execution continues with the next statement.
type Executor struct {
	db       *sql.DB
	timeoutS int
}

// NewExecutor binds an Executor to an already-opened database handle.
func NewExecutor(db *sql.DB, timeoutS int) *Executor {
	if timeoutS <= 0 {
		timeoutS = 30
	}
	return &Executor{db: db, timeoutS: timeoutS}
}

// Execute runs each statement in stmts in order, returning one ResultBlock
// per statement with ResultBlock.SQLIndex set to its position in stmts.
func (e *Executor) Execute(ctx context.Context, stmts []string) []state.ResultBlock {
	blocks := make([]state.ResultBlock, len(stmts))

	for i, stmt := range stmts {
		blocks[i] = e.executeOne(ctx, i, stmt)
	}

	return blocks
}

func (e *Executor) executeOne(ctx context.Context, index int, stmt string) state.ResultBlock {
	block := state.ResultBlock{SQLIndex: index, SQL: stmt}

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(e.timeoutS)*time.Second)
	defer cancel()

	rows, err := e.db.QueryContext(queryCtx, stmt)
	if err != nil {
		block.Error = classify(err).Error()
		return block
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		block.Error = fmt.Errorf("db_error: read columns: %w", err).Error()
		return block
	}
	block.Columns = columns

	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	var resultRows [][]interface{}
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			block.Error = fmt.Errorf("db_error: scan row: %w", err).Error()
			return block
		}
		row := make([]interface{}, len(values))
		copy(row, values)
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		block.Error = classify(err).Error()
		return block
	}

	block.Rows = resultRows
	block.RowCount = len(resultRows)
	return block
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("db_timeout: %w", err)
	}
	return fmt.Errorf("db_error: %w", err)
}
