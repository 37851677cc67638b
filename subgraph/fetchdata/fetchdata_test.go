package fetchdata

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/finqueryai/finquery-engine/sqlexec"
	"github.com/finqueryai/finquery-engine/state"
)

func openFixtureDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE fact_revenue (id INTEGER PRIMARY KEY, amount REAL, region TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO fact_revenue (amount, region) VALUES (100.5, 'west'), (200.25, 'east')`)
	require.NoError(t, err)

	return db
}

func TestFetchDataAppendsResultAndMarkdown(t *testing.T) {
	db := openFixtureDB(t)
	defer db.Close()

	executor := sqlexec.NewExecutor(db, 5)
	sg := New(executor, 200)

	st := state.New("revenue by region", 3)
	st.Plan = []string{"revenue by region"}
	st.SQL = []string{"SELECT region, amount FROM fact_revenue ORDER BY id"}
	st.CurrentPlanIdx = 0

	require.NoError(t, sg.Invoke(context.Background(), st))

	require.Len(t, st.RawData, 1)
	require.Empty(t, st.RawData[0].Error)
	require.Equal(t, 2, st.RawData[0].RowCount)
	require.Equal(t, 1, st.CurrentPlanIdx)
	require.Contains(t, st.Markdown, "### Result 0")
	require.Contains(t, st.Markdown, "| region | amount |")
	require.Contains(t, st.Markdown, "west")
}

func TestFetchDataHandlesFailingStatement(t *testing.T) {
	db := openFixtureDB(t)
	defer db.Close()

	executor := sqlexec.NewExecutor(db, 5)
	sg := New(executor, 200)

	st := state.New("bogus", 3)
	st.Plan = []string{"bogus"}
	st.SQL = []string{"SELECT * FROM nonexistent_table"}
	st.CurrentPlanIdx = 0

	require.NoError(t, sg.Invoke(context.Background(), st))

	require.Len(t, st.RawData, 1)
	require.NotEmpty(t, st.RawData[0].Error)
	require.Contains(t, st.Markdown, "Error:")
	require.Equal(t, 1, st.CurrentPlanIdx)
}

func TestTruncateLongCells(t *testing.T) {
	require.Equal(t, "ab...", truncate("abcdef", 2))
	require.Equal(t, "abcdef", truncate("abcdef", 10))
}
