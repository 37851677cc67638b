// Package schema renders the analytical database's structure (tables,
// columns, constraints, foreign keys, and sampled foreign-key value ranges)
// as Markdown for inclusion in LLM prompts (C4).
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of one table.
type Column struct {
	Name       string
	DataType   string
	Nullable   bool
	IsPrimary  bool
}

// ForeignKey describes one foreign key constraint.
type ForeignKey struct {
	Column         string
	RefTable       string
	RefColumn      string
	SampledValues  []string
}

// Table describes one table's structure.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// Introspector renders Markdown schema documentation for a Postgres-dialect
// analytical database via information_schema queries.
type Introspector struct {
	db          *sql.DB
	schemaName  string
	maxFKValues int
}

// NewIntrospector binds an Introspector to an already-opened database
// handle. maxFKValues caps how many distinct values are sampled per foreign
// key (spec default 30).
func NewIntrospector(db *sql.DB, schemaName string, maxFKValues int) *Introspector {
	if schemaName == "" {
		schemaName = "public"
	}
	if maxFKValues <= 0 {
		maxFKValues = 30
	}
	return &Introspector{db: db, schemaName: schemaName, maxFKValues: maxFKValues}
}

// Describe loads every table in the schema, with columns and foreign keys,
// sampling up to maxFKValues distinct referenced values per foreign key.
func (in *Introspector) Describe(ctx context.Context) ([]Table, error) {
	tables, err := in.listTables(ctx)
	if err != nil {
		return nil, err
	}

	for i := range tables {
		cols, err := in.listColumns(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = cols

		fks, err := in.listForeignKeys(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}
		for j := range fks {
			values, err := in.sampleFKValues(ctx, fks[j])
			if err != nil {
				return nil, err
			}
			fks[j].SampledValues = values
		}
		tables[i].ForeignKeys = fks
	}

	return tables, nil
}

func (in *Introspector) listTables(ctx context.Context) ([]Table, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, in.schemaName)
	if err != nil {
		return nil, fmt.Errorf("db_error: list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db_error: scan table name: %w", err)
		}
		tables = append(tables, Table{Name: name})
	}
	return tables, rows.Err()
}

func (in *Introspector) listColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable,
		       COALESCE(pk.is_primary, false) AS is_primary
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name, true AS is_primary
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		) pk ON pk.column_name = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, in.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("db_error: list columns for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &c.IsPrimary); err != nil {
			return nil, fmt.Errorf("db_error: scan column for %s: %w", table, err)
		}
		c.Nullable = nullable == "YES"
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (in *Introspector) listForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name AS ref_table, ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2`,
		in.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("db_error: list foreign keys for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("db_error: scan foreign key for %s: %w", table, err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (in *Introspector) sampleFKValues(ctx context.Context, fk ForeignKey) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT %d`,
		quoteIdent(fk.RefColumn), quoteIdent(fk.RefTable), quoteIdent(fk.RefColumn), quoteIdent(fk.RefColumn), in.maxFKValues,
	)

	rows, err := in.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db_error: sample foreign key values for %s.%s: %w", fk.RefTable, fk.RefColumn, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("db_error: scan sampled value: %w", err)
		}
		values = append(values, fmt.Sprintf("%v", v))
	}
	return values, rows.Err()
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// RenderMarkdown renders tables as the Markdown document C4 contributes to
// every downstream prompt: one section per table, a column table, and a
// foreign-keys list with sampled value ranges.
func RenderMarkdown(tables []Table) string {
	sorted := make([]Table, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("# Database Schema\n\n")

	for _, t := range sorted {
		fmt.Fprintf(&b, "## %s\n\n", t.Name)
		b.WriteString("| Column | Type | Nullable | Primary Key |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "| %s | %s | %v | %v |\n", c.Name, c.DataType, c.Nullable, c.IsPrimary)
		}
		b.WriteString("\n")

		if len(t.ForeignKeys) > 0 {
			b.WriteString("Foreign keys:\n\n")
			for _, fk := range t.ForeignKeys {
				fmt.Fprintf(&b, "- `%s` -> `%s.%s`", fk.Column, fk.RefTable, fk.RefColumn)
				if len(fk.SampledValues) > 0 {
					fmt.Fprintf(&b, " (sample values: %s)", strings.Join(fk.SampledValues, ", "))
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
