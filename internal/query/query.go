// Package query implements the read-only data tool the agent uses to answer
// questions about stored data. Queries run inside a read-only transaction
// with a statement timeout, and results are rendered as a plain-text table
// the model can interpret.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const defaultMaxRows = 50

// Tool runs read-only SQL queries
type Tool struct {
	pool    *pgxpool.Pool
	maxRows int
	timeout time.Duration
}

// NewTool creates a query tool over the given pool. maxRows caps the rows
// rendered into the result; zero means the default.
func NewTool(pool *pgxpool.Pool, maxRows int) *Tool {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Tool{pool: pool, maxRows: maxRows, timeout: 30 * time.Second}
}

// Query executes a read-only SQL query and returns the results as text
func (t *Tool) Query(ctx context.Context, sql string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	log.Info().Str("query", truncate(sql, 100)).Msg("Running data query")

	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return "", fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns := make([]string, len(rows.FieldDescriptions()))
	for i, fd := range rows.FieldDescriptions() {
		columns[i] = fd.Name
	}

	var table [][]string
	truncated := false
	for rows.Next() {
		if len(table) >= t.maxRows {
			truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return "", fmt.Errorf("failed to read row: %w", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		table = append(table, cells)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}

	return renderTable(columns, table, truncated), nil
}

// renderTable formats rows as an aligned text table
func renderTable(columns []string, rows [][]string, truncated bool) string {
	if len(rows) == 0 {
		return "(no rows)"
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		b.WriteString("\n")
	}

	writeRow(columns)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("-+-")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}

	if truncated {
		b.WriteString("(result truncated)\n")
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
