package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DefaultMaxRows is the row cap applied when none is configured
const DefaultMaxRows = 100

// Result is the outcome of a read-only query
type Result struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Executor runs a statement that has passed the guard
type Executor interface {
	Execute(ctx context.Context, stmt string) (*Result, error)
}

// Config configures the SQL executor
type Config struct {
	Driver  string // "sqlite" or "pgx"
	DSN     string
	MaxRows int
}

// SQLExecutor opens a connection per statement, checks it with the guard
// and closes the connection when done
type SQLExecutor struct {
	config Config
	guard  *Guard
}

// NewSQLExecutor creates an executor over database/sql
func NewSQLExecutor(config Config, guard *Guard) (*SQLExecutor, error) {
	switch config.Driver {
	case "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("unsupported driver %q (must be sqlite or pgx)", config.Driver)
	}

	if config.DSN == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}

	if config.MaxRows <= 0 {
		config.MaxRows = DefaultMaxRows
	}

	if guard == nil {
		var err error
		if guard, err = NewGuard(GuardSubstring); err != nil {
			return nil, err
		}
	}

	return &SQLExecutor{config: config, guard: guard}, nil
}

// Guard returns the guard applied before every statement
func (e *SQLExecutor) Guard() *Guard {
	return e.guard
}

// Execute checks stmt and runs it, returning at most MaxRows rows
func (e *SQLExecutor) Execute(ctx context.Context, stmt string) (*Result, error) {
	if err := e.guard.Check(stmt); err != nil {
		return nil, err
	}

	start := time.Now()

	db, err := sql.Open(e.config.Driver, e.config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &Result{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) == e.config.MaxRows {
			result.Truncated = true
			break
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// normalize converts driver values into JSON-friendly ones
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
