package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T, rows int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE Orders (id INTEGER PRIMARY KEY, customer TEXT, total REAL, note BLOB)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	for i := 1; i <= rows; i++ {
		if _, err := tx.Exec(`INSERT INTO Orders (id, customer, total, note) VALUES (?, ?, ?, ?)`,
			i, fmt.Sprintf("customer-%d", i), float64(i)*1.5, []byte("n")); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	return path
}

func newExecutor(t *testing.T, path string, maxRows int) *SQLExecutor {
	t.Helper()
	e, err := NewSQLExecutor(Config{Driver: "sqlite", DSN: path, MaxRows: maxRows}, nil)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	return e
}

func TestNewSQLExecutorValidation(t *testing.T) {
	if _, err := NewSQLExecutor(Config{Driver: "mysql", DSN: "x"}, nil); err == nil {
		t.Error("Expected error for unsupported driver")
	}
	if _, err := NewSQLExecutor(Config{Driver: "sqlite"}, nil); err == nil {
		t.Error("Expected error for empty dsn")
	}

	e, err := NewSQLExecutor(Config{Driver: "pgx", DSN: "postgres://localhost/db"}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if e.config.MaxRows != DefaultMaxRows {
		t.Errorf("Expected default max rows %d, got %d", DefaultMaxRows, e.config.MaxRows)
	}
	if e.Guard().Mode() != GuardSubstring {
		t.Errorf("Expected substring guard by default, got %s", e.Guard().Mode())
	}
}

func TestExecuteRowCap(t *testing.T) {
	e := newExecutor(t, newTestDB(t, 500), 100)

	result, err := e.Execute(context.Background(), "SELECT * FROM Orders")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Rows) != 100 {
		t.Errorf("Expected 100 rows, got %d", len(result.Rows))
	}
	if !result.Truncated {
		t.Error("Expected result to be marked truncated")
	}

	expectedCols := []string{"id", "customer", "total", "note"}
	if len(result.Columns) != len(expectedCols) {
		t.Fatalf("Expected columns %v, got %v", expectedCols, result.Columns)
	}
	for i, col := range expectedCols {
		if result.Columns[i] != col {
			t.Errorf("Expected column %d to be %s, got %s", i, col, result.Columns[i])
		}
	}

	first := result.Rows[0]
	if first["customer"] != "customer-1" {
		t.Errorf("Expected customer-1, got %v", first["customer"])
	}
	if first["note"] != "n" {
		t.Errorf("Expected blob converted to string, got %#v", first["note"])
	}
}

func TestExecuteUnderCap(t *testing.T) {
	e := newExecutor(t, newTestDB(t, 5), 100)

	result, err := e.Execute(context.Background(), "SELECT id FROM Orders ORDER BY id")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Rows) != 5 || result.Truncated {
		t.Errorf("Expected 5 rows untruncated, got %d (truncated=%v)", len(result.Rows), result.Truncated)
	}
}

func TestExecuteEmptyResult(t *testing.T) {
	e := newExecutor(t, newTestDB(t, 0), 100)

	result, err := e.Execute(context.Background(), "SELECT * FROM Orders")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Errorf("Expected empty non-nil rows, got %v", result.Rows)
	}
}

func TestExecuteRejectsForbidden(t *testing.T) {
	path := newTestDB(t, 3)
	e := newExecutor(t, path, 100)

	_, err := e.Execute(context.Background(), "DROP TABLE Orders")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Expected ErrForbidden, got %v", err)
	}

	result, err := e.Execute(context.Background(), "SELECT COUNT(*) AS n FROM Orders")
	if err != nil {
		t.Fatalf("Expected table to survive, got %v", err)
	}
	if result.Rows[0]["n"] != int64(3) {
		t.Errorf("Expected 3 rows, got %v", result.Rows[0]["n"])
	}
}

func TestExecuteQueryError(t *testing.T) {
	e := newExecutor(t, newTestDB(t, 1), 100)

	if _, err := e.Execute(context.Background(), "SELECT * FROM Missing"); err == nil {
		t.Error("Expected error for missing table")
	}
}
