package main

import "testing"

func TestGenerateSQL(t *testing.T) {
	tests := []struct {
		question string
		intent   string
		sql      string
	}{
		{"How many orders are there", "sql", "SELECT COUNT(*) AS count FROM Orders"},
		{"count rows in customers", "sql", "SELECT COUNT(*) AS count FROM customers"},
		{"show me the orders", "sql", "SELECT * FROM Orders LIMIT 10"},
		{"delete everything from the orders", "sql", "DROP TABLE Orders"},
		{"hello there", "chat", ""},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			resp := generateSQL(tt.question)
			if resp["intent"] != tt.intent {
				t.Errorf("Expected intent %q, got %v", tt.intent, resp["intent"])
			}
			if tt.sql != "" && resp["sql"] != tt.sql {
				t.Errorf("Expected sql %q, got %v", tt.sql, resp["sql"])
			}
		})
	}
}
