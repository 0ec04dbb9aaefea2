// Package query is the read-only execution gate. A Guard rejects any
// statement that could modify the database, and the SQL executor runs the
// rest over a short-lived connection, returning at most a fixed number of
// rows as column/value maps.
//
// Two drivers are registered: "sqlite" (modernc.org/sqlite) and "pgx"
// (github.com/jackc/pgx/v5/stdlib).
package query
