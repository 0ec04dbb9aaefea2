package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/nlsql"
	"github.com/skypro1111/voxsql/internal/query"
)

type fakeTranslator struct {
	resp  *nlsql.Response
	err   error
	calls []string
}

func (f *fakeTranslator) Translate(_ context.Context, question string) (*nlsql.Response, error) {
	f.calls = append(f.calls, question)
	return f.resp, f.err
}

type fakeExecutor struct {
	guard  *query.Guard
	result *query.Result
	err    error
	stmts  []string
}

func (f *fakeExecutor) Execute(_ context.Context, stmt string) (*query.Result, error) {
	if err := f.guard.Check(stmt); err != nil {
		return nil, err
	}
	f.stmts = append(f.stmts, stmt)
	return f.result, f.err
}

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) Query(string) { r.events = append(r.events, "query") }
func (r *recordingReporter) Response(*nlsql.Response) { r.events = append(r.events, "response") }
func (r *recordingReporter) SQL(string) { r.events = append(r.events, "sql") }
func (r *recordingReporter) Rows(*query.Result) { r.events = append(r.events, "rows") }
func (r *recordingReporter) Error(error) { r.events = append(r.events, "error") }
func (r *recordingReporter) Discarded(string) { r.events = append(r.events, "discarded") }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(tr Translator, ex query.Executor, rep Reporter) (*Dispatcher, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewDispatcher(tr, ex, rep, NewHistory(50), testLogger(), m), m
}

func newFakeExecutor(result *query.Result) *fakeExecutor {
	guard, _ := query.NewGuard(query.GuardSubstring)
	return &fakeExecutor{guard: guard, result: result}
}

func equalEvents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDispatchSQL(t *testing.T) {
	tr := &fakeTranslator{resp: &nlsql.Response{Intent: "sql", SQL: "SELECT * FROM Orders"}}
	ex := newFakeExecutor(&query.Result{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": 1}, {"id": 2}},
	})
	rep := &recordingReporter{}
	d, m := newTestDispatcher(tr, ex, rep)

	outcome := d.Dispatch(context.Background(), "u1", "show all orders")

	if outcome.Status != StatusExecuted {
		t.Fatalf("Expected executed, got %s (%s)", outcome.Status, outcome.Error)
	}
	if outcome.Rows != 2 || outcome.SQL != "SELECT * FROM Orders" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
	if len(tr.calls) != 1 || tr.calls[0] != "show all orders" {
		t.Errorf("Expected transcript to be sent once, got %v", tr.calls)
	}
	if !equalEvents(rep.events, []string{"query", "response", "sql", "rows"}) {
		t.Errorf("Unexpected report sequence: %v", rep.events)
	}
	if got := testutil.ToFloat64(m.QueriesExecuted); got != 1 {
		t.Errorf("Expected 1 executed query, got %f", got)
	}
	if got := testutil.ToFloat64(m.Dispatches.WithLabelValues(string(StatusExecuted))); got != 1 {
		t.Errorf("Expected 1 executed dispatch, got %f", got)
	}
	if d.History().Total() != 1 {
		t.Errorf("Expected 1 history entry, got %d", d.History().Total())
	}
}

func TestDispatchNonSQLIntent(t *testing.T) {
	tr := &fakeTranslator{resp: &nlsql.Response{Intent: "chat", Raw: map[string]any{"intent": "chat"}}}
	ex := newFakeExecutor(nil)
	rep := &recordingReporter{}
	d, _ := newTestDispatcher(tr, ex, rep)

	outcome := d.Dispatch(context.Background(), "u2", "hello")

	if outcome.Status != StatusAnswered {
		t.Errorf("Expected answered, got %s", outcome.Status)
	}
	if len(ex.stmts) != 0 {
		t.Errorf("Expected no execution, got %v", ex.stmts)
	}
	if !equalEvents(rep.events, []string{"query", "response"}) {
		t.Errorf("Unexpected report sequence: %v", rep.events)
	}
}

func TestDispatchForbiddenStatement(t *testing.T) {
	tr := &fakeTranslator{resp: &nlsql.Response{Intent: "sql", SQL: "DROP TABLE Orders"}}
	ex := newFakeExecutor(nil)
	rep := &recordingReporter{}
	d, m := newTestDispatcher(tr, ex, rep)

	outcome := d.Dispatch(context.Background(), "u3", "drop the orders table")

	if outcome.Status != StatusRejected {
		t.Errorf("Expected rejected, got %s", outcome.Status)
	}
	if len(ex.stmts) != 0 {
		t.Errorf("Expected statement not to reach the database")
	}
	if !equalEvents(rep.events, []string{"query", "response", "sql", "error"}) {
		t.Errorf("Unexpected report sequence: %v", rep.events)
	}
	if got := testutil.ToFloat64(m.QueriesRejected); got != 1 {
		t.Errorf("Expected 1 rejected query, got %f", got)
	}
}

func TestDispatchTranslatorError(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("connection refused")}
	rep := &recordingReporter{}
	d, _ := newTestDispatcher(tr, newFakeExecutor(nil), rep)

	outcome := d.Dispatch(context.Background(), "u4", "anything")

	if outcome.Status != StatusFailed {
		t.Errorf("Expected failed, got %s", outcome.Status)
	}
	if outcome.Error != "connection refused" {
		t.Errorf("Expected error text to be recorded, got %q", outcome.Error)
	}
	if !equalEvents(rep.events, []string{"query", "error"}) {
		t.Errorf("Unexpected report sequence: %v", rep.events)
	}
}

func TestDispatchEmptyStatement(t *testing.T) {
	tr := &fakeTranslator{resp: &nlsql.Response{Intent: "sql"}}
	ex := newFakeExecutor(&query.Result{})
	rep := &recordingReporter{}
	d, m := newTestDispatcher(tr, ex, rep)

	outcome := d.Dispatch(context.Background(), "u6", "show me")

	if outcome.Status != StatusFailed {
		t.Errorf("Expected failed, got %s", outcome.Status)
	}
	if outcome.Error != ErrEmptyStatement.Error() {
		t.Errorf("Expected %q, got %q", ErrEmptyStatement.Error(), outcome.Error)
	}
	if len(ex.stmts) != 0 {
		t.Errorf("Expected nothing executed, got %v", ex.stmts)
	}
	if !equalEvents(rep.events, []string{"query", "response", "error"}) {
		t.Errorf("Unexpected report sequence: %v", rep.events)
	}
	if got := testutil.ToFloat64(m.QueriesExecuted); got != 0 {
		t.Errorf("Expected 0 executed queries, got %f", got)
	}
}

func TestDispatchExecutorError(t *testing.T) {
	tr := &fakeTranslator{resp: &nlsql.Response{Intent: "sql", SQL: "SELECT * FROM Missing"}}
	ex := newFakeExecutor(nil)
	ex.err = errors.New("no such table")
	d, _ := newTestDispatcher(tr, ex, nil)

	outcome := d.Dispatch(context.Background(), "u5", "missing")

	if outcome.Status != StatusFailed {
		t.Errorf("Expected failed, got %s", outcome.Status)
	}
}

func TestExecuteReturnsForbidden(t *testing.T) {
	d, _ := newTestDispatcher(&fakeTranslator{}, newFakeExecutor(nil), nil)

	_, err := d.Execute(context.Background(), "SELECT updated_at FROM X")
	if !errors.Is(err, query.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.Add(Outcome{ID: id})
	}

	recent := h.Recent()
	if len(recent) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(recent))
	}
	for i, id := range []string{"c", "d", "e"} {
		if recent[i].ID != id {
			t.Errorf("Expected entry %d to be %s, got %s", i, id, recent[i].ID)
		}
	}
	if h.Total() != 5 {
		t.Errorf("Expected total 5, got %d", h.Total())
	}
}
