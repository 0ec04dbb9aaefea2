package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/nlsql"
	"github.com/skypro1111/voxsql/internal/query"
)

// ErrEmptyStatement is returned when a SQL intent carries no statement
var ErrEmptyStatement = errors.New("SQL intent without a statement")

// Translator turns a question into an NL->SQL service response
type Translator interface {
	Translate(ctx context.Context, question string) (*nlsql.Response, error)
}

// Dispatcher sends transcripts through NL->SQL and the query gate
type Dispatcher struct {
	translator Translator
	executor   query.Executor
	reporter   Reporter
	history    *History
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewDispatcher creates a dispatcher. A nil reporter discards reports.
func NewDispatcher(translator Translator, executor query.Executor, reporter Reporter,
	history *History, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if history == nil {
		history = NewHistory(50)
	}
	return &Dispatcher{
		translator: translator,
		executor:   executor,
		reporter:   reporter,
		history:    history,
		logger:     logger,
		metrics:    m,
	}
}

// Dispatch translates transcript and executes the resulting statement.
// Every failure is handled here; the returned outcome is informational.
func (d *Dispatcher) Dispatch(ctx context.Context, id, transcript string) Outcome {
	start := time.Now()
	outcome := Outcome{
		ID:        id,
		Question:  transcript,
		Timestamp: start,
	}

	d.reporter.Query(transcript)

	resp, err := d.translator.Translate(ctx, transcript)
	d.metrics.RecordNLSQLCall(time.Since(start).Seconds())
	if err != nil {
		d.logger.Error("NL->SQL request failed",
			slog.String("utterance_id", id),
			slog.String("error", err.Error()))
		return d.finish(outcome, StatusFailed, err, start)
	}

	outcome.Intent = resp.Intent
	d.reporter.Response(resp)

	if !resp.IsSQL() {
		d.logger.Info("Non-SQL response",
			slog.String("utterance_id", id),
			slog.String("intent", resp.Intent))
		return d.finish(outcome, StatusAnswered, nil, start)
	}

	if strings.TrimSpace(resp.SQL) == "" {
		d.logger.Error("NL->SQL response has no statement",
			slog.String("utterance_id", id))
		return d.finish(outcome, StatusFailed, ErrEmptyStatement, start)
	}

	outcome.SQL = resp.SQL
	d.reporter.SQL(resp.SQL)

	result, err := d.Execute(ctx, resp.SQL)
	if err != nil {
		status := StatusFailed
		if errors.Is(err, query.ErrForbidden) {
			status = StatusRejected
		}
		return d.finish(outcome, status, err, start)
	}

	outcome.Rows = len(result.Rows)
	outcome.Truncated = result.Truncated
	d.reporter.Rows(result)

	return d.finish(outcome, StatusExecuted, nil, start)
}

// Execute runs stmt through the query gate, recording metrics and logs.
// Unlike Dispatch it returns errors; forbidden statements match
// query.ErrForbidden.
func (d *Dispatcher) Execute(ctx context.Context, stmt string) (*query.Result, error) {
	start := time.Now()

	result, err := d.executor.Execute(ctx, stmt)
	if err != nil {
		if errors.Is(err, query.ErrForbidden) {
			d.metrics.RecordQueryRejected()
			d.logger.Warn("Statement rejected by read-only guard",
				slog.String("sql", stmt),
				slog.String("error", err.Error()))
		} else {
			d.logger.Error("Query execution failed",
				slog.String("sql", stmt),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	d.metrics.RecordQueryExecuted(time.Since(start).Seconds(), len(result.Rows))
	d.logger.Debug("Query executed",
		slog.String("sql", stmt),
		slog.Int("rows", len(result.Rows)),
		slog.Bool("truncated", result.Truncated),
		slog.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (d *Dispatcher) finish(o Outcome, status Status, err error, start time.Time) Outcome {
	o.Status = status
	o.Duration = time.Since(start)
	if err != nil {
		o.Error = err.Error()
		d.reporter.Error(err)
	}

	d.metrics.RecordDispatch(string(status))
	d.history.Add(o)

	return o
}

// History returns the dispatch history
func (d *Dispatcher) History() *History {
	return d.history
}
