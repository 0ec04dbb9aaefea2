package dispatch

import (
	"github.com/skypro1111/voxsql/internal/nlsql"
	"github.com/skypro1111/voxsql/internal/query"
)

// Reporter presents dispatch progress to the operator
type Reporter interface {
	Query(text string)
	Response(resp *nlsql.Response)
	SQL(stmt string)
	Rows(result *query.Result)
	Error(err error)
	Discarded(reason string)
}

// LevelReporter is implemented by reporters that show the input level
type LevelReporter interface {
	Level(peak float64)
}

// NopReporter discards all reports
type NopReporter struct{}

func (NopReporter) Query(string) {}
func (NopReporter) Response(*nlsql.Response) {}
func (NopReporter) SQL(string) {}
func (NopReporter) Rows(*query.Result) {}
func (NopReporter) Error(error) {}
func (NopReporter) Discarded(string) {}
