package display

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/skypro1111/voxsql/internal/nlsql"
	"github.com/skypro1111/voxsql/internal/query"
)

// DefaultLevelInterval limits how often the mic level line is redrawn
const DefaultLevelInterval = 100 * time.Millisecond

// Terminal is a dispatch.Reporter writing human-readable sections.
// It is safe for concurrent use.
type Terminal struct {
	w             io.Writer
	levelInterval time.Duration

	mu         sync.Mutex
	lastLevel  time.Time
	levelShown bool
}

// NewTerminal creates a terminal reporter writing to w
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, levelInterval: DefaultLevelInterval}
}

// SetLevelInterval changes the mic level redraw interval; zero redraws every block
func (t *Terminal) SetLevelInterval(d time.Duration) {
	t.mu.Lock()
	t.levelInterval = d
	t.mu.Unlock()
}

// section writes a titled block, ending any level line first
func (t *Terminal) section(title, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.levelShown {
		fmt.Fprintln(t.w)
		t.levelShown = false
	}
	fmt.Fprintf(t.w, "\n[%s]\n%s\n", title, body)
}

// Query prints the recognized question
func (t *Terminal) Query(text string) {
	t.section("VOICE QUERY", text)
}

// Response prints the raw NL->SQL response
func (t *Terminal) Response(resp *nlsql.Response) {
	body := resp.Raw
	if body == nil {
		body = map[string]any{"intent": resp.Intent, "sql": resp.SQL}
	}

	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		out = []byte(fmt.Sprintf("%v", body))
	}
	t.section("NL->SQL RESPONSE", string(out))
}

// SQL prints the statement about to run
func (t *Terminal) SQL(stmt string) {
	t.section("SQL", stmt)
}

// Rows prints a result table
func (t *Terminal) Rows(result *query.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.levelShown {
		fmt.Fprintln(t.w)
		t.levelShown = false
	}
	fmt.Fprint(t.w, "\n[RESULTS]\n")

	if len(result.Rows) == 0 {
		fmt.Fprintln(t.w, "(no rows)")
		return
	}

	table := tablewriter.NewWriter(t.w)
	table.SetHeader(result.Columns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = formatValue(row[col])
		}
		table.Append(cells)
	}

	table.Render()

	if result.Truncated {
		fmt.Fprintf(t.w, "(showing first %d rows)\n", len(result.Rows))
	}
}

// Error prints a failure
func (t *Terminal) Error(err error) {
	t.section("ERROR", err.Error())
}

// Discarded prints a one-line notice for audio that was not dispatched
func (t *Terminal) Discarded(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.levelShown {
		fmt.Fprintln(t.w)
		t.levelShown = false
	}
	fmt.Fprintf(t.w, "[discarded %s]\n", reason)
}

// Level redraws the microphone level line in place
func (t *Terminal) Level(peak float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.levelInterval > 0 && now.Sub(t.lastLevel) < t.levelInterval {
		return
	}
	t.lastLevel = now

	fmt.Fprintf(t.w, "\rMic level: %.3f", peak)
	t.levelShown = true
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
