package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TableStep is one target table of a plan.
type TableStep struct {
	Level     int      `json:"level"`
	Table     string   `json:"table"`
	Strategy  string   `json:"strategy"`
	Keys      []string `json:"unique_constraint"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// PlanOutput is the JSON form of rdm plan.
type PlanOutput struct {
	Tables  []TableStep `json:"tables"`
	Columns []string    `json:"columns"`
	Rows    int         `json:"rows"`
	SQL     string      `json:"sql"`
	Params  []any       `json:"params,omitempty"`
}

// ApplyOutput is the JSON form of rdm apply.
type ApplyOutput struct {
	RunID      string   `json:"run_id"`
	Tables     []string `json:"tables"`
	Rows       int      `json:"rows"`
	Affected   int64    `json:"affected"`
	DurationMS int64    `json:"duration_ms"`
}

var titleCaser = cases.Title(language.English)

// RenderSteps renders plan steps as a table. Markdown mode emits a markdown
// table, text mode a box-drawn one.
func (r *Renderer) RenderSteps(steps []TableStep) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.AppendHeader(table.Row{"Level", "Table", "Strategy", "Keys", "Depends On"})
	for _, s := range steps {
		deps := strings.Join(s.DependsOn, ", ")
		if deps == "" {
			deps = "-"
		}
		t.AppendRow(table.Row{s.Level, s.Table, titleCaser.String(s.Strategy), strings.Join(s.Keys, ", "), deps})
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// FormatDuration renders milliseconds compactly.
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}
