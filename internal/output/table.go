package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/marketlens/marketlens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatBatch renders a fetch batch as a table.
func (f *TableFormatter) FormatBatch(batch *core.FetchBatch) (string, error) {
	if batch == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Kind", "Symbol", "Status", "Summary"})

	for _, r := range batch.Results {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			string(r.Kind),
			displayName(r),
			statusLabel(r),
			formatSummary(r),
		})
	}

	if len(batch.Results) > 0 {
		t.AppendFooter(table.Row{
			"",
			"",
			batchSummary(batch),
			"",
		})
	}

	rendered := t.Render()
	rendered += renderDetailSections(detailSections(batch), false)
	return rendered, nil
}
