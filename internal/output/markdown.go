package output

import (
	"fmt"
	"strings"

	"github.com/marketlens/marketlens/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatBatch renders a fetch batch as Markdown.
func (f *MarkdownFormatter) FormatBatch(batch *core.FetchBatch) (string, error) {
	if batch == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(batchTitle(batch))))
	sb.WriteString("| Kind | Symbol | Status | Summary |\n")
	sb.WriteString("|------|--------|--------|---------|\n")

	for _, r := range batch.Results {
		if r == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(string(r.Kind)),
			escapeMarkdownCell(displayName(r)),
			escapeMarkdownCell(statusLabel(r)),
			escapeMarkdownCell(formatSummary(r)),
		))
	}

	if len(batch.Results) > 0 {
		sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", batchSummary(batch)))
	}

	sb.WriteString(renderDetailSections(detailSections(batch), true))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
