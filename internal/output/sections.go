package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marketlens/marketlens/internal/core"
)

const maxHeadlineLines = 10

type detailSection struct {
	Title string
	Lines []string
}

// detailSections expands sector and news payloads below the summary
// table. Price and indicator series stay summarized; their full points
// are available via --output=json.
func detailSections(batch *core.FetchBatch) []detailSection {
	if batch == nil {
		return nil
	}

	sections := make([]detailSection, 0, 2)
	for _, result := range batch.Results {
		if result == nil || result.Status != core.FetchStatusOK {
			continue
		}
		sections = append(sections, sectorSections(result.Sectors)...)
		if section, ok := headlineSection(result.News); ok {
			sections = append(sections, section)
		}
	}
	return sections
}

func sectorSections(sectors []core.SectorPerformance) []detailSection {
	sections := make([]detailSection, 0, len(sectors))
	for _, block := range sectors {
		if len(block.Changes) == 0 {
			continue
		}

		names := make([]string, 0, len(block.Changes))
		for name := range block.Changes {
			names = append(names, name)
		}
		sort.SliceStable(names, func(i, j int) bool {
			left, right := block.Changes[names[i]], block.Changes[names[j]]
			if left == right {
				return names[i] < names[j]
			}
			return left > right
		})

		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s: %+.2f%%", name, block.Changes[name]))
		}

		title := strings.TrimSpace(block.Label)
		if title == "" {
			title = "Sector Performance"
		}
		sections = append(sections, detailSection{Title: title, Lines: lines})
	}
	return sections
}

func headlineSection(items []core.NewsItem) (detailSection, bool) {
	if len(items) == 0 {
		return detailSection{}, false
	}

	lines := make([]string, 0, maxHeadlineLines+1)
	for i, item := range items {
		if i == maxHeadlineLines {
			lines = append(lines, fmt.Sprintf("+%d more", len(items)-maxHeadlineLines))
			break
		}
		lines = append(lines, headlineLine(item))
	}

	return detailSection{Title: "Headlines", Lines: lines}, true
}

func headlineLine(item core.NewsItem) string {
	meta := []string{}
	if strings.TrimSpace(item.Source) != "" {
		meta = append(meta, item.Source)
	}
	if !item.PublishedAt.IsZero() {
		meta = append(meta, item.PublishedAt.Format("2006-01-02"))
	}

	if len(meta) == 0 {
		return item.Title
	}
	return fmt.Sprintf("%s (%s)", item.Title, strings.Join(meta, ", "))
}

func renderDetailSections(sections []detailSection, markdown bool) string {
	if len(sections) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, section := range sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		if markdown {
			sb.WriteString(fmt.Sprintf("\n\n### %s\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("- %s\n", line))
			}
		} else {
			sb.WriteString(fmt.Sprintf("\n\n%s:\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("  %s\n", line))
			}
		}
	}
	return sb.String()
}
