package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/gnana997/tsunused/pkg/detector"
	"github.com/gnana997/tsunused/pkg/extractor"
)

// sectionTitles names each element type in list headings.
var sectionTitles = map[extractor.ElementType]string{
	extractor.Component: "Components",
	extractor.Type:      "Types",
	extractor.Interface: "Interfaces",
	extractor.Function:  "Functions",
	extractor.Variable:  "Variables",
	extractor.Enum:      "Enums",
}

// styles are bound to the output writer, so colors are dropped when w is
// not a terminal.
type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	accent lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		label:  r.NewStyle().Foreground(lipgloss.Color("252")),
		good:   r.NewStyle().Foreground(lipgloss.Color("10")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("9")),
		accent: r.NewStyle().Foreground(lipgloss.Color("14")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Text writes the human report: summary, per-type table and the unused
// elements grouped by type.
func Text(w io.Writer, result *detector.DetectionResult, opts Options) error {
	s := newStyles(w)
	var b strings.Builder

	b.WriteString(s.title.Render("TypeScript Unused Code Report"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %d\n", s.label.Render("Total elements:"), result.Total)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Used:          "), s.good.Render(strconv.Itoa(len(result.Used))))
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Unused:        "), s.bad.Render(strconv.Itoa(len(result.Unused))))
	fmt.Fprintf(&b, "%s %d%%\n", s.label.Render("Usage rate:    "), result.UsageRate())

	if len(result.ByType) > 0 {
		b.WriteString("\n")
		b.WriteString(typeTable(result))
	}

	b.WriteString("\n")
	if len(result.Unused) == 0 {
		b.WriteString(s.good.Render("No unused elements found."))
		b.WriteString("\n")
	} else {
		b.WriteString(s.title.Render("Unused elements"))
		b.WriteString("\n")
		writeGroups(&b, s, result.Unused, false)
	}

	if opts.Verbose && len(result.Used) > 0 {
		b.WriteString("\n")
		b.WriteString(s.title.Render("Used elements"))
		b.WriteString("\n")
		writeGroups(&b, s, result.Used, true)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// typeTable renders the per-type counts in report order.
func typeTable(result *detector.DetectionResult) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Type", "Total", "Used", "Unused", "Usage"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})

	for _, t := range extractor.ElementTypes() {
		stats, ok := result.ByType[t]
		if !ok {
			continue
		}
		table.Append([]string{
			string(t),
			strconv.Itoa(stats.Total),
			strconv.Itoa(stats.Used),
			strconv.Itoa(stats.Unused),
			fmt.Sprintf("%d%%", stats.UsageRate()),
		})
	}

	table.Render()
	return buf.String()
}

// writeGroups lists infos under one heading per type. infos are sorted by
// type already.
func writeGroups(b *strings.Builder, s styles, infos []detector.ElementInfo, withUsages bool) {
	for i := 0; i < len(infos); {
		t := infos[i].ElementType
		j := i
		for j < len(infos) && infos[j].ElementType == t {
			j++
		}

		title, ok := sectionTitles[t]
		if !ok {
			title = string(t)
		}
		fmt.Fprintf(b, "\n  %s (%d)\n", s.accent.Render(title), j-i)

		for _, info := range infos[i:j] {
			fmt.Fprintf(b, "    %s %s\n", info.Name, s.muted.Render(strings.Join(info.DefinitionFiles, ", ")))
			if !withUsages {
				continue
			}
			for _, u := range info.Usages {
				fmt.Fprintf(b, "      %s %s\n", s.muted.Render("used in"), usageSummary(u))
			}
		}
		i = j
	}
}

// usageSummary renders "path:line,line".
func usageSummary(u extractor.ElementUsage) string {
	lines := make([]string, 0, len(u.Usages))
	seen := make(map[int]bool, len(u.Usages))
	for _, usage := range u.Usages {
		if seen[usage.Line] {
			continue
		}
		seen[usage.Line] = true
		lines = append(lines, strconv.Itoa(usage.Line))
	}
	return u.File + ":" + strings.Join(lines, ",")
}
