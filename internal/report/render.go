package report

import (
	"fmt"
	"strings"

	"github.com/Veraticus/motorsense/internal/aggregate"
	"github.com/Veraticus/motorsense/internal/cli"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Row is one recording's verdict as shown in tables.
type Row struct {
	Recording      string
	Expected       string
	Verdict        model.AggregateVerdict
	SkippedWindows int
}

// RenderVerdict shows a single recording verdict with its class ranking.
func RenderVerdict(classes *model.ClassSet, row Row) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Verdict:"), styleVerdict(row))
	fmt.Fprintf(&b, "%s %d", cli.SubtleStyle.Render("Windows:"), row.Verdict.WindowCount)
	if row.SkippedWindows > 0 {
		b.WriteString(" " + cli.WarningStyle.Render(fmt.Sprintf("(%d skipped)", row.SkippedWindows)))
	}
	b.WriteString("\n\n")

	header := []string{"Class", "Score", "Votes"}
	var rows [][]string
	for _, score := range aggregate.Rank(classes, row.Verdict) {
		rows = append(rows, []string{
			score.Name,
			fmt.Sprintf("%.3f", score.Score),
			fmt.Sprintf("%d", score.Votes),
		})
	}
	b.WriteString(renderTable(header, rows))

	return cli.RenderBox(row.Recording, b.String())
}

// RenderVerdictTable lists many verdicts, one line each.
func RenderVerdictTable(rows []Row) string {
	header := []string{"Recording", "Expected", "Verdict", "Windows", "Skipped"}
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		expected := row.Expected
		if expected == "" {
			expected = "-"
		}
		cells = append(cells, []string{
			row.Recording,
			expected,
			styleVerdict(row),
			fmt.Sprintf("%d", row.Verdict.WindowCount),
			fmt.Sprintf("%d", row.SkippedWindows),
		})
	}
	return renderTable(header, cells)
}

// RenderMatrix shows the confusion matrix followed by per-class recall and precision.
func RenderMatrix(m *ConfusionMatrix) string {
	names := m.Classes().Names()

	header := append([]string{"expected \\ predicted"}, names...)
	rows := make([][]string, len(names))
	for i, name := range names {
		row := []string{name}
		for j := range names {
			cell := fmt.Sprintf("%d", m.Count(i, j))
			if i == j && m.Count(i, j) > 0 {
				cell = cli.SuccessStyle.Render(cell)
			} else if i != j && m.Count(i, j) > 0 {
				cell = cli.ErrorStyle.Render(cell)
			}
			row = append(row, cell)
		}
		rows[i] = row
	}

	var b strings.Builder
	b.WriteString(renderTable(header, rows))
	b.WriteString("\n")

	metrics := make([][]string, len(names))
	for i, name := range names {
		metrics[i] = []string{name, formatRatio(m.Recall(i)), formatRatio(m.Precision(i))}
	}
	b.WriteString(renderTable([]string{"Class", "Recall", "Precision"}, metrics))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %d/%d (%.1f%%)",
		cli.BoldStyle.Render("Accuracy:"), m.Correct(), m.Total(), m.Accuracy()*100)

	return cli.RenderBox(cli.ChartIcon+" Confusion matrix", b.String())
}

// RenderRuns lists stored runs.
func RenderRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return cli.FormatInfo("No runs recorded yet")
	}
	header := []string{"Run", "Started", "Command", "Model", "Window", "Stride"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Command,
			run.Model,
			fmt.Sprintf("%d", run.WindowLength),
			fmt.Sprintf("%d", run.Stride),
		})
	}
	return renderTable(header, rows)
}

func styleVerdict(row Row) string {
	switch {
	case row.Expected == "":
		return cli.InfoStyle.Render(row.Verdict.ClassName)
	case row.Expected == row.Verdict.ClassName:
		return cli.SuccessStyle.Render(cli.SuccessIcon + " " + row.Verdict.ClassName)
	default:
		return cli.ErrorStyle.Render(cli.ErrorIcon + " " + row.Verdict.ClassName)
	}
}

func formatRatio(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// renderTable lays cells out in columns sized to their widest rendered cell.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cli.TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}

	lines := []string{renderRow(header, cli.TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
