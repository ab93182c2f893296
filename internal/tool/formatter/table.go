package formatter

import (
	"strings"

	"github.com/harunnryd/kaiwa/internal/tool"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) FormatTools(defs []tool.Definition) (string, error) {
	if len(defs) == 0 {
		return "No tools enabled", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers("Name", "Risk", "Parameters", "Description")

	for _, view := range toolViews(defs) {
		t.Row(
			view.Name,
			view.Risk,
			truncateString(paramList(view.Parameters), 30),
			truncateString(view.Description, 50),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatTool(def *tool.Definition) (string, error) {
	if def == nil {
		return "No tool found", nil
	}
	view := newToolView(*def)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	t.Row("Name", view.Name)
	t.Row("Description", truncateString(view.Description, 60))
	t.Row("Source", view.Source)
	t.Row("Risk", view.Risk)
	t.Row("Capabilities", strings.Join(view.Capabilities, ", "))
	t.Row("Parameters", paramList(view.Parameters))

	return t.String(), nil
}

// paramList renders parameters as "name:type", required ones marked with *.
func paramList(params []paramView) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		entry := p.Name
		if p.Type != "" {
			entry += ":" + p.Type
		}
		if p.Required {
			entry += "*"
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, ", ")
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
