// Package report renders import results for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/nbbaier/tableimport/internal/core"
)

var (
	colorPrimary = lipgloss.Color("63")
	colorSuccess = lipgloss.Color("42")
	colorError   = lipgloss.Color("196")
	colorBorder  = lipgloss.Color("238")
	colorMuted   = lipgloss.Color("245")
)

var (
	styleTitle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleHeader  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
)

// Import renders the summary printed after a successful import.
func Import(res *core.ImportResult) string {
	var b strings.Builder
	b.WriteString(styleSuccess.Render("✓ Imported"))
	b.WriteString(" ")
	b.WriteString(styleTitle.Render(res.Table.SanitizedTableName))
	b.WriteString("\n")
	b.WriteString(styleMuted.Render(fmt.Sprintf("%d rows · delimiter %s · %dms · %s",
		res.Table.RowCount, delimiterName(res.Delimiter), res.DurationMS, res.ImportID)))
	b.WriteString("\n")
	b.WriteString(Columns(res.Table))
	return b.String()
}

// Preview renders an inferred layout that has not been written anywhere.
func Preview(meta *core.TableMetadata) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("Preview"))
	b.WriteString(" ")
	b.WriteString(meta.SanitizedTableName)
	b.WriteString("\n")
	b.WriteString(styleMuted.Render(fmt.Sprintf("%d rows, nothing written", meta.RowCount)))
	b.WriteString("\n")
	b.WriteString(Columns(meta))
	return b.String()
}

// Columns renders one line per column: original name, SQL name, and type.
func Columns(meta *core.TableMetadata) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("#", "COLUMN", "SQL NAME", "TYPE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})

	for i, c := range meta.Columns {
		t.Row(fmt.Sprint(i+1), c.OriginalName, c.SanitizedName, string(c.Type))
	}
	return t.Render()
}

// Error renders a failure with its support code.
func Error(err error) string {
	msg := core.MapError(err)
	var b strings.Builder
	b.WriteString(styleError.Render("✗ " + msg.Message))
	b.WriteString(" ")
	b.WriteString(styleMuted.Render("(" + msg.Code + ")"))
	if msg.Action != "" {
		b.WriteString("\n  ")
		b.WriteString(msg.Action)
	}
	b.WriteString("\n")
	b.WriteString(styleMuted.Render(err.Error()))
	return b.String()
}

func delimiterName(d string) string {
	switch d {
	case "\t":
		return "tab"
	case ",":
		return "comma"
	case ";":
		return "semicolon"
	case "|":
		return "pipe"
	default:
		return fmt.Sprintf("%q", d)
	}
}
