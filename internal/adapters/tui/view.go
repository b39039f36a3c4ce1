package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/ui/style"
)

// View renders the block list above the output of the selected block.
func (m *Model) View() string {
	if len(m.Rows) == 0 {
		return "Extracting blocks...\n"
	}

	var b strings.Builder
	b.WriteString(m.header() + "\n\n")

	nameWidth := 0
	for _, r := range m.Rows {
		nameWidth = max(nameWidth, lipgloss.Width(r.Name))
	}
	for i, r := range m.Rows {
		b.WriteString(m.renderRow(i, r, nameWidth) + "\n")
	}

	if sel := m.selectedRow(); sel != nil && m.width > 0 {
		mode := "following"
		if !m.Follow {
			mode = "manual"
		}
		title := titleStyle
		if sel.Status == domain.BlockStatusFailed {
			title = failureTitleStyle
		}
		b.WriteString("\n" + title.Render(fmt.Sprintf("%s (%s)", sel.Name, mode)) + "\n")
		b.WriteString(m.logs.View() + "\n")
	}

	return b.String()
}

func (m *Model) header() string {
	done, failed := 0, 0
	for _, r := range m.Rows {
		if r.Status.IsTerminal() {
			done++
		}
		if r.Status == domain.BlockStatusFailed {
			failed++
		}
	}

	text := fmt.Sprintf("wasmblock %d/%d", done, len(m.Rows))
	if failed > 0 {
		return failureTitleStyle.Render(fmt.Sprintf("%s, %d failed", text, failed))
	}
	return titleStyle.Render(text)
}

func (m *Model) renderRow(i int, r *Row, nameWidth int) string {
	cursor := "  "
	if i == m.Selected {
		cursor = selectedStyle.Render("> ")
	}

	name := r.Name + strings.Repeat(" ", nameWidth-lipgloss.Width(r.Name))
	line := fmt.Sprintf("%s %s", m.icon(r), name)

	switch r.Status {
	case domain.BlockStatusBuilt:
		line += " " + style.Muted.Render(r.Elapsed.Round(time.Millisecond).String())
	case domain.BlockStatusCached:
		line += " " + style.Muted.Render("cached")
	case domain.BlockStatusFailed:
		if r.Err != nil {
			line += " " + firstLine(r.Err.Error())
		}
	}

	return cursor + statusStyle(r.Status).Render(line)
}

func (m *Model) icon(r *Row) string {
	switch r.Status {
	case domain.BlockStatusRunning:
		return m.spinner.View()
	case domain.BlockStatusBuilt:
		return style.Check
	case domain.BlockStatusCached:
		return style.Cached
	case domain.BlockStatusFailed:
		return style.Cross
	default:
		return style.Circle
	}
}

func statusStyle(s domain.BlockStatus) lipgloss.Style {
	switch s {
	case domain.BlockStatusRunning:
		return runningStyle
	case domain.BlockStatusBuilt:
		return builtStyle
	case domain.BlockStatusCached:
		return cachedStyle
	case domain.BlockStatusFailed:
		return failedStyle
	default:
		return pendingStyle
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
