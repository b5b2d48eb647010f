package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/stageboard/internal/board"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	warningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	validDrop     = lipgloss.NewStyle().Background(lipgloss.Color("22"))
	invalidDrop   = lipgloss.NewStyle().Background(lipgloss.Color("52"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// View renders the board.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// render builds the full screen.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready || !m.loaded {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("stageboard"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d sections • %d tasks", len(m.board.Sections), m.board.Layout.Len())))
	b.WriteString("\n\n")

	switch m.mode {
	case modeHelp:
		b.WriteString(m.renderHelp())
	case modeActivityLog:
		b.WriteString(m.renderActivityLog())
	default:
		b.WriteString(m.renderRows())
	}
	b.WriteString("\n")

	switch m.mode {
	case modeAddTask, modeAddCategory:
		b.WriteString(m.input.View())
	case modeConfirmDelete:
		b.WriteString(warningStyle.Render(m.status))
	default:
		b.WriteString(dimStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderRows draws the visible window of board rows.
func (m Model) renderRows() string {
	if len(m.rows) == 0 {
		return mutedStyle.Render("no sections yet")
	}
	end := min(len(m.rows), m.offset+m.bodyHeight())
	lines := make([]string, 0, end-m.offset)
	for idx := m.offset; idx < end; idx++ {
		row := m.rows[idx]
		line := m.renderRow(row)
		if idx == m.cursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		if row.RowID() == m.hoverRowID {
			if m.hoverValid {
				line = validDrop.Render(line)
			} else {
				line = invalidDrop.Render(line)
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderRow draws one row without the cursor gutter.
func (m Model) renderRow(row board.Row) string {
	switch r := row.(type) {
	case board.SectionRow:
		marker := "▸"
		if m.view.ExpandedSections.Has(r.ID) {
			marker = "▾"
		}
		return sectionStyle.Render(marker + " " + r.Name)
	case board.StageRow:
		marker := "▸"
		if m.view.ExpandedStages.Has(r.ID) {
			marker = "▾"
		}
		label := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(r.Color)).Render(r.Label)
		line := "  " + marker + " " + label + mutedStyle.Render(fmt.Sprintf(" (%d)", r.TaskCount))
		if m.controller != nil && !m.controller.State().IsStageActive(r.ID) {
			line += dimStyle.Render(" inactive")
		}
		return line
	case board.CategoryRow:
		marker := "▾"
		if m.view.CollapsedCategories.Has(r.ID) {
			marker = "▸"
		}
		line := "    " + marker + " " + r.Name + mutedStyle.Render(fmt.Sprintf(" (%d)", r.TaskCount))
		if r.Custom {
			line += dimStyle.Render(" custom")
		}
		return line
	case board.TaskRow:
		return m.renderTask(r.TaskID, r.Name, r.Assignee, r.Completed, r.IsSubtask, false)
	case board.ManualTaskRow:
		return m.renderTask(r.TaskID, r.Name, r.Assignee, r.Completed, r.IsSubtask, true)
	case board.AddCategoryPhantomRow:
		return dimStyle.Render("        + add task")
	case board.AddPhantomRow:
		return dimStyle.Render("      + add task")
	default:
		return row.RowID()
	}
}

// renderTask draws one task line with its save state.
func (m Model) renderTask(taskID, name, assignee string, completed, subtask, manual bool) string {
	indent := "      "
	if subtask {
		indent += "  "
	}
	check := "[ ]"
	if completed {
		check = "[x]"
	}
	line := indent + check + " " + name
	if assignee != "" {
		line += mutedStyle.Render(" @" + assignee)
	}
	if !manual {
		line += dimStyle.Render(" catalog")
	}
	if m.session != nil {
		locks := m.session.Locks()
		if locks.IsLocked(taskID) {
			line += dimStyle.Render(" saving…")
		} else if _, failed := locks.Failed(taskID); failed {
			line += warningStyle.Render(" ! not saved")
		}
	}
	return line
}

// renderActivityLog draws the newest ledger entries.
func (m Model) renderActivityLog() string {
	lines := []string{titleStyle.Render("Activity")}
	if len(m.activity) == 0 {
		lines = append(lines, mutedStyle.Render("no activity yet"))
	}
	limit := max(1, m.bodyHeight()-3)
	for idx, entry := range m.activity {
		if idx >= limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%s  %-28s %s %s",
			mutedStyle.Render(entry.At.Format("01-02 15:04")),
			entry.Summary,
			entry.Target,
			dimStyle.Render("by "+entry.Actor),
		))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// renderHelp draws the key reference as markdown.
func (m Model) renderHelp() string {
	var doc strings.Builder
	doc.WriteString("# Keys\n\n")
	for _, column := range m.keys.FullHelp() {
		for _, binding := range column {
			h := binding.Help()
			fmt.Fprintf(&doc, "- `%s` %s\n", h.Key, h.Desc)
		}
		doc.WriteString("\n")
	}
	doc.WriteString("Drag a task with the mouse to reorder it. Manual tasks may also be dropped on another stage or category.\n")
	width := m.width - 4
	if m.markdown == nil {
		return doc.String()
	}
	return m.markdown.render(doc.String(), width)
}
