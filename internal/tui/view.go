package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	parts := []string{
		m.renderHeader(),
		m.renderOutcomes(),
		m.theme.Border.Width(m.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.theme.Title.Render("Interactions"),
				m.table.View(),
			),
		),
		m.theme.Border.Width(m.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.theme.Title.Render("Event Stream"),
				m.renderEvents(),
			),
		),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ! "+m.lastError))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Scroll"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusOK.Render("HEALTHY")
	switch {
	case !m.health.Connected:
		status = m.theme.StatusWarn.Render("CONNECTING")
	case m.health.Status != "ok" && m.health.Status != "":
		status = m.theme.StatusFailed.Render(strings.ToUpper(m.health.Status))
	}

	reg := m.health.Registration
	if reg == "" {
		reg = "unknown"
	}
	switch reg {
	case "registered", "disabled":
		reg = m.theme.StatusOK.Render(reg)
	case "failed":
		reg = m.theme.StatusFailed.Render(reg)
	default:
		reg = m.theme.StatusWarn.Render(reg)
	}
	if m.health.RegistrationTrials > 0 {
		reg += m.theme.Dim.Render(fmt.Sprintf(" (%d attempts)", m.health.RegistrationTrials))
	}

	lastEvent := "never"
	if !m.lastEvent.IsZero() {
		lastEvent = time.Since(m.lastEvent).Round(time.Second).String() + " ago"
	}

	items := []string{
		"Status: " + status,
		"Uptime: " + (time.Duration(m.health.UptimeSeconds) * time.Second).String(),
		"Endpoint: " + reg,
		"Last event: " + lastEvent,
	}
	cell := lipgloss.NewStyle().Width((m.width - 4) / len(items))
	cells := make([]string, len(items))
	for i, it := range items {
		cells[i] = cell.Render(it)
	}

	lines := []string{lipgloss.JoinHorizontal(lipgloss.Top, cells...)}
	if len(m.health.Commands) > 0 {
		lines = append(lines, m.theme.Dim.Render("Commands: /"+strings.Join(m.health.Commands, " /")))
	}
	if m.health.RegistrationErr != "" {
		lines = append(lines, m.theme.StatusFailed.Render("Registration: "+m.health.RegistrationErr))
	}
	return m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderOutcomes() string {
	if m.total == 0 {
		return m.theme.Dim.Render("  No interactions yet")
	}
	names := make([]string, 0, len(m.outcomes))
	for k := range m.outcomes {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := []string{fmt.Sprintf("Total: %d", m.total)}
	for _, k := range names {
		style := m.theme.StatusWarn
		if k == "ok" {
			style = m.theme.StatusOK
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s: %d", k, m.outcomes[k])))
	}
	return "  " + strings.Join(parts, "  ")
}

func (m Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, fmt.Sprintf("%s | %-20s | %s", e.At.Format("15:04:05"), e.Type, string(e.Data)))
	}
	if len(lines) == 0 {
		return "  No events yet..."
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}
