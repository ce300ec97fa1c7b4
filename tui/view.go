package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	passStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	selectedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255"))
)

var tabNames = []string{"Runs", "Failures"}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	failed := 0
	for _, r := range m.runs {
		if failedRun(r) {
			failed++
		}
	}
	refreshed := "never"
	if !m.lastRefresh.IsZero() {
		refreshed = m.lastRefresh.Format("15:04:05")
	}
	header := fmt.Sprintf(" Regression Orchestrator │ Runs: %d │ Failed: %d │ Refreshed: %s ",
		len(m.runs), failed, refreshed)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	var section string
	if m.showDetail {
		section = m.renderDetail(m.SelectedRun())
	} else {
		section = m.renderRuns()
	}
	b.WriteString(sectionStyle.Width(m.width - 2).Render(section))
	b.WriteString("\n")

	if m.loadErr != nil {
		b.WriteString(errorStyle.Width(m.width).Render(" Error: " + m.loadErr.Error()))
		b.WriteString("\n")
	}

	statusBar := " [tab]switch [f]ailures [j/k]navigate [enter]details [r]efresh [q]uit "
	if m.showDetail {
		statusBar = " [esc/enter]back [r]efresh [q]uit "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderTabs() string {
	var tabs []string
	for i, name := range tabNames {
		if i == m.activeTab {
			tabs = append(tabs, tabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(name))
		}
	}
	return " " + strings.Join(tabs, "  ")
}

func (m Model) renderRuns() string {
	runs := m.visibleRuns()
	if len(runs) == 0 {
		return dimmedStyle.Render("No runs recorded")
	}

	var b strings.Builder
	b.WriteString(dimmedStyle.Render(fmt.Sprintf("  %-40s %-10s %-38s %-16s %s", "RUN DIR", "KIND", "STATUS", "STARTED", "DURATION")))

	end := min(m.scroll+m.pageSize(), len(runs))
	for i := m.scroll; i < end; i++ {
		r := runs[i]
		runDir := r.RunDir
		if runDir == "" {
			runDir = "-"
		}
		if r.DryRun {
			runDir += " (dry)"
		}
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.Duration().Round(time.Second).String()
		}

		prefix := "  "
		line := fmt.Sprintf("%-40s %-10s ", runDir, r.Kind)
		if i == m.selectedRow {
			prefix = "> "
			line = selectedStyle.Render(line)
		}
		status := statusStyle(r).Render(fmt.Sprintf("%-38s", statusText(r)))
		b.WriteString("\n" + prefix + line + status +
			fmt.Sprintf(" %-16s %s", humanize.Time(r.StartedAt), duration))
	}
	return b.String()
}

func (m Model) renderDetail(r *domain.Run) string {
	if r == nil {
		return dimmedStyle.Render("No run selected")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run:      %s\n", r.RunDir)
	fmt.Fprintf(&b, "Project:  %s (%s, seed %d)\n", r.Project, r.Kind, r.Seed)
	fmt.Fprintf(&b, "Status:   %s\n", statusStyle(r).Render(statusText(r)))
	fmt.Fprintf(&b, "Exit:     %d\n", r.ExitCode)
	fmt.Fprintf(&b, "Started:  %s (%s)\n", r.StartedAt.Format(time.DateTime), humanize.Time(r.StartedAt))
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", errorStyle.Render(r.Error))
	}

	b.WriteString("\nSteps:")
	if len(r.Steps) == 0 {
		b.WriteString(dimmedStyle.Render(" none"))
	}
	for _, s := range r.Steps {
		style := passStyle
		if s.ExitCode != 0 || s.Error != "" {
			style = errorStyle
		}
		fmt.Fprintf(&b, "\n  %-10s %s %s", s.Step,
			style.Render(fmt.Sprintf("exit %-4d", s.ExitCode)),
			dimmedStyle.Render(s.Duration.Round(time.Second).String()))
		if s.Error != "" {
			b.WriteString(" " + errorStyle.Render(s.Error))
		}
	}
	return b.String()
}

// statusText combines the final status with the test verdict
func statusText(r *domain.Run) string {
	if r.Verdict != "" && r.Status == domain.StatusComplete {
		return fmt.Sprintf("%s (%s)", r.Status, r.Verdict)
	}
	return string(r.Status)
}

func statusStyle(r *domain.Run) lipgloss.Style {
	switch {
	case r.Status.Failed():
		return errorStyle
	case r.Verdict == domain.StatusFail:
		return warningStyle
	default:
		return passStyle
	}
}
