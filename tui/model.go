// Package tui is a terminal dashboard over the recorded regression runs.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
)

// RefreshInterval is how often the dashboard reloads the run history
const RefreshInterval = 5 * time.Second

// Tabs
const (
	TabRuns = iota
	TabFailures
	tabCount
)

// RunLoader returns the runs to display, newest first
type RunLoader func() ([]*domain.Run, error)

// Model is the TUI application model
type Model struct {
	load RunLoader

	// Data
	runs    []*domain.Run
	loadErr error

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int
	showDetail  bool

	lastRefresh time.Time
}

// ModelConfig holds initial data for the TUI model
type ModelConfig struct {
	Load RunLoader
	Runs []*domain.Run
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	return Model{
		load: cfg.Load,
		runs: cfg.Runs,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCmd(),
		tickCmd(),
	)
}

// TickMsg triggers a refresh
type TickMsg time.Time

// RunsLoadedMsg carries a reloaded run history
type RunsLoadedMsg struct {
	Runs []*domain.Run
	Err  error
	At   time.Time
}

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) loadCmd() tea.Cmd {
	if m.load == nil {
		return nil
	}
	load := m.load
	return func() tea.Msg {
		runs, err := load()
		return RunsLoadedMsg{Runs: runs, Err: err, At: time.Now()}
	}
}

// visibleRuns returns the runs shown on the active tab
func (m Model) visibleRuns() []*domain.Run {
	if m.activeTab != TabFailures {
		return m.runs
	}
	var failed []*domain.Run
	for _, r := range m.runs {
		if failedRun(r) {
			failed = append(failed, r)
		}
	}
	return failed
}

// SelectedRun returns the highlighted run, or nil
func (m Model) SelectedRun() *domain.Run {
	runs := m.visibleRuns()
	if m.selectedRow < 0 || m.selectedRow >= len(runs) {
		return nil
	}
	return runs[m.selectedRow]
}

func failedRun(r *domain.Run) bool {
	return r.Status.Failed() || r.Verdict == domain.StatusFail
}
