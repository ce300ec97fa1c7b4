package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		case "j", "down":
			if m.selectedRow < len(m.visibleRuns())-1 {
				m.selectedRow++
			}
			if m.selectedRow >= m.scroll+m.pageSize() {
				m.scroll = m.selectedRow - m.pageSize() + 1
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			if m.selectedRow < m.scroll {
				m.scroll = m.selectedRow
			}
		case "g":
			m.selectedRow = 0
			m.scroll = 0
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.selectedRow = 0
			m.scroll = 0
			m.showDetail = false
		case "f":
			m.activeTab = TabFailures
			m.selectedRow = 0
			m.scroll = 0
		case "enter":
			if m.SelectedRun() != nil {
				m.showDetail = !m.showDetail
			}
		case "esc":
			m.showDetail = false
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.loadCmd(), tickCmd())

	case RunsLoadedMsg:
		m.loadErr = msg.Err
		if msg.Err == nil {
			m.runs = msg.Runs
			m.lastRefresh = msg.At
		}
		if n := len(m.visibleRuns()); m.selectedRow >= n {
			m.selectedRow = max(n-1, 0)
		}
	}

	return m, nil
}

// pageSize is the number of run rows that fit on screen
func (m Model) pageSize() int {
	// header, tabs, borders, column header, status bar
	rows := m.height - 7
	if rows < 5 {
		return 5
	}
	return rows
}
