package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stemtube/stemmix/internal/mixer"
)

type tickMsg time.Time

// loadEventMsg wraps one stem finishing its load.
type loadEventMsg mixer.LoadEvent

// loadDoneMsg signals the whole load finished.
type loadDoneMsg struct {
	active int
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
