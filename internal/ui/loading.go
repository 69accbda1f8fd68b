package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stemtube/stemmix/internal/mixer"
	"github.com/stemtube/stemmix/internal/source"
)

// LoadResult holds the outcome of loading a session's stems.
type LoadResult struct {
	Active int
	Err    error
}

// LoadModel is the Bubbletea model for the stem loading screen.
type LoadModel struct {
	session  *mixer.Session
	src      source.Source
	name     string // session identifier passed to the source
	title    string // display title
	stems    []string
	spinner  spinner.Model
	progress progress.Model
	states   map[string]string
	done     int
	result   *LoadResult
	width    int
	quitting bool
	eventCh  chan mixer.LoadEvent
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewLoad creates the loading model for the given session and source.
// name is the session identifier the source understands; title is what
// the screen shows.
func NewLoad(s *mixer.Session, src source.Source, name, title string, stems []string) LoadModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	p := progress.New(
		progress.WithScaledGradient("#3355AA", "#66AAFF"),
		progress.WithoutPercentage(),
	)

	states := make(map[string]string, len(stems))
	for _, st := range stems {
		states[st] = "loading"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return LoadModel{
		ctx:      ctx,
		cancel:   cancel,
		session:  s,
		src:      src,
		name:     name,
		title:    title,
		stems:    stems,
		spinner:  sp,
		progress: p,
		states:   states,
		eventCh:  make(chan mixer.LoadEvent, 16),
	}
}

// Result returns the load outcome after the program finishes.
func (m LoadModel) Result() LoadResult {
	if m.result != nil {
		return *m.result
	}
	return LoadResult{Err: fmt.Errorf("loading was cancelled")}
}

func (m LoadModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startLoad(),
		m.waitForEvent(),
	)
}

func (m LoadModel) startLoad() tea.Cmd {
	return func() tea.Msg {
		active, err := m.session.LoadStems(m.ctx, m.src, m.name, m.stems, func(ev mixer.LoadEvent) {
			m.eventCh <- ev
		})
		close(m.eventCh)
		return loadDoneMsg{active: active, err: err}
	}
}

func (m LoadModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.eventCh
		if !ok {
			return nil
		}
		return loadEventMsg(ev)
	}
}

func (m LoadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			m.result = &LoadResult{Err: fmt.Errorf("loading was cancelled")}
			return m, tea.Quit
		}

	case loadEventMsg:
		switch {
		case msg.Loaded:
			m.states[msg.Name] = "loaded"
		case msg.Absent:
			m.states[msg.Name] = "absent"
		default:
			m.states[msg.Name] = "failed"
		}
		m.done++
		return m, m.waitForEvent()

	case loadDoneMsg:
		m.result = &LoadResult{Active: msg.active, Err: msg.err}
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil
	}

	return m, nil
}

func (m LoadModel) View() string {
	if m.quitting {
		return ""
	}

	lines := "\n"
	lines += "  " + headerStyle.Render("stemmix") + "  " + titleStyle.Render(m.title) + "\n\n"
	lines += "  " + m.spinner.View() + statusStyle.Render("Loading stems...") + "\n\n"

	for _, st := range m.stems {
		var mark string
		switch m.states[st] {
		case "loaded":
			mark = waveStyle.Render("✓")
		case "absent":
			mark = helpStyle.Render("–")
		case "failed":
			mark = errStyle.Render("✗")
		default:
			mark = " "
		}
		lines += fmt.Sprintf("    %s %s\n", mark, stemStyle.Render(st))
	}

	lines += "\n"
	if len(m.stems) > 0 {
		lines += "  " + m.progress.ViewAs(float64(m.done)/float64(len(m.stems))) + "\n"
	}
	lines += "\n  " + helpStyle.Render("q to cancel") + "\n"
	return lines
}
