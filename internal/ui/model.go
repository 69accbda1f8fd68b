package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"

	"github.com/stemtube/stemmix/internal/mixer"
	"github.com/stemtube/stemmix/internal/render"
	"github.com/stemtube/stemmix/internal/util"
)

const (
	waveformHeight = 9
	seekStep       = 5 * time.Second
	volumeStep     = 0.05
	panStep        = 0.1
	zoomStep       = 0.25
)

// Model is the Bubbletea model for the mixer screen.
type Model struct {
	session     *mixer.Session
	sessionName string
	renderer    *render.Renderer

	spring      harmonica.Spring
	playheadPos float64 // spring-smoothed percent
	playheadVel float64

	selected int
	width    int
	height   int
	quitting bool
	dragging bool
}

// New creates the mixer model for a loaded session.
func New(s *mixer.Session, sessionName string) Model {
	return Model{
		session:     s,
		sessionName: sessionName,
		renderer:    render.New(76, waveformHeight),
		spring:      harmonica.NewSpring(harmonica.FPS(20), 7.0, 0.9),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.SetWindowTitle("stemmix - "+m.sessionName))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tickMsg:
		_, target := m.session.Playhead()
		if !m.session.IsPlaying() && !m.session.IsScratching() {
			// While paused the loop is idle; derive directly.
			max := m.session.GetMaxDuration()
			if max > 0 {
				target = m.session.GetCurrentTime().Seconds() / max.Seconds() * 100
			}
		}
		m.playheadPos, m.playheadVel = m.spring.Update(m.playheadPos, m.playheadVel, target)
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := msg.Width - 4
		if w < 20 {
			w = 20
		}
		m.renderer.Width = w
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	names := m.session.StemNames()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.session.Close()
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)

	case " ":
		m.session.TogglePlay()
		return m, nil

	case "esc":
		m.session.Stop()
		return m, nil

	case "left", "h":
		m.session.Seek(m.session.GetCurrentTime() - seekStep)
	case "right", "l":
		m.session.Seek(m.session.GetCurrentTime() + seekStep)

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(names)-1 {
			m.selected++
		}

	case "+", "=":
		if name, ok := m.selectedStem(names); ok {
			m.session.SetStemVolume(name, m.session.Stem(name).Volume+volumeStep)
		}
	case "-":
		if name, ok := m.selectedStem(names); ok {
			m.session.SetStemVolume(name, m.session.Stem(name).Volume-volumeStep)
		}
	case "[":
		if name, ok := m.selectedStem(names); ok {
			m.session.SetStemPan(name, m.session.Stem(name).Pan-panStep)
		}
	case "]":
		if name, ok := m.selectedStem(names); ok {
			m.session.SetStemPan(name, m.session.Stem(name).Pan+panStep)
		}
	case "m":
		if name, ok := m.selectedStem(names); ok {
			m.session.SetStemMuted(name, !m.session.Stem(name).Muted)
		}
	case "s":
		if name, ok := m.selectedStem(names); ok {
			m.session.SetStemSolo(name, !m.session.Stem(name).Solo)
		}

	case "z":
		z := m.session.Zoom()
		m.session.SetZoom(z.Horizontal+zoomStep, z.Vertical)
	case "Z":
		z := m.session.Zoom()
		m.session.SetZoom(z.Horizontal-zoomStep, z.Vertical)
	case "v":
		z := m.session.Zoom()
		m.session.SetZoom(z.Horizontal, z.Vertical+zoomStep)
	case "V":
		z := m.session.Zoom()
		m.session.SetZoom(z.Horizontal, z.Vertical-zoomStep)
	}
	return m, nil
}

// handleMouse maps drags across the waveform pane to scratch gestures.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	inWaveform := msg.Y >= m.waveformTop() && msg.Y < m.waveformTop()+waveformHeight

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && inWaveform {
			m.dragging = true
			m.session.ScratchBegin()
			m.session.ScratchMove(m.positionFromColumn(msg.X))
		}
	case tea.MouseActionMotion:
		if m.dragging {
			m.session.ScratchMove(m.positionFromColumn(msg.X))
		}
	case tea.MouseActionRelease:
		if m.dragging {
			m.dragging = false
			m.session.ScratchEnd()
		}
	}
	return m, nil
}

// positionFromColumn converts a surface column to a song position,
// honoring horizontal zoom.
func (m Model) positionFromColumn(x int) time.Duration {
	span := float64(m.renderer.Width) * m.session.Zoom().Horizontal
	if span <= 0 {
		return 0
	}
	frac := float64(x-2) / span
	return time.Duration(frac * m.session.GetMaxDuration().Seconds() * float64(time.Second))
}

// waveformTop is the first screen row of the waveform pane; the mouse
// handler needs it to scope drags.
func (m Model) waveformTop() int {
	return 2 + len(m.session.StemNames()) + 1
}

func (m Model) selectedStem(names []string) (string, bool) {
	if m.selected < 0 || m.selected >= len(names) {
		return "", false
	}
	return names[m.selected], true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("stemmix"))
	b.WriteString("  ")
	b.WriteString(titleStyle.Render(m.sessionName))
	b.WriteString("\n\n")

	for i, name := range m.session.StemNames() {
		b.WriteString(m.renderStemRow(i, name))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString(m.renderWaveform())
	b.WriteByte('\n')

	elapsed := m.session.GetCurrentTime()
	total := m.session.GetMaxDuration()
	barWidth := m.renderer.Width - 14
	b.WriteString(fmt.Sprintf("%s %s %s\n",
		timeStyle.Render(util.FormatDuration(elapsed)),
		renderProgressBar(elapsed.Seconds(), total.Seconds(), barWidth),
		timeStyle.Render(util.FormatDuration(total))))

	status := "paused"
	icon := "❚❚"
	switch {
	case m.session.IsScratching():
		status, icon = "scratching", "↻"
	case m.session.IsPlaying():
		status, icon = "playing", "▶"
	}
	z := m.session.Zoom()
	b.WriteString(statusStyle.Render(fmt.Sprintf("%s %s   zoom %.2gx/%.2gx", icon, status, z.Horizontal, z.Vertical)))
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render(helpText()))

	return b.String()
}

func (m Model) renderStemRow(i int, name string) string {
	st := m.session.Stem(name)

	cursor := "  "
	if i == m.selected {
		cursor = "> "
	}

	style := stemStyle
	if i == m.selected {
		style = selectedStemStyle
	}
	if !st.Active {
		style = inactiveStemStyle
	}

	flags := ""
	if st.Muted {
		flags += flagOnStyle.Render(" M")
	} else {
		flags += "  "
	}
	if st.Solo {
		flags += flagOnStyle.Render(" S")
	} else {
		flags += "  "
	}

	state := ""
	if !st.Active {
		state = errStyle.Render("  (unavailable)")
	}

	return fmt.Sprintf("%s%s  %s  %s%s%s",
		cursor,
		style.Render(fmt.Sprintf("%-8s", st.Title)),
		renderVolumeCell(st.Volume),
		renderPanCell(st.Pan),
		flags,
		state)
}

// renderWaveform draws the mix envelope of the selected stem (or the
// first active one) with the smoothed playhead on top.
func (m Model) renderWaveform() string {
	names := m.session.StemNames()
	env := []float64(nil)
	if name, ok := m.selectedStem(names); ok && m.session.Stem(name).Envelope != nil {
		env = m.session.Stem(name).Envelope
	} else {
		for _, n := range names {
			if e := m.session.Stem(n).Envelope; e != nil {
				env = e
				break
			}
		}
	}
	frame := m.renderer.Render(env, m.session.Zoom(), m.playheadPos)
	return waveStyle.Render(frame)
}
