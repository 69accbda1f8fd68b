package ui

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stemtube/stemmix/internal/engine"
	"github.com/stemtube/stemmix/internal/mixer"
	"github.com/stemtube/stemmix/internal/source"
)

type fakePlayer struct{ playing bool }

func (p *fakePlayer) Play()             { p.playing = true }
func (p *fakePlayer) Pause()            { p.playing = false }
func (p *fakePlayer) SetVolume(float64) {}
func (p *fakePlayer) Close() error      { return nil }

type fakeDevice struct{}

func (d *fakeDevice) NewPlayer(io.Reader) engine.Player { return &fakePlayer{} }
func (d *fakeDevice) SupportsVolume() bool              { return true }

type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type wavSource struct{ durs map[string]time.Duration }

func (s *wavSource) Fetch(_ context.Context, _, name string) ([]byte, string, error) {
	d, ok := s.durs[name]
	if !ok {
		return nil, "", source.ErrAbsent
	}
	frames := int(d.Seconds() * source.SampleRate)
	var data bytes.Buffer
	for i := 0; i < frames; i++ {
		binary.Write(&data, binary.LittleEndian, int16(0))
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(source.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(source.SampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes(), ".wav", nil
}

func testModel(t *testing.T, durs map[string]time.Duration) Model {
	t.Helper()
	s := mixer.New(mixer.Options{Device: &fakeDevice{}, Clock: &fakeClock{}, Buckets: 50})
	t.Cleanup(s.Close)

	var names []string
	for name := range durs {
		names = append(names, name)
	}
	if _, err := s.LoadStems(context.Background(), &wavSource{durs: durs}, "test", names, nil); err != nil {
		t.Fatalf("LoadStems returned error: %v", err)
	}
	return New(s, "test")
}

func keyPress(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestSpaceTogglesPlayback(t *testing.T) {
	m := testModel(t, map[string]time.Duration{"vocals": time.Second})

	m = keyPress(m, " ")
	if !m.session.IsPlaying() {
		t.Fatal("expected playback after space")
	}
	m = keyPress(m, " ")
	if m.session.IsPlaying() {
		t.Fatal("expected pause after second space")
	}
}

func TestArrowKeysSeekAndClamp(t *testing.T) {
	m := testModel(t, map[string]time.Duration{"vocals": 3 * time.Second})

	m = keyPress(m, "right")
	if got := m.session.GetCurrentTime(); got != 3*time.Second {
		t.Fatalf("expected seek clamped to 3s, got %v", got)
	}
	m = keyPress(m, "left")
	if got := m.session.GetCurrentTime(); got != 0 {
		t.Fatalf("expected seek clamped to 0, got %v", got)
	}
}

func TestStemSelectionStaysInBounds(t *testing.T) {
	m := testModel(t, map[string]time.Duration{
		"vocals": time.Second,
		"drums":  time.Second,
	})

	m = keyPress(m, "up")
	if m.selected != 0 {
		t.Fatalf("expected selection pinned at 0, got %d", m.selected)
	}
	m = keyPress(m, "down")
	m = keyPress(m, "down")
	m = keyPress(m, "down")
	if m.selected != 1 {
		t.Fatalf("expected selection pinned at last stem, got %d", m.selected)
	}
}

func TestVolumeAndMuteKeysHitSelectedStem(t *testing.T) {
	m := testModel(t, map[string]time.Duration{"vocals": time.Second})
	name := m.session.StemNames()[0]

	m = keyPress(m, "-")
	if got := m.session.Stem(name).Volume; got != 0.95 {
		t.Fatalf("expected volume 0.95, got %v", got)
	}
	m = keyPress(m, "m")
	if !m.session.Stem(name).Muted {
		t.Fatal("expected stem muted")
	}
	if got := m.session.EffectiveGain(name); got != 0 {
		t.Fatalf("expected zero gain while muted, got %v", got)
	}
	m = keyPress(m, "s")
	if !m.session.Stem(name).Solo {
		t.Fatal("expected stem soloed")
	}
}

func TestMouseDragScratchesWaveform(t *testing.T) {
	m := testModel(t, map[string]time.Duration{"vocals": time.Second})
	y := m.waveformTop()

	press := tea.MouseMsg{X: 20, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	next, _ := m.Update(press)
	m = next.(Model)
	if !m.dragging || !m.session.IsScratching() {
		t.Fatal("expected drag to start a scratch")
	}

	move := tea.MouseMsg{X: 40, Y: y, Action: tea.MouseActionMotion}
	next, _ = m.Update(move)
	m = next.(Model)

	release := tea.MouseMsg{X: 40, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft}
	next, _ = m.Update(release)
	m = next.(Model)
	if m.dragging || m.session.IsScratching() {
		t.Fatal("expected drag release to end the scratch")
	}
	if m.session.IsPlaying() {
		t.Fatal("expected paused transport after scratch")
	}
}

func TestMousePressOutsideWaveformIgnored(t *testing.T) {
	m := testModel(t, map[string]time.Duration{"vocals": time.Second})

	press := tea.MouseMsg{X: 20, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	next, _ := m.Update(press)
	m = next.(Model)
	if m.dragging || m.session.IsScratching() {
		t.Fatal("expected press above waveform ignored")
	}
}

func TestPositionFromColumnHonorsZoom(t *testing.T) {
	m := testModel(t, map[string]time.Duration{"vocals": 10 * time.Second})
	m.renderer.Width = 100

	// At 1x, the far edge of the span maps to the full duration.
	if got := m.positionFromColumn(102); got != 10*time.Second {
		t.Fatalf("expected far edge to map to 10s, got %v", got)
	}

	// At 2x horizontal zoom the same column maps to half the song.
	m.session.SetZoom(2, 1)
	if got := m.positionFromColumn(102); got != 5*time.Second {
		t.Fatalf("expected 5s at 2x zoom, got %v", got)
	}
}

func TestViewListsStemsAndStatus(t *testing.T) {
	m := testModel(t, map[string]time.Duration{
		"vocals": time.Second,
		"drums":  time.Second,
	})

	view := m.View()
	if !strings.Contains(view, "vocals") || !strings.Contains(view, "drums") {
		t.Fatalf("expected stem rows in view, got %q", view)
	}
	if !strings.Contains(view, "paused") {
		t.Fatalf("expected paused status in view, got %q", view)
	}

	m = keyPress(m, " ")
	if !strings.Contains(m.View(), "playing") {
		t.Fatal("expected playing status in view")
	}
}
