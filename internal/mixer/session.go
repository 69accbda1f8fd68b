// Package mixer wires the stem store, playback engine, scratch
// controller and timeline loop into one explicitly constructed session
// object. The UI talks to a Session, never to the backends directly.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stemtube/stemmix/internal/engine"
	"github.com/stemtube/stemmix/internal/render"
	"github.com/stemtube/stemmix/internal/source"
	"github.com/stemtube/stemmix/internal/stem"
	"github.com/stemtube/stemmix/internal/timeline"
	"github.com/stemtube/stemmix/internal/wave"
)

// Options configures a mixer session.
type Options struct {
	Device      engine.Device
	Clock       engine.Clock // nil means wall clock
	Logger      *slog.Logger // nil discards
	ForceCompat bool
	Buckets     int // envelope resolution, default wave.DefaultBuckets
}

// LoadEvent reports one stem finishing its load, success or not.
type LoadEvent struct {
	Name   string
	Loaded bool
	Absent bool
	Err    error
}

// Session is one mixer instance: a set of stems, a transport, and the
// playhead state the UI displays.
type Session struct {
	store   *stem.Store
	tracks  map[string]*source.Track
	eng     engine.Engine
	scratch *engine.ScratchController
	loop    *timeline.Loop
	log     *slog.Logger
	buckets int

	mu       sync.Mutex
	zoom     render.Zoom
	playPos  time.Duration
	playPct  float64
	envSeeds map[string]int64
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := opts.Clock
	if clock == nil {
		clock = engine.NewClock()
	}
	buckets := opts.Buckets
	if buckets <= 0 {
		buckets = wave.DefaultBuckets
	}

	s := &Session{
		store:    stem.NewStore(),
		tracks:   make(map[string]*source.Track),
		log:      logger,
		buckets:  buckets,
		zoom:     render.DefaultZoom(),
		envSeeds: make(map[string]int64),
	}

	s.eng = engine.New(engine.Config{
		Device:  opts.Device,
		Clock:   clock,
		Store:   s.store,
		Tracks:  s.tracks,
		Logger:  logger,
		OnEnded: s.onNaturalEnd,
	}, opts.ForceCompat)
	s.scratch = engine.NewScratchController(s.eng, s.store.MaxDuration)
	s.loop = timeline.New(s.eng, s.store.MaxDuration, s)
	return s
}

// LoadStems fetches and decodes the named stems concurrently. Each stem
// loads independently: a 404 leaves a silent placeholder, any other
// failure is logged and leaves the stem inactive, and neither aborts
// the rest. Results are applied from this goroutine as they arrive;
// onEvent (optional) observes each completion. Returns how many stems
// became active.
func (s *Session) LoadStems(ctx context.Context, src source.Source, session string, names []string, onEvent func(LoadEvent)) (int, error) {
	if len(names) == 0 {
		names = stem.DefaultNames
	}

	type result struct {
		name  string
		track *source.Track
		err   error
	}
	ch := make(chan result, len(names))

	for _, name := range names {
		s.store.Add(name)
		go func(name string) {
			data, ext, err := src.Fetch(ctx, session, name)
			if err != nil {
				ch <- result{name: name, err: err}
				return
			}
			track, err := source.Decode(name, ext, data)
			ch <- result{name: name, track: track, err: err}
		}(name)
	}

	active := 0
	for range names {
		var res result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return active, ctx.Err()
		}

		ev := LoadEvent{Name: res.name}
		switch {
		case errors.Is(res.err, source.ErrAbsent):
			// Not an error: the session simply has no such stem.
			ev.Absent = true
			s.log.Debug("stem absent", "stem", res.name)
		case res.err != nil:
			ev.Err = res.err
			s.log.Warn("stem load failed", "stem", res.name, "error", res.err)
		default:
			s.applyLoadedTrack(res.track)
			ev.Loaded = true
			active++
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}

	if active == 0 {
		return 0, fmt.Errorf("no stems loaded for session %q", session)
	}
	return active, nil
}

// applyLoadedTrack populates the placeholder stem once decode succeeds.
func (s *Session) applyLoadedTrack(track *source.Track) {
	s.mu.Lock()
	s.tracks[track.Name] = track
	s.mu.Unlock()

	st := s.store.Get(track.Name)
	st.Title = track.Title
	st.Duration = track.Duration()
	st.Envelope = wave.Summarize(track.PCM, source.Channels, s.buckets)
	st.Active = true
}

// MarkConstrained flags a stem whose PCM never became available; it
// gets a synthetic envelope so the timeline still shows something.
func (s *Session) MarkConstrained(name string) {
	st := s.store.Get(name)
	if st == nil {
		return
	}
	s.mu.Lock()
	seed, ok := s.envSeeds[name]
	if !ok {
		seed = int64(len(s.envSeeds) + 1)
		s.envSeeds[name] = seed
	}
	s.mu.Unlock()
	st.Envelope = wave.Synthetic(s.buckets, seed)
}

// --- transport control surface ---

func (s *Session) Play() {
	s.eng.Play()
	if s.eng.Playing() {
		s.loop.Start()
	}
}

func (s *Session) Pause() {
	s.eng.Pause()
	s.loop.Stop()
}

func (s *Session) Stop() {
	s.eng.Stop()
	s.loop.Stop()
	s.setPlayhead(0, 0)
}

func (s *Session) Seek(pos time.Duration) {
	s.eng.Seek(pos)
	s.publishPosition()
}

func (s *Session) TogglePlay() {
	if s.eng.Playing() {
		s.Pause()
	} else {
		s.Play()
	}
}

func (s *Session) IsPlaying() bool               { return s.eng.Playing() }
func (s *Session) GetCurrentTime() time.Duration { return s.eng.Position() }
func (s *Session) GetMaxDuration() time.Duration { return s.store.MaxDuration() }

// --- scratch surface ---

func (s *Session) ScratchBegin() {
	s.loop.Stop()
	s.scratch.Begin()
}

func (s *Session) ScratchMove(pos time.Duration) time.Duration {
	clamped := s.scratch.Move(pos)
	s.publishPosition()
	return clamped
}

func (s *Session) ScratchEnd() {
	s.scratch.End()
	s.publishPosition()
}

func (s *Session) IsScratching() bool {
	return s.scratch.State() == engine.Scratching
}

// --- per-stem controls ---

func (s *Session) SetStemVolume(name string, v float64) {
	s.store.SetVolume(name, v)
	s.eng.RefreshGains()
}

func (s *Session) SetStemPan(name string, p float64) {
	s.store.SetPan(name, p)
	s.eng.RefreshGains()
}

func (s *Session) SetStemMuted(name string, muted bool) {
	s.store.SetMuted(name, muted)
	s.eng.RefreshGains()
}

func (s *Session) SetStemSolo(name string, solo bool) {
	s.store.SetSolo(name, solo)
	s.eng.RefreshGains()
}

func (s *Session) StemNames() []string { return s.store.Names() }

func (s *Session) Stem(name string) *stem.Stem { return s.store.Get(name) }

func (s *Session) EffectiveGain(name string) float64 {
	return s.store.EffectiveGain(name)
}

// --- zoom and playhead ---

func (s *Session) SetZoom(horizontal, vertical float64) {
	s.mu.Lock()
	s.zoom = render.Zoom{Horizontal: horizontal, Vertical: vertical}.Clamp()
	s.mu.Unlock()
}

func (s *Session) Zoom() render.Zoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Playhead returns the most recently published position and percent.
func (s *Session) Playhead() (time.Duration, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playPos, s.playPct
}

// UpdatePlayhead implements timeline.Sink.
func (s *Session) UpdatePlayhead(pos time.Duration, percent float64) {
	s.setPlayhead(pos, percent)
}

// PlaybackEnded implements timeline.Sink: the loop already stopped the
// transport; reset the display.
func (s *Session) PlaybackEnded() {
	s.setPlayhead(0, 0)
}

func (s *Session) setPlayhead(pos time.Duration, pct float64) {
	s.mu.Lock()
	s.playPos = pos
	s.playPct = pct
	s.mu.Unlock()
}

// publishPosition recomputes the playhead from the engine, for
// transitions that happen while the loop is not running.
func (s *Session) publishPosition() {
	pos := s.eng.Position()
	max := s.store.MaxDuration()
	pct := 0.0
	if max > 0 {
		pct = pos.Seconds() / max.Seconds()
		if pct < 0 {
			pct = 0
		}
		if pct > 1 {
			pct = 1
		}
		pct *= 100
	}
	s.setPlayhead(pos, pct)
}

// onNaturalEnd runs when the engine detects every stem played out.
func (s *Session) onNaturalEnd() {
	s.loop.Stop()
	s.setPlayhead(0, 0)
}

func (s *Session) Close() {
	s.loop.Stop()
	s.eng.Close()
}
