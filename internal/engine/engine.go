// Package engine owns transport state and per-stem audio routing for a
// mixer session. Two backends implement the same interface: the precise
// engine mixes every stem onto one clock-mapped master bus, the
// compatibility engine drives one independent player per stem and
// corrects drift periodically. The backend is chosen once at session
// start.
package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/stemtube/stemmix/internal/source"
	"github.com/stemtube/stemmix/internal/stem"
)

// Engine is the transport contract both backends implement. All
// operations complete synchronously from the caller's perspective;
// whatever the audio subsystem does afterwards is hidden behind
// Position().
type Engine interface {
	// Play starts every active loaded stem at the current position.
	// No-op (logged) when no stems are active.
	Play()
	// Pause captures the position and tears down all sources without
	// natural-end side effects.
	Pause()
	// Stop pauses and resets the position to zero.
	Stop()
	// Seek clamps to [0, maxDuration] and, if playing, restarts
	// playback at the new offset.
	Seek(pos time.Duration)
	// Position is the authoritative playhead position.
	Position() time.Duration
	Playing() bool
	// RefreshGains re-derives every stem's effective gain from the
	// store. Called after any volume/pan/mute/solo change.
	RefreshGains()

	// SetPosition moves the playhead without touching sources. Used by
	// the scratch controller to commit drag positions.
	SetPosition(pos time.Duration)
	// SuspendTransport tears down sources while keeping the position,
	// bypassing pause bookkeeping. Scratch-mode entry point.
	SuspendTransport()
	// Burst tears down any in-flight burst and plays a short excerpt
	// of every active stem at the given offset.
	Burst(offset, dur time.Duration)
	CancelBurst()

	Close()
}

// burstGuard shortens each scratch burst so it never reaches its
// natural end; the tail of a buffer clicks audibly.
const burstGuard = 10 * time.Millisecond

// Config carries the collaborators an engine needs.
type Config struct {
	Device Device
	Clock  Clock
	Store  *stem.Store
	// Tracks maps stem names to decoded audio. The mixer fills it
	// during loading, before any transport operation.
	Tracks map[string]*source.Track
	Logger *slog.Logger
	// OnEnded fires after the whole session reaches its natural end
	// and the engine has transitioned to stopped.
	OnEnded func()
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New selects the backend: the precise engine whenever the device
// supports per-player volume (full routing), the compatibility engine
// otherwise or when forced.
func New(cfg Config, forceCompat bool) Engine {
	if forceCompat || !cfg.Device.SupportsVolume() {
		return NewCompatibility(cfg)
	}
	return NewPrecise(cfg)
}

// teardownPlayer stops and discards a player, swallowing "already
// stopped" errors from the device.
func teardownPlayer(p Player) {
	if p == nil {
		return
	}
	p.Pause()
	_ = p.Close()
}

func clampPos(pos, max time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if max > 0 && pos > max {
		return max
	}
	return pos
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// stemGains derives the left/right gain pair for one stem, folding the
// effective gain (solo/mute/volume) with its pan law.
func stemGains(st *stem.Store, name string) (left, right float64) {
	g := st.EffectiveGain(name)
	pan := st.Pan(name)
	left, right = g, g
	if pan > 0 {
		left = g * (1 - pan)
	}
	if pan < 0 {
		right = g * (1 + pan)
	}
	return left, right
}
