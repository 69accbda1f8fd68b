package engine

import (
	"sync"
	"time"

	"github.com/stemtube/stemmix/internal/source"
)

// PreciseEngine routes every active stem through a per-stem gain/pan
// voice onto one master bus driven by the shared device clock. The bus
// is rebuilt, never reused, on every transport transition; position is
// always derived as clock.Now() minus the reference offset captured at
// play time.
type PreciseEngine struct {
	cfg Config

	mu        sync.Mutex
	playing   bool
	current   time.Duration // authoritative while not playing
	refOffset time.Duration
	bus       *busSource
	player    Player

	burstBus    *busSource
	burstPlayer Player
}

func NewPrecise(cfg Config) *PreciseEngine {
	return &PreciseEngine{cfg: cfg}
}

func (e *PreciseEngine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playLocked()
}

func (e *PreciseEngine) playLocked() {
	if e.playing {
		return
	}
	voices := e.buildVoices(e.current)
	if len(voices) == 0 {
		e.cfg.logger().Info("play ignored: no active stems loaded")
		return
	}

	e.teardownLocked()

	bus := newBusSource(voices, -1)
	e.bus = bus
	e.player = e.cfg.Device.NewPlayer(bus)
	e.player.Play()

	e.refOffset = e.cfg.Clock.Now() - e.current
	e.playing = true
	go e.watch(bus)
}

// buildVoices creates a fresh voice per active loaded stem, starting at
// min(pos, stem duration).
func (e *PreciseEngine) buildVoices(pos time.Duration) []*voice {
	var voices []*voice
	for _, name := range e.cfg.Store.Active() {
		track, ok := e.cfg.Tracks[name]
		if !ok {
			continue
		}
		left, right := stemGains(e.cfg.Store, name)
		voices = append(voices, &voice{
			name:   name,
			pcm:    track.PCM,
			cursor: track.FrameAt(minDur(pos, track.Duration())),
			gainL:  left,
			gainR:  right,
		})
	}
	return voices
}

// watch waits for the bus to finish naturally. Programmatic teardowns
// disarm the bus first, so done never closes for them.
func (e *PreciseEngine) watch(bus *busSource) {
	<-bus.done
	e.handleNaturalEnd(bus)
}

func (e *PreciseEngine) handleNaturalEnd(bus *busSource) {
	e.mu.Lock()
	if e.bus != bus {
		// A transport transition replaced this bus while the
		// notification was in flight; ignore it.
		e.mu.Unlock()
		return
	}
	teardownPlayer(e.player)
	e.player = nil
	e.bus = nil
	e.playing = false
	e.current = 0
	cb := e.cfg.OnEnded
	e.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (e *PreciseEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *PreciseEngine) pauseLocked() {
	if e.playing {
		e.current = e.positionLocked()
	}
	e.teardownLocked()
	e.playing = false
}

func (e *PreciseEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
	e.current = 0
}

func (e *PreciseEngine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasPlaying := e.playing
	e.pauseLocked()
	e.current = clampPos(pos, e.cfg.Store.MaxDuration())
	if wasPlaying {
		// Fresh bus and player, so no stale buffered audio survives.
		e.playLocked()
	}
}

func (e *PreciseEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *PreciseEngine) positionLocked() time.Duration {
	if !e.playing {
		return e.current
	}
	return clampPos(e.cfg.Clock.Now()-e.refOffset, e.cfg.Store.MaxDuration())
}

func (e *PreciseEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *PreciseEngine) RefreshGains() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, bus := range []*busSource{e.bus, e.burstBus} {
		if bus == nil {
			continue
		}
		for _, name := range e.cfg.Store.Names() {
			left, right := stemGains(e.cfg.Store, name)
			bus.setGains(name, left, right)
		}
	}
}

func (e *PreciseEngine) SetPosition(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = clampPos(pos, e.cfg.Store.MaxDuration())
}

func (e *PreciseEngine) SuspendTransport() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		e.current = e.positionLocked()
	}
	e.teardownLocked()
	e.playing = false
}

// Burst plays a short excerpt at the offset, replacing any burst still
// in flight. Burst buses never notify a natural end; they self-limit a
// little short of the requested duration instead.
func (e *PreciseEngine) Burst(offset, dur time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelBurstLocked()

	voices := e.buildVoices(offset)
	if len(voices) == 0 {
		return
	}
	playDur := dur - burstGuard
	if playDur <= 0 {
		playDur = dur
	}
	frames := int(playDur.Seconds() * source.SampleRate)
	if frames < 1 {
		frames = 1
	}

	bus := newBusSource(voices, frames)
	bus.disarm()
	e.burstBus = bus
	e.burstPlayer = e.cfg.Device.NewPlayer(bus)
	e.burstPlayer.Play()
}

func (e *PreciseEngine) CancelBurst() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelBurstLocked()
}

func (e *PreciseEngine) cancelBurstLocked() {
	if e.burstBus != nil {
		e.burstBus.disarm()
		e.burstBus = nil
	}
	teardownPlayer(e.burstPlayer)
	e.burstPlayer = nil
}

// teardownLocked discards the main bus and player. The bus is disarmed
// first so a concurrent Read cannot fire the natural-end path.
func (e *PreciseEngine) teardownLocked() {
	if e.bus != nil {
		e.bus.disarm()
		e.bus = nil
	}
	teardownPlayer(e.player)
	e.player = nil
}

func (e *PreciseEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
	e.cancelBurstLocked()
	e.playing = false
}
