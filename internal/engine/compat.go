package engine

import (
	"io"
	"sync"
	"time"

	"github.com/stemtube/stemmix/internal/source"
)

const (
	// resyncInterval is how often the compatibility engine re-measures
	// its reference stem.
	resyncInterval = 50 * time.Millisecond
	// driftEpsilon is the stem-to-reference divergence that triggers a
	// correction seek.
	driftEpsilon = 100 * time.Millisecond
)

// pcmReader presents a decoded track as a seekable s16le byte stream.
type pcmReader struct {
	pcm []int16
	pos int64 // byte offset
}

func (r *pcmReader) Read(p []byte) (int, error) {
	total := int64(len(r.pcm)) * 2
	if r.pos >= total {
		return 0, io.EOF
	}
	n := 0
	for n+1 < len(p) && r.pos+1 < total {
		s := uint16(r.pcm[r.pos/2])
		p[n] = byte(s)
		p[n+1] = byte(s >> 8)
		n += 2
		r.pos += 2
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *pcmReader) Seek(offset int64, whence int) (int64, error) {
	total := int64(len(r.pcm)) * 2
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.pos + offset
	case io.SeekEnd:
		pos = total + offset
	}
	if pos < 0 {
		pos = 0
	}
	if pos > total {
		pos = total
	}
	pos -= pos % 2
	r.pos = pos
	return pos, nil
}

// countingReader tracks bytes handed to the device; the byte count is
// the only position signal this backend has.
type countingReader struct {
	reader io.ReadSeeker
	pos    int64
	mu     sync.Mutex
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	cr.mu.Unlock()
	return n, err
}

func (cr *countingReader) Pos() int64 {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos
}

func (cr *countingReader) SetPos(pos int64) {
	cr.mu.Lock()
	cr.pos = pos
	cr.mu.Unlock()
}

// mediaHandle is one stem's independently playable source.
type mediaHandle struct {
	name    string
	track   *source.Track
	counter *countingReader
	player  Player
	// mutedAsGain marks a handle silenced via the mute-toggle fallback
	// on devices without volume control.
	mutedAsGain bool
}

func (h *mediaHandle) position() time.Duration {
	return time.Duration(float64(h.counter.Pos()) / source.BytesPerSec * float64(time.Second))
}

func (h *mediaHandle) finished() bool {
	return h.counter.Pos() >= int64(len(h.track.PCM))*2
}

// CompatibilityEngine plays each stem on its own device player.
// Synchronization across players is approximate; a fixed-interval tick
// measures the first active stem as ground truth and re-seeks any stem
// drifting past driftEpsilon. Pan is stored for display only.
type CompatibilityEngine struct {
	cfg Config

	mu         sync.Mutex
	playing    bool
	current    time.Duration
	handles    []*mediaHandle
	resyncStop chan struct{}

	burstPlayers []Player
}

func NewCompatibility(cfg Config) *CompatibilityEngine {
	return &CompatibilityEngine{cfg: cfg}
}

func (e *CompatibilityEngine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playLocked()
}

func (e *CompatibilityEngine) playLocked() {
	if e.playing {
		return
	}
	e.teardownLocked()

	for _, name := range e.cfg.Store.Active() {
		track, ok := e.cfg.Tracks[name]
		if !ok {
			continue
		}
		h := e.newHandle(name, track, minDur(e.current, track.Duration()))
		e.handles = append(e.handles, h)
	}
	if len(e.handles) == 0 {
		e.cfg.logger().Info("play ignored: no active stems loaded")
		return
	}

	for _, h := range e.handles {
		e.applyGain(h)
		if !h.mutedAsGain {
			h.player.Play()
		}
	}
	e.playing = true

	stop := make(chan struct{})
	e.resyncStop = stop
	go e.resyncLoop(stop)
}

// newHandle builds a fresh player for a stem at the given offset. A
// handle's player is never restarted; corrections replace it.
func (e *CompatibilityEngine) newHandle(name string, track *source.Track, at time.Duration) *mediaHandle {
	offset := int64(track.FrameAt(at)) * source.Channels * 2
	r := &pcmReader{pcm: track.PCM, pos: offset}
	counter := &countingReader{reader: r, pos: offset}
	return &mediaHandle{
		name:    name,
		track:   track,
		counter: counter,
		player:  e.cfg.Device.NewPlayer(counter),
	}
}

// applyGain pushes the stem's effective gain onto the player, falling
// back to mute toggling when the device ignores volume.
func (e *CompatibilityEngine) applyGain(h *mediaHandle) {
	g := e.cfg.Store.EffectiveGain(h.name)
	if e.cfg.Device.SupportsVolume() {
		h.player.SetVolume(g)
		return
	}
	if g == 0 && !h.mutedAsGain {
		h.player.Pause()
		h.mutedAsGain = true
	} else if g > 0 && h.mutedAsGain {
		h.mutedAsGain = false
		if e.playing {
			h.player.Play() // next resync tick realigns it
		}
	}
}

func (e *CompatibilityEngine) resyncLoop(stop chan struct{}) {
	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if e.resyncTick() {
				return
			}
		}
	}
}

// resyncTick measures the reference stem, corrects drifted stems and
// detects the session's natural end. Returns true once playback ended.
func (e *CompatibilityEngine) resyncTick() bool {
	e.mu.Lock()
	if !e.playing || len(e.handles) == 0 {
		e.mu.Unlock()
		return true
	}

	allDone := true
	for _, h := range e.handles {
		if !h.finished() {
			allDone = false
			break
		}
	}
	if allDone {
		e.teardownLocked()
		e.playing = false
		e.current = 0
		cb := e.cfg.OnEnded
		e.mu.Unlock()
		if cb != nil {
			cb()
		}
		return true
	}

	ref := e.handles[0]
	refPos := ref.position()
	e.current = refPos

	for _, h := range e.handles[1:] {
		if h.finished() || h.mutedAsGain {
			continue
		}
		drift := h.position() - refPos
		if drift < -driftEpsilon || drift > driftEpsilon {
			e.cfg.logger().Debug("correcting stem drift",
				"stem", h.name, "drift", drift.String())
			e.reseekLocked(h, refPos)
		}
	}
	e.mu.Unlock()
	return false
}

// reseekLocked aligns a handle to pos by discarding its player and
// starting a fresh one, which also flushes device buffers.
func (e *CompatibilityEngine) reseekLocked(h *mediaHandle, pos time.Duration) {
	offset := int64(h.track.FrameAt(pos)) * source.Channels * 2
	teardownPlayer(h.player)
	r := &pcmReader{pcm: h.track.PCM, pos: offset}
	h.counter.reader = r
	h.counter.SetPos(offset)
	h.player = e.cfg.Device.NewPlayer(h.counter)
	e.applyGain(h)
	if !h.mutedAsGain {
		h.player.Play()
	}
}

func (e *CompatibilityEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *CompatibilityEngine) pauseLocked() {
	if e.playing {
		e.current = e.positionLocked()
	}
	e.teardownLocked()
	e.playing = false
}

func (e *CompatibilityEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
	e.current = 0
}

func (e *CompatibilityEngine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasPlaying := e.playing
	e.pauseLocked()
	e.current = clampPos(pos, e.cfg.Store.MaxDuration())
	if wasPlaying {
		e.playLocked()
	}
}

func (e *CompatibilityEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *CompatibilityEngine) positionLocked() time.Duration {
	if e.playing && len(e.handles) > 0 {
		return clampPos(e.handles[0].position(), e.cfg.Store.MaxDuration())
	}
	return e.current
}

func (e *CompatibilityEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *CompatibilityEngine) RefreshGains() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.handles {
		e.applyGain(h)
	}
}

func (e *CompatibilityEngine) SetPosition(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = clampPos(pos, e.cfg.Store.MaxDuration())
}

func (e *CompatibilityEngine) SuspendTransport() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		e.current = e.positionLocked()
	}
	e.teardownLocked()
	e.playing = false
}

func (e *CompatibilityEngine) Burst(offset, dur time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelBurstLocked()

	playDur := dur - burstGuard
	if playDur <= 0 {
		playDur = dur
	}
	limit := int64(playDur.Seconds() * source.BytesPerSec)
	limit -= limit % (source.Channels * 2)

	for _, name := range e.cfg.Store.Active() {
		track, ok := e.cfg.Tracks[name]
		if !ok {
			continue
		}
		start := int64(track.FrameAt(minDur(offset, track.Duration()))) * source.Channels * 2
		r := &pcmReader{pcm: track.PCM, pos: start}
		p := e.cfg.Device.NewPlayer(&io.LimitedReader{R: r, N: limit})
		if e.cfg.Device.SupportsVolume() {
			p.SetVolume(e.cfg.Store.EffectiveGain(name))
		} else if e.cfg.Store.EffectiveGain(name) == 0 {
			teardownPlayer(p)
			continue
		}
		p.Play()
		e.burstPlayers = append(e.burstPlayers, p)
	}
}

func (e *CompatibilityEngine) CancelBurst() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelBurstLocked()
}

func (e *CompatibilityEngine) cancelBurstLocked() {
	for _, p := range e.burstPlayers {
		teardownPlayer(p)
	}
	e.burstPlayers = nil
}

// teardownLocked stops the resync loop and discards every handle.
func (e *CompatibilityEngine) teardownLocked() {
	if e.resyncStop != nil {
		close(e.resyncStop)
		e.resyncStop = nil
	}
	for _, h := range e.handles {
		teardownPlayer(h.player)
	}
	e.handles = nil
}

func (e *CompatibilityEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
	e.cancelBurstLocked()
	e.playing = false
}
