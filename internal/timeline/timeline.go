// Package timeline drives the playhead: a single frame-scheduled loop
// polls the engine's position while playing and pushes it to whatever
// displays it. The loop handle cancels idempotently and starting a new
// loop always cancels the previous one first, so at most one loop ever
// runs per session.
package timeline

import (
	"sync"
	"time"
)

// FrameInterval approximates one display frame.
const FrameInterval = 16 * time.Millisecond

// Transport is the slice of the engine the loop needs.
type Transport interface {
	Position() time.Duration
	Stop()
}

// Sink receives playhead updates. Implementations must be safe to call
// from the loop goroutine.
type Sink interface {
	UpdatePlayhead(pos time.Duration, percent float64)
	PlaybackEnded()
}

// Handle cancels a running loop. Repeated cancellation is a no-op.
type Handle struct {
	stop chan struct{}
	once sync.Once
}

func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
}

func (h *Handle) cancelled() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Loop polls the transport once per frame.
type Loop struct {
	transport Transport
	max       func() time.Duration
	sink      Sink
	interval  time.Duration

	mu     sync.Mutex
	handle *Handle
}

func New(transport Transport, max func() time.Duration, sink Sink) *Loop {
	return &Loop{
		transport: transport,
		max:       max,
		sink:      sink,
		interval:  FrameInterval,
	}
}

// Start begins polling, cancelling any loop already running.
func (l *Loop) Start() *Handle {
	l.mu.Lock()
	l.handle.Cancel()
	h := &Handle{stop: make(chan struct{})}
	l.handle = h
	l.mu.Unlock()

	go l.run(h)
	return h
}

// Stop cancels the running loop, if any.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.handle.Cancel()
	l.handle = nil
	l.mu.Unlock()
}

func (l *Loop) run(h *Handle) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if l.Tick() {
				h.Cancel()
				return
			}
		}
	}
}

// Tick performs one frame: read the position, apply the terminal
// transition when the playhead passes the end, otherwise publish the
// playhead. Returns true when playback ended.
func (l *Loop) Tick() bool {
	pos := l.transport.Position()
	max := l.max()

	if max > 0 && pos >= max {
		l.transport.Stop()
		l.sink.PlaybackEnded()
		return true
	}

	percent := 0.0
	if max > 0 {
		percent = pos.Seconds() / max.Seconds()
		if percent < 0 {
			percent = 0
		}
		if percent > 1 {
			percent = 1
		}
		percent *= 100
	}
	l.sink.UpdatePlayhead(pos, percent)
	return false
}
