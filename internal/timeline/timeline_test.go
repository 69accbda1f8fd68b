package timeline

import (
	"sync"
	"testing"
	"time"
)

type stubTransport struct {
	mu      sync.Mutex
	pos     time.Duration
	stopped bool
}

func (s *stubTransport) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *stubTransport) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.pos = 0
	s.mu.Unlock()
}

type recordingSink struct {
	mu       sync.Mutex
	updates  []float64
	lastPos  time.Duration
	endCalls int
}

func (r *recordingSink) UpdatePlayhead(pos time.Duration, percent float64) {
	r.mu.Lock()
	r.updates = append(r.updates, percent)
	r.lastPos = pos
	r.mu.Unlock()
}

func (r *recordingSink) PlaybackEnded() {
	r.mu.Lock()
	r.endCalls++
	r.mu.Unlock()
}

func TestTickPublishesClampedPercent(t *testing.T) {
	tr := &stubTransport{pos: 2500 * time.Millisecond}
	sink := &recordingSink{}
	l := New(tr, func() time.Duration { return 10 * time.Second }, sink)

	if l.Tick() {
		t.Fatal("expected playback to continue")
	}
	if len(sink.updates) != 1 || sink.updates[0] != 25 {
		t.Fatalf("expected one update at 25%%, got %v", sink.updates)
	}
	if sink.lastPos != 2500*time.Millisecond {
		t.Fatalf("expected position forwarded, got %v", sink.lastPos)
	}
}

func TestTickTerminalTransitionAtMaxDuration(t *testing.T) {
	tr := &stubTransport{pos: 10 * time.Second}
	sink := &recordingSink{}
	l := New(tr, func() time.Duration { return 10 * time.Second }, sink)

	if !l.Tick() {
		t.Fatal("expected terminal transition at max duration")
	}
	if !tr.stopped {
		t.Fatal("expected transport stopped")
	}
	if sink.endCalls != 1 {
		t.Fatalf("expected one PlaybackEnded call, got %d", sink.endCalls)
	}
	if tr.Position() != 0 {
		t.Fatalf("expected position reset by Stop, got %v", tr.Position())
	}
}

func TestTickWithZeroMaxDurationDoesNothingTerminal(t *testing.T) {
	tr := &stubTransport{pos: time.Second}
	sink := &recordingSink{}
	l := New(tr, func() time.Duration { return 0 }, sink)

	if l.Tick() {
		t.Fatal("expected no terminal transition with no stems loaded")
	}
	if tr.stopped {
		t.Fatal("expected transport untouched")
	}
}

func TestHandleCancelIsIdempotent(t *testing.T) {
	h := &Handle{stop: make(chan struct{})}
	h.Cancel()
	h.Cancel() // must not panic on double close
	if !h.cancelled() {
		t.Fatal("expected handle cancelled")
	}

	var nilHandle *Handle
	nilHandle.Cancel() // no-op
}

func TestStartCancelsPreviousLoop(t *testing.T) {
	tr := &stubTransport{}
	sink := &recordingSink{}
	l := New(tr, func() time.Duration { return 10 * time.Second }, sink)

	first := l.Start()
	second := l.Start()
	defer l.Stop()

	if !first.cancelled() {
		t.Fatal("expected starting a second loop to cancel the first")
	}
	if second.cancelled() {
		t.Fatal("expected the new loop to be live")
	}
}

func TestLoopStopsItselfOnTerminalTransition(t *testing.T) {
	tr := &stubTransport{pos: 10 * time.Second}
	sink := &recordingSink{}
	l := New(tr, func() time.Duration { return 10 * time.Second }, sink)
	l.interval = time.Millisecond

	h := l.Start()
	deadline := time.Now().Add(2 * time.Second)
	for !h.cancelled() {
		if time.Now().After(deadline) {
			t.Fatal("loop did not cancel itself after playback ended")
		}
		time.Sleep(time.Millisecond)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.endCalls != 1 {
		t.Fatalf("expected exactly one PlaybackEnded, got %d", sink.endCalls)
	}
}
