package engine

import (
	"testing"
	"time"
)

func TestPrecisePlayMapsClockToPosition(t *testing.T) {
	clock := &fakeClock{now: 3 * time.Second}
	dev := &fakeDevice{}
	e := NewPrecise(testConfig(dev, clock, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Seek(400 * time.Millisecond)
	e.Play()
	if !e.Playing() {
		t.Fatal("expected engine to be playing")
	}
	if got := e.Position(); got != 400*time.Millisecond {
		t.Fatalf("expected position 400ms right after play, got %v", got)
	}

	clock.advance(200 * time.Millisecond)
	if got := e.Position(); got != 600*time.Millisecond {
		t.Fatalf("expected position 600ms after 200ms of clock, got %v", got)
	}
}

func TestPreciseSeekClampsToMaxDuration(t *testing.T) {
	e := NewPrecise(testConfig(&fakeDevice{}, &fakeClock{}, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Seek(5 * time.Second)
	if got := e.Position(); got != time.Second {
		t.Fatalf("expected clamp to 1s, got %v", got)
	}
	e.Seek(-3 * time.Second)
	if got := e.Position(); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestPrecisePauseRetainsPositionAcrossWallClock(t *testing.T) {
	clock := &fakeClock{}
	e := NewPrecise(testConfig(&fakeDevice{}, clock, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Play()
	clock.advance(300 * time.Millisecond)
	e.Pause()
	if got := e.Position(); got != 300*time.Millisecond {
		t.Fatalf("expected 300ms at pause, got %v", got)
	}

	clock.advance(time.Hour)
	if got := e.Position(); got != 300*time.Millisecond {
		t.Fatalf("expected paused position to hold, got %v", got)
	}

	e.Play()
	if got := e.Position(); got != 300*time.Millisecond {
		t.Fatalf("expected resume at 300ms, got %v", got)
	}
	clock.advance(100 * time.Millisecond)
	if got := e.Position(); got != 400*time.Millisecond {
		t.Fatalf("expected 400ms after resume, got %v", got)
	}
}

func TestPreciseStopResetsPosition(t *testing.T) {
	clock := &fakeClock{}
	e := NewPrecise(testConfig(&fakeDevice{}, clock, map[string]time.Duration{
		"drums": time.Second,
	}))

	e.Play()
	clock.advance(500 * time.Millisecond)
	e.Stop()
	if e.Playing() {
		t.Fatal("expected stopped engine")
	}
	if got := e.Position(); got != 0 {
		t.Fatalf("expected position reset to 0, got %v", got)
	}
}

func TestPrecisePlayWithoutActiveStemsIsNoOp(t *testing.T) {
	dev := &fakeDevice{}
	e := NewPrecise(testConfig(dev, &fakeClock{}, nil))

	e.Play()
	if e.Playing() {
		t.Fatal("expected no-op play to leave engine stopped")
	}
	if len(dev.created()) != 0 {
		t.Fatalf("expected no players created, got %d", len(dev.created()))
	}
}

func TestPreciseNaturalEndStopsAndResets(t *testing.T) {
	ended := make(chan struct{})
	cfg := testConfig(&fakeDevice{}, &fakeClock{}, map[string]time.Duration{
		"vocals": 20 * time.Millisecond,
		"drums":  10 * time.Millisecond,
	})
	cfg.OnEnded = func() { close(ended) }
	e := NewPrecise(cfg)

	e.Play()
	e.mu.Lock()
	bus := e.bus
	e.mu.Unlock()

	drain(t, bus)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("natural end callback never fired")
	}
	waitFor(t, func() bool { return !e.Playing() })
	if got := e.Position(); got != 0 {
		t.Fatalf("expected playhead reset to 0 after natural end, got %v", got)
	}
}

func TestPreciseProgrammaticStopDoesNotFireNaturalEnd(t *testing.T) {
	fired := false
	clock := &fakeClock{}
	cfg := testConfig(&fakeDevice{}, clock, map[string]time.Duration{
		"vocals": 20 * time.Millisecond,
	})
	cfg.OnEnded = func() { fired = true }
	e := NewPrecise(cfg)

	e.Play()
	e.mu.Lock()
	bus := e.bus
	e.mu.Unlock()

	clock.advance(5 * time.Millisecond)
	e.Pause()

	// A late read from the audio goroutine must stay inert.
	drain(t, bus)
	time.Sleep(10 * time.Millisecond)

	if fired {
		t.Fatal("programmatic pause fired the natural-end callback")
	}
	if got := e.Position(); got != 5*time.Millisecond {
		t.Fatalf("expected paused position 5ms, got %v", got)
	}
}

func TestPreciseSeekWhilePlayingRebuildsSource(t *testing.T) {
	clock := &fakeClock{}
	dev := &fakeDevice{}
	e := NewPrecise(testConfig(dev, clock, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Play()
	e.Seek(700 * time.Millisecond)

	if !e.Playing() {
		t.Fatal("expected playback to continue across seek")
	}
	if got := e.Position(); got != 700*time.Millisecond {
		t.Fatalf("expected position 700ms after seek, got %v", got)
	}

	players := dev.created()
	if len(players) != 2 {
		t.Fatalf("expected a fresh player per transport transition, got %d", len(players))
	}
	if !players[0].isClosed() {
		t.Fatal("expected the pre-seek player to be discarded")
	}
	if !players[1].isPlaying() {
		t.Fatal("expected the post-seek player to be playing")
	}
}

func TestPreciseRefreshGainsAppliesSoloAcrossVoices(t *testing.T) {
	cfg := testConfig(&fakeDevice{}, &fakeClock{}, map[string]time.Duration{
		"vocals": time.Second,
		"drums":  time.Second,
	})
	e := NewPrecise(cfg)
	e.Play()

	cfg.Store.SetSolo("vocals", true)
	e.RefreshGains()

	e.mu.Lock()
	bus := e.bus
	e.mu.Unlock()
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for _, v := range bus.voices {
		switch v.name {
		case "vocals":
			if v.gainL != 1 || v.gainR != 1 {
				t.Fatalf("expected soloed vocals at full gain, got %v/%v", v.gainL, v.gainR)
			}
		case "drums":
			if v.gainL != 0 || v.gainR != 0 {
				t.Fatalf("expected drums silenced by solo, got %v/%v", v.gainL, v.gainR)
			}
		}
	}
}

func TestPreciseBurstReplacesPrevious(t *testing.T) {
	dev := &fakeDevice{}
	e := NewPrecise(testConfig(dev, &fakeClock{}, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Burst(100*time.Millisecond, BurstDuration)
	e.Burst(200*time.Millisecond, BurstDuration)

	players := dev.created()
	if len(players) != 2 {
		t.Fatalf("expected two burst players, got %d", len(players))
	}
	if !players[0].isClosed() {
		t.Fatal("expected the first burst to be torn down before the second")
	}
	if !players[1].isPlaying() {
		t.Fatal("expected the second burst to be playing")
	}

	e.CancelBurst()
	if !players[1].isClosed() {
		t.Fatal("expected CancelBurst to discard the in-flight burst")
	}
}

func TestPreciseBurstIsShorterThanRequested(t *testing.T) {
	dev := &fakeDevice{}
	e := NewPrecise(testConfig(dev, &fakeClock{}, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Burst(0, BurstDuration)
	e.mu.Lock()
	bus := e.burstBus
	e.mu.Unlock()

	wantMax := int(BurstDuration.Seconds() * 44100)
	bus.mu.Lock()
	limit := bus.limit
	bus.mu.Unlock()
	if limit >= wantMax {
		t.Fatalf("expected burst limit below %d frames, got %d", wantMax, limit)
	}
	if limit <= 0 {
		t.Fatalf("expected positive burst limit, got %d", limit)
	}
}

func TestPreciseSuspendKeepsPositionWithoutPauseBookkeeping(t *testing.T) {
	clock := &fakeClock{}
	e := NewPrecise(testConfig(&fakeDevice{}, clock, map[string]time.Duration{
		"vocals": time.Second,
	}))

	e.Play()
	clock.advance(250 * time.Millisecond)
	e.SuspendTransport()

	if e.Playing() {
		t.Fatal("expected transport suspended")
	}
	if got := e.Position(); got != 250*time.Millisecond {
		t.Fatalf("expected position held at 250ms, got %v", got)
	}
}
