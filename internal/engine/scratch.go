package engine

import "time"

// BurstDuration is how much audio one scratch movement plays.
const BurstDuration = 100 * time.Millisecond

type ScratchState int

const (
	ScratchIdle ScratchState = iota
	Scratching
)

// ScratchController turns pointer drags along the timeline into short
// audio bursts, mimicking turntable scratching. It takes over transport
// directly rather than going through Pause, and guarantees at most one
// burst is ever in flight.
type ScratchController struct {
	eng   Engine
	max   func() time.Duration
	state ScratchState
	pos   time.Duration
}

func NewScratchController(eng Engine, max func() time.Duration) *ScratchController {
	return &ScratchController{eng: eng, max: max}
}

func (c *ScratchController) State() ScratchState { return c.state }

// Begin enters scratch mode: current sources are torn down without
// pause bookkeeping and the transport is frozen at its position.
func (c *ScratchController) Begin() {
	if c.state == Scratching {
		return
	}
	c.eng.SuspendTransport()
	c.pos = c.eng.Position()
	c.state = Scratching
}

// Move handles one drag movement: the position is clamped, committed to
// the playhead immediately, and a fresh burst replaces whatever burst
// was still playing. Returns the clamped position for the display.
func (c *ScratchController) Move(pos time.Duration) time.Duration {
	if c.state != Scratching {
		return c.eng.Position()
	}
	pos = clampPos(pos, c.max())
	c.pos = pos
	c.eng.SetPosition(pos)
	c.eng.Burst(pos, BurstDuration)
	return pos
}

// End leaves scratch mode: the in-flight burst stops, the final
// position sticks, and the transport stays paused. Resuming playback is
// the caller's decision.
func (c *ScratchController) End() {
	if c.state != Scratching {
		return
	}
	c.eng.CancelBurst()
	c.eng.SetPosition(c.pos)
	c.state = ScratchIdle
}
