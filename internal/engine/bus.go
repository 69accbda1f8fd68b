package engine

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/stemtube/stemmix/internal/source"
)

// voice is one stem's tap onto the master bus: a cursor into decoded
// PCM plus the gain pair applied per frame.
type voice struct {
	name     string
	pcm      []int16
	cursor   int // frame index
	gainL    float64
	gainR    float64
	finished bool
}

// busSource mixes all voices into one s16le stereo stream. It is the
// single physical source the precise engine hands to the device, built
// fresh for every transport transition and discarded afterwards.
type busSource struct {
	mu       sync.Mutex
	voices   []*voice
	limit    int // frames remaining; -1 means unlimited
	disarmed bool
	ended    bool
	done     chan struct{}
}

func newBusSource(voices []*voice, limitFrames int) *busSource {
	return &busSource{
		voices: voices,
		limit:  limitFrames,
		done:   make(chan struct{}),
	}
}

// disarm prevents the natural-end notification from firing. Always
// called before a programmatic teardown so a late Read from the audio
// goroutine cannot be mistaken for the session finishing. Closing done
// here releases the watcher, which then sees a stale bus and returns.
func (b *busSource) disarm() {
	b.mu.Lock()
	b.disarmed = true
	if !b.ended {
		b.ended = true
		close(b.done)
	}
	b.mu.Unlock()
}

func (b *busSource) setGains(name string, left, right float64) {
	b.mu.Lock()
	for _, v := range b.voices {
		if v.name == name {
			v.gainL = left
			v.gainR = right
		}
	}
	b.mu.Unlock()
}

func (b *busSource) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := len(p) / (source.Channels * 2)
	if b.limit >= 0 && frames > b.limit {
		frames = b.limit
	}
	if frames == 0 {
		return 0, io.EOF
	}

	live := false
	for _, v := range b.voices {
		if v.cursor >= len(v.pcm)/source.Channels {
			v.finished = true
		}
		if !v.finished {
			live = true
		}
	}
	if !live {
		if !b.disarmed && !b.ended {
			b.ended = true
			close(b.done)
		}
		return 0, io.EOF
	}

	for f := 0; f < frames; f++ {
		var left, right float64
		for _, v := range b.voices {
			if v.finished {
				continue
			}
			idx := v.cursor * source.Channels
			if idx+1 >= len(v.pcm) {
				v.finished = true
				continue
			}
			left += float64(v.pcm[idx]) * v.gainL
			right += float64(v.pcm[idx+1]) * v.gainR
			v.cursor++
		}
		binary.LittleEndian.PutUint16(p[f*4:], uint16(clipS16(left)))
		binary.LittleEndian.PutUint16(p[f*4+2:], uint16(clipS16(right)))
	}

	if b.limit >= 0 {
		b.limit -= frames
	}
	return frames * source.Channels * 2, nil
}

func clipS16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
