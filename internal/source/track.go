package source

import "time"

// Playback format shared by every decoded stem. Stems of one session
// come from a single separation run, so they share a source rate; we
// still normalize so the engines never deal with mixed formats.
const (
	SampleRate  = 44100
	Channels    = 2
	bytesPerSmp = 2
	BytesPerSec = SampleRate * Channels * bytesPerSmp
)

// Track is one fully decoded stem: interleaved stereo s16 PCM at
// SampleRate. Immutable after decode.
type Track struct {
	Name  string
	Title string
	PCM   []int16
}

// Frames returns the number of sample frames.
func (t *Track) Frames() int {
	return len(t.PCM) / Channels
}

func (t *Track) Duration() time.Duration {
	return time.Duration(float64(t.Frames()) / SampleRate * float64(time.Second))
}

// FrameAt converts a position to a frame index, clamped to the track.
func (t *Track) FrameAt(pos time.Duration) int {
	if pos < 0 {
		return 0
	}
	f := int(pos.Seconds() * SampleRate)
	if max := t.Frames(); f > max {
		return max
	}
	return f
}
