// Package wave reduces decoded audio to fixed-resolution amplitude
// envelopes for waveform display. Envelopes are display-only and never
// feed back into audio processing.
package wave

import (
	"math"
	"math/rand"
)

// DefaultBuckets is the envelope resolution used for the timeline view.
const DefaultBuckets = 2000

// Summarize partitions interleaved PCM into targetBuckets contiguous
// blocks of whole frames and returns the mean absolute amplitude of each
// block, normalized to [0,1]. When fewer frames than buckets are
// available, every frame becomes its own bucket, so the result length is
// always min(frames, targetBuckets). A trailing partial block is dropped.
func Summarize(samples []int16, channels, targetBuckets int) []float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	if frames == 0 || targetBuckets < 1 {
		return nil
	}

	buckets := targetBuckets
	if frames < buckets {
		buckets = frames
	}
	block := frames / buckets

	env := make([]float64, buckets)
	for b := 0; b < buckets; b++ {
		start := b * block * channels
		end := start + block*channels
		var sum float64
		for i := start; i < end; i++ {
			sum += math.Abs(float64(samples[i]) / 32768.0)
		}
		env[b] = sum / float64(block*channels)
	}
	return env
}

// Synthetic produces a plausible-looking envelope for stems whose raw
// samples never became available (constrained decode path). The shape is
// seeded per stem so redraws are stable, but it does not reflect real
// amplitude.
func Synthetic(n int, seed int64) []float64 {
	if n < 1 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	// A few slow sine partials with jitter reads as "music" well enough.
	f1 := 2 + rng.Float64()*3
	f2 := 9 + rng.Float64()*8
	phase := rng.Float64() * 2 * math.Pi

	env := make([]float64, n)
	for i := range env {
		t := float64(i) / float64(n)
		v := 0.45 +
			0.25*math.Sin(2*math.Pi*f1*t+phase) +
			0.15*math.Sin(2*math.Pi*f2*t) +
			0.10*rng.Float64()
		if v < 0.05 {
			v = 0.05
		}
		if v > 1 {
			v = 1
		}
		env[i] = v
	}
	return env
}
