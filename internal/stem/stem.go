package stem

import "time"

// Stem is one isolated track (vocals, drums, ...) of a song.
// Mixing state mutates in place; identity is fixed once created.
type Stem struct {
	Name     string
	Title    string // display title from tags, falls back to Name
	Volume   float64
	Pan      float64 // -1 full left .. 1 full right; display-only on some backends
	Muted    bool
	Solo     bool
	Active   bool // contributes to audible output; false for failed or absent stems
	Duration time.Duration
	Envelope []float64 // amplitude summary for display, nil until computed
}

// DefaultNames are the stem names produced by the separation pipeline.
// Four-stem models emit the first four; six-stem models add guitar and piano.
var DefaultNames = []string{"vocals", "drums", "bass", "other", "guitar", "piano"}
