package stem

import (
	"sync"
	"time"
)

// Store holds the loaded stems and their mixing state.
// It is pure data: the playback engine and the control surface mutate it,
// always from the main goroutine plus the loaders' completion callbacks.
type Store struct {
	mu    sync.Mutex
	order []string
	stems map[string]*Stem
}

func NewStore() *Store {
	return &Store{stems: make(map[string]*Stem)}
}

// Add creates a placeholder stem for a load that has just begun.
// The stem stays inactive until the decode completes.
func (s *Store) Add(name string) *Stem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stems[name]; ok {
		return st
	}
	st := &Stem{Name: name, Title: name, Volume: 1.0}
	s.stems[name] = st
	s.order = append(s.order, name)
	return st
}

func (s *Store) Get(name string) *Stem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stems[name]
}

// Names returns stem names in load order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Active returns the names of stems that contribute to audible output.
func (s *Store) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, name := range s.order {
		if s.stems[name].Active {
			out = append(out, name)
		}
	}
	return out
}

// MaxDuration is the longest duration across active stems.
// Inactive (failed or absent) stems are excluded.
func (s *Store) MaxDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max time.Duration
	for _, name := range s.order {
		st := s.stems[name]
		if st.Active && st.Duration > max {
			max = st.Duration
		}
	}
	return max
}

// HasSolo reports whether any stem has solo engaged.
func (s *Store) HasSolo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSoloLocked()
}

func (s *Store) hasSoloLocked() bool {
	for _, st := range s.stems {
		if st.Solo {
			return true
		}
	}
	return false
}

// EffectiveGain derives the gain a stem should play at right now.
// With any solo engaged, only soloed stems are audible; otherwise
// audibility follows the mute flag. Inactive stems are always silent.
func (s *Store) EffectiveGain(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stems[name]
	if !ok || !st.Active {
		return 0
	}
	var audible bool
	if s.hasSoloLocked() {
		audible = st.Solo
	} else {
		audible = !st.Muted
	}
	if !audible {
		return 0
	}
	return st.Volume
}

func (s *Store) SetVolume(name string, v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	if st, ok := s.stems[name]; ok {
		st.Volume = v
	}
	s.mu.Unlock()
}

func (s *Store) SetPan(name string, p float64) {
	if p < -1 {
		p = -1
	}
	if p > 1 {
		p = 1
	}
	s.mu.Lock()
	if st, ok := s.stems[name]; ok {
		st.Pan = p
	}
	s.mu.Unlock()
}

func (s *Store) SetMuted(name string, muted bool) {
	s.mu.Lock()
	if st, ok := s.stems[name]; ok {
		st.Muted = muted
	}
	s.mu.Unlock()
}

func (s *Store) SetSolo(name string, solo bool) {
	s.mu.Lock()
	if st, ok := s.stems[name]; ok {
		st.Solo = solo
	}
	s.mu.Unlock()
}

// Pan returns the stored pan for a stem, 0 if unknown.
func (s *Store) Pan(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stems[name]; ok {
		return st.Pan
	}
	return 0
}
