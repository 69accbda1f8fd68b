package stem

import (
	"testing"
	"time"
)

func TestEffectiveGainSoloSilencesOthers(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"vocals", "drums", "bass"} {
		st := s.Add(name)
		st.Active = true
	}
	s.SetVolume("drums", 0.7)

	s.SetSolo("vocals", true)
	if got := s.EffectiveGain("drums"); got != 0 {
		t.Fatalf("expected soloed-out drums gain 0, got %v", got)
	}
	if got := s.EffectiveGain("bass"); got != 0 {
		t.Fatalf("expected soloed-out bass gain 0, got %v", got)
	}
	if got := s.EffectiveGain("vocals"); got != 1.0 {
		t.Fatalf("expected soloed vocals gain 1.0, got %v", got)
	}

	s.SetSolo("vocals", false)
	if got := s.EffectiveGain("drums"); got != 0.7 {
		t.Fatalf("expected drums gain restored to 0.7, got %v", got)
	}
}

func TestEffectiveGainMuteWinsOverVolume(t *testing.T) {
	s := NewStore()
	st := s.Add("drums")
	st.Active = true

	s.SetMuted("drums", true)
	s.SetVolume("drums", 0.8)
	if got := s.EffectiveGain("drums"); got != 0 {
		t.Fatalf("expected muted drums gain 0, got %v", got)
	}

	s.SetMuted("drums", false)
	if got := s.EffectiveGain("drums"); got != 0.8 {
		t.Fatalf("expected unmuted drums gain 0.8, got %v", got)
	}
}

func TestEffectiveGainSoloedButMutedStemFollowsSolo(t *testing.T) {
	s := NewStore()
	st := s.Add("bass")
	st.Active = true
	s.SetMuted("bass", true)
	s.SetSolo("bass", true)

	// Solo takes precedence over mute once any solo is engaged.
	if got := s.EffectiveGain("bass"); got != 1.0 {
		t.Fatalf("expected soloed bass audible at 1.0, got %v", got)
	}
}

func TestInactiveStemIsSilentAndExcludedFromMaxDuration(t *testing.T) {
	s := NewStore()
	v := s.Add("vocals")
	v.Active = true
	v.Duration = 10 * time.Second

	b := s.Add("bass") // placeholder for a 404'd stem
	b.Duration = 12 * time.Second

	if got := s.EffectiveGain("bass"); got != 0 {
		t.Fatalf("expected inactive stem gain 0, got %v", got)
	}
	if got := s.MaxDuration(); got != 10*time.Second {
		t.Fatalf("expected max duration 10s from active stems, got %v", got)
	}
}

func TestSettersClampRanges(t *testing.T) {
	s := NewStore()
	st := s.Add("other")
	st.Active = true

	s.SetVolume("other", 1.5)
	if st.Volume != 1.0 {
		t.Fatalf("expected volume clamped to 1.0, got %v", st.Volume)
	}
	s.SetVolume("other", -0.2)
	if st.Volume != 0 {
		t.Fatalf("expected volume clamped to 0, got %v", st.Volume)
	}
	s.SetPan("other", -3)
	if st.Pan != -1 {
		t.Fatalf("expected pan clamped to -1, got %v", st.Pan)
	}
	s.SetPan("other", 2)
	if st.Pan != 1 {
		t.Fatalf("expected pan clamped to 1, got %v", st.Pan)
	}
}

func TestAddIsIdempotentPerName(t *testing.T) {
	s := NewStore()
	a := s.Add("vocals")
	b := s.Add("vocals")
	if a != b {
		t.Fatal("expected Add to return the existing stem for a known name")
	}
	if len(s.Names()) != 1 {
		t.Fatalf("expected one stem, got %d", len(s.Names()))
	}
}
