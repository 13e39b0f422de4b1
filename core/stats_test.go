package core

import (
	"math"
	"testing"
)

func TestHitRatio(t *testing.T) {
	var s CacheStats
	if !math.IsNaN(s.HitRatio()) {
		t.Errorf("ratio before any lookup = %v, want NaN", s.HitRatio())
	}

	for i := 0; i < 9; i++ {
		s.recordHit()
	}
	s.recordMiss()
	s.recordMiss()

	if s.Hits() != 9 || s.Misses() != 2 || s.Lookups() != 11 {
		t.Fatalf("counters = %d/%d/%d, want 9/2/11", s.Hits(), s.Misses(), s.Lookups())
	}
	if got := s.HitRatio(); got != 9.0/11.0 {
		t.Errorf("ratio = %v, want exactly 9/11", got)
	}
}
