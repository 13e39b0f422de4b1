package core

import (
	"context"
	"math"

	"github.com/signalsfoundry/raychannel-simulator/internal/logging"
)

// CacheStats tracks cache effectiveness. Counters only ever increase.
type CacheStats struct {
	hits   uint64
	misses uint64
}

func (s *CacheStats) recordHit()  { s.hits++ }
func (s *CacheStats) recordMiss() { s.misses++ }

// Hits returns the number of lookups served from the cache.
func (s *CacheStats) Hits() uint64 { return s.hits }

// Misses returns the number of lookups that needed an oracle round trip.
func (s *CacheStats) Misses() uint64 { return s.misses }

// Lookups returns the total number of cache lookups.
func (s *CacheStats) Lookups() uint64 { return s.hits + s.misses }

// HitRatio returns hits / (hits + misses), or NaN before the first lookup.
func (s *CacheStats) HitRatio() float64 {
	total := s.hits + s.misses
	if total == 0 {
		return math.NaN()
	}
	return float64(s.hits) / float64(total)
}

// LogSummary writes a one-line cache effectiveness summary.
func (s *CacheStats) LogSummary(ctx context.Context, log logging.Logger) {
	if log == nil {
		return
	}
	log.Info(ctx, "channel cache statistics",
		logging.Any("lookups", s.Lookups()),
		logging.Any("misses", s.misses),
		logging.Float64("hit_ratio", s.HitRatio()),
	)
}
