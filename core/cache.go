package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/raychannel-simulator/internal/logging"
	"github.com/signalsfoundry/raychannel-simulator/internal/observability"
	"github.com/signalsfoundry/raychannel-simulator/internal/oracle"
	"github.com/signalsfoundry/raychannel-simulator/model"
	"github.com/signalsfoundry/raychannel-simulator/timectrl"
)

// referenceTxPowerDBm is the fixed transmit power assumed by the optimizer
// gate on the delay path, where the caller supplies no power.
const referenceTxPowerDBm = 20.0

// ChannelCache answers propagation queries for endpoint pairs, fetching
// channel state from the ray-tracing oracle only when no cached entry
// covers the current simulated time. A single oracle reply may populate
// entries for many pairs and future windows at once, so under all-pairs and
// look-ahead modes most lookups never leave the process.
//
// The cache is driven from the simulator's single event-loop goroutine and
// performs no internal locking.
type ChannelCache struct {
	session *Session
	clock   timectrl.SimClock
	log     logging.Logger
	metrics *observability.ChannelCollector

	caching          bool
	optimize         bool
	optimizeMarginDB float64
	estimator        *FreeSpaceEstimator

	entries map[PairKey][]*ChannelEntry
	stats   CacheStats
}

// NewChannelCache constructs a cache bound to a session and a simulated
// clock. Caching and the free-space optimizer start enabled.
func NewChannelCache(session *Session, clock timectrl.SimClock, log logging.Logger, metrics *observability.ChannelCollector) *ChannelCache {
	if log == nil {
		log = logging.Noop()
	}
	return &ChannelCache{
		session:   session,
		clock:     clock,
		log:       log,
		metrics:   metrics,
		caching:   true,
		optimize:  true,
		estimator: NewFreeSpaceEstimator(float64(session.Config().FrequencyMHz) * 1e6),
		entries:   make(map[PairKey][]*ChannelEntry),
	}
}

// SetCaching toggles serving entries across call instants. When disabled,
// every lookup pays an oracle round trip, though batched records within a
// single reply are still used to answer that same call.
func (c *ChannelCache) SetCaching(enabled bool) { c.caching = enabled }

// SetOptimize toggles the free-space bypass for links whose analytic
// received power stays below the noise floor.
func (c *ChannelCache) SetOptimize(enabled bool) { c.optimize = enabled }

// SetOptimizeMarginDB adds a safety margin to the optimizer's noise-floor
// comparison. Larger margins bypass fewer links.
func (c *ChannelCache) SetOptimizeMarginDB(margin float64) { c.optimizeMarginDB = margin }

// Stats returns the hit/miss counters.
func (c *ChannelCache) Stats() *CacheStats { return &c.stats }

// GetDelay returns the propagation delay between a and b at the current
// simulated time.
func (c *ChannelCache) GetDelay(ctx context.Context, a, b *Endpoint) (time.Duration, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}

	// A link whose received power cannot clear the noise floor is
	// irrelevant to the receiver; a constant-speed estimate is enough.
	if c.optimize {
		rx := c.estimator.RxPowerDBm(referenceTxPowerDBm, a.Position(), b.Position())
		if rx+c.optimizeMarginDB < c.session.NoiseFloorDBm() {
			delay := c.estimator.Delay(a.Position(), b.Position())
			c.metrics.RecordBypass()
			c.log.Debug(ctx, "free-space bound used for delay",
				logging.Uint32("tx", uint32(a.ID())),
				logging.Uint32("rx", uint32(b.ID())),
				logging.Any("delay", delay),
			)
			return delay, nil
		}
	}

	entry, err := c.channelState(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return entry.Delay, nil
}

// GetLoss returns the wideband path loss in dB for a transmission from a to
// b with the given transmit power, and writes the oracle's authoritative
// positions back onto both endpoints.
func (c *ChannelCache) GetLoss(ctx context.Context, a, b *Endpoint, txPowerDBm float64) (float64, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}

	if c.optimize {
		rx := c.estimator.RxPowerDBm(txPowerDBm, a.Position(), b.Position())
		if rx+c.optimizeMarginDB < c.session.NoiseFloorDBm() {
			loss := txPowerDBm - rx
			c.metrics.RecordBypass()
			c.log.Debug(ctx, "free-space bound used for loss",
				logging.Uint32("tx", uint32(a.ID())),
				logging.Uint32("rx", uint32(b.ID())),
				logging.Float64("loss_db", loss),
			)
			return loss, nil
		}
	}

	prevA := a.Position()
	prevB := b.Position()

	entry, err := c.channelState(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if entry.Valid() {
		c.writeBackPositions(ctx, a, b, entry, prevA, prevB)
	}
	return entry.PathLossDB, nil
}

// GetLossReadOnly returns the wideband path loss without touching endpoint
// positions. Used by observers that must not perturb mobility state.
func (c *ChannelCache) GetLossReadOnly(ctx context.Context, a, b *Endpoint) (float64, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}
	entry, err := c.channelState(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return entry.PathLossDB, nil
}

// GetCSI returns the per-subcarrier complex channel-frequency-response for
// the pair. Empty when the oracle does not estimate CSI.
func (c *ChannelCache) GetCSI(ctx context.Context, a, b *Endpoint) ([]complex128, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}
	entry, err := c.channelState(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return entry.CFR, nil
}

// GetSubcarrierFrequencies returns the subcarrier frequencies matching the
// CSI returned by GetCSI, index-aligned.
func (c *ChannelCache) GetSubcarrierFrequencies(ctx context.Context, a, b *Endpoint) ([]int, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}
	entry, err := c.channelState(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return entry.SubcarrierFrequencies, nil
}

// channelState is the shared lookup/refill core. It returns the entry
// covering the current simulated time for the pair, performing at most one
// oracle round trip.
func (c *ChannelCache) channelState(ctx context.Context, a, b *Endpoint) (*ChannelEntry, error) {
	now := c.clock.Now()
	key := NewPairKey(a.ID(), b.ID())

	if c.caching {
		if entry := c.lookup(key, now); entry != nil {
			c.stats.recordHit()
			c.metrics.RecordHit()
			return entry, nil
		}
	}

	c.stats.recordMiss()
	c.metrics.RecordMiss()
	c.log.Debug(ctx, "channel cache miss",
		logging.Uint32("tx", uint32(a.ID())),
		logging.Uint32("rx", uint32(b.ID())),
		logging.Any("time", now),
	)

	request := &oracle.Wrapper{ChannelStateRequest: &oracle.ChannelStateRequest{
		TxNode: uint32(a.ID()),
		RxNode: uint32(b.ID()),
		Time:   now.Nanoseconds(),
	}}
	reply, err := c.session.roundtrip(ctx, "channel_state", request)
	if err != nil {
		return nil, fmt.Errorf("channel state for pair (%d,%d): %w", a.ID(), b.ID(), err)
	}
	if reply.ChannelStateResponse == nil {
		return nil, fmt.Errorf("channel state for pair (%d,%d): reply is not a channel-state response", a.ID(), b.ID())
	}

	// Without caching, state must never survive from a previous call
	// instant; only the batch inside this reply may answer this call.
	if !c.caching {
		c.entries = make(map[PairKey][]*ChannelEntry)
	}

	ingested := c.ingest(reply.ChannelStateResponse)
	c.log.Debug(ctx, "ingested oracle reply", logging.Int("records", ingested))

	// The reply should contain the pair that was queried. If it does not,
	// the oracle violated the protocol; surface it loudly and hand out an
	// invalid sentinel instead of looping or crashing the simulation.
	for _, entry := range c.entries[key] {
		if entry.covers(now) {
			return entry, nil
		}
	}
	c.log.Error(ctx, "oracle reply left queried pair uncovered",
		logging.Uint32("tx", uint32(a.ID())),
		logging.Uint32("rx", uint32(b.ID())),
		logging.Any("time", now),
		logging.Int("records", ingested),
	)
	return invalidEntry(), nil
}

// lookup prunes expired entries from the pair's bucket and returns the
// first entry whose window covers now, or nil.
func (c *ChannelCache) lookup(key PairKey, now time.Duration) *ChannelEntry {
	bucket, ok := c.entries[key]
	if !ok {
		return nil
	}

	kept := bucket[:0]
	for _, entry := range bucket {
		if entry.ValidUntil < now {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == 0 {
		delete(c.entries, key)
		return nil
	}
	c.entries[key] = kept

	for _, entry := range kept {
		if entry.covers(now) {
			return entry
		}
	}
	return nil
}

// ingest appends every observation record of a reply into its pair bucket.
// Replies routinely carry pairs other than the queried one as well as
// future windows; all of them are stored.
func (c *ChannelCache) ingest(resp *oracle.ChannelStateResponse) int {
	ingested := 0
	for _, record := range resp.CSI {
		txID := model.EndpointID(record.TxNode.ID)
		txPos := model.Vector3{X: record.TxNode.Position.X, Y: record.TxNode.Position.Y, Z: record.TxNode.Position.Z}

		for _, rx := range record.RxNodes {
			rxID := model.EndpointID(rx.ID)
			entry := &ChannelEntry{
				Delay:        time.Duration(rx.DelayNs),
				PathLossDB:   rx.WidebandLossDB,
				ValidFrom:    time.Duration(record.StartTimeNs),
				ValidUntil:   time.Duration(record.EndTimeNs),
				ObservedTxID: txID,
				ObservedRxID: rxID,
				TxPosition:   txPos,
				RxPosition:   model.Vector3{X: rx.Position.X, Y: rx.Position.Y, Z: rx.Position.Z},
			}
			if n := len(rx.CSIReal); n > 0 && n == len(rx.CSIImag) {
				entry.SubcarrierFrequencies = append([]int(nil), rx.Frequencies...)
				entry.CFR = make([]complex128, 0, n)
				for i := 0; i < n; i++ {
					entry.CFR = append(entry.CFR, complex(rx.CSIReal[i], rx.CSIImag[i]))
				}
			}

			key := NewPairKey(txID, rxID)
			c.entries[key] = append(c.entries[key], entry)
			ingested++
		}
	}
	return ingested
}

// writeBackPositions propagates the positions the oracle actually used
// back onto the endpoints. The cache key is symmetric, so the entry's
// observed transmitter decides which position belongs to which endpoint.
func (c *ChannelCache) writeBackPositions(ctx context.Context, a, b *Endpoint, entry *ChannelEntry, prevA, prevB model.Vector3) {
	if entry.ObservedTxID == a.ID() {
		a.SetPosition(entry.TxPosition)
		b.SetPosition(entry.RxPosition)
	} else {
		a.SetPosition(entry.RxPosition)
		b.SetPosition(entry.TxPosition)
	}

	if !prevA.Equal(a.Position()) {
		c.log.Info(ctx, "endpoint position updated from oracle",
			logging.Uint32("endpoint", uint32(a.ID())),
			logging.Any("from", prevA),
			logging.Any("to", a.Position()),
		)
	}
	if !prevB.Equal(b.Position()) {
		c.log.Info(ctx, "endpoint position updated from oracle",
			logging.Uint32("endpoint", uint32(b.ID())),
			logging.Any("from", prevB),
			logging.Any("to", b.Position()),
		)
	}
}

// validatePair rejects degenerate pairs instead of computing a meaningless
// channel for them.
func validatePair(a, b *Endpoint) error {
	if a == nil || b == nil {
		return fmt.Errorf("channel cache: both endpoints must be non-nil")
	}
	if a.ID() == b.ID() {
		return fmt.Errorf("channel cache: endpoints must differ, both have id %d", a.ID())
	}
	if a.Position().Equal(b.Position()) {
		return fmt.Errorf("channel cache: endpoints %d and %d share the same position", a.ID(), b.ID())
	}
	return nil
}
