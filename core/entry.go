package core

import (
	"time"

	"github.com/signalsfoundry/raychannel-simulator/model"
)

// ChannelEntry is one cached observation of the channel between a pair of
// endpoints. Entries are created only while ingesting an oracle reply and
// are immutable afterwards; they are dropped lazily once their validity
// window has passed.
type ChannelEntry struct {
	// Delay is the propagation delay between the two endpoints.
	Delay time.Duration
	// PathLossDB is the wideband path loss in dB, aggregated over all
	// subcarriers.
	PathLossDB float64

	// ValidFrom and ValidUntil bound the simulated-time window (inclusive
	// on both ends) during which this observation is authoritative.
	ValidFrom  time.Duration
	ValidUntil time.Duration

	// SubcarrierFrequencies and CFR are parallel, index-aligned arrays:
	// the integer frequency and complex gain of each OFDM subcarrier.
	// Both are empty when CSI estimation is disabled on the oracle.
	SubcarrierFrequencies []int
	CFR                   []complex128

	// ObservedTxID / ObservedRxID record which of the pair's members the
	// oracle treated as transmitter and receiver. The cache key is
	// symmetric, so this is needed to assign TxPosition and RxPosition
	// back to the right endpoints.
	ObservedTxID model.EndpointID
	ObservedRxID model.EndpointID

	// TxPosition / RxPosition are the positions the oracle used for the
	// computation. The oracle's mobility simulation is the authoritative
	// position source; these are written back onto the endpoints.
	TxPosition model.Vector3
	RxPosition model.Vector3
}

// invalidEntry returns the sentinel entry handed out when a reply was
// ingested but the queried pair is still uncovered. Its window is
// deliberately impossible so Valid reports false.
func invalidEntry() *ChannelEntry {
	return &ChannelEntry{ValidFrom: -1, ValidUntil: -1}
}

// Valid reports whether the entry came from a real oracle observation.
func (e *ChannelEntry) Valid() bool {
	return e.ValidFrom >= 0 && e.ValidUntil >= e.ValidFrom
}

// covers reports whether t falls inside the validity window. Both window
// boundaries count as valid.
func (e *ChannelEntry) covers(t time.Duration) bool {
	return e.ValidFrom <= t && t <= e.ValidUntil
}
