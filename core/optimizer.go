package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/raychannel-simulator/model"
)

// SpeedOfLight is the propagation speed used for the constant-speed delay
// estimate, metres per second.
const SpeedOfLight = 299792458.0

// FreeSpaceEstimator provides O(1) analytic channel estimates: a Friis
// free-space received-power bound and a constant-speed propagation delay.
// The cache uses it to skip the oracle entirely for links whose received
// power cannot rise above the noise floor.
type FreeSpaceEstimator struct {
	frequencyHz float64
}

// NewFreeSpaceEstimator constructs an estimator for the given carrier
// frequency in Hz.
func NewFreeSpaceEstimator(frequencyHz float64) *FreeSpaceEstimator {
	return &FreeSpaceEstimator{frequencyHz: frequencyHz}
}

// LossDB returns the free-space path loss between the two positions in dB.
// Distances below one metre are clamped to keep the model finite.
func (f *FreeSpaceEstimator) LossDB(a, b model.Vector3) float64 {
	d := distance(a, b)
	if d < 1 {
		d = 1
	}
	lambda := SpeedOfLight / f.frequencyHz
	return -20 * math.Log10(lambda/(4*math.Pi*d))
}

// RxPowerDBm returns the received power in dBm for a transmit power in dBm
// under the free-space model.
func (f *FreeSpaceEstimator) RxPowerDBm(txPowerDBm float64, a, b model.Vector3) float64 {
	return txPowerDBm - f.LossDB(a, b)
}

// Delay returns the straight-line propagation delay between the two
// positions at the speed of light.
func (f *FreeSpaceEstimator) Delay(a, b model.Vector3) time.Duration {
	seconds := distance(a, b) / SpeedOfLight
	return time.Duration(seconds * float64(time.Second))
}

func distance(a, b model.Vector3) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
