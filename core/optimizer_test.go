package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/raychannel-simulator/model"
)

func TestFreeSpaceLoss(t *testing.T) {
	est := NewFreeSpaceEstimator(5210e6)
	a := model.Vector3{}

	near := est.LossDB(a, model.Vector3{X: 300})
	far := est.LossDB(a, model.Vector3{X: 600})
	// Free-space loss grows by 20*log10(2) per doubled distance.
	if diff := far - near; math.Abs(diff-20*math.Log10(2)) > 1e-9 {
		t.Errorf("loss delta for doubled distance = %v dB, want ~6.02", diff)
	}
	// 5.21 GHz at 300 m sits in the mid-90s dB range.
	if near < 90 || near > 100 {
		t.Errorf("loss at 300 m = %v dB, want within (90, 100)", near)
	}

	// Sub-metre separations clamp to one metre.
	if est.LossDB(a, model.Vector3{X: 0.2}) != est.LossDB(a, model.Vector3{X: 1}) {
		t.Error("sub-metre distance not clamped")
	}
}

func TestFreeSpaceRxPower(t *testing.T) {
	est := NewFreeSpaceEstimator(5210e6)
	a := model.Vector3{}
	b := model.Vector3{X: 300}
	if got := est.RxPowerDBm(20, a, b); got != 20-est.LossDB(a, b) {
		t.Errorf("rx power = %v, want tx power minus loss", got)
	}
}

func TestFreeSpaceDelay(t *testing.T) {
	est := NewFreeSpaceEstimator(5210e6)
	delay := est.Delay(model.Vector3{}, model.Vector3{X: 300})
	wantSeconds := 300 / SpeedOfLight
	want := time.Duration(wantSeconds * float64(time.Second))
	if diff := delay - want; diff < -time.Nanosecond || diff > time.Nanosecond {
		t.Errorf("delay over 300 m = %v, want ~%v", delay, want)
	}
}
