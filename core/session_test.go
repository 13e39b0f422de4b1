package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/raychannel-simulator/internal/logging"
	"github.com/signalsfoundry/raychannel-simulator/internal/oracle"
	"github.com/signalsfoundry/raychannel-simulator/model"
)

func (f *fakeOracle) initMessage(t *testing.T) *oracle.SimInitMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.initMessages) != 1 {
		t.Fatalf("oracle received %d init messages, want 1", len(f.initMessages))
	}
	return f.initMessages[0]
}

func (f *fakeOracle) closeRequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeRequests
}

func newTestSession(t *testing.T, f *fakeOracle) *Session {
	t.Helper()
	session, err := NewSession(testSessionConfig(f.url), oracle.NewClient(logging.Noop()), logging.Noop(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session
}

func TestStartAnnouncesGuardInflatedRadioConfig(t *testing.T) {
	f := newFakeOracle(t, nil)
	session := newTestSession(t, f)

	fixed := NewEndpoint(1, model.Vector3{X: 0, Y: 0, Z: 1.5}, model.ConstantPosition())
	walker := NewEndpoint(2, model.Vector3{X: 300, Y: 0, Z: 1.5}, model.RandomWalk(
		model.BoundaryCondition{Kind: model.BoundaryTime, Interval: 2 * time.Second},
		model.Normal(1.0, 0.25),
		model.Constant(1.5707),
	))
	if err := session.AddEndpoint(fixed); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	if err := session.AddEndpoint(walker); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	init := f.initMessage(t)
	if init.SceneFile != "simple_room/simple_room.xml" {
		t.Errorf("scene = %q", init.SceneFile)
	}
	if init.FrequencyMHz != 5210 {
		t.Errorf("frequency = %d, want 5210", init.FrequencyMHz)
	}
	// Bandwidth and FFT size go out with the guard-band multiplier applied.
	if init.ChannelBandwidthMHz != 240 {
		t.Errorf("channel bandwidth = %d, want 240", init.ChannelBandwidthMHz)
	}
	if init.FFTSize != 192 {
		t.Errorf("fft size = %d, want 192", init.FFTSize)
	}
	if init.MinCoherenceTimeMs != 100000 {
		t.Errorf("min coherence = %d ms, want 100000", init.MinCoherenceTimeMs)
	}
	if init.TimeEvolutionModel != "position" {
		t.Errorf("time evolution model = %q, want \"position\"", init.TimeEvolutionModel)
	}
	if init.Mode != int(ModeAllPairsLookahead) || init.SubMode != 1 {
		t.Errorf("mode/sub_mode = %d/%d, want 3/1", init.Mode, init.SubMode)
	}

	if len(init.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(init.Nodes))
	}
	n0 := init.Nodes[0]
	if n0.ID != 1 || n0.ConstantPositionModel == nil || n0.RandomWalkModel != nil {
		t.Fatalf("node 1 descriptor = %+v, want constant-position", n0)
	}
	if n0.ConstantPositionModel.Position.Z != 1.5 {
		t.Errorf("node 1 z = %v, want 1.5", n0.ConstantPositionModel.Position.Z)
	}
	n1 := init.Nodes[1]
	if n1.ID != 2 || n1.RandomWalkModel == nil {
		t.Fatalf("node 2 descriptor = %+v, want random-walk", n1)
	}
	walk := n1.RandomWalkModel
	if walk.TimeValue == nil || *walk.TimeValue != (2 * time.Second).Nanoseconds() {
		t.Errorf("time boundary = %v, want 2s in ns", walk.TimeValue)
	}
	if walk.WallValue != nil || walk.DistanceValue != nil {
		t.Errorf("boundary fields not exclusive: %+v", walk)
	}
	if walk.Speed.Normal == nil || walk.Speed.Normal.Mean != 1.0 || walk.Speed.Normal.Variance != 0.25 {
		t.Errorf("speed = %+v, want normal(1.0, 0.25)", walk.Speed)
	}
	if walk.Direction.Constant == nil || walk.Direction.Constant.Value != 1.5707 {
		t.Errorf("direction = %+v, want constant(1.5707)", walk.Direction)
	}
}

func TestStartRejectedByOracle(t *testing.T) {
	f := newFakeOracle(t, nil)
	f.initReply = &oracle.Wrapper{SimAck: &oracle.SimAck{NoError: false, ErrorMsg: "scene not found"}}
	session := newTestSession(t, f)

	err := session.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded despite oracle rejection")
	}
	if !strings.Contains(err.Error(), "scene not found") {
		t.Errorf("error %q does not carry the oracle's message", err)
	}
}

func TestStartRequiresAcknowledgment(t *testing.T) {
	f := newFakeOracle(t, nil)
	f.initReply = &oracle.Wrapper{ChannelStateResponse: &oracle.ChannelStateResponse{}}
	session := newTestSession(t, f)

	if err := session.Start(context.Background()); err == nil {
		t.Fatal("Start accepted a non-ack reply")
	}
}

func TestAddEndpointRejections(t *testing.T) {
	f := newFakeOracle(t, nil)
	session := newTestSession(t, f)

	a := NewEndpoint(1, model.Vector3{}, model.ConstantPosition())
	if err := session.AddEndpoint(a); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	dup := NewEndpoint(1, model.Vector3{X: 5}, model.ConstantPosition())
	if err := session.AddEndpoint(dup); err == nil {
		t.Error("duplicate endpoint id accepted")
	}

	bad := NewEndpoint(2, model.Vector3{X: 10}, model.RandomWalk(
		model.BoundaryCondition{Kind: model.BoundaryWall},
		model.DistributionSpec{Kind: model.DistributionKind(42)},
		model.Constant(0),
	))
	if err := session.AddEndpoint(bad); err == nil {
		t.Error("unknown speed distribution accepted")
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	late := NewEndpoint(3, model.Vector3{X: 20}, model.ConstantPosition())
	if err := session.AddEndpoint(late); err == nil {
		t.Error("endpoint accepted after Start")
	}
}

func TestNewSessionValidation(t *testing.T) {
	base := testSessionConfig("ws://unused")
	cases := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"zero frequency", func(c *SessionConfig) { c.FrequencyMHz = 0 }},
		{"negative bandwidth", func(c *SessionConfig) { c.ChannelBandwidthMHz = -1 }},
		{"oversized bandwidth", func(c *SessionConfig) { c.ChannelBandwidthMHz = 20000 }},
		{"zero fft", func(c *SessionConfig) { c.FFTSize = 0 }},
		{"zero spacing", func(c *SessionConfig) { c.SubcarrierSpacingHz = 0 }},
		{"zero coherence", func(c *SessionConfig) { c.MinCoherenceTime = 0 }},
		{"bad mode", func(c *SessionConfig) { c.Mode = Mode(9) }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if _, err := NewSession(cfg, oracle.NewClient(logging.Noop()), logging.Noop(), nil); err == nil {
			t.Errorf("%s: configuration accepted", tc.name)
		}
	}
}

func TestNoiseFloorTracksOccupiedBandwidth(t *testing.T) {
	f := newFakeOracle(t, nil)
	session := newTestSession(t, f)

	// 80 MHz nominal occupies 240 MHz after guard inflation; the derived
	// floor sits near -143 dBm.
	floor := session.NoiseFloorDBm()
	if floor < -144 || floor > -143 {
		t.Errorf("noise floor = %v dBm, want within (-144, -143)", floor)
	}

	wide := testSessionConfig(f.url)
	wide.ChannelBandwidthMHz = 160
	wider, err := NewSession(wide, oracle.NewClient(logging.Noop()), logging.Noop(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	// Doubling the bandwidth raises the floor by 3 dB.
	if diff := wider.NoiseFloorDBm() - floor; diff < 2.9 || diff > 3.1 {
		t.Errorf("floor shift for doubled bandwidth = %v dB, want ~3", diff)
	}
}

func TestDestroyRunsExactlyOnce(t *testing.T) {
	f := newFakeOracle(t, nil)
	session := newTestSession(t, f)
	a := NewEndpoint(1, model.Vector3{}, model.ConstantPosition())
	if err := session.AddEndpoint(a); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := session.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if got := f.closeRequestCount(); got != 1 {
		t.Errorf("close requests = %d, want 1", got)
	}
	if err := session.Destroy(ctx); err == nil {
		t.Error("second Destroy succeeded")
	}
}
