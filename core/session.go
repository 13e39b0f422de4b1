package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/raychannel-simulator/internal/logging"
	"github.com/signalsfoundry/raychannel-simulator/internal/observability"
	"github.com/signalsfoundry/raychannel-simulator/internal/oracle"
	"github.com/signalsfoundry/raychannel-simulator/model"
)

// Transport is a synchronous request/reply channel to the oracle process.
// Send blocks until the reply arrives; there is exactly one request in
// flight at any time.
type Transport interface {
	Open(url string) error
	Send(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}

// Mode selects how much channel data the oracle computes per request.
type Mode int

const (
	// ModePerPair computes only the queried pair.
	ModePerPair Mode = 1
	// ModeAllPairs computes the queried transmitter against all receivers.
	ModeAllPairs Mode = 2
	// ModeAllPairsLookahead additionally computes future validity windows.
	ModeAllPairsLookahead Mode = 3
)

// GuardMultiplier is the guard-band inflation factor applied to the nominal
// channel bandwidth and FFT size before they are sent to the oracle.
const GuardMultiplier = 3

// SessionConfig carries the one-time scene and radio parameters of an
// oracle session. Immutable once the session has started.
type SessionConfig struct {
	// SceneFile is the scene description the oracle should load, relative
	// to its scene directory.
	SceneFile string
	// OracleURL is the transport endpoint, e.g. "ws://localhost:5555/channel".
	OracleURL string
	// Seed initialises the oracle's random number generators.
	Seed uint64

	FrequencyMHz        int
	ChannelBandwidthMHz int // nominal, before guard-band inflation
	FFTSize             int // nominal, before guard-band inflation
	SubcarrierSpacingHz int
	// MinCoherenceTime floors the validity windows the oracle hands out.
	MinCoherenceTime time.Duration

	Mode Mode
	// LookaheadDepth is the number of future validity windows computed per
	// request in ModeAllPairsLookahead.
	LookaheadDepth int
}

// Session owns the lifecycle of one oracle connection: endpoint
// registration, the init handshake, request round trips, and teardown.
type Session struct {
	cfg       SessionConfig
	transport Transport
	log       logging.Logger
	metrics   *observability.ChannelCollector
	tracer    trace.Tracer

	endpoints []*Endpoint
	byID      map[model.EndpointID]*Endpoint

	noiseFloorDBm float64
	started       bool
	destroyed     bool
}

// NewSession validates the configuration and constructs an unstarted
// session. The transport is opened by Start, not here.
func NewSession(cfg SessionConfig, transport Transport, log logging.Logger, metrics *observability.ChannelCollector) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("session: transport must not be nil")
	}
	if cfg.FrequencyMHz <= 0 {
		return nil, fmt.Errorf("session: center frequency must be positive, got %d MHz", cfg.FrequencyMHz)
	}
	if cfg.ChannelBandwidthMHz <= 0 || cfg.ChannelBandwidthMHz > 10000 {
		return nil, fmt.Errorf("session: channel bandwidth must be between 0 and 10000 MHz, got %d", cfg.ChannelBandwidthMHz)
	}
	if cfg.FFTSize <= 0 {
		return nil, fmt.Errorf("session: FFT size must be positive, got %d", cfg.FFTSize)
	}
	if cfg.SubcarrierSpacingHz <= 0 {
		return nil, fmt.Errorf("session: subcarrier spacing must be positive, got %d Hz", cfg.SubcarrierSpacingHz)
	}
	if cfg.MinCoherenceTime <= 0 {
		return nil, fmt.Errorf("session: minimum coherence time must be positive, got %s", cfg.MinCoherenceTime)
	}
	switch cfg.Mode {
	case ModePerPair, ModeAllPairs, ModeAllPairsLookahead:
	default:
		return nil, fmt.Errorf("session: unsupported mode %d", cfg.Mode)
	}
	if cfg.LookaheadDepth <= 0 {
		cfg.LookaheadDepth = 1
	}
	if log == nil {
		log = logging.Noop()
	}

	return &Session{
		cfg:           cfg,
		transport:     transport,
		log:           log,
		metrics:       metrics,
		tracer:        otel.Tracer("github.com/signalsfoundry/raychannel-simulator/core"),
		byID:          make(map[model.EndpointID]*Endpoint),
		noiseFloorDBm: noiseFloorDBm(cfg.ChannelBandwidthMHz * GuardMultiplier),
	}, nil
}

// noiseFloorDBm derives the receiver noise floor used by the optimizer gate
// from the occupied (guard-inflated) bandwidth: thermal noise at 293 K
// scaled by a fixed noise figure of 5, expressed in dBm.
func noiseFloorDBm(channelBwMHz int) float64 {
	const boltzmann = 1.3803e-23
	const noiseFigure = 5.0
	thermal := boltzmann * 293 * float64(channelBwMHz)
	return 10 * math.Log10(noiseFigure*thermal/1e-3)
}

// AddEndpoint registers an endpoint so it is announced to the oracle during
// the init handshake. Must be called before Start.
func (s *Session) AddEndpoint(e *Endpoint) error {
	if s.started {
		return fmt.Errorf("session: cannot add endpoint %d after Start", e.ID())
	}
	if _, exists := s.byID[e.ID()]; exists {
		return fmt.Errorf("session: endpoint %d already registered", e.ID())
	}
	if err := e.Mobility().Validate(); err != nil {
		return fmt.Errorf("session: endpoint %d: %w", e.ID(), err)
	}
	s.endpoints = append(s.endpoints, e)
	s.byID[e.ID()] = e
	return nil
}

// Endpoint returns the registered endpoint with the given id, or nil.
func (s *Session) Endpoint(id model.EndpointID) *Endpoint { return s.byID[id] }

// NoiseFloorDBm returns the configured receiver noise floor in dBm.
func (s *Session) NoiseFloorDBm() float64 { return s.noiseFloorDBm }

// Config returns the session configuration.
func (s *Session) Config() SessionConfig { return s.cfg }

// Start opens the transport and performs the init handshake: scene and
// radio parameters plus one descriptor per registered endpoint. An error
// here is fatal to the run; the session cannot be used afterwards.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("session: already started")
	}

	init := &oracle.SimInitMessage{
		SceneFile:           s.cfg.SceneFile,
		Seed:                s.cfg.Seed,
		FrequencyMHz:        s.cfg.FrequencyMHz,
		ChannelBandwidthMHz: s.cfg.ChannelBandwidthMHz * GuardMultiplier,
		FFTSize:             s.cfg.FFTSize * GuardMultiplier,
		SubcarrierSpacingHz: s.cfg.SubcarrierSpacingHz,
		MinCoherenceTimeMs:  int(s.cfg.MinCoherenceTime / time.Millisecond),
		TimeEvolutionModel:  "position",
		Mode:                int(s.cfg.Mode),
		SubMode:             s.cfg.LookaheadDepth,
	}
	for _, e := range s.endpoints {
		node, err := nodeDescriptor(e)
		if err != nil {
			return fmt.Errorf("session init: %w", err)
		}
		init.Nodes = append(init.Nodes, node)
	}

	if err := s.transport.Open(s.cfg.OracleURL); err != nil {
		return fmt.Errorf("session init: %w", err)
	}

	reply, err := s.roundtrip(ctx, "sim_init", &oracle.Wrapper{SimInit: init})
	if err != nil {
		return fmt.Errorf("session init: %w", err)
	}
	if reply.SimAck == nil {
		return fmt.Errorf("session init: reply is not an acknowledgment")
	}
	if !reply.SimAck.NoError {
		return fmt.Errorf("session init: oracle rejected configuration: %s", reply.SimAck.ErrorMsg)
	}

	s.started = true
	s.log.Info(ctx, "oracle session established",
		logging.String("scene", s.cfg.SceneFile),
		logging.Int("frequency_mhz", s.cfg.FrequencyMHz),
		logging.Int("channel_bw_mhz", init.ChannelBandwidthMHz),
		logging.Int("fft_size", init.FFTSize),
		logging.Int("mode", int(s.cfg.Mode)),
		logging.Int("nodes", len(init.Nodes)),
	)
	return nil
}

// Destroy performs the close handshake and releases the transport. It must
// be called exactly once; channel-state operations after Destroy are
// undefined by contract.
func (s *Session) Destroy(ctx context.Context) error {
	if s.destroyed {
		return fmt.Errorf("session: already destroyed")
	}
	s.destroyed = true

	reply, err := s.roundtrip(ctx, "sim_close", &oracle.Wrapper{SimCloseRequest: &oracle.SimCloseRequest{}})
	if err != nil {
		s.transport.Close()
		return fmt.Errorf("session close: %w", err)
	}
	if reply.SimAck == nil {
		s.transport.Close()
		return fmt.Errorf("session close: reply is not an acknowledgment")
	}
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("session close: %w", err)
	}
	s.log.Info(ctx, "oracle session closed")
	return nil
}

// roundtrip performs one traced, timed request/reply exchange.
func (s *Session) roundtrip(ctx context.Context, kind string, msg *oracle.Wrapper) (*oracle.Wrapper, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.roundtrip",
		trace.WithAttributes(attribute.String("oracle.request_kind", kind)))
	defer span.End()

	request, err := oracle.Encode(msg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	replyData, err := s.transport.Send(ctx, request)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.RecordRoundtrip(kind, time.Since(start).Seconds())

	reply, err := oracle.Decode(replyData)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return reply, nil
}

// nodeDescriptor translates an endpoint's mobility descriptor into the wire
// form. Unrecognised variants are configuration errors.
func nodeDescriptor(e *Endpoint) (oracle.NodeInfo, error) {
	node := oracle.NodeInfo{ID: uint32(e.ID())}
	pos := oracle.Vector{X: e.Position().X, Y: e.Position().Y, Z: e.Position().Z}

	m := e.Mobility()
	switch m.Kind {
	case model.MobilityConstantPosition:
		node.ConstantPositionModel = &oracle.ConstantPositionModel{Position: pos}

	case model.MobilityRandomWalk:
		walk := &oracle.RandomWalkModel{Position: pos}
		switch m.Boundary.Kind {
		case model.BoundaryWall:
			wall := m.Boundary.WallBounce
			walk.WallValue = &wall
		case model.BoundaryTime:
			if m.Boundary.Interval <= 0 {
				return node, fmt.Errorf("endpoint %d: time boundary must be greater than 0", e.ID())
			}
			ns := m.Boundary.Interval.Nanoseconds()
			walk.TimeValue = &ns
		case model.BoundaryDistance:
			if m.Boundary.Distance <= 0 {
				return node, fmt.Errorf("endpoint %d: distance boundary must be greater than 0 m", e.ID())
			}
			dist := m.Boundary.Distance
			walk.DistanceValue = &dist
		default:
			return node, fmt.Errorf("endpoint %d: unsupported boundary kind %d", e.ID(), m.Boundary.Kind)
		}

		speed, err := randomVariable(m.Speed)
		if err != nil {
			return node, fmt.Errorf("endpoint %d: speed: %w", e.ID(), err)
		}
		direction, err := randomVariable(m.Direction)
		if err != nil {
			return node, fmt.Errorf("endpoint %d: direction: %w", e.ID(), err)
		}
		walk.Speed = speed
		walk.Direction = direction
		node.RandomWalkModel = walk

	default:
		return node, fmt.Errorf("endpoint %d: unsupported mobility kind %d", e.ID(), m.Kind)
	}
	return node, nil
}

func randomVariable(d model.DistributionSpec) (oracle.RandomVariable, error) {
	switch d.Kind {
	case model.DistributionUniform:
		return oracle.RandomVariable{Uniform: &oracle.UniformVariable{Min: d.Min, Max: d.Max}}, nil
	case model.DistributionConstant:
		return oracle.RandomVariable{Constant: &oracle.ConstantVariable{Value: d.Value}}, nil
	case model.DistributionNormal:
		return oracle.RandomVariable{Normal: &oracle.NormalVariable{Mean: d.Mean, Variance: d.Variance}}, nil
	default:
		return oracle.RandomVariable{}, fmt.Errorf("distribution must be uniform, constant or normal, got kind %d", d.Kind)
	}
}
