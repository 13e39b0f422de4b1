package model

import (
	"fmt"
	"time"
)

// EndpointID identifies a simulated node. IDs are stable for the lifetime
// of a simulation run.
type EndpointID uint32

// Vector3 is a position in scene coordinates, metres.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Equal reports whether two positions are exactly identical.
func (v Vector3) Equal(other Vector3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// DistributionKind enumerates the random-variable distributions the oracle
// understands. The set is closed; anything else is a configuration error.
type DistributionKind int

const (
	DistributionUnknown DistributionKind = iota
	DistributionUniform
	DistributionConstant
	DistributionNormal
)

// DistributionSpec is a tagged description of a scalar random variable.
// Only the fields matching Kind are meaningful.
type DistributionSpec struct {
	Kind DistributionKind `json:"kind"`

	Min float64 `json:"min,omitempty"` // uniform
	Max float64 `json:"max,omitempty"` // uniform

	Value float64 `json:"value,omitempty"` // constant

	Mean     float64 `json:"mean,omitempty"`     // normal
	Variance float64 `json:"variance,omitempty"` // normal
}

// Uniform returns a uniform distribution over [min, max].
func Uniform(min, max float64) DistributionSpec {
	return DistributionSpec{Kind: DistributionUniform, Min: min, Max: max}
}

// Constant returns a degenerate distribution that always yields value.
func Constant(value float64) DistributionSpec {
	return DistributionSpec{Kind: DistributionConstant, Value: value}
}

// Normal returns a normal distribution with the given mean and variance.
func Normal(mean, variance float64) DistributionSpec {
	return DistributionSpec{Kind: DistributionNormal, Mean: mean, Variance: variance}
}

// Validate rejects distributions outside the closed kind set.
func (d DistributionSpec) Validate() error {
	switch d.Kind {
	case DistributionUniform, DistributionConstant, DistributionNormal:
		return nil
	default:
		return fmt.Errorf("unsupported distribution kind %d (must be uniform, constant or normal)", d.Kind)
	}
}

// BoundaryKind selects how a random walk is re-randomised.
type BoundaryKind int

const (
	// BoundaryWall bounces the walker off the scene walls.
	BoundaryWall BoundaryKind = iota + 1
	// BoundaryTime re-draws speed and direction after a fixed walk duration.
	BoundaryTime
	// BoundaryDistance re-draws speed and direction after a fixed walk distance.
	BoundaryDistance
)

// BoundaryCondition is the boundary behaviour of a random walk plus its
// kind-specific parameter.
type BoundaryCondition struct {
	Kind BoundaryKind `json:"kind"`

	WallBounce bool          `json:"wall_bounce,omitempty"` // BoundaryWall
	Interval   time.Duration `json:"interval,omitempty"`    // BoundaryTime, must be > 0
	Distance   float64       `json:"distance,omitempty"`    // BoundaryDistance, metres, must be > 0
}

// MobilityKind tags the mobility model of an endpoint.
type MobilityKind int

const (
	MobilityConstantPosition MobilityKind = iota + 1
	MobilityRandomWalk
)

// MobilityDescriptor describes how an endpoint moves. Mobility is simulated
// inside the oracle; the simulator only supplies the initial description and
// receives authoritative positions back with every channel computation.
type MobilityDescriptor struct {
	Kind MobilityKind `json:"kind"`

	// RandomWalk only.
	Boundary  BoundaryCondition `json:"boundary,omitempty"`
	Speed     DistributionSpec  `json:"speed,omitempty"`
	Direction DistributionSpec  `json:"direction,omitempty"`
}

// ConstantPosition describes an endpoint that never moves.
func ConstantPosition() MobilityDescriptor {
	return MobilityDescriptor{Kind: MobilityConstantPosition}
}

// RandomWalk describes an endpoint performing a random walk with the given
// boundary condition and speed/direction distributions.
func RandomWalk(boundary BoundaryCondition, speed, direction DistributionSpec) MobilityDescriptor {
	return MobilityDescriptor{
		Kind:      MobilityRandomWalk,
		Boundary:  boundary,
		Speed:     speed,
		Direction: direction,
	}
}

// Validate checks that the descriptor can be expressed in the oracle's
// init message.
func (m MobilityDescriptor) Validate() error {
	switch m.Kind {
	case MobilityConstantPosition:
		return nil
	case MobilityRandomWalk:
		switch m.Boundary.Kind {
		case BoundaryWall:
		case BoundaryTime:
			if m.Boundary.Interval <= 0 {
				return fmt.Errorf("random walk time boundary must be greater than 0, got %s", m.Boundary.Interval)
			}
		case BoundaryDistance:
			if m.Boundary.Distance <= 0 {
				return fmt.Errorf("random walk distance boundary must be greater than 0 m, got %g", m.Boundary.Distance)
			}
		default:
			return fmt.Errorf("unsupported boundary kind %d", m.Boundary.Kind)
		}
		if err := m.Speed.Validate(); err != nil {
			return fmt.Errorf("speed distribution: %w", err)
		}
		if err := m.Direction.Validate(); err != nil {
			return fmt.Errorf("direction distribution: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported mobility kind %d", m.Kind)
	}
}
