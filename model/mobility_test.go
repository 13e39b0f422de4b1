package model

import (
	"testing"
	"time"
)

func TestMobilityDescriptorValidate(t *testing.T) {
	cases := []struct {
		name    string
		desc    MobilityDescriptor
		wantErr bool
	}{
		{"constant position", ConstantPosition(), false},
		{"wall walk", RandomWalk(
			BoundaryCondition{Kind: BoundaryWall, WallBounce: true},
			Uniform(0.5, 1.5), Uniform(0, 6.28)), false},
		{"time walk", RandomWalk(
			BoundaryCondition{Kind: BoundaryTime, Interval: time.Second},
			Constant(1), Constant(0)), false},
		{"distance walk", RandomWalk(
			BoundaryCondition{Kind: BoundaryDistance, Distance: 5},
			Normal(1, 0.1), Constant(0)), false},
		{"zero time boundary", RandomWalk(
			BoundaryCondition{Kind: BoundaryTime},
			Constant(1), Constant(0)), true},
		{"zero distance boundary", RandomWalk(
			BoundaryCondition{Kind: BoundaryDistance},
			Constant(1), Constant(0)), true},
		{"unknown boundary", RandomWalk(
			BoundaryCondition{Kind: BoundaryKind(9)},
			Constant(1), Constant(0)), true},
		{"unknown speed distribution", RandomWalk(
			BoundaryCondition{Kind: BoundaryWall},
			DistributionSpec{Kind: DistributionKind(9)}, Constant(0)), true},
		{"unknown direction distribution", RandomWalk(
			BoundaryCondition{Kind: BoundaryWall},
			Constant(1), DistributionSpec{}), true},
		{"zero-valued descriptor", MobilityDescriptor{}, true},
	}
	for _, tc := range cases {
		err := tc.desc.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: validation passed, want error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: %v", tc.name, err)
		}
	}
}

func TestVector3Equal(t *testing.T) {
	a := Vector3{X: 1, Y: 2, Z: 3}
	if !a.Equal(Vector3{X: 1, Y: 2, Z: 3}) {
		t.Error("identical vectors reported unequal")
	}
	if a.Equal(Vector3{X: 1, Y: 2, Z: 3.0001}) {
		t.Error("differing vectors reported equal")
	}
}
