package core

import "github.com/signalsfoundry/raychannel-simulator/model"

// PairKey identifies an unordered pair of endpoints. Construction always
// stores (min, max) so that (a,b) and (b,a) map to the same key; the cache
// assumes channel reciprocity between the two directions.
type PairKey struct {
	First  model.EndpointID
	Second model.EndpointID
}

// NewPairKey canonicalises the two endpoint ids into a PairKey.
func NewPairKey(a, b model.EndpointID) PairKey {
	if a < b {
		return PairKey{First: a, Second: b}
	}
	return PairKey{First: b, Second: a}
}
