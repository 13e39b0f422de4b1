package core

import "github.com/signalsfoundry/raychannel-simulator/model"

// Endpoint is a simulated radio node: a stable identifier, a settable 3-D
// position, and a mobility descriptor announced to the oracle at session
// start. Positions are written back by the cache whenever the oracle
// reports where its mobility simulation actually placed the node.
type Endpoint struct {
	id       model.EndpointID
	position model.Vector3
	mobility model.MobilityDescriptor
}

// NewEndpoint constructs an endpoint at the given initial position.
func NewEndpoint(id model.EndpointID, position model.Vector3, mobility model.MobilityDescriptor) *Endpoint {
	return &Endpoint{id: id, position: position, mobility: mobility}
}

// ID returns the endpoint's identifier.
func (e *Endpoint) ID() model.EndpointID { return e.id }

// Position returns the current position.
func (e *Endpoint) Position() model.Vector3 { return e.position }

// SetPosition overwrites the current position.
func (e *Endpoint) SetPosition(p model.Vector3) { e.position = p }

// Mobility returns the endpoint's mobility descriptor.
func (e *Endpoint) Mobility() model.MobilityDescriptor { return e.mobility }
