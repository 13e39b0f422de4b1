// Package oracle implements the wire schema and transport used to talk to
// the external ray-tracing channel-computation service.
package oracle

import (
	"encoding/json"
	"fmt"
)

// Wrapper is the top-level envelope of every message exchanged with the
// oracle. Exactly one field is set per message.
type Wrapper struct {
	SimInit              *SimInitMessage       `json:"sim_init_msg,omitempty"`
	ChannelStateRequest  *ChannelStateRequest  `json:"channel_state_request,omitempty"`
	ChannelStateResponse *ChannelStateResponse `json:"channel_state_response,omitempty"`
	SimCloseRequest      *SimCloseRequest      `json:"sim_close_request,omitempty"`
	SimAck               *SimAck               `json:"sim_ack,omitempty"`
}

// Encode serialises a wrapper for transmission.
func Encode(w *Wrapper) ([]byte, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode oracle message: %w", err)
	}
	return data, nil
}

// Decode parses a received wrapper.
func Decode(data []byte) (*Wrapper, error) {
	var w Wrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode oracle message: %w", err)
	}
	return &w, nil
}

// Vector is a 3-D position in scene coordinates, metres.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// UniformVariable is a uniform distribution over [Min, Max].
type UniformVariable struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ConstantVariable always yields Value.
type ConstantVariable struct {
	Value float64 `json:"value"`
}

// NormalVariable is a normal distribution.
type NormalVariable struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// RandomVariable is a tagged union; exactly one field is set.
type RandomVariable struct {
	Uniform  *UniformVariable  `json:"uniform,omitempty"`
	Constant *ConstantVariable `json:"constant,omitempty"`
	Normal   *NormalVariable   `json:"normal,omitempty"`
}

// ConstantPositionModel describes a node that never moves.
type ConstantPositionModel struct {
	Position Vector `json:"position"`
}

// RandomWalkModel describes a node performing a random walk inside the
// oracle's mobility simulation. Exactly one of WallValue, TimeValue and
// DistanceValue is set, selecting the boundary condition.
type RandomWalkModel struct {
	Position      Vector   `json:"position"`
	WallValue     *bool    `json:"wall_value,omitempty"`
	TimeValue     *int64   `json:"time_value,omitempty"` // nanoseconds
	DistanceValue *float64 `json:"distance_value,omitempty"`

	Speed     RandomVariable `json:"speed"`
	Direction RandomVariable `json:"direction"`
}

// NodeInfo is the per-endpoint descriptor of the init message. Exactly one
// of the two model fields is set.
type NodeInfo struct {
	ID                    uint32                 `json:"id"`
	ConstantPositionModel *ConstantPositionModel `json:"constant_position_model,omitempty"`
	RandomWalkModel       *RandomWalkModel       `json:"random_walk_model,omitempty"`
}

// SimInitMessage carries the one-time scene and radio configuration.
// Bandwidth and FFT size are sent after guard-band inflation.
type SimInitMessage struct {
	SceneFile           string     `json:"scene_fname"`
	Seed                uint64     `json:"seed"`
	FrequencyMHz        int        `json:"frequency"`
	ChannelBandwidthMHz int        `json:"channel_bw"`
	FFTSize             int        `json:"fft_size"`
	SubcarrierSpacingHz int        `json:"subcarrier_spacing"`
	MinCoherenceTimeMs  int        `json:"min_coherence_time_ms"`
	TimeEvolutionModel  string     `json:"time_evo_model"`
	Mode                int        `json:"mode"`
	SubMode             int        `json:"sub_mode"`
	Nodes               []NodeInfo `json:"nodes"`
}

// ChannelStateRequest asks for the channel between two nodes at a simulated
// time instant (nanoseconds).
type ChannelStateRequest struct {
	TxNode uint32 `json:"tx_node"`
	RxNode uint32 `json:"rx_node"`
	Time   int64  `json:"time"`
}

// TxNodeInfo names the transmitter of an observation record together with
// the position the oracle used for it.
type TxNodeInfo struct {
	ID       uint32 `json:"id"`
	Position Vector `json:"position"`
}

// RxNodeRecord is one receiver's observation within a CSI record. The
// Frequencies, CSIReal and CSIImag arrays are parallel and index-aligned.
type RxNodeRecord struct {
	ID             uint32    `json:"id"`
	Position       Vector    `json:"position"`
	DelayNs        int64     `json:"delay"`
	WidebandLossDB float64   `json:"wb_loss"`
	Frequencies    []int     `json:"frequencies,omitempty"`
	CSIReal        []float64 `json:"csi_real,omitempty"`
	CSIImag        []float64 `json:"csi_imag,omitempty"`
}

// CSIRecord is one validity-windowed observation: a transmitter against one
// or more receivers. In all-pairs and look-ahead modes a single response
// carries records for pairs and instants beyond the one that was queried.
type CSIRecord struct {
	StartTimeNs int64          `json:"start_time"`
	EndTimeNs   int64          `json:"end_time"`
	TxNode      TxNodeInfo     `json:"tx_node"`
	RxNodes     []RxNodeRecord `json:"rx_nodes"`
}

// ChannelStateResponse is the oracle's reply to a ChannelStateRequest.
type ChannelStateResponse struct {
	CSI []CSIRecord `json:"csi"`
}

// SimCloseRequest tears the session down. It carries no payload.
type SimCloseRequest struct{}

// SimAck acknowledges an init or close request.
type SimAck struct {
	NoError  bool   `json:"no_error"`
	ErrorMsg string `json:"error_msg,omitempty"`
}
