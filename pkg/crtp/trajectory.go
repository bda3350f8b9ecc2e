package crtp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Trajectory channel commands (port Trajectory, channel 0)
const (
	trajCmdReset   byte = 0x00
	trajCmdAdd     byte = 0x01
	trajCmdStart   byte = 0x02
	trajCmdState   byte = 0x03
	trajCmdHover   byte = 0x05
	trajCmdTakeoff byte = 0x07
	trajCmdLand    byte = 0x08
)

// TrajectoryValuesPerChunk is how many float32 coefficients fit in one
// trajectory add request next to the command, id, offset and size bytes.
const TrajectoryValuesPerChunk = (MaxPayload - 4) / 4

// TrajectoryResetRequest clears the stored trajectory and its segment ids.
type TrajectoryResetRequest struct{}

// Bytes returns the wire form of the request
func (TrajectoryResetRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortTrajectory, 0)), trajCmdReset}
}

// TrajectoryAddRequest uploads one chunk of a polynomial trajectory segment.
// Offset and Size index into the segment's flattened scalar list; at most
// TrajectoryValuesPerChunk values fit per request.
type TrajectoryAddRequest struct {
	ID     uint8
	Offset uint8
	Size   uint8
	Values []float32
}

// Bytes returns the wire form of the request
func (r TrajectoryAddRequest) Bytes() []byte {
	out := make([]byte, 5+4*len(r.Values))
	out[0] = byte(NewHeader(PortTrajectory, 0))
	out[1] = trajCmdAdd
	out[2] = r.ID
	out[3] = r.Offset
	out[4] = r.Size
	for i, v := range r.Values {
		binary.LittleEndian.PutUint32(out[5+4*i:], math.Float32bits(v))
	}
	return out
}

// TrajectoryStartRequest starts playback of the stored trajectory.
type TrajectoryStartRequest struct{}

// Bytes returns the wire form of the request
func (TrajectoryStartRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortTrajectory, 0)), trajCmdStart}
}

// TrajectoryStateRequest enables or disables trajectory following.
type TrajectoryStateRequest struct {
	Enabled bool
}

// Bytes returns the wire form of the request
func (r TrajectoryStateRequest) Bytes() []byte {
	state := byte(0)
	if r.Enabled {
		state = 1
	}
	return []byte{byte(NewHeader(PortTrajectory, 0)), trajCmdState, state}
}

// TrajectoryHoverRequest commands a hover setpoint.
type TrajectoryHoverRequest struct {
	X, Y, Z, Yaw float32
}

// Bytes returns the wire form of the request
func (r TrajectoryHoverRequest) Bytes() []byte {
	out := make([]byte, 18)
	out[0] = byte(NewHeader(PortTrajectory, 0))
	out[1] = trajCmdHover
	binary.LittleEndian.PutUint32(out[2:], math.Float32bits(r.X))
	binary.LittleEndian.PutUint32(out[6:], math.Float32bits(r.Y))
	binary.LittleEndian.PutUint32(out[10:], math.Float32bits(r.Z))
	binary.LittleEndian.PutUint32(out[14:], math.Float32bits(r.Yaw))
	return out
}

// TrajectoryTakeoffRequest commands a takeoff to the given height over the
// given duration.
type TrajectoryTakeoffRequest struct {
	Height     float32
	DurationMs uint16
}

// Bytes returns the wire form of the request
func (r TrajectoryTakeoffRequest) Bytes() []byte {
	out := make([]byte, 8)
	out[0] = byte(NewHeader(PortTrajectory, 0))
	out[1] = trajCmdTakeoff
	binary.LittleEndian.PutUint32(out[2:], math.Float32bits(r.Height))
	binary.LittleEndian.PutUint16(out[6:], r.DurationMs)
	return out
}

// TrajectoryLandRequest commands a landing to the given height over the
// given duration.
type TrajectoryLandRequest struct {
	Height     float32
	DurationMs uint16
}

// Bytes returns the wire form of the request
func (r TrajectoryLandRequest) Bytes() []byte {
	out := make([]byte, 8)
	out[0] = byte(NewHeader(PortTrajectory, 0))
	out[1] = trajCmdLand
	binary.LittleEndian.PutUint32(out[2:], math.Float32bits(r.Height))
	binary.LittleEndian.PutUint16(out[6:], r.DurationMs)
	return out
}

// TrajectoryResponse acknowledges a trajectory command.
type TrajectoryResponse struct {
	Command uint8
	Data    []byte
}

// MatchTrajectoryResponse reports whether the ack payload is a trajectory
// command response.
func MatchTrajectoryResponse(data []byte) bool {
	return len(data) >= 1 && Header(data[0]).Matches(NewHeader(PortTrajectory, 0))
}

// ParseTrajectoryResponse decodes a trajectory command response.
func ParseTrajectoryResponse(data []byte) (*TrajectoryResponse, error) {
	if !MatchTrajectoryResponse(data) || len(data) < 2 {
		return nil, fmt.Errorf("not a trajectory response (%d bytes)", len(data))
	}
	return &TrajectoryResponse{Command: data[1], Data: data[2:]}, nil
}
