package crtp

import (
	"encoding/binary"

	"github.com/x448/float16"
)

// Position channels
const (
	positionChanExternal Channel = 0
	positionChanBringup  Channel = 1
)

// Packing limits for the broadcast position encodings.
const (
	// PositionsPerPacket is how many full-precision broadcast entries fit
	// in one external-position packet.
	PositionsPerPacket = 3

	// PosesPerBringupPacket is how many pose slots one bringup packet
	// carries. Unused slots keep id 0 and are ignored by the vehicles.
	PosesPerBringupPacket = 2
)

// ExternalPosition is one vehicle's position update in the reduced-precision
// broadcast form: half-precision floats for x, y, z and yaw.
type ExternalPosition struct {
	ID           uint8
	X, Y, Z, Yaw float32
}

// ExternalPositionRequest packs up to PositionsPerPacket position entries
// into one physical transmission. Vehicles pick out the entry matching their
// own id; an id of 0 marks an unused slot.
type ExternalPositionRequest struct {
	Positions []ExternalPosition
}

// Bytes returns the wire form of the request
func (r ExternalPositionRequest) Bytes() []byte {
	out := make([]byte, 1+9*PositionsPerPacket)
	out[0] = byte(NewHeader(PortPosition, positionChanExternal))
	for i := 0; i < len(r.Positions) && i < PositionsPerPacket; i++ {
		p := r.Positions[i]
		off := 1 + 9*i
		out[off] = p.ID
		binary.LittleEndian.PutUint16(out[off+1:], float16.Fromfloat32(p.X).Bits())
		binary.LittleEndian.PutUint16(out[off+3:], float16.Fromfloat32(p.Y).Bits())
		binary.LittleEndian.PutUint16(out[off+5:], float16.Fromfloat32(p.Z).Bits())
		binary.LittleEndian.PutUint16(out[off+7:], float16.Fromfloat32(p.Yaw).Bits())
	}
	return out
}

// BringupPose is one vehicle's full pose in the bringup broadcast form:
// half-precision position plus a quaternion in 16-bit fixed point.
type BringupPose struct {
	ID             uint8
	X, Y, Z        float32
	Q0, Q1, Q2, Q3 float32
}

// quatScale converts quaternion components in [-1, 1] to int16 fixed point.
const quatScale = 32768.0

// BringupPoseRequest packs one pose into a bringup packet. The second pose
// slot stays zeroed.
type BringupPoseRequest struct {
	Pose BringupPose
}

// Bytes returns the wire form of the request
func (r BringupPoseRequest) Bytes() []byte {
	out := make([]byte, 1+15*PosesPerBringupPacket)
	out[0] = byte(NewHeader(PortPosition, positionChanBringup))
	p := r.Pose
	out[1] = p.ID
	binary.LittleEndian.PutUint16(out[2:], float16.Fromfloat32(p.X).Bits())
	binary.LittleEndian.PutUint16(out[4:], float16.Fromfloat32(p.Y).Bits())
	binary.LittleEndian.PutUint16(out[6:], float16.Fromfloat32(p.Z).Bits())
	binary.LittleEndian.PutUint16(out[8:], uint16(int16(p.Q0*quatScale)))
	binary.LittleEndian.PutUint16(out[10:], uint16(int16(p.Q1*quatScale)))
	binary.LittleEndian.PutUint16(out[12:], uint16(int16(p.Q2*quatScale)))
	binary.LittleEndian.PutUint16(out[14:], uint16(int16(p.Q3*quatScale)))
	return out
}
