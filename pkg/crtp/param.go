package crtp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ParamType is the wire type of a tunable parameter. The value packs the
// fields of the TOC item type byte: length bits (0-1), float bit (2) and
// sign bit (3).
type ParamType byte

// Parameter types
const (
	ParamTypeUint8  ParamType = 0x00
	ParamTypeUint16 ParamType = 0x01
	ParamTypeUint32 ParamType = 0x02
	ParamTypeInt8   ParamType = 0x08
	ParamTypeInt16  ParamType = 0x09
	ParamTypeInt32  ParamType = 0x0A
	ParamTypeFloat  ParamType = 0x06
)

// Size returns the encoded size of the type in bytes, or 0 if unknown.
func (t ParamType) Size() int {
	switch t {
	case ParamTypeUint8, ParamTypeInt8:
		return 1
	case ParamTypeUint16, ParamTypeInt16:
		return 2
	case ParamTypeUint32, ParamTypeInt32, ParamTypeFloat:
		return 4
	default:
		return 0
	}
}

// String returns string representation of ParamType
func (t ParamType) String() string {
	switch t {
	case ParamTypeUint8:
		return "uint8"
	case ParamTypeUint16:
		return "uint16"
	case ParamTypeUint32:
		return "uint32"
	case ParamTypeInt8:
		return "int8"
	case ParamTypeInt16:
		return "int16"
	case ParamTypeInt32:
		return "int32"
	case ParamTypeFloat:
		return "float"
	default:
		return fmt.Sprintf("ParamType(0x%02X)", byte(t))
	}
}

// Param TOC channel commands (port Param, channel 0)
const (
	paramCmdGetItem byte = 0x00
	paramCmdGetInfo byte = 0x01
)

// Param channels
const (
	paramChanTOC   Channel = 0
	paramChanRead  Channel = 1
	paramChanWrite Channel = 2
)

// ParamGetInfoRequest asks for the number of parameter TOC entries.
type ParamGetInfoRequest struct{}

// Bytes returns the wire form of the request
func (ParamGetInfoRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortParam, paramChanTOC)), paramCmdGetInfo}
}

// ParamGetInfoResponse reports the size of the parameter TOC.
type ParamGetInfoResponse struct {
	NumParams uint8
	CRC       uint32
}

// MatchParamGetInfoResponse reports whether the ack payload is a param TOC
// info response.
func MatchParamGetInfoResponse(data []byte) bool {
	return len(data) >= 2 &&
		Header(data[0]).Matches(NewHeader(PortParam, paramChanTOC)) &&
		data[1] == paramCmdGetInfo
}

// ParseParamGetInfoResponse decodes a param TOC info response.
func ParseParamGetInfoResponse(data []byte) (*ParamGetInfoResponse, error) {
	if !MatchParamGetInfoResponse(data) || len(data) < 7 {
		return nil, fmt.Errorf("not a param TOC info response (%d bytes)", len(data))
	}
	return &ParamGetInfoResponse{
		NumParams: data[2],
		CRC:       binary.LittleEndian.Uint32(data[3:7]),
	}, nil
}

// ParamGetItemRequest asks for one parameter TOC entry by id.
type ParamGetItemRequest struct {
	ID uint8
}

// Bytes returns the wire form of the request
func (r ParamGetItemRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortParam, paramChanTOC)), paramCmdGetItem, r.ID}
}

// ParamGetItemResponse is one parameter TOC entry. The type byte on the wire
// packs length, float and sign bits plus a read-only flag; Type carries the
// re-packed ParamType.
type ParamGetItemResponse struct {
	ID       uint8
	Type     ParamType
	ReadOnly bool
	Group    string
	Name     string
}

// MatchParamGetItemResponse reports whether the ack payload is a param TOC
// item response.
func MatchParamGetItemResponse(data []byte) bool {
	return len(data) >= 2 &&
		Header(data[0]).Matches(NewHeader(PortParam, paramChanTOC)) &&
		data[1] == paramCmdGetItem
}

// ParseParamGetItemResponse decodes a param TOC item response.
func ParseParamGetItemResponse(data []byte) (*ParamGetItemResponse, error) {
	if !MatchParamGetItemResponse(data) || len(data) < 4 {
		return nil, fmt.Errorf("not a param TOC item response (%d bytes)", len(data))
	}
	typeByte := data[3]
	length := typeByte & 0x03
	floatBit := (typeByte >> 2) & 0x01
	sign := (typeByte >> 3) & 0x01
	readonly := (typeByte>>6)&0x01 != 0
	group, name := splitGroupName(data[4:])
	return &ParamGetItemResponse{
		ID:       data[2],
		Type:     ParamType(length | floatBit<<2 | sign<<3),
		ReadOnly: readonly,
		Group:    group,
		Name:     name,
	}, nil
}

// ParamReadRequest reads the current value of one parameter.
type ParamReadRequest struct {
	ID uint8
}

// Bytes returns the wire form of the request
func (r ParamReadRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortParam, paramChanRead)), r.ID}
}

// ParamValueResponse carries the raw value bytes of one parameter, as
// returned by a read or echoed by a write.
type ParamValueResponse struct {
	ID    uint8
	Value []byte
}

// MatchParamValueResponse reports whether the ack payload is a param value
// response.
func MatchParamValueResponse(data []byte) bool {
	return len(data) >= 1 && Header(data[0]).Matches(NewHeader(PortParam, paramChanRead))
}

// ParseParamValueResponse decodes a param value response.
func ParseParamValueResponse(data []byte) (*ParamValueResponse, error) {
	if !MatchParamValueResponse(data) || len(data) < 2 {
		return nil, fmt.Errorf("not a param value response (%d bytes)", len(data))
	}
	return &ParamValueResponse{ID: data[1], Value: data[2:]}, nil
}

// MatchParamWriteResponse reports whether the ack payload acknowledges a
// param write.
func MatchParamWriteResponse(data []byte) bool {
	return len(data) >= 1 && Header(data[0]).Matches(NewHeader(PortParam, paramChanWrite))
}

// ParamValue is a tagged scalar holding the value of one parameter in its
// TOC-declared type.
type ParamValue struct {
	Type     ParamType
	ValueU8  uint8
	ValueU16 uint16
	ValueU32 uint32
	ValueI8  int8
	ValueI16 int16
	ValueI32 int32
	ValueF32 float32
}

// Float returns the value widened to float64, whatever its type.
func (v ParamValue) Float() float64 {
	switch v.Type {
	case ParamTypeUint8:
		return float64(v.ValueU8)
	case ParamTypeUint16:
		return float64(v.ValueU16)
	case ParamTypeUint32:
		return float64(v.ValueU32)
	case ParamTypeInt8:
		return float64(v.ValueI8)
	case ParamTypeInt16:
		return float64(v.ValueI16)
	case ParamTypeInt32:
		return float64(v.ValueI32)
	case ParamTypeFloat:
		return float64(v.ValueF32)
	default:
		return 0
	}
}

// String returns string representation of ParamValue
func (v ParamValue) String() string {
	switch v.Type {
	case ParamTypeFloat:
		return fmt.Sprintf("%g", v.ValueF32)
	default:
		return fmt.Sprintf("%d", int64(v.Float()))
	}
}

// DecodeParamValue decodes raw value bytes into a ParamValue of the given
// type.
func DecodeParamValue(t ParamType, data []byte) (ParamValue, error) {
	size := t.Size()
	if size == 0 {
		return ParamValue{}, fmt.Errorf("unknown param type %d", t)
	}
	if len(data) < size {
		return ParamValue{}, fmt.Errorf("short param value: need %d bytes, have %d", size, len(data))
	}
	v := ParamValue{Type: t}
	switch t {
	case ParamTypeUint8:
		v.ValueU8 = data[0]
	case ParamTypeInt8:
		v.ValueI8 = int8(data[0])
	case ParamTypeUint16:
		v.ValueU16 = binary.LittleEndian.Uint16(data)
	case ParamTypeInt16:
		v.ValueI16 = int16(binary.LittleEndian.Uint16(data))
	case ParamTypeUint32:
		v.ValueU32 = binary.LittleEndian.Uint32(data)
	case ParamTypeInt32:
		v.ValueI32 = int32(binary.LittleEndian.Uint32(data))
	case ParamTypeFloat:
		v.ValueF32 = math.Float32frombits(binary.LittleEndian.Uint32(data))
	}
	return v, nil
}

// EncodeParamValue encodes a ParamValue into its wire bytes.
func EncodeParamValue(v ParamValue) []byte {
	switch v.Type {
	case ParamTypeUint8:
		return []byte{v.ValueU8}
	case ParamTypeInt8:
		return []byte{byte(v.ValueI8)}
	case ParamTypeUint16:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, v.ValueU16)
		return out
	case ParamTypeInt16:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, uint16(v.ValueI16))
		return out
	case ParamTypeUint32:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, v.ValueU32)
		return out
	case ParamTypeInt32:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(v.ValueI32))
		return out
	case ParamTypeFloat:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, math.Float32bits(v.ValueF32))
		return out
	default:
		return nil
	}
}

// ParamWriteRequest writes a typed value to one parameter.
type ParamWriteRequest struct {
	ID    uint8
	Value ParamValue
}

// Bytes returns the wire form of the request
func (r ParamWriteRequest) Bytes() []byte {
	out := []byte{byte(NewHeader(PortParam, paramChanWrite)), r.ID}
	return append(out, EncodeParamValue(r.Value)...)
}
