package crtp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// LogType identifies the wire type of one logging variable.
type LogType byte

// Logging variable types as reported in the log TOC
const (
	LogTypeUint8  LogType = 1
	LogTypeUint16 LogType = 2
	LogTypeUint32 LogType = 3
	LogTypeInt8   LogType = 4
	LogTypeInt16  LogType = 5
	LogTypeInt32  LogType = 6
	LogTypeFloat  LogType = 7
)

// Size returns the encoded size of the type in bytes, or 0 if unknown.
func (t LogType) Size() int {
	switch t {
	case LogTypeUint8, LogTypeInt8:
		return 1
	case LogTypeUint16, LogTypeInt16:
		return 2
	case LogTypeUint32, LogTypeInt32, LogTypeFloat:
		return 4
	default:
		return 0
	}
}

// String returns string representation of LogType
func (t LogType) String() string {
	switch t {
	case LogTypeUint8:
		return "uint8"
	case LogTypeUint16:
		return "uint16"
	case LogTypeUint32:
		return "uint32"
	case LogTypeInt8:
		return "int8"
	case LogTypeInt16:
		return "int16"
	case LogTypeInt32:
		return "int32"
	case LogTypeFloat:
		return "float"
	default:
		return fmt.Sprintf("LogType(%d)", byte(t))
	}
}

// Log TOC channel commands (port Log, channel 0)
const (
	logCmdGetItem byte = 0x00
	logCmdGetInfo byte = 0x01
)

// Log control channel commands (port Log, channel 1)
const (
	logCtrlCreateBlock byte = 0x00
	logCtrlDeleteBlock byte = 0x02
	logCtrlStartBlock  byte = 0x03
	logCtrlStopBlock   byte = 0x04
	logCtrlReset       byte = 0x05
)

// Log channels
const (
	logChanTOC     Channel = 0
	logChanControl Channel = 1
	logChanData    Channel = 2
)

// LogGetInfoRequest asks for the number of log TOC entries.
type LogGetInfoRequest struct{}

// Bytes returns the wire form of the request
func (LogGetInfoRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortLog, logChanTOC)), logCmdGetInfo}
}

// LogGetInfoResponse reports the size and layout limits of the log TOC.
type LogGetInfoResponse struct {
	Len       uint8
	CRC       uint32
	MaxPacket uint8
	MaxOps    uint8
}

// MatchLogGetInfoResponse reports whether the ack payload is a log TOC info
// response.
func MatchLogGetInfoResponse(data []byte) bool {
	return len(data) >= 2 &&
		Header(data[0]).Matches(NewHeader(PortLog, logChanTOC)) &&
		data[1] == logCmdGetInfo
}

// ParseLogGetInfoResponse decodes a log TOC info response.
func ParseLogGetInfoResponse(data []byte) (*LogGetInfoResponse, error) {
	if !MatchLogGetInfoResponse(data) || len(data) < 9 {
		return nil, fmt.Errorf("not a log TOC info response (%d bytes)", len(data))
	}
	return &LogGetInfoResponse{
		Len:       data[2],
		CRC:       binary.LittleEndian.Uint32(data[3:7]),
		MaxPacket: data[7],
		MaxOps:    data[8],
	}, nil
}

// LogGetItemRequest asks for one log TOC entry by id.
type LogGetItemRequest struct {
	ID uint8
}

// Bytes returns the wire form of the request
func (r LogGetItemRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortLog, logChanTOC)), logCmdGetItem, r.ID}
}

// LogGetItemResponse is one log TOC entry: id, type and the group and name
// strings packed as consecutive NUL-terminated strings.
type LogGetItemResponse struct {
	ID    uint8
	Type  LogType
	Group string
	Name  string
}

// MatchLogGetItemResponse reports whether the ack payload is a log TOC item
// response.
func MatchLogGetItemResponse(data []byte) bool {
	return len(data) >= 2 &&
		Header(data[0]).Matches(NewHeader(PortLog, logChanTOC)) &&
		data[1] == logCmdGetItem
}

// ParseLogGetItemResponse decodes a log TOC item response.
func ParseLogGetItemResponse(data []byte) (*LogGetItemResponse, error) {
	if !MatchLogGetItemResponse(data) || len(data) < 4 {
		return nil, fmt.Errorf("not a log TOC item response (%d bytes)", len(data))
	}
	group, name := splitGroupName(data[4:])
	return &LogGetItemResponse{
		ID:    data[2],
		Type:  LogType(data[3]),
		Group: group,
		Name:  name,
	}, nil
}

// LogBlockItem is one variable reference inside a log block definition.
type LogBlockItem struct {
	Type LogType
	ID   uint8
}

// LogCreateBlockRequest defines a new log block on the vehicle.
type LogCreateBlockRequest struct {
	BlockID uint8
	Items   []LogBlockItem
}

// Bytes returns the wire form of the request
func (r LogCreateBlockRequest) Bytes() []byte {
	out := make([]byte, 3, 3+2*len(r.Items))
	out[0] = byte(NewHeader(PortLog, logChanControl))
	out[1] = logCtrlCreateBlock
	out[2] = r.BlockID
	for _, item := range r.Items {
		out = append(out, byte(item.Type), item.ID)
	}
	return out
}

// LogDeleteBlockRequest removes a log block from the vehicle.
type LogDeleteBlockRequest struct {
	BlockID uint8
}

// Bytes returns the wire form of the request
func (r LogDeleteBlockRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortLog, logChanControl)), logCtrlDeleteBlock, r.BlockID}
}

// LogStartBlockRequest starts periodic transmission of a log block.
// Period is in units of 10 milliseconds.
type LogStartBlockRequest struct {
	BlockID uint8
	Period  uint8
}

// Bytes returns the wire form of the request
func (r LogStartBlockRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortLog, logChanControl)), logCtrlStartBlock, r.BlockID, r.Period}
}

// LogStopBlockRequest stops periodic transmission of a log block.
type LogStopBlockRequest struct {
	BlockID uint8
}

// Bytes returns the wire form of the request
func (r LogStopBlockRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortLog, logChanControl)), logCtrlStopBlock, r.BlockID}
}

// LogResetRequest deletes all log blocks on the vehicle.
type LogResetRequest struct{}

// Bytes returns the wire form of the request
func (LogResetRequest) Bytes() []byte {
	return []byte{byte(NewHeader(PortLog, logChanControl)), logCtrlReset}
}

// LogControlResponse acknowledges a log control command.
type LogControlResponse struct {
	Command uint8
	BlockID uint8
	Result  uint8
}

// MatchLogControlResponse reports whether the ack payload is a log control
// response.
func MatchLogControlResponse(data []byte) bool {
	return len(data) >= 1 && Header(data[0]).Matches(NewHeader(PortLog, logChanControl))
}

// ParseLogControlResponse decodes a log control response.
func ParseLogControlResponse(data []byte) (*LogControlResponse, error) {
	if !MatchLogControlResponse(data) || len(data) < 4 {
		return nil, fmt.Errorf("not a log control response (%d bytes)", len(data))
	}
	return &LogControlResponse{Command: data[1], BlockID: data[2], Result: data[3]}, nil
}

// LogDataResponse is one unsolicited log sample: block id, 3-byte vehicle
// timestamp in milliseconds, and the variables packed per their TOC types.
type LogDataResponse struct {
	BlockID     uint8
	TimestampMs uint32
	Data        []byte
}

// MatchLogDataResponse reports whether the ack payload is a log data packet.
func MatchLogDataResponse(data []byte) bool {
	return len(data) >= 1 && Header(data[0]).Matches(NewHeader(PortLog, logChanData))
}

// ParseLogDataResponse decodes a log data packet.
func ParseLogDataResponse(data []byte) (*LogDataResponse, error) {
	if !MatchLogDataResponse(data) || len(data) < 5 {
		return nil, fmt.Errorf("not a log data packet (%d bytes)", len(data))
	}
	ts := uint32(data[2]) | uint32(data[3])<<8 | uint32(data[4])<<16
	return &LogDataResponse{
		BlockID:     data[1],
		TimestampMs: ts,
		Data:        data[5:],
	}, nil
}

// DecodeLogValue decodes one variable of the given type from the front of
// data, returning the value as float64 and the remaining bytes.
func DecodeLogValue(t LogType, data []byte) (float64, []byte, error) {
	size := t.Size()
	if size == 0 {
		return 0, data, fmt.Errorf("unknown log type %d", t)
	}
	if len(data) < size {
		return 0, data, fmt.Errorf("short log value: need %d bytes, have %d", size, len(data))
	}
	var v float64
	switch t {
	case LogTypeUint8:
		v = float64(data[0])
	case LogTypeInt8:
		v = float64(int8(data[0]))
	case LogTypeUint16:
		v = float64(binary.LittleEndian.Uint16(data))
	case LogTypeInt16:
		v = float64(int16(binary.LittleEndian.Uint16(data)))
	case LogTypeUint32:
		v = float64(binary.LittleEndian.Uint32(data))
	case LogTypeInt32:
		v = float64(int32(binary.LittleEndian.Uint32(data)))
	case LogTypeFloat:
		v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	}
	return v, data[size:], nil
}

// splitGroupName splits two consecutive NUL-terminated strings out of a
// packed text field.
func splitGroupName(text []byte) (group, name string) {
	i := indexNul(text)
	group = string(text[:i])
	rest := text[min(i+1, len(text)):]
	j := indexNul(rest)
	name = string(rest[:j])
	return group, name
}

func indexNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}
