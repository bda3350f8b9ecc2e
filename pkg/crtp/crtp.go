// Package crtp implements the Crazy RealTime Protocol packet layer: the
// one-byte header shared by every packet and the fixed binary layouts of the
// per-subsystem request/response payloads.
package crtp

import "fmt"

// Port is the 4-bit CRTP port selecting the vehicle subsystem.
type Port byte

// CRTP ports
const (
	PortConsole    Port = 0x00
	PortParam      Port = 0x02
	PortSetpoint   Port = 0x03
	PortMem        Port = 0x04
	PortLog        Port = 0x05
	PortPosition   Port = 0x06
	PortTrajectory Port = 0x08
	PortPlatform   Port = 0x0D
	PortLink       Port = 0x0F
)

// Pseudo-headers reported by the vehicle when its downlink queue is empty.
// These are not real CRTP ports (ports are 4 bit).
const (
	HeaderEmpty1 byte = 0xF3
	HeaderEmpty2 byte = 0xF7
)

// String returns string representation of Port
func (p Port) String() string {
	switch p {
	case PortConsole:
		return "Console"
	case PortParam:
		return "Param"
	case PortSetpoint:
		return "Setpoint"
	case PortMem:
		return "Mem"
	case PortLog:
		return "Log"
	case PortPosition:
		return "Position"
	case PortTrajectory:
		return "Trajectory"
	case PortPlatform:
		return "Platform"
	case PortLink:
		return "Link"
	default:
		return fmt.Sprintf("Port(0x%02X)", byte(p))
	}
}

// Channel is the 2-bit sub-channel within a port.
type Channel byte

// Header is the one-byte CRTP header: port (4 bits), link bits (2 bits,
// always set on the wire) and channel (2 bits).
type Header byte

// NewHeader builds a header byte for the given port and channel.
func NewHeader(port Port, channel Channel) Header {
	const link = 3
	return Header(((byte(port) & 0x0F) << 4) |
		((link & 0x03) << 2) |
		(byte(channel) & 0x03))
}

// Port returns the port nibble of the header.
func (h Header) Port() Port {
	return Port((byte(h) >> 4) & 0x0F)
}

// Channel returns the channel bits of the header.
func (h Header) Channel() Channel {
	return Channel(byte(h) & 0x03)
}

// Matches reports whether two headers address the same port and channel.
// The link bits are ignored: the host sets both on outbound packets while
// vehicle firmware leaves them cleared in response headers, so a full-byte
// comparison would never pair a response with its request.
func (h Header) Matches(o Header) bool {
	const portChannel = 0xF3
	return byte(h)&portChannel == byte(o)&portChannel
}

// String returns string representation of Header
func (h Header) String() string {
	return fmt.Sprintf("%s/%d", h.Port(), h.Channel())
}

// MaxPayload is the maximum CRTP payload size in bytes. A radio frame is at
// most 32 bytes, one of which is the header.
const MaxPayload = 31

// Packet is one CRTP packet: header byte plus bounded payload. Packets are
// built by the caller, consumed by the transport and never retained.
type Packet struct {
	Header Header
	Data   []byte
}

// Bytes returns the wire form of the packet (header followed by payload).
func (p Packet) Bytes() []byte {
	out := make([]byte, 1+len(p.Data))
	out[0] = byte(p.Header)
	copy(out[1:], p.Data)
	return out
}

// Request is an outbound CRTP request. Bytes returns the full wire form
// including the header byte.
type Request interface {
	Bytes() []byte
}

// Ping is the idle packet. Sending it gives the vehicle a transmission slot
// for any data it generated asynchronously.
var Ping = []byte{0xFF}

// Reboot command sequences, sent on the link port.
// See https://forum.bitcraze.io/viewtopic.php?f=9&t=1488
var (
	RebootInit         = []byte{0xFF, 0xFE, 0xFF}
	RebootToFirmware   = []byte{0xFF, 0xFE, 0xF0, 0x01}
	RebootToBootloader = []byte{0xFF, 0xFE, 0xF0, 0x00}
)
