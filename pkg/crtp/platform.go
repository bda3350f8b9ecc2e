package crtp

import "fmt"

// PlatformRSSIAck is the payload the radio firmware substitutes for an empty
// downlink queue, carrying the received signal strength of the last packet.
type PlatformRSSIAck struct {
	RSSI uint8
}

// MatchPlatformRSSIAck reports whether the ack payload is an RSSI ack.
func MatchPlatformRSSIAck(data []byte) bool {
	return len(data) >= 3 && data[0] == HeaderEmpty1
}

// ParsePlatformRSSIAck decodes an RSSI ack.
func ParsePlatformRSSIAck(data []byte) (*PlatformRSSIAck, error) {
	if !MatchPlatformRSSIAck(data) || len(data) < 3 {
		return nil, fmt.Errorf("not an RSSI ack (%d bytes)", len(data))
	}
	return &PlatformRSSIAck{RSSI: data[2]}, nil
}
