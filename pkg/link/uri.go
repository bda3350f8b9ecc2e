// Package link provides the physical CRTP transports (Crazyradio dongle, USB
// tether, UDP and QUIC bridges), URI-based link addressing and the shared
// device pool that serializes access to each physical device.
package link

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrInvalidURI indicates a link URI that matches none of the known
	// grammars.
	ErrInvalidURI = errors.New("invalid link URI")

	// ErrTooManyDevices indicates a device index beyond the configured
	// maximum device count.
	ErrTooManyDevices = errors.New("device index exceeds maximum device count")
)

// Device count limits
const (
	MaxRadios = 16
	MaxUSB    = 4
)

// DefaultAddress is the radio address used when the URI omits the address
// segment.
const DefaultAddress uint64 = 0xE7E7E7E7E7

// Datarate is the air datarate of a radio link.
type Datarate int

// Radio datarates
const (
	Datarate250K Datarate = iota
	Datarate1M
	Datarate2M
)

// String returns string representation of Datarate
func (d Datarate) String() string {
	switch d {
	case Datarate250K:
		return "250K"
	case Datarate1M:
		return "1M"
	case Datarate2M:
		return "2M"
	default:
		return "Unknown"
	}
}

// Kind identifies the transport family of a link address.
type Kind int

// Link kinds
const (
	KindRadio Kind = iota
	KindUSB
	KindUDP
	KindQUIC
)

// String returns string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindRadio:
		return "radio"
	case KindUSB:
		return "usb"
	case KindUDP:
		return "udp"
	case KindQUIC:
		return "quic"
	default:
		return "unknown"
	}
}

// Address is a parsed link URI. It is immutable after construction. Radio
// fields are only populated for KindRadio; Endpoint only for KindUDP and
// KindQUIC.
type Address struct {
	Kind     Kind
	Device   int
	Channel  uint8
	Datarate Datarate
	Address  uint64
	Endpoint string
}

var (
	radioURIRe = regexp.MustCompile(`^radio://(\d+)/(\d+)/(250K|1M|2M)(?:/([0-9a-fA-F]{1,10}))?$`)
	usbURIRe   = regexp.MustCompile(`^usb://(\d+)$`)
	netURIRe   = regexp.MustCompile(`^(udp|quic)://([^/]+:\d+)$`)
)

// ParseURI parses a link URI of one of the forms
// radio://<dev>/<channel>/<rate><K|M>[/<hex-address>], usb://<dev>,
// udp://host:port or quic://host:port.
func ParseURI(uri string) (Address, error) {
	if m := radioURIRe.FindStringSubmatch(uri); m != nil {
		return parseRadioURI(uri, m)
	}

	if m := usbURIRe.FindStringSubmatch(uri); m != nil {
		dev, err := strconv.Atoi(m[1])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
		}
		if dev >= MaxUSB {
			return Address{}, fmt.Errorf("%w: usb device %d (max %d)", ErrTooManyDevices, dev, MaxUSB)
		}
		return Address{Kind: KindUSB, Device: dev}, nil
	}

	if m := netURIRe.FindStringSubmatch(uri); m != nil {
		kind := KindUDP
		if m[1] == "quic" {
			kind = KindQUIC
		}
		return Address{Kind: kind, Endpoint: m[2]}, nil
	}

	return Address{}, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
}

func parseRadioURI(uri string, m []string) (Address, error) {
	dev, err := strconv.Atoi(m[1])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	if dev >= MaxRadios {
		return Address{}, fmt.Errorf("%w: radio device %d (max %d)", ErrTooManyDevices, dev, MaxRadios)
	}

	channel, err := strconv.Atoi(m[2])
	if err != nil || channel > 125 {
		return Address{}, fmt.Errorf("%w: bad channel in %s", ErrInvalidURI, uri)
	}

	var rate Datarate
	switch m[3] {
	case "250K":
		rate = Datarate250K
	case "1M":
		rate = Datarate1M
	case "2M":
		rate = Datarate2M
	}

	address := DefaultAddress
	if m[4] != "" {
		address, err = strconv.ParseUint(m[4], 16, 64)
		if err != nil {
			return Address{}, fmt.Errorf("%w: bad address in %s", ErrInvalidURI, uri)
		}
	}

	return Address{
		Kind:     KindRadio,
		Device:   dev,
		Channel:  uint8(channel),
		Datarate: rate,
		Address:  address,
	}, nil
}

// String returns the canonical URI form of the address.
func (a Address) String() string {
	switch a.Kind {
	case KindRadio:
		return fmt.Sprintf("radio://%d/%d/%s/%X", a.Device, a.Channel, a.Datarate, a.Address)
	case KindUSB:
		return fmt.Sprintf("usb://%d", a.Device)
	default:
		return fmt.Sprintf("%s://%s", a.Kind, a.Endpoint)
	}
}
