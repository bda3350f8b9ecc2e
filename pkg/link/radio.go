package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// Crazyradio PA dongle USB identifiers
const (
	radioVendorID  = 0x1915
	radioProductID = 0x7777
)

// Crazyradio vendor control requests
const (
	radioReqSetChannel  = 0x01
	radioReqSetAddress  = 0x02
	radioReqSetDatarate = 0x03
	radioReqSetPower    = 0x04
	radioReqSetARD      = 0x05
	radioReqSetARC      = 0x06
	radioReqAckEnable   = 0x10
)

// radioPower0dBm is the highest transmit power setting.
const radioPower0dBm = 3

// ErrDeviceNotFound indicates that no device with the requested index is
// attached.
var ErrDeviceNotFound = errors.New("device not found")

// Radio drives one Crazyradio PA dongle over libusb. The dongle's channel,
// address, datarate and ack-mode are mutable shared state; Apply reconciles
// them to a client's desired configuration before each transmission.
type Radio struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
	intf   *gousb.Interface
	done   func()
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint

	// Cached dongle state, valid while the device is held exclusively.
	channel   uint8
	address   uint64
	datarate  Datarate
	ackEnable bool
}

// NewRadio opens the n-th attached Crazyradio dongle and configures it for
// unicast operation: full power, dynamic ack payloads, no hardware retries
// (the protocol engine does its own retrying).
func NewRadio(devIndex int) (*Radio, error) {
	usbCtx := gousb.NewContext()

	dev, err := openNthDevice(usbCtx, radioVendorID, radioProductID, devIndex)
	if err != nil {
		usbCtx.Close()
		return nil, fmt.Errorf("opening Crazyradio %d: %w", devIndex, err)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("detaching kernel driver: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("claiming interface: %w", err)
	}

	out, err := intf.OutEndpoint(1)
	if err == nil {
		var in *gousb.InEndpoint
		in, err = intf.InEndpoint(1)
		if err == nil {
			r := &Radio{
				usbCtx:    usbCtx,
				dev:       dev,
				intf:      intf,
				done:      done,
				out:       out,
				in:        in,
				channel:   0xFF, // force first reconcile
				ackEnable: true,
			}
			if err = r.initDongle(); err == nil {
				return r, nil
			}
		}
	}

	done()
	dev.Close()
	usbCtx.Close()
	return nil, fmt.Errorf("initializing Crazyradio %d: %w", devIndex, err)
}

func (r *Radio) initDongle() error {
	if err := r.control(radioReqSetPower, radioPower0dBm, 0, nil); err != nil {
		return err
	}
	// ARD: accept dynamic-length ack payloads up to 32 bytes
	if err := r.control(radioReqSetARD, 0x80|32, 0, nil); err != nil {
		return err
	}
	// No hardware retransmissions; the batch engine retries instead
	if err := r.control(radioReqSetARC, 0, 0, nil); err != nil {
		return err
	}
	return r.control(radioReqAckEnable, 1, 0, nil)
}

func (r *Radio) control(request uint8, value, index uint16, data []byte) error {
	_, err := r.dev.Control(
		gousb.ControlVendor|gousb.ControlDevice|gousb.ControlOut,
		request, value, index, data)
	return err
}

// Apply reconciles the dongle to the client's desired configuration. Fields
// that already match are not touched.
func (r *Radio) Apply(cfg RadioConfig) error {
	if r.channel != cfg.Channel {
		if err := r.control(radioReqSetChannel, uint16(cfg.Channel), 0, nil); err != nil {
			return fmt.Errorf("setting channel: %w", err)
		}
		r.channel = cfg.Channel
	}
	if r.address != cfg.Address {
		addr := make([]byte, 5)
		for i := 0; i < 5; i++ {
			addr[i] = byte(cfg.Address >> (8 * (4 - i)))
		}
		if err := r.control(radioReqSetAddress, 0, 0, addr); err != nil {
			return fmt.Errorf("setting address: %w", err)
		}
		r.address = cfg.Address
	}
	if r.datarate != cfg.Datarate {
		if err := r.control(radioReqSetDatarate, uint16(cfg.Datarate), 0, nil); err != nil {
			return fmt.Errorf("setting datarate: %w", err)
		}
		r.datarate = cfg.Datarate
	}
	if r.ackEnable != cfg.AckEnable {
		val := uint16(0)
		if cfg.AckEnable {
			val = 1
		}
		if err := r.control(radioReqAckEnable, val, 0, nil); err != nil {
			return fmt.Errorf("setting ack mode: %w", err)
		}
		r.ackEnable = cfg.AckEnable
	}
	return nil
}

// Send transmits one packet and reads back the dongle's status frame: one
// status byte (bit 0 = ack received) followed by the ack payload.
func (r *Radio) Send(ctx context.Context, data []byte) (Ack, error) {
	if _, err := r.out.WriteContext(ctx, data); err != nil {
		return Ack{}, fmt.Errorf("radio write: %w", err)
	}

	buf := make([]byte, 33)
	n, err := r.in.ReadContext(ctx, buf)
	if err != nil {
		return Ack{}, fmt.Errorf("radio read: %w", err)
	}
	if n < 1 {
		return Ack{}, nil
	}
	return Ack{
		Ack:  buf[0]&0x01 != 0,
		Data: buf[1:n],
	}, nil
}

// SendNoAck transmits one packet in broadcast mode. The dongle still reports
// a status byte, which is drained and discarded.
func (r *Radio) SendNoAck(ctx context.Context, data []byte) error {
	if _, err := r.out.WriteContext(ctx, data); err != nil {
		return fmt.Errorf("radio write: %w", err)
	}
	buf := make([]byte, 33)
	if _, err := r.in.ReadContext(ctx, buf); err != nil {
		return fmt.Errorf("radio read: %w", err)
	}
	return nil
}

// Close releases the dongle.
func (r *Radio) Close() error {
	r.done()
	if err := r.dev.Close(); err != nil {
		r.usbCtx.Close()
		return err
	}
	return r.usbCtx.Close()
}

// openNthDevice opens the index-th attached device matching vid/pid.
func openNthDevice(usbCtx *gousb.Context, vid, pid gousb.ID, index int) (*gousb.Device, error) {
	count := 0
	var dev *gousb.Device

	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	for _, d := range devs {
		if count == index && dev == nil {
			dev = d
		} else {
			d.Close()
		}
		count++
	}
	if err != nil && dev == nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: index %d of %d attached", ErrDeviceNotFound, index, count)
	}
	return dev, nil
}
