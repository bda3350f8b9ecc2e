package link

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Crazyflie USB identifiers (tethered vehicle, not the dongle)
const (
	cfUSBVendorID  = 0x0483
	cfUSBProductID = 0x5740
)

// USB drives one Crazyflie connected directly over a USB cable. The tether
// carries raw CRTP packets over bulk endpoints; there is no radio ack
// concept, so every successfully read response counts as acked.
type USB struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
	intf   *gousb.Interface
	done   func()
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint

	readTimeout time.Duration
}

// NewUSB opens the n-th tethered Crazyflie and switches it to CRTP-over-USB
// mode.
func NewUSB(devIndex int) (*USB, error) {
	usbCtx := gousb.NewContext()

	dev, err := openNthDevice(usbCtx, cfUSBVendorID, cfUSBProductID, devIndex)
	if err != nil {
		usbCtx.Close()
		return nil, fmt.Errorf("opening Crazyflie USB %d: %w", devIndex, err)
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
			// Vendor request switching the firmware from CDC serial to
			// raw CRTP framing
			_, err = dev.Control(
				gousb.ControlVendor|gousb.ControlInterface|gousb.ControlOut,
				0x01, 0x01, 2, nil)
			if err == nil {
				return &USB{
					usbCtx:      usbCtx,
					dev:         dev,
					intf:        intf,
					done:        done,
					out:         out,
					in:          in,
					readTimeout: 20 * time.Millisecond,
				}, nil
			}
		}
	}

	done()
	dev.Close()
	usbCtx.Close()
	return nil, fmt.Errorf("initializing Crazyflie USB %d: %w", devIndex, err)
}

// Send transmits one packet and reads the next inbound packet as its ack.
// The tether is reliable, so a read timeout simply means the vehicle had
// nothing to say; that still counts as an acked, empty response.
func (u *USB) Send(ctx context.Context, data []byte) (Ack, error) {
	if _, err := u.out.WriteContext(ctx, data); err != nil {
		return Ack{}, fmt.Errorf("usb write: %w", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, u.readTimeout)
	defer cancel()

	buf := make([]byte, 64)
	n, err := u.in.ReadContext(readCtx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return Ack{}, ctx.Err()
		}
		return Ack{Ack: true}, nil
	}
	return Ack{Ack: true, Data: buf[:n]}, nil
}

// SendNoAck transmits one packet without reading a response.
func (u *USB) SendNoAck(ctx context.Context, data []byte) error {
	if _, err := u.out.WriteContext(ctx, data); err != nil {
		return fmt.Errorf("usb write: %w", err)
	}
	return nil
}

// Close releases the device.
func (u *USB) Close() error {
	u.done()
	if err := u.dev.Close(); err != nil {
		u.usbCtx.Close()
		return err
	}
	return u.usbCtx.Close()
}
