package crazyflie

import (
	"context"
	"fmt"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
)

// broadcastRepeat is how many times an unacknowledged fleet command is
// repeated. There are no acks on the broadcast path, so commands are sent
// redundantly to ride out packet loss.
const broadcastRepeat = 10

// Broadcaster is the unacknowledged parallel send path: it shares a radio
// handle with the per-vehicle engines but transmits with ack-mode off,
// addressing every vehicle tuned to the same channel at once.
type Broadcaster struct {
	addr   link.Address
	handle *link.Handle
	cfg    link.RadioConfig
	logger logger.Logger
}

// NewBroadcaster creates a broadcaster for the radio URI. Only radio links
// can broadcast.
func NewBroadcaster(pool *link.Pool, uri string, log logger.Logger) (*Broadcaster, error) {
	addr, err := link.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if addr.Kind != link.KindRadio {
		return nil, fmt.Errorf("%w: broadcast requires a radio link, got %s", link.ErrInvalidURI, addr.Kind)
	}

	handle, err := pool.Acquire(addr)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Broadcaster{
		addr:   addr,
		handle: handle,
		cfg: link.RadioConfig{
			Channel:  addr.Channel,
			Address:  addr.Address,
			Datarate: addr.Datarate,
		},
		logger: log,
	}, nil
}

func (b *Broadcaster) send(ctx context.Context, data []byte) error {
	return b.handle.Broadcast(ctx, &b.cfg, data)
}

func (b *Broadcaster) repeat(ctx context.Context, data []byte) error {
	for i := 0; i < broadcastRepeat; i++ {
		if err := b.send(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// TrajectoryStart starts trajectory playback on every vehicle on the
// channel.
func (b *Broadcaster) TrajectoryStart(ctx context.Context) error {
	return b.repeat(ctx, crtp.TrajectoryStartRequest{}.Bytes())
}

// Takeoff commands a fleet-wide takeoff.
func (b *Broadcaster) Takeoff(ctx context.Context, height float32, durationMs uint16) error {
	return b.repeat(ctx, crtp.TrajectoryTakeoffRequest{Height: height, DurationMs: durationMs}.Bytes())
}

// Land commands a fleet-wide landing.
func (b *Broadcaster) Land(ctx context.Context, height float32, durationMs uint16) error {
	return b.repeat(ctx, crtp.TrajectoryLandRequest{Height: height, DurationMs: durationMs}.Bytes())
}

// SendPositions broadcasts full-precision-reduced position updates, packing
// up to three vehicles per physical transmission.
func (b *Broadcaster) SendPositions(ctx context.Context, positions []crtp.ExternalPosition) error {
	for start := 0; start < len(positions); start += crtp.PositionsPerPacket {
		end := start + crtp.PositionsPerPacket
		if end > len(positions) {
			end = len(positions)
		}
		req := crtp.ExternalPositionRequest{Positions: positions[start:end]}
		if err := b.send(ctx, req.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// SendPoses broadcasts bringup-form poses, one vehicle per physical
// transmission.
func (b *Broadcaster) SendPoses(ctx context.Context, poses []crtp.BringupPose) error {
	for _, pose := range poses {
		if err := b.send(ctx, crtp.BringupPoseRequest{Pose: pose}.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
