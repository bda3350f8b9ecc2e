package crazyflie

import (
	"context"
	"fmt"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
)

// PolyDegreeCoeffs is the number of polynomial coefficients per axis of a
// trajectory segment.
const PolyDegreeCoeffs = 8

// TrajectorySegment is one polynomial segment: a duration plus
// PolyDegreeCoeffs coefficients for each of the x, y, z and yaw axes.
type TrajectorySegment struct {
	Duration float32
	PolyX    [PolyDegreeCoeffs]float32
	PolyY    [PolyDegreeCoeffs]float32
	PolyZ    [PolyDegreeCoeffs]float32
	PolyYaw  [PolyDegreeCoeffs]float32
}

// flatten returns the segment's scalars in upload order: duration first,
// then each axis in turn.
func (s TrajectorySegment) flatten() []float32 {
	out := make([]float32, 0, 1+4*PolyDegreeCoeffs)
	out = append(out, s.Duration)
	out = append(out, s.PolyX[:]...)
	out = append(out, s.PolyY[:]...)
	out = append(out, s.PolyZ[:]...)
	out = append(out, s.PolyYaw[:]...)
	return out
}

// TrajectoryReset clears the vehicle's stored trajectory and restarts
// segment numbering at 0.
func (cf *Crazyflie) TrajectoryReset(ctx context.Context) error {
	cf.startBatch()
	cf.addRequest(crtp.TrajectoryResetRequest{}, 1)
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("trajectory reset: %w", err)
	}
	cf.lastTrajectoryID = 0
	return nil
}

// TrajectoryAdd uploads one segment under the next segment id, split into
// fixed-offset chunks sized by the packet payload limit. The segment id
// increments only when the whole batch is acknowledged; chunks committed by
// an earlier successful call are unaffected by later failures.
func (cf *Crazyflie) TrajectoryAdd(ctx context.Context, segment TrajectorySegment) error {
	values := segment.flatten()

	cf.startBatch()
	for offset := 0; offset < len(values); offset += crtp.TrajectoryValuesPerChunk {
		end := offset + crtp.TrajectoryValuesPerChunk
		if end > len(values) {
			end = len(values)
		}
		cf.addRequest(crtp.TrajectoryAddRequest{
			ID:     cf.lastTrajectoryID,
			Offset: uint8(offset),
			Size:   uint8(end - offset),
			Values: values[offset:end],
		}, 3)
	}
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("trajectory add (segment %d): %w", cf.lastTrajectoryID, err)
	}

	cf.lastTrajectoryID++
	return nil
}

// UploadTrajectory resets the stored trajectory and uploads all segments in
// order.
func (cf *Crazyflie) UploadTrajectory(ctx context.Context, segments []TrajectorySegment) error {
	if err := cf.TrajectoryReset(ctx); err != nil {
		return err
	}
	for i, segment := range segments {
		if err := cf.TrajectoryAdd(ctx, segment); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// TrajectoryStart starts playback of the stored trajectory.
func (cf *Crazyflie) TrajectoryStart(ctx context.Context) error {
	_, err := cf.sendAndDispatch(ctx, crtp.TrajectoryStartRequest{}.Bytes())
	return err
}

// SetTrajectoryState enables or disables trajectory following.
func (cf *Crazyflie) SetTrajectoryState(ctx context.Context, enabled bool) error {
	_, err := cf.sendAndDispatch(ctx, crtp.TrajectoryStateRequest{Enabled: enabled}.Bytes())
	return err
}

// Hover commands a hover setpoint.
func (cf *Crazyflie) Hover(ctx context.Context, x, y, z, yaw float32) error {
	_, err := cf.sendAndDispatch(ctx, crtp.TrajectoryHoverRequest{X: x, Y: y, Z: z, Yaw: yaw}.Bytes())
	return err
}

// Takeoff commands a takeoff to the given height over the given duration.
func (cf *Crazyflie) Takeoff(ctx context.Context, height float32, durationMs uint16) error {
	_, err := cf.sendAndDispatch(ctx, crtp.TrajectoryTakeoffRequest{Height: height, DurationMs: durationMs}.Bytes())
	return err
}

// Land commands a landing to the given height over the given duration.
func (cf *Crazyflie) Land(ctx context.Context, height float32, durationMs uint16) error {
	_, err := cf.sendAndDispatch(ctx, crtp.TrajectoryLandRequest{Height: height, DurationMs: durationMs}.Bytes())
	return err
}

// SendPose broadcasts this vehicle's externally measured pose on its own
// link in the reduced-precision bringup form.
func (cf *Crazyflie) SendPose(ctx context.Context, pose crtp.BringupPose) error {
	_, err := cf.send(ctx, crtp.BringupPoseRequest{Pose: pose}.Bytes())
	return err
}
