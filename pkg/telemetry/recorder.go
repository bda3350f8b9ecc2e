package telemetry

import (
	"context"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
)

// Recorder adapts a Store into the engine's callback signatures for one
// recording session. Callbacks run inline on the goroutine draining the
// link, so failures are logged rather than propagated.
type Recorder struct {
	store     *Store
	sessionID int64
	logger    logger.Logger
}

// NewRecorder opens a recording session for the vehicle at uri.
func NewRecorder(ctx context.Context, store *Store, uri string, log logger.Logger) (*Recorder, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	sessionID, err := store.CreateSession(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: store, sessionID: sessionID, logger: log}, nil
}

// SessionID returns the recording session id.
func (r *Recorder) SessionID() int64 {
	return r.sessionID
}

// LogCallback returns a log-data callback persisting samples of one block.
func (r *Recorder) LogCallback(blockID uint8) func(timestampMs uint32, values []float64) {
	return func(timestampMs uint32, values []float64) {
		if err := r.store.RecordSample(context.Background(), r.sessionID, blockID, timestampMs, values); err != nil {
			r.logger.Error("Recorder: sample (block %d): %v", blockID, err)
		}
	}
}

// LinkQualityCallback returns a callback persisting link-quality windows.
func (r *Recorder) LinkQualityCallback() func(quality float64) {
	return func(quality float64) {
		if err := r.store.RecordLinkQuality(context.Background(), r.sessionID, quality); err != nil {
			r.logger.Error("Recorder: link quality: %v", err)
		}
	}
}
