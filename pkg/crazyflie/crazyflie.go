// Package crazyflie implements the CRTP protocol engine for one vehicle: the
// batched request/acknowledgement matching engine, table-of-contents
// discovery for logging variables and parameters, log block handling,
// trajectory upload and the broadcast path.
package crazyflie

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
)

var (
	// ErrBatchTimeout indicates that a batch deadline elapsed before every
	// request was acknowledged.
	ErrBatchTimeout = errors.New("batch request timeout")

	// ErrUnknownParameter indicates a write to a parameter id absent from
	// the discovered TOC.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// linkQualityWindow is the number of transmissions per link-quality sample.
const linkQualityWindow = 100

// poorLinkQuality is the acked ratio below which a window is logged as a
// warning.
const poorLinkQuality = 0.7

// Default batch timeouts
const (
	DefaultBaseTimeout       = 2 * time.Second
	DefaultPerRequestTimeout = 100 * time.Millisecond
)

// LogTOCEntry describes one logging variable discovered from the vehicle.
type LogTOCEntry struct {
	ID    uint8
	Type  crtp.LogType
	Group string
	Name  string
}

// ParamTOCEntry describes one tunable parameter discovered from the vehicle.
type ParamTOCEntry struct {
	ID       uint8
	Type     crtp.ParamType
	ReadOnly bool
	Group    string
	Name     string
}

// LogDataCallback receives decoded log samples: the vehicle timestamp in
// milliseconds and one value per block variable. Invoked inline on whatever
// goroutine drove the transmission that drained the sample; it must not
// block or re-enter the same device.
type LogDataCallback func(timestampMs uint32, values []float64)

// Config configures a Crazyflie engine
type Config struct {
	BaseTimeout       time.Duration // Base batch deadline (0 = default)
	PerRequestTimeout time.Duration // Additional deadline per batch request (0 = default)
	Logger            logger.Logger
}

// Crazyflie is the protocol engine for one vehicle behind one link address.
// All operations are synchronous and driven on the calling goroutine;
// concurrency arises only from sharing the physical device, which the
// handle's lock serializes per round trip.
type Crazyflie struct {
	addr   link.Address
	handle *link.Handle
	cfg    *link.RadioConfig // nil for non-radio links
	logger logger.Logger

	baseTimeout       time.Duration
	perRequestTimeout time.Duration

	// Discovery state. Rebuilt wholesale by each discovery call.
	logTOC      []LogTOCEntry
	paramTOC    []ParamTOCEntry
	paramValues map[uint8]crtp.ParamValue

	// Batch engine state. One batch in flight at a time.
	batch       []*batchRequest
	numFinished int
	inBatch     atomic.Bool

	lastTrajectoryID uint8

	// Callback registry and link-quality counters
	cbMu          sync.Mutex
	blocks        map[uint8]*LogBlock
	consoleCb     func(string)
	linkQualityCb func(float64)
	emptyAckCb    func(rssi uint8)
	numPackets    int
	numAcks       int
}

// New creates an engine for the vehicle at the given link URI, acquiring the
// shared device handle from the pool. No packets are sent yet.
func New(pool *link.Pool, uri string, config Config) (*Crazyflie, error) {
	addr, err := link.ParseURI(uri)
	if err != nil {
		return nil, err
	}

	handle, err := pool.Acquire(addr)
	if err != nil {
		return nil, err
	}

	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}
	if config.BaseTimeout == 0 {
		config.BaseTimeout = DefaultBaseTimeout
	}
	if config.PerRequestTimeout == 0 {
		config.PerRequestTimeout = DefaultPerRequestTimeout
	}

	cf := &Crazyflie{
		addr:              addr,
		handle:            handle,
		logger:            config.Logger,
		baseTimeout:       config.BaseTimeout,
		perRequestTimeout: config.PerRequestTimeout,
		paramValues:       make(map[uint8]crtp.ParamValue),
		blocks:            make(map[uint8]*LogBlock),
	}
	if addr.Kind == link.KindRadio {
		cf.cfg = &link.RadioConfig{
			Channel:   addr.Channel,
			Address:   addr.Address,
			Datarate:  addr.Datarate,
			AckEnable: true,
		}
	}

	cf.logger.Info("Crazyflie %s created", addr)
	return cf, nil
}

// Address returns the parsed link address of the vehicle.
func (cf *Crazyflie) Address() link.Address {
	return cf.addr
}

// SetConsoleCallback registers a sink for vehicle console text. Pass nil to
// fall back to logging.
func (cf *Crazyflie) SetConsoleCallback(cb func(text string)) {
	cf.cbMu.Lock()
	cf.consoleCb = cb
	cf.cbMu.Unlock()
}

// SetLinkQualityCallback registers a callback receiving the acked/sent ratio
// of each window of 100 transmissions.
func (cf *Crazyflie) SetLinkQualityCallback(cb func(quality float64)) {
	cf.cbMu.Lock()
	cf.linkQualityCb = cb
	cf.cbMu.Unlock()
}

// SetEmptyAckCallback registers a callback receiving the RSSI of empty
// acknowledgements.
func (cf *Crazyflie) SetEmptyAckCallback(cb func(rssi uint8)) {
	cf.cbMu.Lock()
	cf.emptyAckCb = cb
	cf.cbMu.Unlock()
}

// send performs one locked round trip on the device, reconciling the radio
// configuration first, and maintains the link-quality window.
func (cf *Crazyflie) send(ctx context.Context, data []byte) (link.Ack, error) {
	ack, err := cf.handle.Exchange(ctx, cf.cfg, data)

	cf.cbMu.Lock()
	cf.numPackets++
	if err == nil && ack.Ack {
		cf.numAcks++
	}
	var qualityCb func(float64)
	var quality float64
	windowDone := false
	if cf.numPackets == linkQualityWindow {
		quality = float64(cf.numAcks) / float64(cf.numPackets)
		qualityCb = cf.linkQualityCb
		windowDone = true
		cf.numPackets = 0
		cf.numAcks = 0
	}
	cf.cbMu.Unlock()

	if windowDone && quality < poorLinkQuality {
		cf.logger.Warn("Crazyflie %s: link quality %.2f", cf.addr, quality)
	}
	if qualityCb != nil {
		qualityCb(quality)
	}
	return ack, err
}

// sendAndDispatch performs one round trip and routes the acknowledgement
// through the generic dispatcher. Used outside batches.
func (cf *Crazyflie) sendAndDispatch(ctx context.Context, data []byte) (link.Ack, error) {
	ack, err := cf.send(ctx, data)
	if err != nil {
		return ack, err
	}
	if ack.Ack {
		cf.dispatchAck(ack.Data)
	}
	return ack, nil
}

// dispatchAck classifies an acknowledgement payload that was not claimed by
// the batch engine and routes it to the registered handler. Unrecognized
// payloads are logged, never fatal.
func (cf *Crazyflie) dispatchAck(data []byte) {
	resp := crtp.Classify(data)

	switch resp.Kind {
	case crtp.ResponseEmpty:
		// nothing to do

	case crtp.ResponseConsole:
		cf.cbMu.Lock()
		cb := cf.consoleCb
		cf.cbMu.Unlock()
		if cb != nil {
			cb(resp.Console.Text)
		} else {
			cf.logger.Info("Crazyflie %s console: %s", cf.addr, resp.Console.Text)
		}

	case crtp.ResponseLogData:
		cf.cbMu.Lock()
		block := cf.blocks[resp.LogData.BlockID]
		cf.cbMu.Unlock()
		if block != nil {
			block.handleData(resp.LogData)
		} else {
			cf.logger.Info("Crazyflie %s: received unrequested data for block %d", cf.addr, resp.LogData.BlockID)
		}

	case crtp.ResponseRSSI:
		cf.cbMu.Lock()
		cb := cf.emptyAckCb
		cf.cbMu.Unlock()
		if cb != nil {
			cb(resp.RSSI.RSSI)
		}

	case crtp.ResponseLogInfo, crtp.ResponseLogItem, crtp.ResponseLogControl,
		crtp.ResponseParamInfo, crtp.ResponseParamItem, crtp.ResponseParamValue,
		crtp.ResponseParamWrite, crtp.ResponseTrajectory:
		// handled in the batch system; outside a batch these are stale

	default:
		h := crtp.Header(data[0])
		cf.logger.Warn("Crazyflie %s: unrecognized ack: port %s channel %d len %d",
			cf.addr, h.Port(), h.Channel(), len(data))
	}
}

// Ping sends one idle packet, giving the vehicle a transmission slot for
// unsolicited data.
func (cf *Crazyflie) Ping(ctx context.Context) error {
	_, err := cf.sendAndDispatch(ctx, crtp.Ping)
	return err
}

// Reboot restarts the vehicle into firmware.
func (cf *Crazyflie) Reboot(ctx context.Context) error {
	if err := cf.sendUntilAcked(ctx, crtp.RebootInit); err != nil {
		return err
	}
	return cf.sendUntilAcked(ctx, crtp.RebootToFirmware)
}

// RebootToBootloader restarts the vehicle into its bootloader.
func (cf *Crazyflie) RebootToBootloader(ctx context.Context) error {
	if err := cf.sendUntilAcked(ctx, crtp.RebootInit); err != nil {
		return err
	}
	return cf.sendUntilAcked(ctx, crtp.RebootToBootloader)
}

// sendUntilAcked repeats a transmission until the vehicle acknowledges it or
// the context is cancelled.
func (cf *Crazyflie) sendUntilAcked(ctx context.Context, data []byte) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ack, err := cf.send(ctx, data)
		if err != nil {
			return err
		}
		if ack.Ack {
			return nil
		}
	}
}
