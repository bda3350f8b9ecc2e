package crazyflie

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
)

// pingBurst is how many idle pings are sent between retry sweeps so the
// vehicle can drain data it generated while requests wait.
const pingBurst = 10

// batchRequest is one outbound request in a batch: the raw packet, how many
// payload bytes after the header must match the ack, and the captured ack
// once matched.
type batchRequest struct {
	data     []byte
	matchLen int
	finished bool
	ack      link.Ack
}

// startBatch clears all pending batch state. Results from a previous batch
// are discarded.
func (cf *Crazyflie) startBatch() {
	cf.batch = cf.batch[:0]
	cf.numFinished = 0
}

// addRequest appends one request to the pending batch. matchLen is the
// number of payload bytes after the header that an ack must echo to claim
// this request.
func (cf *Crazyflie) addRequest(req crtp.Request, matchLen int) {
	cf.batch = append(cf.batch, &batchRequest{
		data:     req.Bytes(),
		matchLen: matchLen,
	})
}

// runBatch drives the pending batch to completion: every unfinished request
// is retransmitted once per sweep, followed by a burst of idle pings, until
// every request has captured its ack or the deadline elapses. The link is
// strictly request/response, so progress requires continuous re-polling;
// the pings exist purely to give the vehicle transmission slots for
// asynchronous data between explicit requests.
func (cf *Crazyflie) runBatch(ctx context.Context) error {
	cf.inBatch.Store(true)
	defer cf.inBatch.Store(false)

	start := time.Now()
	timeout := cf.baseTimeout + cf.perRequestTimeout*time.Duration(len(cf.batch))

	for cf.numFinished < len(cf.batch) {
		for _, req := range cf.batch {
			if req.finished {
				continue
			}
			ack, err := cf.send(ctx, req.data)
			if err != nil {
				return err
			}
			cf.handleBatchAck(ack)

			if time.Since(start) > timeout {
				return fmt.Errorf("%w after %v (%d/%d acked)",
					ErrBatchTimeout, timeout, cf.numFinished, len(cf.batch))
			}
		}

		for i := 0; i < pingBurst && cf.numFinished < len(cf.batch); i++ {
			ack, err := cf.send(ctx, crtp.Ping)
			if err != nil {
				return err
			}
			cf.handleBatchAck(ack)

			if time.Since(start) > timeout {
				return fmt.Errorf("%w after %v (%d/%d acked)",
					ErrBatchTimeout, timeout, cf.numFinished, len(cf.batch))
			}
		}
	}
	return nil
}

// handleBatchAck tries to claim an acknowledgement for a pending request:
// first match wins, by header port/channel identity plus prefix-byte
// equality over the request's match length. Unclaimed acks go to the generic dispatcher.
// Matching deliberately compares only the outbound prefix bytes, so two
// in-flight requests sharing their first matchLen bytes could be confused;
// call sites choose match lengths that keep requests distinguishable.
func (cf *Crazyflie) handleBatchAck(ack link.Ack) {
	if !ack.Ack {
		return
	}
	if len(ack.Data) >= 1 {
		for _, req := range cf.batch {
			if req.finished {
				continue
			}
			if !crtp.Header(ack.Data[0]).Matches(crtp.Header(req.data[0])) {
				continue
			}
			if len(ack.Data) < 1+req.matchLen || len(req.data) < 1+req.matchLen {
				continue
			}
			if !bytes.Equal(ack.Data[1:1+req.matchLen], req.data[1:1+req.matchLen]) {
				continue
			}
			req.ack = ack
			req.finished = true
			cf.numFinished++
			return
		}
	}
	cf.dispatchAck(ack.Data)
}

// BatchInFlight reports whether a request batch is currently being driven
// on this engine. The keepalive loop checks it to avoid draining acks that
// belong to pending batch requests.
func (cf *Crazyflie) BatchInFlight() bool {
	return cf.inBatch.Load()
}

// result returns the captured ack payload of the i-th request. Valid only
// after runBatch returned nil.
func (cf *Crazyflie) result(i int) []byte {
	return cf.batch[i].ack.Data
}
