package crazyflie

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
)

var (
	// ErrUnknownLogVariable indicates a log block referencing a variable
	// absent from the discovered log TOC.
	ErrUnknownLogVariable = errors.New("unknown log variable")

	// ErrNoFreeLogBlock indicates that all 256 block ids are in use.
	ErrNoFreeLogBlock = errors.New("no free log block id")
)

// LogBlock is a caller-defined set of logging variables sampled together and
// reported via periodic unsolicited acknowledgements. The callback stays
// registered until Delete.
type LogBlock struct {
	cf       *Crazyflie
	id       uint8
	entries  []LogTOCEntry
	callback LogDataCallback
}

// AddLogBlock registers a log block over the named variables
// ("group.name"), assigns it the first free block id and creates it on the
// vehicle. RequestLogTOC must have completed first.
func (cf *Crazyflie) AddLogBlock(ctx context.Context, variables []string, cb LogDataCallback) (*LogBlock, error) {
	entries := make([]LogTOCEntry, 0, len(variables))
	items := make([]crtp.LogBlockItem, 0, len(variables))
	for _, v := range variables {
		group, name, ok := strings.Cut(v, ".")
		if !ok {
			return nil, fmt.Errorf("%w: %q (want group.name)", ErrUnknownLogVariable, v)
		}
		entry, ok := cf.LogTOCEntryByName(group, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownLogVariable, group, name)
		}
		entries = append(entries, entry)
		items = append(items, crtp.LogBlockItem{Type: entry.Type, ID: entry.ID})
	}

	cf.cbMu.Lock()
	id, ok := cf.freeBlockID()
	if !ok {
		cf.cbMu.Unlock()
		return nil, ErrNoFreeLogBlock
	}
	block := &LogBlock{cf: cf, id: id, entries: entries, callback: cb}
	cf.blocks[id] = block
	cf.cbMu.Unlock()

	cf.startBatch()
	cf.addRequest(crtp.LogCreateBlockRequest{BlockID: id, Items: items}, 2)
	if err := cf.runBatch(ctx); err != nil {
		cf.cbMu.Lock()
		delete(cf.blocks, id)
		cf.cbMu.Unlock()
		return nil, fmt.Errorf("creating log block %d: %w", id, err)
	}
	return block, nil
}

// freeBlockID returns the first unused block id. Caller holds cbMu.
func (cf *Crazyflie) freeBlockID() (uint8, bool) {
	for id := 0; id < 256; id++ {
		if _, used := cf.blocks[uint8(id)]; !used {
			return uint8(id), true
		}
	}
	return 0, false
}

// ID returns the engine-assigned block id.
func (b *LogBlock) ID() uint8 {
	return b.id
}

// Start activates periodic transmission of the block. The period is rounded
// to the vehicle's 10ms units.
func (b *LogBlock) Start(ctx context.Context, period time.Duration) error {
	p := period / (10 * time.Millisecond)
	if p < 1 {
		p = 1
	} else if p > 255 {
		p = 255
	}
	b.cf.startBatch()
	b.cf.addRequest(crtp.LogStartBlockRequest{BlockID: b.id, Period: uint8(p)}, 2)
	if err := b.cf.runBatch(ctx); err != nil {
		return fmt.Errorf("starting log block %d: %w", b.id, err)
	}
	return nil
}

// Stop deactivates periodic transmission of the block. The block stays
// registered and can be started again.
func (b *LogBlock) Stop(ctx context.Context) error {
	b.cf.startBatch()
	b.cf.addRequest(crtp.LogStopBlockRequest{BlockID: b.id}, 2)
	if err := b.cf.runBatch(ctx); err != nil {
		return fmt.Errorf("stopping log block %d: %w", b.id, err)
	}
	return nil
}

// Delete removes the block from the vehicle and unregisters its callback.
func (b *LogBlock) Delete(ctx context.Context) error {
	b.cf.startBatch()
	b.cf.addRequest(crtp.LogDeleteBlockRequest{BlockID: b.id}, 2)
	err := b.cf.runBatch(ctx)

	b.cf.cbMu.Lock()
	delete(b.cf.blocks, b.id)
	b.cf.cbMu.Unlock()

	if err != nil {
		return fmt.Errorf("deleting log block %d: %w", b.id, err)
	}
	return nil
}

// handleData decodes one log data packet against the block's variable types
// and invokes the callback.
func (b *LogBlock) handleData(data *crtp.LogDataResponse) {
	values := make([]float64, 0, len(b.entries))
	rest := data.Data
	for _, entry := range b.entries {
		v, r, err := crtp.DecodeLogValue(entry.Type, rest)
		if err != nil {
			b.cf.logger.Warn("Crazyflie %s: log block %d: %v", b.cf.addr, b.id, err)
			return
		}
		values = append(values, v)
		rest = r
	}
	if b.callback != nil {
		b.callback(data.TimestampMs, values)
	}
}

// LogReset deletes all log blocks on the vehicle. Locally registered
// callbacks are dropped as well.
func (cf *Crazyflie) LogReset(ctx context.Context) error {
	cf.startBatch()
	cf.addRequest(crtp.LogResetRequest{}, 1)
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("log reset: %w", err)
	}

	cf.cbMu.Lock()
	cf.blocks = make(map[uint8]*LogBlock)
	cf.cbMu.Unlock()
	return nil
}
