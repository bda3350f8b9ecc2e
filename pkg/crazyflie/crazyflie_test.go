package crazyflie

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
)

type fakeLogVar struct {
	group string
	name  string
	typ   crtp.LogType
}

type fakeParam struct {
	group    string
	name     string
	typ      crtp.ParamType
	readonly bool
	value    []byte
}

// fakeVehicle simulates the firmware side of the link: every transmission is
// answered with the front of a downlink queue, and recognized requests
// enqueue their responses. Response headers carry cleared link bits, as the
// vehicle firmware builds them. An empty queue yields an RSSI ack, like the
// radio firmware does.
type fakeVehicle struct {
	mu     sync.Mutex
	queue  [][]byte
	logTOC []fakeLogVar
	params []fakeParam

	// mute suppresses responses so batches must time out
	mute bool
	// failFirst makes the first n transmissions return no ack
	failFirst int

	trajAdds [][]byte
	sent     int
}

func (f *fakeVehicle) push(data []byte) {
	f.mu.Lock()
	f.queue = append(f.queue, data)
	f.mu.Unlock()
}

func (f *fakeVehicle) Send(ctx context.Context, data []byte) (link.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent++
	if f.failFirst > 0 {
		f.failFirst--
		return link.Ack{}, nil
	}

	if !f.mute {
		if resp := f.respond(data); resp != nil {
			f.queue = append(f.queue, resp)
		}
	}

	if len(f.queue) == 0 {
		return link.Ack{Ack: true, Data: []byte{crtp.HeaderEmpty1, 0x01, 42}}, nil
	}
	head := f.queue[0]
	f.queue = f.queue[1:]
	return link.Ack{Ack: true, Data: head}, nil
}

func (f *fakeVehicle) SendNoAck(ctx context.Context, data []byte) error { return nil }
func (f *fakeVehicle) Close() error                                     { return nil }

// respond builds the response the firmware would enqueue for a request.
// Caller holds mu.
func (f *fakeVehicle) respond(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	switch {
	case data[0] == 0xFF:
		return nil

	case data[0] == 0x5C && len(data) >= 2 && data[1] == 0x01: // log info
		out := []byte{0x50, 0x01, uint8(len(f.logTOC)), 0, 0, 0, 0, 26, 8}
		binary.LittleEndian.PutUint32(out[3:], 0xCAFEBABE)
		return out

	case data[0] == 0x5C && len(data) >= 3 && data[1] == 0x00: // log item
		id := data[2]
		if int(id) >= len(f.logTOC) {
			return nil
		}
		v := f.logTOC[id]
		out := []byte{0x50, 0x00, id, byte(v.typ)}
		out = append(out, v.group...)
		out = append(out, 0)
		out = append(out, v.name...)
		out = append(out, 0)
		return out

	case data[0] == 0x5D && len(data) >= 3: // log control
		return []byte{0x51, data[1], data[2], 0}

	case data[0] == 0x5D && len(data) == 2: // log reset
		return []byte{0x51, data[1], 0, 0}

	case data[0] == 0x2C && len(data) >= 2 && data[1] == 0x01: // param info
		out := []byte{0x20, 0x01, uint8(len(f.params)), 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(out[3:], 0xDEADBEEF)
		return out

	case data[0] == 0x2C && len(data) >= 3 && data[1] == 0x00: // param item
		id := data[2]
		if int(id) >= len(f.params) {
			return nil
		}
		p := f.params[id]
		typeByte := byte(p.typ)
		if p.readonly {
			typeByte |= 0x40
		}
		out := []byte{0x20, 0x00, id, typeByte}
		out = append(out, p.group...)
		out = append(out, 0)
		out = append(out, p.name...)
		out = append(out, 0)
		return out

	case data[0] == 0x2D && len(data) >= 2: // param read
		id := data[1]
		if int(id) >= len(f.params) {
			return nil
		}
		return append([]byte{0x21, id}, f.params[id].value...)

	case data[0] == 0x2E && len(data) >= 2: // param write
		id := data[1]
		if int(id) < len(f.params) {
			f.params[id].value = append([]byte(nil), data[2:]...)
		}
		return []byte{0x22, id}

	case data[0] == 0x8C && len(data) >= 2: // trajectory
		if data[1] == 0x01 { // add
			f.trajAdds = append(f.trajAdds, append([]byte(nil), data...))
			return []byte{0x80, 0x01, data[2], data[3], 0}
		}
		return []byte{0x80, data[1], 0}
	}
	return nil
}

func newTestCrazyflie(t *testing.T, fv *fakeVehicle) *Crazyflie {
	t.Helper()
	pool := link.NewPoolWithOpener(func(addr link.Address) (link.Transport, error) {
		return fv, nil
	}, nil)
	t.Cleanup(func() { pool.Close() })

	cf, err := New(pool, "radio://0/80/2M/E7E7E7E701", Config{
		BaseTimeout:       200 * time.Millisecond,
		PerRequestTimeout: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return cf
}

// TestRequestLogTOC tests two-phase log TOC discovery
func TestRequestLogTOC(t *testing.T) {
	fv := &fakeVehicle{logTOC: []fakeLogVar{
		{group: "stab", name: "roll", typ: crtp.LogTypeFloat},
		{group: "stab", name: "pitch", typ: crtp.LogTypeFloat},
		{group: "pm", name: "vbat", typ: crtp.LogTypeUint16},
	}}
	cf := newTestCrazyflie(t, fv)

	if err := cf.RequestLogTOC(context.Background()); err != nil {
		t.Fatalf("RequestLogTOC() error = %v", err)
	}

	toc := cf.LogTOC()
	if len(toc) != 3 {
		t.Fatalf("LogTOC() has %d entries, want 3", len(toc))
	}
	for i, e := range toc {
		if int(e.ID) != i {
			t.Errorf("entry %d has id %d", i, e.ID)
		}
	}
	entry, ok := cf.LogTOCEntryByName("pm", "vbat")
	if !ok {
		t.Fatal("pm.vbat not found")
	}
	if entry.ID != 2 || entry.Type != crtp.LogTypeUint16 {
		t.Errorf("pm.vbat = %+v, want id 2 uint16", entry)
	}
}

// TestRequestLogTOCDelayedAcks tests that discovery survives acks arriving
// on later transmissions than the requests they answer
func TestRequestLogTOCDelayedAcks(t *testing.T) {
	fv := &fakeVehicle{logTOC: []fakeLogVar{
		{group: "g", name: "a", typ: crtp.LogTypeUint8},
		{group: "g", name: "b", typ: crtp.LogTypeInt32},
	}}
	// Stale downlink data shifts every ack behind the request it answers.
	fv.push([]byte{crtp.HeaderEmpty1, 0x01, 60})
	fv.push([]byte{crtp.HeaderEmpty1, 0x01, 61})
	cf := newTestCrazyflie(t, fv)

	if err := cf.RequestLogTOC(context.Background()); err != nil {
		t.Fatalf("RequestLogTOC() error = %v", err)
	}
	if len(cf.LogTOC()) != 2 {
		t.Fatalf("LogTOC() has %d entries, want 2", len(cf.LogTOC()))
	}
	if e := cf.LogTOC()[1]; e.Name != "b" || e.Type != crtp.LogTypeInt32 {
		t.Errorf("entry 1 = %+v, want g.b int32", e)
	}
}

// TestBatchTimeout tests that a silent vehicle fails the batch without
// committing partial discovery state
func TestBatchTimeout(t *testing.T) {
	fv := &fakeVehicle{mute: true}
	cf := newTestCrazyflie(t, fv)

	start := time.Now()
	err := cf.RequestLogTOC(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrBatchTimeout) {
		t.Fatalf("RequestLogTOC() error = %v, want ErrBatchTimeout", err)
	}
	// Deadline for one request: base + 1×per-request.
	want := 200*time.Millisecond + 5*time.Millisecond
	if elapsed < want {
		t.Errorf("returned after %v, before the %v deadline", elapsed, want)
	}
	if elapsed > want+500*time.Millisecond {
		t.Errorf("returned after %v, long past the %v deadline", elapsed, want)
	}
	if cf.LogTOC() != nil {
		t.Errorf("LogTOC() = %v after timeout, want nil", cf.LogTOC())
	}
}

// TestBatchAckClaiming tests ack claiming by header identity and outbound
// prefix bytes: first match wins on a shared prefix, and unclaimed acks go
// to the dispatcher
func TestBatchAckClaiming(t *testing.T) {
	fv := &fakeVehicle{}
	cf := newTestCrazyflie(t, fv)

	t.Run("firmware header claims request", func(t *testing.T) {
		cf.startBatch()
		cf.addRequest(crtp.LogGetInfoRequest{}, 1)
		cf.handleBatchAck(link.Ack{Ack: true, Data: []byte{0x50, 0x01, 3, 0, 0, 0, 0, 26, 8}})
		if cf.numFinished != 1 {
			t.Fatalf("numFinished = %d, want 1", cf.numFinished)
		}
	})

	t.Run("first match wins on shared prefix", func(t *testing.T) {
		cf.startBatch()
		cf.addRequest(crtp.LogGetItemRequest{ID: 4}, 2)
		cf.addRequest(crtp.LogGetItemRequest{ID: 4}, 2)
		ack := link.Ack{Ack: true, Data: []byte{0x50, 0x00, 4, byte(crtp.LogTypeFloat), 'g', 0, 'n', 0}}
		cf.handleBatchAck(ack)
		if !cf.batch[0].finished || cf.batch[1].finished {
			t.Fatalf("finished = [%v %v], want first only", cf.batch[0].finished, cf.batch[1].finished)
		}
		cf.handleBatchAck(ack)
		if cf.numFinished != 2 {
			t.Fatalf("numFinished = %d, want 2", cf.numFinished)
		}
	})

	t.Run("unclaimed acks fall through", func(t *testing.T) {
		var console []string
		cf.SetConsoleCallback(func(text string) { console = append(console, text) })

		cf.startBatch()
		cf.addRequest(crtp.LogGetItemRequest{ID: 4}, 2)

		// Same port and channel, different item id: stays pending.
		cf.handleBatchAck(link.Ack{Ack: true, Data: []byte{0x50, 0x00, 5, 1, 'g', 0, 'n', 0}})
		if cf.numFinished != 0 {
			t.Fatalf("numFinished = %d, want 0", cf.numFinished)
		}

		// Different port: routed to the dispatcher instead.
		cf.handleBatchAck(link.Ack{Ack: true, Data: []byte{0x00, 'h', 'i'}})
		if cf.numFinished != 0 {
			t.Fatalf("numFinished = %d, want 0", cf.numFinished)
		}
		if len(console) != 1 || console[0] != "hi" {
			t.Errorf("console = %v, want [hi]", console)
		}
	})
}

// TestRequestParamTOC tests parameter discovery including the value cache
func TestRequestParamTOC(t *testing.T) {
	fv := &fakeVehicle{params: []fakeParam{
		{group: "pid", name: "kp", typ: crtp.ParamTypeFloat, value: encodeFloat(2.5)},
		{group: "sys", name: "id", typ: crtp.ParamTypeUint8, readonly: true, value: []byte{9}},
	}}
	cf := newTestCrazyflie(t, fv)

	if err := cf.RequestParamTOC(context.Background()); err != nil {
		t.Fatalf("RequestParamTOC() error = %v", err)
	}

	toc := cf.ParamTOC()
	if len(toc) != 2 {
		t.Fatalf("ParamTOC() has %d entries, want 2", len(toc))
	}
	if !toc[1].ReadOnly {
		t.Error("sys.id not marked read-only")
	}

	v, ok := cf.Param(0)
	if !ok || v.Type != crtp.ParamTypeFloat || v.ValueF32 != 2.5 {
		t.Errorf("Param(0) = %+v, %v, want float 2.5", v, ok)
	}
	v, ok = cf.Param(1)
	if !ok || v.ValueU8 != 9 {
		t.Errorf("Param(1) = %+v, %v, want uint8 9", v, ok)
	}
}

// TestSetParam tests writes for each scalar type and the cache update rule
func TestSetParam(t *testing.T) {
	fv := &fakeVehicle{params: []fakeParam{
		{group: "p", name: "u8", typ: crtp.ParamTypeUint8, value: []byte{0}},
		{group: "p", name: "i16", typ: crtp.ParamTypeInt16, value: []byte{0, 0}},
		{group: "p", name: "f", typ: crtp.ParamTypeFloat, value: encodeFloat(0)},
	}}
	cf := newTestCrazyflie(t, fv)
	ctx := context.Background()

	if err := cf.RequestParamTOC(ctx); err != nil {
		t.Fatalf("RequestParamTOC() error = %v", err)
	}

	tests := []struct {
		name string
		id   uint8
		v    float64
	}{
		{name: "uint8", id: 0, v: 200},
		{name: "int16", id: 1, v: -1234},
		{name: "float", id: 2, v: 0.125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cf.SetParamFloat(ctx, tt.id, tt.v); err != nil {
				t.Fatalf("SetParamFloat() error = %v", err)
			}
			got, ok := cf.Param(tt.id)
			if !ok {
				t.Fatal("value missing from cache after write")
			}
			if got.Float() != tt.v {
				t.Errorf("cached value = %v, want %v", got.Float(), tt.v)
			}
		})
	}

	// The fake stores what went over the wire; the cache must agree.
	fv.mu.Lock()
	wire := append([]byte(nil), fv.params[1].value...)
	fv.mu.Unlock()
	decoded, err := crtp.DecodeParamValue(crtp.ParamTypeInt16, wire)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.ValueI16 != -1234 {
		t.Errorf("wire value = %d, want -1234", decoded.ValueI16)
	}

	if err := cf.SetParamFloat(ctx, 77, 1); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("SetParamFloat(77) error = %v, want ErrUnknownParameter", err)
	}
}

// TestTrajectoryAddChunking tests the fixed segment chunk layout and id
// handling
func TestTrajectoryAddChunking(t *testing.T) {
	fv := &fakeVehicle{}
	cf := newTestCrazyflie(t, fv)
	ctx := context.Background()

	seg := TrajectorySegment{Duration: 2}
	for i := range seg.PolyX {
		seg.PolyX[i] = float32(i)
	}

	if err := cf.UploadTrajectory(ctx, []TrajectorySegment{seg, seg}); err != nil {
		t.Fatalf("UploadTrajectory() error = %v", err)
	}

	fv.mu.Lock()
	adds := fv.trajAdds
	fv.mu.Unlock()

	if len(adds) != 12 {
		t.Fatalf("recorded %d add requests, want 12", len(adds))
	}

	wantOffsets := []byte{0, 6, 12, 18, 24, 30}
	wantSizes := []byte{6, 6, 6, 6, 6, 3}
	for seg := 0; seg < 2; seg++ {
		for i := 0; i < 6; i++ {
			req := adds[seg*6+i]
			if req[2] != byte(seg) {
				t.Errorf("segment %d chunk %d has id %d", seg, i, req[2])
			}
			if req[3] != wantOffsets[i] {
				t.Errorf("segment %d chunk %d offset = %d, want %d", seg, i, req[3], wantOffsets[i])
			}
			if req[4] != wantSizes[i] {
				t.Errorf("segment %d chunk %d size = %d, want %d", seg, i, req[4], wantSizes[i])
			}
		}
	}

	// A fresh upload resets segment numbering.
	fv.mu.Lock()
	fv.trajAdds = nil
	fv.mu.Unlock()
	if err := cf.UploadTrajectory(ctx, []TrajectorySegment{seg}); err != nil {
		t.Fatalf("UploadTrajectory() error = %v", err)
	}
	fv.mu.Lock()
	first := fv.trajAdds[0]
	fv.mu.Unlock()
	if first[2] != 0 {
		t.Errorf("first chunk after reset has id %d, want 0", first[2])
	}
}

// TestLogBlockLifecycle tests create, start, data delivery and delete
func TestLogBlockLifecycle(t *testing.T) {
	fv := &fakeVehicle{logTOC: []fakeLogVar{
		{group: "stab", name: "roll", typ: crtp.LogTypeFloat},
		{group: "pm", name: "vbat", typ: crtp.LogTypeUint16},
	}}
	cf := newTestCrazyflie(t, fv)
	ctx := context.Background()

	if err := cf.RequestLogTOC(ctx); err != nil {
		t.Fatalf("RequestLogTOC() error = %v", err)
	}

	var gotTs uint32
	var gotValues []float64
	blk, err := cf.AddLogBlock(ctx, []string{"stab.roll", "pm.vbat"}, func(ts uint32, values []float64) {
		gotTs = ts
		gotValues = append([]float64(nil), values...)
	})
	if err != nil {
		t.Fatalf("AddLogBlock() error = %v", err)
	}
	if blk.ID() != 0 {
		t.Errorf("block id = %d, want 0", blk.ID())
	}

	if err := blk.Start(ctx, 100*time.Millisecond); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Queue one sample: ts 10000, roll 1.5, vbat 3700.
	sample := []byte{0x52, 0, 0x10, 0x27, 0x00}
	sample = append(sample, encodeFloat(1.5)...)
	sample = append(sample, 0x74, 0x0E)
	fv.push(sample)

	if err := cf.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gotTs != 10000 {
		t.Errorf("timestamp = %d, want 10000", gotTs)
	}
	if len(gotValues) != 2 || gotValues[0] != 1.5 || gotValues[1] != 3700 {
		t.Errorf("values = %v, want [1.5 3700]", gotValues)
	}

	if err := blk.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := cf.AddLogBlock(ctx, []string{"stab.yaw"}, nil); !errors.Is(err, ErrUnknownLogVariable) {
		t.Errorf("unknown variable error = %v, want ErrUnknownLogVariable", err)
	}
}

// TestLinkQualityWindow tests that the quality callback fires once per
// window with the acked ratio, then resets
func TestLinkQualityWindow(t *testing.T) {
	fv := &fakeVehicle{failFirst: 10}
	cf := newTestCrazyflie(t, fv)
	ctx := context.Background()

	var samples []float64
	cf.SetLinkQualityCallback(func(q float64) {
		samples = append(samples, q)
	})

	for i := 0; i < 100; i++ {
		if err := cf.Ping(ctx); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	}
	if len(samples) != 1 {
		t.Fatalf("callback fired %d times after 100 sends, want 1", len(samples))
	}
	if samples[0] != 0.9 {
		t.Errorf("quality = %v, want 0.9", samples[0])
	}

	for i := 0; i < 100; i++ {
		if err := cf.Ping(ctx); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	}
	if len(samples) != 2 {
		t.Fatalf("callback fired %d times after 200 sends, want 2", len(samples))
	}
	if samples[1] != 1.0 {
		t.Errorf("second window quality = %v, want 1.0", samples[1])
	}
}

// recordingLogger captures warnings for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(format string, args ...interface{}) {}
func (l *recordingLogger) Info(format string, args ...interface{})  {}
func (l *recordingLogger) Error(format string, args ...interface{}) {}
func (l *recordingLogger) SetLevel(level logger.Level)              {}

func (l *recordingLogger) Warn(format string, args ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

// TestPoorLinkQualityWarning tests that a window with an acked ratio below
// 0.7 is logged as a warning
func TestPoorLinkQualityWarning(t *testing.T) {
	fv := &fakeVehicle{failFirst: 40}
	rl := &recordingLogger{}
	pool := link.NewPoolWithOpener(func(addr link.Address) (link.Transport, error) {
		return fv, nil
	}, nil)
	t.Cleanup(func() { pool.Close() })

	cf, err := New(pool, "radio://0/80/2M/E7E7E7E701", Config{
		BaseTimeout:       200 * time.Millisecond,
		PerRequestTimeout: 5 * time.Millisecond,
		Logger:            rl,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := cf.Ping(ctx); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	}
	rl.mu.Lock()
	warns := append([]string(nil), rl.warns...)
	rl.mu.Unlock()
	if len(warns) != 1 {
		t.Fatalf("warned %d times after a 0.60 window, want 1: %v", len(warns), warns)
	}
	if !strings.Contains(warns[0], "0.60") {
		t.Errorf("warning = %q, want the 0.60 ratio", warns[0])
	}

	// A healthy window stays quiet.
	for i := 0; i < 100; i++ {
		if err := cf.Ping(ctx); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	}
	rl.mu.Lock()
	n := len(rl.warns)
	rl.mu.Unlock()
	if n != 1 {
		t.Errorf("warned %d times after a healthy window, want still 1", n)
	}
}

// TestCallbacks tests console and empty-ack routing
func TestCallbacks(t *testing.T) {
	fv := &fakeVehicle{}
	cf := newTestCrazyflie(t, fv)
	ctx := context.Background()

	var console []string
	cf.SetConsoleCallback(func(text string) { console = append(console, text) })
	var rssis []uint8
	cf.SetEmptyAckCallback(func(rssi uint8) { rssis = append(rssis, rssi) })

	fv.push([]byte{0x00, 'b', 'o', 'o', 't'})
	if err := cf.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if len(console) != 1 || console[0] != "boot" {
		t.Errorf("console = %v, want [boot]", console)
	}

	// Empty queue produces an RSSI ack.
	if err := cf.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if len(rssis) != 1 || rssis[0] != 42 {
		t.Errorf("rssis = %v, want [42]", rssis)
	}
}

func encodeFloat(v float32) []byte {
	return crtp.EncodeParamValue(crtp.ParamValue{Type: crtp.ParamTypeFloat, ValueF32: v})
}
