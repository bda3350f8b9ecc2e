package crazyflie

import (
	"context"
	"testing"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
)

// TestManagerRegistry tests add, get, duplicate rejection and removal
func TestManagerRegistry(t *testing.T) {
	pool := link.NewPoolWithOpener(func(addr link.Address) (link.Transport, error) {
		return &fakeVehicle{}, nil
	}, nil)
	defer pool.Close()

	m := NewManager(pool, nil)
	defer m.Shutdown()

	cf, err := m.Add("radio://0/80/2M/E7E7E7E701", Config{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := m.Add("radio://0/80/2M/E7E7E7E701", Config{}); err == nil {
		t.Error("duplicate Add() succeeded, want error")
	}
	if _, err := m.Add("not-a-uri", Config{}); err == nil {
		t.Error("Add() with bad URI succeeded, want error")
	}

	got, ok := m.Get("radio://0/80/2M/E7E7E7E701")
	if !ok || got != cf {
		t.Errorf("Get() = %v, %v, want registered engine", got, ok)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}

	m.Remove("radio://0/80/2M/E7E7E7E701")
	if _, ok := m.Get("radio://0/80/2M/E7E7E7E701"); ok {
		t.Error("Get() found removed vehicle")
	}
}

// TestManagerKeepalive tests that keepalive pings drain unsolicited data
func TestManagerKeepalive(t *testing.T) {
	fv := &fakeVehicle{}
	pool := link.NewPoolWithOpener(func(addr link.Address) (link.Transport, error) {
		return fv, nil
	}, nil)
	defer pool.Close()

	m := NewManager(pool, nil)
	defer m.Shutdown()

	uri := "radio://0/80/2M"
	cf, err := m.Add(uri, Config{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	consoleCh := make(chan string, 1)
	cf.SetConsoleCallback(func(text string) {
		select {
		case consoleCh <- text:
		default:
		}
	})
	fv.push([]byte{0x00, 'u', 'p'})

	if err := m.EnableKeepalive("radio://9/80/2M", 10*time.Millisecond); err == nil {
		t.Error("EnableKeepalive() for unregistered vehicle succeeded, want error")
	}
	if err := m.EnableKeepalive(uri, 10*time.Millisecond); err != nil {
		t.Fatalf("EnableKeepalive() error = %v", err)
	}

	select {
	case text := <-consoleCh:
		if text != "up" {
			t.Errorf("console = %q, want up", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive never drained the console packet")
	}
}

// TestKeepalivePausesDuringBatch tests that keepalive pings skip a vehicle
// while one of its batches is in flight, then resume
func TestKeepalivePausesDuringBatch(t *testing.T) {
	fv := &fakeVehicle{}
	pool := link.NewPoolWithOpener(func(addr link.Address) (link.Transport, error) {
		return fv, nil
	}, nil)
	defer pool.Close()

	m := NewManager(pool, nil)
	defer m.Shutdown()

	uri := "radio://0/80/2M"
	cf, err := m.Add(uri, Config{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	cf.inBatch.Store(true)
	if err := m.EnableKeepalive(uri, time.Millisecond); err != nil {
		t.Fatalf("EnableKeepalive() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	fv.mu.Lock()
	sent := fv.sent
	fv.mu.Unlock()
	if sent != 0 {
		t.Fatalf("keepalive sent %d packets during a batch, want 0", sent)
	}

	cf.inBatch.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fv.mu.Lock()
		sent = fv.sent
		fv.mu.Unlock()
		if sent > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("keepalive never resumed after the batch finished")
}

// TestBroadcaster tests the unacknowledged fleet path
func TestBroadcaster(t *testing.T) {
	ft := &broadcastRecorder{}
	pool := link.NewPoolWithOpener(func(addr link.Address) (link.Transport, error) {
		return ft, nil
	}, nil)
	defer pool.Close()

	if _, err := NewBroadcaster(pool, "usb://0", nil); err == nil {
		t.Error("NewBroadcaster() on USB succeeded, want error")
	}

	b, err := NewBroadcaster(pool, "radio://0/80/2M/FFE7E7E7E7", nil)
	if err != nil {
		t.Fatalf("NewBroadcaster() error = %v", err)
	}
	ctx := context.Background()

	if err := b.Takeoff(ctx, 0.5, 2000); err != nil {
		t.Fatalf("Takeoff() error = %v", err)
	}
	if len(ft.frames) != broadcastRepeat {
		t.Fatalf("takeoff sent %d frames, want %d", len(ft.frames), broadcastRepeat)
	}
	for _, f := range ft.frames {
		if f[0] != 0x8C || f[1] != 0x07 {
			t.Fatalf("frame = %v, want takeoff command", f[:2])
		}
	}

	ft.frames = nil
	positions := []crtp.ExternalPosition{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	if err := b.SendPositions(ctx, positions); err != nil {
		t.Fatalf("SendPositions() error = %v", err)
	}
	if len(ft.frames) != 2 {
		t.Fatalf("positions sent %d frames, want 2", len(ft.frames))
	}
	if ft.frames[1][1] != 4 {
		t.Errorf("second frame first id = %d, want 4", ft.frames[1][1])
	}
}

// broadcastRecorder records unacknowledged transmissions.
type broadcastRecorder struct {
	frames [][]byte
}

func (r *broadcastRecorder) Send(ctx context.Context, data []byte) (link.Ack, error) {
	return link.Ack{Ack: true}, nil
}

func (r *broadcastRecorder) SendNoAck(ctx context.Context, data []byte) error {
	r.frames = append(r.frames, append([]byte(nil), data...))
	return nil
}

func (r *broadcastRecorder) Close() error { return nil }
