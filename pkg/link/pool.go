package link

import (
	"context"
	"fmt"
	"sync"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
)

// OpenFunc opens the physical transport for a link address. Replaceable in
// tests.
type OpenFunc func(addr Address) (Transport, error)

// defaultOpen opens the real hardware transport for an address.
func defaultOpen(addr Address) (Transport, error) {
	switch addr.Kind {
	case KindRadio:
		return NewRadio(addr.Device)
	case KindUSB:
		return NewUSB(addr.Device)
	case KindUDP:
		return NewUDP(UDPConfig{Endpoint: addr.Endpoint})
	case KindQUIC:
		return NewQUIC(QUICConfig{Endpoint: addr.Endpoint})
	default:
		return nil, fmt.Errorf("unsupported link kind %s", addr.Kind)
	}
}

// Handle is the live shared resource for one physical device. Any number of
// logical clients hold the same handle; each exchange takes the handle's
// lock for one full send+receive round trip, reconciling the device's
// configuration to the client's first.
type Handle struct {
	key string
	mu  sync.Mutex
	tr  Transport
}

// Exchange performs one atomic send+receive round trip. For configurable
// transports, cfg is applied (diff-only) before the transmission; other
// transports ignore it.
func (h *Handle) Exchange(ctx context.Context, cfg *RadioConfig, data []byte) (Ack, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.apply(cfg); err != nil {
		return Ack{}, err
	}
	return h.tr.Send(ctx, data)
}

// Broadcast performs one unacknowledged transmission, forcing ack-mode off
// on configurable transports.
func (h *Handle) Broadcast(ctx context.Context, cfg *RadioConfig, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cfg != nil {
		noAck := *cfg
		noAck.AckEnable = false
		if err := h.apply(&noAck); err != nil {
			return err
		}
	}
	return h.tr.SendNoAck(ctx, data)
}

func (h *Handle) apply(cfg *RadioConfig) error {
	if cfg == nil {
		return nil
	}
	if c, ok := h.tr.(Configurable); ok {
		if err := c.Apply(*cfg); err != nil {
			return fmt.Errorf("reconciling %s: %w", h.key, err)
		}
	}
	return nil
}

// String returns string representation of Handle
func (h *Handle) String() string {
	return fmt.Sprintf("Handle{%s}", h.key)
}

// Pool owns at most one live transport per physical device and hands out
// shared handles. Transports are created lazily on first acquire and live
// until the pool is closed.
type Pool struct {
	mu      sync.Mutex
	handles map[string]*Handle
	open    OpenFunc
	logger  logger.Logger
}

// NewPool creates a pool that opens real hardware transports.
func NewPool(log logger.Logger) *Pool {
	return NewPoolWithOpener(defaultOpen, log)
}

// NewPoolWithOpener creates a pool with a custom transport opener.
func NewPoolWithOpener(open OpenFunc, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pool{
		handles: make(map[string]*Handle),
		open:    open,
		logger:  log,
	}
}

// deviceKey identifies the physical device behind an address. All radio
// clients on the same dongle share one key regardless of channel or address.
func deviceKey(addr Address) string {
	switch addr.Kind {
	case KindRadio:
		return fmt.Sprintf("radio://%d", addr.Device)
	case KindUSB:
		return fmt.Sprintf("usb://%d", addr.Device)
	default:
		return fmt.Sprintf("%s://%s", addr.Kind, addr.Endpoint)
	}
}

// Acquire returns the singleton handle for the device behind addr, creating
// the transport on first use.
func (p *Pool) Acquire(addr Address) (*Handle, error) {
	key := deviceKey(addr)

	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles[key]; ok {
		return h, nil
	}

	tr, err := p.open(addr)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}

	h := &Handle{key: key, tr: tr}
	p.handles[key] = h
	p.logger.Info("Pool: opened %s", key)
	return h, nil
}

// Count returns the number of live handles.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Close tears down every transport in the pool. Handles must not be used
// afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for key, h := range p.handles {
		if err := h.tr.Close(); err != nil {
			p.logger.Error("Pool: error closing %s: %v", key, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.handles = make(map[string]*Handle)
	return firstErr
}
