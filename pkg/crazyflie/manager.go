package crazyflie

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/internal/queue"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
)

// Manager owns the engine instances of a process: a registry from link URI
// to engine with explicit teardown, plus an optional keepalive loop that
// pings registered vehicles so unsolicited downlink data (log samples,
// console text) keeps draining between caller-driven batches.
type Manager struct {
	pool   *link.Pool
	logger logger.Logger

	mu       sync.RWMutex
	vehicles map[string]*Crazyflie

	tasks  *queue.PriorityQueue
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// keepaliveTask schedules periodic pinging of one vehicle.
type keepaliveTask struct {
	uri      string
	interval time.Duration
}

// NewManager creates a manager over the given pool.
func NewManager(pool *link.Pool, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		pool:     pool,
		logger:   log,
		vehicles: make(map[string]*Crazyflie),
		tasks:    queue.NewPriorityQueue(),
		ctx:      ctx,
		cancel:   cancel,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.keepaliveLoop()
	}()

	return m
}

// Add creates and registers an engine for the given URI.
func (m *Manager) Add(uri string, config Config) (*Crazyflie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.vehicles[uri]; exists {
		return nil, fmt.Errorf("vehicle %s already registered", uri)
	}

	if config.Logger == nil {
		config.Logger = m.logger
	}
	cf, err := New(m.pool, uri, config)
	if err != nil {
		return nil, err
	}

	m.vehicles[uri] = cf
	m.logger.Info("Manager: added vehicle %s", uri)
	return cf, nil
}

// Get returns the engine registered under uri.
func (m *Manager) Get(uri string) (*Crazyflie, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cf, ok := m.vehicles[uri]
	return cf, ok
}

// Remove unregisters an engine. Its keepalive entry, if any, stops firing.
func (m *Manager) Remove(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, uri)
	m.logger.Info("Manager: removed vehicle %s", uri)
}

// Count returns the number of registered vehicles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vehicles)
}

// EnableKeepalive schedules periodic pings for a registered vehicle.
func (m *Manager) EnableKeepalive(uri string, interval time.Duration) error {
	m.mu.RLock()
	_, ok := m.vehicles[uri]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vehicle %s not registered", uri)
	}

	m.tasks.Push(&keepaliveTask{uri: uri, interval: interval}, 0, time.Now())
	return nil
}

// keepaliveLoop drives scheduled pings. A ping takes the device lock for one
// round trip only, so caller batches on the same device interleave at packet
// granularity rather than blocking. Vehicles with a batch in flight are
// skipped until the next interval.
func (m *Manager) keepaliveLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			for {
				v := m.tasks.NextReady(time.Now())
				if v == nil {
					break
				}
				task := v.(*keepaliveTask)

				m.mu.RLock()
				cf, ok := m.vehicles[task.uri]
				m.mu.RUnlock()
				if !ok {
					continue // vehicle removed; drop the task
				}

				// A batch drains the downlink itself; pinging now would
				// steal acks its requests are waiting for.
				if cf.BatchInFlight() {
					m.tasks.Push(task, 0, time.Now().Add(task.interval))
					continue
				}

				if err := cf.Ping(m.ctx); err != nil && m.ctx.Err() == nil {
					m.logger.Warn("Manager: keepalive ping %s: %v", task.uri, err)
				}
				m.tasks.Push(task, 0, time.Now().Add(task.interval))
			}
		}
	}
}

// Shutdown stops the keepalive loop and clears the registry. The link pool
// is owned by the caller and stays open.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.vehicles = make(map[string]*Crazyflie)
	m.mu.Unlock()

	m.tasks.Clear()
	m.logger.Info("Manager: shutdown complete")
}
