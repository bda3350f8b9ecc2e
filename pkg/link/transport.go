package link

import "context"

// Ack is the result of one send+receive round trip: whether the vehicle
// acknowledged the transmission and the response payload it piggybacked.
type Ack struct {
	Ack  bool
	Data []byte
}

// Transport is one physical CRTP link. Every transmission is a strict
// request/response exchange: Send transmits one packet and returns exactly
// one ack, possibly empty. Implementations are not required to be
// thread-safe; callers serialize access through the pool's per-device lock.
type Transport interface {
	// Send transmits one CRTP packet and waits for its acknowledgement.
	Send(ctx context.Context, data []byte) (Ack, error)

	// SendNoAck transmits one CRTP packet without waiting for an
	// acknowledgement. Used by the broadcast path.
	SendNoAck(ctx context.Context, data []byte) error

	// Close releases the underlying device.
	Close() error
}

// RadioConfig is the desired radio configuration of one logical client.
// Clients sharing a dongle reconcile the hardware to their own config before
// each transmission.
type RadioConfig struct {
	Channel   uint8
	Address   uint64
	Datarate  Datarate
	AckEnable bool
}

// Configurable is implemented by transports whose addressing is mutable at
// runtime (the radio dongle). Apply reconciles the hardware to cfg, skipping
// fields that already match.
type Configurable interface {
	Apply(cfg RadioConfig) error
}
