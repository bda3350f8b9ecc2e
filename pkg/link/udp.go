package link

import (
	"context"
	"fmt"
	"net"
	"time"
)

// UDP is a CRTP link to a simulated or bridged vehicle over UDP datagrams.
// Each Send transmits one packet and waits for one response datagram, which
// is reported as the ack payload.
type UDP struct {
	conn        *net.UDPConn
	readTimeout time.Duration
}

// UDPConfig configures a UDP link
type UDPConfig struct {
	Endpoint    string        // "host:port" of the simulator/bridge
	ReadTimeout time.Duration // Per-exchange response timeout (0 = default)
}

// NewUDP creates a UDP link to the given endpoint.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 100 * time.Millisecond
	}

	addr, err := net.ResolveUDPAddr("udp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", config.Endpoint, err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", config.Endpoint, err)
	}

	return &UDP{conn: conn, readTimeout: config.ReadTimeout}, nil
}

// Send transmits one packet and waits for the response datagram. A response
// timeout is reported as a missed ack, not an error, matching radio
// semantics: packet loss is expected and handled by the caller's retries.
func (u *UDP) Send(ctx context.Context, data []byte) (Ack, error) {
	if err := u.writeDeadlineFromContext(ctx); err != nil {
		return Ack{}, err
	}
	if _, err := u.conn.Write(data); err != nil {
		return Ack{}, fmt.Errorf("udp write: %w", err)
	}

	deadline := time.Now().Add(u.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		return Ack{}, fmt.Errorf("udp deadline: %w", err)
	}

	buf := make([]byte, 64)
	n, err := u.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			if ctx.Err() != nil {
				return Ack{}, ctx.Err()
			}
			return Ack{Ack: false}, nil
		}
		return Ack{}, fmt.Errorf("udp read: %w", err)
	}
	return Ack{Ack: true, Data: buf[:n]}, nil
}

// SendNoAck transmits one packet without waiting for a response.
func (u *UDP) SendNoAck(ctx context.Context, data []byte) error {
	if err := u.writeDeadlineFromContext(ctx); err != nil {
		return err
	}
	if _, err := u.conn.Write(data); err != nil {
		return fmt.Errorf("udp write: %w", err)
	}
	return nil
}

func (u *UDP) writeDeadlineFromContext(ctx context.Context) error {
	if d, ok := ctx.Deadline(); ok {
		return u.conn.SetWriteDeadline(d)
	}
	return u.conn.SetWriteDeadline(time.Time{})
}

// Close closes the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
