package link

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// QUIC is a CRTP link tunnelled to a remote radio bridge over a QUIC stream.
// Each exchange writes one length-prefixed packet frame and reads one
// length-prefixed response frame whose first byte is the ack flag, followed
// by the ack payload.
type QUIC struct {
	connection *quic.Conn
	stream     *quic.Stream
	tlsConfig  *tls.Config
	endpoint   string
}

// QUICConfig configures a QUIC link
type QUICConfig struct {
	Endpoint  string      // "host:port" of the bridge
	TLSConfig *tls.Config // Optional TLS config (if nil, will generate self-signed cert)
}

// NewQUIC connects to a CRTP bridge at the given endpoint.
func NewQUIC(config QUICConfig) (*QUIC, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		var err error
		tlsConfig, err = generateTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to generate TLS config: %w", err)
		}
	}

	remoteAddr, err := net.ResolveUDPAddr("udp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve remote address %s: %w", config.Endpoint, err)
	}

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP socket: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := quic.Dial(ctx, udpConn, remoteAddr, tlsConfig, nil)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	return &QUIC{
		connection: conn,
		stream:     stream,
		tlsConfig:  tlsConfig,
		endpoint:   config.Endpoint,
	}, nil
}

// generateTLSConfig generates a self-signed certificate for QUIC
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{tlsCert},
		NextProtos:         []string{"crtp-quic"},
		InsecureSkipVerify: true, // For self-signed certs
	}, nil
}

// Send transmits one packet frame and reads the response frame.
func (q *QUIC) Send(ctx context.Context, data []byte) (Ack, error) {
	if err := q.writeFrame(ctx, data); err != nil {
		return Ack{}, err
	}

	resp, err := q.readFrame(ctx)
	if err != nil {
		return Ack{}, err
	}
	if len(resp) < 1 {
		return Ack{Ack: false}, nil
	}
	return Ack{
		Ack:  resp[0]&0x01 != 0,
		Data: resp[1:],
	}, nil
}

// SendNoAck transmits one packet frame and drains the response frame.
func (q *QUIC) SendNoAck(ctx context.Context, data []byte) error {
	if err := q.writeFrame(ctx, data); err != nil {
		return err
	}
	_, err := q.readFrame(ctx)
	return err
}

func (q *QUIC) writeFrame(ctx context.Context, data []byte) error {
	if len(data) > 255 {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}
	if d, ok := ctx.Deadline(); ok {
		q.stream.SetWriteDeadline(d)
	}
	frame := make([]byte, 1+len(data))
	frame[0] = byte(len(data))
	copy(frame[1:], data)
	if _, err := q.stream.Write(frame); err != nil {
		return fmt.Errorf("quic write: %w", err)
	}
	return nil
}

func (q *QUIC) readFrame(ctx context.Context) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		q.stream.SetReadDeadline(d)
	}
	var lenByte [1]byte
	if _, err := io.ReadFull(q.stream, lenByte[:]); err != nil {
		return nil, fmt.Errorf("quic read: %w", err)
	}
	buf := make([]byte, lenByte[0])
	if _, err := io.ReadFull(q.stream, buf); err != nil {
		return nil, fmt.Errorf("quic read: %w", err)
	}
	return buf, nil
}

// Close closes the stream and connection.
func (q *QUIC) Close() error {
	q.stream.Close()
	return q.connection.CloseWithError(0, "closed")
}
