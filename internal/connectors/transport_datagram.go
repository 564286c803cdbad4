package connectors

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// MaxDatagramSize: размер UDP-буфера Riemann по умолчанию.
const MaxDatagramSize = 16384

// DatagramTransport это ненадежный вариант. Одно сообщение в одном пакете,
// без заголовка длины и без подтверждения.
type DatagramTransport struct {
	opts   TransportOptions
	logger *zap.Logger

	conn  net.Conn
	state ConnState
}

// NewDatagramTransport: вариант udp.
func NewDatagramTransport(opts TransportOptions, logger *zap.Logger) *DatagramTransport {
	return &DatagramTransport{
		opts:   opts,
		logger: logger.Named("udp"),
	}
}

func (t *DatagramTransport) Name() string { return "udp" }

func (t *DatagramTransport) Connected() bool { return t.state == StateUp }

func (t *DatagramTransport) Send(ctx context.Context, payload []byte) error {
	if len(payload) > MaxDatagramSize {
		return &DeliveryError{
			Stage: StageWrite,
			Cause: fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(payload), MaxDatagramSize),
		}
	}

	if t.state != StateUp {
		conn, err := dialCandidates(ctx, t.opts.Resolver, t.opts.Dial, "udp", t.opts.Host, t.opts.Port)
		if err != nil {
			t.logger.Warn("could not open riemann socket",
				zap.String("host", t.opts.Host),
				zap.Int("port", t.opts.Port),
				zap.Error(err),
			)
			return &DeliveryError{Stage: StageConnect, Cause: err}
		}
		t.conn = conn
		t.state = StateUp
	}

	if err := writeFull(t.conn, payload); err != nil {
		t.logger.Warn("datagram send failed, dropping socket", zap.Error(err))
		_ = t.conn.Close()
		t.conn = nil
		t.state = StateDown
		return &DeliveryError{Stage: StageWrite, Cause: err}
	}
	return nil
}

func (t *DatagramTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.state = StateDown
	return err
}
