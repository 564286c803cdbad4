package connectors

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Transport умеет одно: доставить байты коллектору.
// Вариант выбирается один раз при старте.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Connected() bool
	Close() error
	Name() string
}

// TransportOptions: параметры коллектора, общие для всех вариантов.
type TransportOptions struct {
	Proto      string // tcp, udp, tls
	Host       string
	Port       int
	Ack        bool
	AckTimeout time.Duration
	TLS        *tls.Config // только для tls

	Resolver Resolver // по умолчанию net.DefaultResolver
	Dial     DialFunc // по умолчанию net.Dialer
}

// NewTransport выбирает вариант транспорта по протоколу.
func NewTransport(opts TransportOptions, logger *zap.Logger) (Transport, error) {
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	if opts.Dial == nil {
		opts.Dial = defaultDial
	}

	switch opts.Proto {
	case "tcp":
		return NewStreamTransport(opts, logger), nil
	case "tls":
		if opts.TLS == nil {
			return nil, fmt.Errorf("riemann: tls transport requires tls config")
		}
		return NewTLSTransport(opts, logger), nil
	case "udp":
		return NewDatagramTransport(opts, logger), nil
	default:
		return nil, fmt.Errorf("riemann: unsupported transport %q", opts.Proto)
	}
}
