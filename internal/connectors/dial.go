package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ConnState: состояние дескриптора соединения с коллектором.
type ConnState int

const (
	StateDown ConnState = iota
	StateUp
)

// Resolver: то, что нужно от DNS. Реализуется *net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DialFunc открывает соединение с конкретным адресом.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dialCandidates резолвит хост коллектора и перебирает адреса по порядку.
// Порт всегда берется из конфигурации, а не из результата резолва.
func dialCandidates(ctx context.Context, resolver Resolver, dial DialFunc, network, host string, port int) (net.Conn, error) {
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("cannot lookup %s: %w", host, err)
	}

	var errs []error
	for _, a := range addrs {
		addr := net.JoinHostPort(a.String(), strconv.Itoa(port))
		conn, err := dial(ctx, network, addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s resolved to no addresses", ErrNoCandidates, host)
	}
	return nil, fmt.Errorf("%w: %w", ErrNoCandidates, errors.Join(errs...))
}

func defaultDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}
