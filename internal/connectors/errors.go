package connectors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates: ни один адрес коллектора не принял соединение.
	ErrNoCandidates = errors.New("riemann: no reachable collector address")
	// ErrPayloadTooLarge: пакет не помещается в одну датаграмму.
	ErrPayloadTooLarge = errors.New("riemann: payload exceeds datagram size")
)

// Stage: на каком шаге сорвалась доставка.
type Stage string

const (
	StageConnect Stage = "connect"
	StageWrite   Stage = "write"
	StageAck     Stage = "ack"
)

// DeliveryError: нефатальная ошибка единственной попытки доставки.
type DeliveryError struct {
	Stage Stage
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("riemann %s failed: %v", e.Stage, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}
