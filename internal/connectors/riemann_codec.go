package connectors

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

// Номера полей из riemann/proto.proto (Msg, Event).
const (
	msgFieldOK     protowire.Number = 2
	msgFieldError  protowire.Number = 3
	msgFieldEvents protowire.Number = 6

	eventFieldTime         protowire.Number = 1
	eventFieldState        protowire.Number = 2
	eventFieldService      protowire.Number = 3
	eventFieldHost         protowire.Number = 4
	eventFieldDescription  protowire.Number = 5
	eventFieldTags         protowire.Number = 7
	eventFieldTTL          protowire.Number = 8
	eventFieldMetricSint64 protowire.Number = 13
	eventFieldMetricD      protowire.Number = 14
	eventFieldMetricF      protowire.Number = 15
)

// Msg описывает разобранное сообщение Riemann (события и/или ответ сервера).
type Msg struct {
	OK     *bool
	Error  string
	Events []domain.HealthEvent
}

// EncodeEvent упаковывает одно событие в Msg{events: [event]}, один пакет на цикл.
func EncodeEvent(ev domain.HealthEvent) []byte {
	body := appendEvent(nil, ev)

	msg := protowire.AppendTag(nil, msgFieldEvents, protowire.BytesType)
	return protowire.AppendBytes(msg, body)
}

func appendEvent(b []byte, ev domain.HealthEvent) []byte {
	b = protowire.AppendTag(b, eventFieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Time))

	b = appendString(b, eventFieldState, ev.State.String())
	b = appendString(b, eventFieldService, ev.Service)
	b = appendString(b, eventFieldHost, ev.Host)
	b = appendString(b, eventFieldDescription, ev.Description)

	for _, tag := range ev.Tags {
		b = protowire.AppendTag(b, eventFieldTags, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}

	b = protowire.AppendTag(b, eventFieldTTL, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(ev.TTL))

	if ev.Metric != nil {
		// sint64 основной вариант, metric_f для старых коллекторов
		b = protowire.AppendTag(b, eventFieldMetricSint64, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(*ev.Metric))
		b = protowire.AppendTag(b, eventFieldMetricF, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(float32(*ev.Metric)))
	}
	return b
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// DecodeMsg разбирает Msg. Нужен для чтения ack коллектора и для проверки кодека.
// Неизвестные поля пропускаются.
func DecodeMsg(b []byte) (*Msg, error) {
	var m Msg
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("riemann: decode msg tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == msgFieldOK && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("riemann: decode msg ok: %w", protowire.ParseError(n))
			}
			ok := v != 0
			m.OK = &ok
			b = b[n:]
		case num == msgFieldError && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("riemann: decode msg error: %w", protowire.ParseError(n))
			}
			m.Error = v
			b = b[n:]
		case num == msgFieldEvents && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("riemann: decode msg event: %w", protowire.ParseError(n))
			}
			ev, err := decodeEvent(v)
			if err != nil {
				return nil, err
			}
			m.Events = append(m.Events, ev)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("riemann: skip msg field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return &m, nil
}

func decodeEvent(b []byte) (domain.HealthEvent, error) {
	var (
		ev      domain.HealthEvent
		metricF *float64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ev, fmt.Errorf("riemann: decode event tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var (
			consumed int
			err      error
		)
		switch {
		case num == eventFieldTime && typ == protowire.VarintType:
			var v uint64
			v, consumed = protowire.ConsumeVarint(b)
			ev.Time = int64(v)
		case num == eventFieldState && typ == protowire.BytesType:
			var v string
			v, consumed = protowire.ConsumeString(b)
			if consumed >= 0 {
				ev.State, err = domain.ParseState(v)
			}
		case num == eventFieldService && typ == protowire.BytesType:
			ev.Service, consumed = protowire.ConsumeString(b)
		case num == eventFieldHost && typ == protowire.BytesType:
			ev.Host, consumed = protowire.ConsumeString(b)
		case num == eventFieldDescription && typ == protowire.BytesType:
			ev.Description, consumed = protowire.ConsumeString(b)
		case num == eventFieldTags && typ == protowire.BytesType:
			var v string
			v, consumed = protowire.ConsumeString(b)
			ev.Tags = append(ev.Tags, v)
		case num == eventFieldTTL && typ == protowire.Fixed32Type:
			var v uint32
			v, consumed = protowire.ConsumeFixed32(b)
			ev.TTL = math.Float32frombits(v)
		case num == eventFieldMetricSint64 && typ == protowire.VarintType:
			var v uint64
			v, consumed = protowire.ConsumeVarint(b)
			m := protowire.DecodeZigZag(v)
			ev.Metric = &m
		case num == eventFieldMetricF && typ == protowire.Fixed32Type:
			var v uint32
			v, consumed = protowire.ConsumeFixed32(b)
			f := float64(math.Float32frombits(v))
			metricF = &f
		case num == eventFieldMetricD && typ == protowire.Fixed64Type:
			var v uint64
			v, consumed = protowire.ConsumeFixed64(b)
			f := math.Float64frombits(v)
			metricF = &f
		default:
			consumed = protowire.ConsumeFieldValue(num, typ, b)
		}
		if consumed < 0 {
			return ev, fmt.Errorf("riemann: decode event field %d: %w", num, protowire.ParseError(consumed))
		}
		if err != nil {
			return ev, err
		}
		b = b[consumed:]
	}

	// Старые агенты шлют только metric_f или metric_d
	if ev.Metric == nil && metricF != nil {
		m := int64(*metricF)
		ev.Metric = &m
	}
	return ev, nil
}

// ErrCollectorRejected: коллектор ответил ok=false.
var ErrCollectorRejected = errors.New("riemann: collector rejected message")

// checkAck интерпретирует ответ коллектора.
func checkAck(payload []byte) error {
	m, err := DecodeMsg(payload)
	if err != nil {
		return err
	}
	if m.OK != nil && !*m.OK {
		return fmt.Errorf("%w: %s", ErrCollectorRejected, m.Error)
	}
	return nil
}
