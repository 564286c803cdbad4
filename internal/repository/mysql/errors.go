package mysql

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleConnection: ранее поднятое соединение не прошло ping.
	ErrStaleConnection = errors.New("mysql: stale connection")
	// ErrNotConnected: запрос без предварительного EnsureConnected.
	ErrNotConnected = errors.New("mysql: not connected")
)

// GatherKind классифицирует сбои при чтении статуса репликации.
type GatherKind string

const (
	KindQuery         GatherKind = "query"
	KindResult        GatherKind = "result"
	KindNoRow         GatherKind = "no_row"
	KindFieldsMissing GatherKind = "fields_missing"
)

// GatherError: нефатальная ошибка сбора. Ее текст уходит в описание UNKNOWN-события.
type GatherError struct {
	Kind  GatherKind
	Cause error
}

func (e *GatherError) Error() string {
	switch e.Kind {
	case KindQuery:
		return fmt.Sprintf("could not execute query: %v", e.Cause)
	case KindResult:
		return fmt.Sprintf("could not store result: %v", e.Cause)
	case KindNoRow:
		if e.Cause != nil {
			return fmt.Sprintf("no replication status row: %v", e.Cause)
		}
		return "no replication status row"
	case KindFieldsMissing:
		return "fields missing"
	default:
		return fmt.Sprintf("gather failed: %v", e.Cause)
	}
}

func (e *GatherError) Unwrap() error {
	return e.Cause
}
