package domain

import (
	"database/sql"
	"fmt"
	"strings"
)

// State: состояние здоровья реплики. Значения совпадают с порядком серьезности:
// OK < WARNING < CRITICAL. UNKNOWN означает "не удалось определить" и на шкале не стоит.
type State int

const (
	StateOK State = iota
	StateWarning
	StateCritical
	StateUnknown
)

var stateNames = [...]string{"ok", "warning", "critical", "unknown"}

// String возвращает значение в том виде, в каком его ждет Riemann.
func (s State) String() string {
	if s < StateOK || s > StateUnknown {
		return stateNames[StateUnknown]
	}
	return stateNames[s]
}

// ParseState: обратное преобразование для декодера и тестов.
func ParseState(v string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(v, name) {
			return State(i), nil
		}
	}
	return StateUnknown, fmt.Errorf("domain: unknown health state %q", v)
}

// Индексы полей в строке SHOW SLAVE STATUS.
const (
	FieldSlaveIORunning  = 10
	FieldSlaveSQLRunning = 11
	FieldSecondsBehind   = 32
	MinStatusFields      = 33
)

const (
	// ServiceName: фиксированное имя сервиса в событиях Riemann.
	ServiceName = "mysql"
	// MaxTags: предел количества тегов в одном событии.
	MaxTags = 32
	// DefaultUnknownHostname используется, если имя хоста определить не удалось.
	DefaultUnknownHostname = "<unknown>"
)

// StatusRow: одна строка результата диагностического запроса.
// Живет только в рамках одного сбора статистики.
type StatusRow []sql.NullString

// Valid: достаточно ли полей для оценки.
func (r StatusRow) Valid() bool {
	return len(r) >= MinStatusFields
}

// Field безопасно достает поле по индексу.
func (r StatusRow) Field(i int) (string, bool) {
	if i < 0 || i >= len(r) || !r[i].Valid {
		return "", false
	}
	return r[i].String, true
}

// Assessment содержит результат оценки: состояние, описание и опциональная метрика (лаг в секундах).
type Assessment struct {
	State       State
	Description string
	Metric      *int64
}

// Unknown собирает оценку для путей, где строку получить не удалось.
func Unknown(description string) Assessment {
	return Assessment{State: StateUnknown, Description: description}
}

// HealthEvent: событие для коллектора. Создается заново в каждом цикле
// и после попытки доставки выбрасывается.
type HealthEvent struct {
	Host        string   `json:"host"`
	Service     string   `json:"service"`
	Time        int64    `json:"time"`
	State       State    `json:"-"`
	Description string   `json:"description"`
	TTL         float32  `json:"ttl"`
	Tags        []string `json:"tags"`
	Metric      *int64   `json:"metric,omitempty"`
}
