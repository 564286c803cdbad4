package connectors

import (
	"context"
	"sync"
)

// MockTransport записывает отправленные пакеты в память. Используется в тестах
// цикла агента вместо настоящего коллектора.
type MockTransport struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     error
	up       bool
}

// FailWith заставляет следующие отправки возвращать ошибку (nil: снова успех).
func (m *MockTransport) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *MockTransport) Send(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		m.up = false
		return &DeliveryError{Stage: StageWrite, Cause: m.fail}
	}
	m.up = true
	m.payloads = append(m.payloads, append([]byte(nil), payload...))
	return nil
}

// Payloads возвращает копию всех доставленных пакетов.
func (m *MockTransport) Payloads() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.payloads...)
}

func (m *MockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}

func (m *MockTransport) Close() error { return nil }

func (m *MockTransport) Name() string { return "mock" }
