package health

import (
	"slices"
	"time"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

// Builder собирает событие из оценки и статической конфигурации агента.
// Значения задаются один раз при старте и дальше не меняются.
type Builder struct {
	host string
	ttl  float32
	tags []string
}

// NewBuilder создает сборщик. ttl = interval + delay.
func NewBuilder(host string, interval time.Duration, delay float64, tags []string) *Builder {
	return &Builder{
		host: host,
		ttl:  float32(interval.Seconds() + delay),
		tags: slices.Clone(tags),
	}
}

// TTL возвращает значение, которое попадет в каждое событие.
func (b *Builder) TTL() float32 {
	return b.ttl
}

// Build детерминирован: одинаковый вход дает одинаковое событие.
func (b *Builder) Build(a domain.Assessment, now time.Time) domain.HealthEvent {
	ev := domain.HealthEvent{
		Host:        b.host,
		Service:     domain.ServiceName,
		Time:        now.Unix(),
		State:       a.State,
		Description: a.Description,
		TTL:         b.ttl,
		Tags:        slices.Clone(b.tags),
	}
	if a.Metric != nil {
		m := *a.Metric
		ev.Metric = &m
	}
	return ev
}
