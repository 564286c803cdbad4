package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer задает темп циклов: один токен на интервал, ведро на один токен.
// Ожидание = interval - длительность прошлого цикла; если цикл затянулся,
// следующий стартует сразу, без пропусков и без догоняющих пачек.
type Pacer struct {
	lim *rate.Limiter
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Next резервирует старт цикла в момент now и возвращает, сколько еще ждать.
func (p *Pacer) Next(now time.Time) time.Duration {
	d := p.lim.ReserveN(now, 1).DelayFrom(now)
	if d < 0 {
		return 0
	}
	return d
}

// Wait блокирует до начала следующего цикла или до отмены контекста.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Next(time.Now())
	if d == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
