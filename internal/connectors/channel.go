package connectors

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

// RiemannChannel это канал отчетов. Кодирует событие и делает одну попытку доставки.
// Неудачное событие теряется: в следующий цикл ничего не переносится.
type RiemannChannel struct {
	transport Transport
	logger    *zap.Logger
}

// NewRiemannChannel создает канал поверх выбранного транспорта.
func NewRiemannChannel(t Transport, logger *zap.Logger) *RiemannChannel {
	return &RiemannChannel{
		transport: t,
		logger:    logger.Named("riemann").With(zap.String("transport", t.Name())),
	}
}

// Deliver реализует интерфейс Reporter.
func (c *RiemannChannel) Deliver(ctx context.Context, ev domain.HealthEvent) error {
	payload := EncodeEvent(ev)

	if err := c.transport.Send(ctx, payload); err != nil {
		c.logger.Error("unable to send riemann event",
			zap.Stringer("state", ev.State),
			zap.Int("bytes", len(payload)),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("riemann event sent",
		zap.Stringer("state", ev.State),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// Connected: состояние дескриптора коллектора (для метрик).
func (c *RiemannChannel) Connected() bool {
	return c.transport.Connected()
}

// Close закрывает транспорт.
func (c *RiemannChannel) Close() error {
	return c.transport.Close()
}
