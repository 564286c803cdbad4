package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/riemann-mysql/internal/domain"
	"github.com/xela07ax/riemann-mysql/internal/health"
)

// Prober описывает источник данных (реплику MySQL).
type Prober interface {
	EnsureConnected(ctx context.Context) error
	Gather(ctx context.Context) domain.Assessment
}

// Reporter: канал доставки событий коллектору.
type Reporter interface {
	Deliver(ctx context.Context, ev domain.HealthEvent) error
}

// ConnectionReporter реализуют компоненты, которые умеют сообщать состояние своего дескриптора.
type ConnectionReporter interface {
	Connected() bool
}

// Phase: состояние автомата цикла.
type Phase string

const (
	PhaseCycleStart Phase = "cycle_start"
	PhaseProbing    Phase = "probing"
	PhaseGathering  Phase = "gathering"
	PhaseReporting  Phase = "reporting"
	PhaseSleeping   Phase = "sleeping"
)

// Outcome: чем закончился цикл.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomeProbeFailed    Outcome = "probe_failed"
)

// CycleResult: итог одного цикла.
type CycleResult struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	Event     *domain.HealthEvent
	Err       error
}

// Agent: цикл probe → evaluate → build → deliver с фиксированным темпом.
// Один цикл за раз, на одной горутине.
type Agent struct {
	probe    Prober
	reporter Reporter
	builder  *health.Builder
	pacer    *Pacer
	metrics  *Metrics
	status   *StatusTracker
	logger   *zap.Logger
	now      func() time.Time
}

// NewAgent собирает цикл. metrics и status могут быть nil.
func NewAgent(probe Prober, reporter Reporter, builder *health.Builder, pacer *Pacer, metrics *Metrics, status *StatusTracker, logger *zap.Logger) *Agent {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if status == nil {
		status = NewStatusTracker()
	}
	return &Agent{
		probe:    probe,
		reporter: reporter,
		builder:  builder,
		pacer:    pacer,
		metrics:  metrics,
		status:   status,
		logger:   logger.Named("agent"),
		now:      time.Now,
	}
}

// Run крутит циклы, пока не отменят контекст. Терминального состояния нет.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting agent loop", zap.Float32("ttl", a.builder.TTL()))
	for {
		// SLEEPING → CYCLE_START: ждем остаток интервала
		if err := a.pacer.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		a.RunCycle(ctx)
	}
}

// RunCycle выполняет один цикл. Сбой probe пропускает цикл, сбой сбора
// превращается в UNKNOWN, сбой доставки логируется без повторов.
func (a *Agent) RunCycle(ctx context.Context) (res CycleResult) {
	res = CycleResult{
		ID:        uuid.New().String(),
		StartedAt: a.now(),
	}
	log := a.logger.With(zap.String("cycle_id", res.ID))
	log.Debug("cycle", zap.String("phase", string(PhaseCycleStart)))

	defer func() {
		res.Duration = a.now().Sub(res.StartedAt)
		a.observe(res)
		log.Debug("cycle", zap.String("phase", string(PhaseSleeping)),
			zap.String("outcome", string(res.Outcome)),
			zap.Duration("took", res.Duration))
	}()

	// 1. PROBING
	log.Debug("cycle", zap.String("phase", string(PhaseProbing)))
	if err := a.probe.EnsureConnected(ctx); err != nil {
		log.Warn("could not get mysql handle, skipping cycle", zap.Error(err))
		res.Outcome = OutcomeProbeFailed
		res.Err = err
		return res
	}

	// 2. GATHERING: никогда не прерывает цикл
	log.Debug("cycle", zap.String("phase", string(PhaseGathering)))
	assessment := a.probe.Gather(ctx)
	ev := a.builder.Build(assessment, a.now())
	res.Event = &ev

	// 3. REPORTING: одна попытка
	log.Debug("cycle", zap.String("phase", string(PhaseReporting)))
	if err := a.reporter.Deliver(ctx, ev); err != nil {
		res.Outcome = OutcomeDeliveryFailed
		res.Err = err
		return res
	}
	res.Outcome = OutcomeDelivered
	return res
}

func (a *Agent) observe(res CycleResult) {
	a.metrics.Cycles.WithLabelValues(string(res.Outcome)).Inc()
	a.metrics.CycleDuration.Observe(res.Duration.Seconds())

	if res.Event != nil {
		a.metrics.HealthState.Set(float64(res.Event.State))
		if res.Event.Metric != nil {
			a.metrics.ReplicationLag.Set(float64(*res.Event.Metric))
		}
	}
	if c, ok := a.probe.(ConnectionReporter); ok {
		a.metrics.ConnectionUp.WithLabelValues("mysql").Set(boolGauge(c.Connected()))
	}
	if c, ok := a.reporter.(ConnectionReporter); ok {
		a.metrics.ConnectionUp.WithLabelValues("riemann").Set(boolGauge(c.Connected()))
	}

	a.status.record(res)
}
