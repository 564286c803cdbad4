package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: циклы по исходу (delivered, delivery_failed, probe_failed)
	Cycles *prometheus.CounterVec

	// Latency: длительность цикла целиком (probe + gather + deliver)
	CycleDuration prometheus.Histogram

	// Последнее вычисленное состояние (0=ok, 1=warning, 2=critical, 3=unknown)
	HealthState prometheus.Gauge

	// Лаг репликации, если он известен
	ReplicationLag prometheus.Gauge

	// Saturation: состояние дескрипторов (1 - up, 0 - down)
	ConnectionUp *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Cycles: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "riemann_mysql_cycles_total",
			Help: "Total number of agent cycles by outcome.",
		}, []string{"outcome"}),

		CycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "riemann_mysql_cycle_duration_seconds",
			Help:    "Histogram of cycle durations.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		HealthState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "riemann_mysql_health_state",
			Help: "Last derived health state (0=ok, 1=warning, 2=critical, 3=unknown).",
		}),

		ReplicationLag: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "riemann_mysql_replication_lag_seconds",
			Help: "Last observed Seconds_Behind_Master.",
		}),

		ConnectionUp: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "riemann_mysql_connection_up",
			Help: "Connection handle state (1=up, 0=down).",
		}, []string{"target"}), // target: mysql, riemann
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
