package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "build_notifier_cycles_total",
			Help: "Detection cycles by result.",
		},
		[]string{"result"},
	)
	ticksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "build_notifier_ticks_skipped_total",
			Help: "Timer ticks skipped because a cycle was in flight or polling was paused.",
		},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "build_notifier_notifications_total",
			Help: "Per-build dispatch outcomes by terminal state.",
		},
		[]string{"state"},
	)
	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "build_notifier_cycle_duration_seconds",
			Help:    "Wall-clock duration of a detection cycle.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	watermarkGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_notifier_watermark",
			Help: "Last notified build ID per build type.",
		},
		[]string{"build_type"},
	)
)
