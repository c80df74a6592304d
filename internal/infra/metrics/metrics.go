package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CandidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_candidates_total",
		Help: "Количество кандидатов по итоговому статусу и причине",
	}, []string{"state", "kind"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admission_stage_duration_seconds",
		Help:    "Длительность этапов конвейера допуска",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	PublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publish_errors_total",
		Help: "Ошибки публикации в канал",
	})

	HistoryPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_pruned_records_total",
		Help: "Количество записей истории, удалённых при очистке",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admission_queue_depth",
		Help: "Текущая глубина очереди задач",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CandidatesTotal,
		StageDuration,
		PublishErrors,
		HistoryPruned,
		QueueDepth,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveStage записывает длительность этапа конвейера.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IncCandidate увеличивает счётчик кандидатов по итоговому статусу.
func IncCandidate(state, kind string) {
	if kind == "" {
		kind = "none"
	}
	CandidatesTotal.WithLabelValues(state, kind).Inc()
}
