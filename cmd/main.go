package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/lamrongol/QueueWithMovingStat/internal/analytics"
	"github.com/lamrongol/QueueWithMovingStat/internal/config"
	"github.com/lamrongol/QueueWithMovingStat/internal/model"
	"github.com/lamrongol/QueueWithMovingStat/internal/persistence"
)

type app struct {
	store    *persistence.MetricStore
	analyzer *analytics.Analyzer
	queue    chan model.Sample
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logrus.FieldLogger
	registry *prometheus.Registry
	prom     promMetrics
}

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := cfg.NewLogger()

	store := persistence.NewMetricStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Check(ctx); err != nil {
		logger.WithError(err).Warn("redis ping failed")
	}

	engine, err := analytics.NewAnalyzer(cfg.WindowSize, cfg.LatencyWindow, cfg.Threshold, logger)
	if err != nil {
		logger.WithError(err).Fatal("create analyzer")
	}
	if cfg.WarmStart {
		warmStart(ctx, store, engine, cfg.WindowSize, logger)
	}

	service := newApp(ctx, logger, store, engine, cfg.QueueSize)
	go service.workerLoop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           service.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("listen failed")
		}
	}()

	awaitSignal(cancel, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown error")
	}
	if err := store.Stop(); err != nil {
		logger.WithError(err).Error("redis close error")
	}
}

// warmStart refills the analytics windows from the samples kept in redis so a restart
// does not begin with empty windows.
func warmStart(ctx context.Context, store *persistence.MetricStore, engine *analytics.Analyzer, window int, logger logrus.FieldLogger) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	history, err := store.FetchRecent(fetchCtx, window)
	if err != nil {
		logger.WithError(err).Warn("warm start skipped")
		return
	}
	if err := engine.Prime(history); err != nil {
		logger.WithError(err).Warn("warm start discarded")
	}
}

func newApp(ctx context.Context, logger logrus.FieldLogger, store *persistence.MetricStore, engine *analytics.Analyzer, queueSize int) *app {
	service := &app{
		store:    store,
		analyzer: engine,
		queue:    make(chan model.Sample, queueSize),
		logger:   logger,
		registry: prometheus.NewRegistry(),
		prom:     buildPromMetrics(),
	}
	service.ctx, service.cancel = context.WithCancel(ctx)
	service.prom.register(service.registry)

	return service
}

func (a *app) router() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/ingest", a.ingestHandler)
	mux.HandleFunc("/analytics", a.analyticsHandler)
	mux.HandleFunc("/latest", a.latestHandler)
	return mux
}

func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Check(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("redis unavailable"))
		return
	}

	_, _ = w.Write([]byte("ok"))
}

func (a *app) ingestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	defer func() {
		a.prom.procTimeSeconds.Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var sample model.Sample
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&sample); err != nil {
		a.prom.badReqTotal.Inc()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid json"))
		return
	}

	if !isSampleValid(sample) {
		a.prom.badReqTotal.Inc()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid metric values"))
		return
	}

	if sample.Timestamp == 0 {
		sample.Timestamp = start.Unix()
	}
	sample.ReceivedAt = start

	select {
	case a.queue <- sample:
		a.prom.ingestedTotal.Inc()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("accepted"))
	default:
		a.prom.queueFullTotal.Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("queue full"))
	}
}

// isSampleValid keeps NaN and infinities out of the analytics windows, whose ordering
// they would break.
func isSampleValid(m model.Sample) bool {
	if math.IsNaN(m.CPU) || math.IsNaN(m.RPS) {
		return false
	}
	if math.IsInf(m.CPU, 0) || math.IsInf(m.RPS, 0) {
		return false
	}
	return true
}

func (a *app) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	res := a.analyzer.Latest()
	respondJSON(w, res)
}

func (a *app) latestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	metric, err := a.store.FetchLatest(ctx, deviceID)
	if err != nil {
		a.logger.WithError(err).Warn("fetch latest sample")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("redis error"))
		return
	}
	if metric == nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no data"))
		return
	}

	respondJSON(w, metric)
}

// workerLoop is the only goroutine that feeds the analyzer.
func (a *app) workerLoop() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case sample := <-a.queue:
			a.handleSample(sample)
		}
	}
}

func (a *app) handleSample(sample model.Sample) {
	ctx, cancel := context.WithTimeout(a.ctx, 2*time.Second)
	defer cancel()

	if err := a.store.Save(ctx, sample); err != nil {
		a.prom.redisErrTotal.Inc()
		a.logger.WithError(err).Error("redis store error")
	}

	result := a.analyzer.Process(sample)
	a.prom.update(result)

	if !result.Ready {
		return
	}
	if err := a.store.SaveSnapshot(ctx, result); err != nil {
		a.prom.redisErrTotal.Inc()
		a.logger.WithError(err).Error("redis snapshot error")
	}
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func awaitSignal(cancel context.CancelFunc, logger logrus.FieldLogger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	logger.Info("shutdown signal received")
}
