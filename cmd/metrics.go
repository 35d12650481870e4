package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lamrongol/QueueWithMovingStat/internal/analytics"
)

type promMetrics struct {
	ingestedTotal   prometheus.Counter
	badReqTotal     prometheus.Counter
	queueFullTotal  prometheus.Counter
	redisErrTotal   prometheus.Counter
	procTimeSeconds prometheus.Histogram
	ready           prometheus.Gauge
	windowCount     prometheus.Gauge
	lagMedian       prometheus.Gauge
	cpu             metricGauges
	rps             metricGauges
}

// metricGauges exports the rolling statistics of one metric.
type metricGauges struct {
	avg          prometheus.Gauge
	median       prometheus.Gauge
	min          prometheus.Gauge
	max          prometheus.Gauge
	zscore       prometheus.Gauge
	anomaly      prometheus.Gauge
	anomalyTotal prometheus.Counter
}

func buildPromMetrics() promMetrics {
	return promMetrics{
		ingestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_total",
			Help: "Total metrics ingested",
		}),
		badReqTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_bad_request_total",
			Help: "Total bad ingest requests",
		}),
		queueFullTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_queue_full_total",
			Help: "Total ingest requests rejected because queue is full",
		}),
		redisErrTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redis_error_total",
			Help: "Total redis errors",
		}),
		procTimeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_processing_seconds",
			Help:    "Latency for processing metrics",
			Buckets: prometheus.DefBuckets,
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_ready",
			Help: "1 once the analytics windows are full",
		}),
		windowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_window_count",
			Help: "Number of samples in analytics window",
		}),
		lagMedian: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_ingest_lag_median_seconds",
			Help: "Rolling median of the time samples wait in the ingest queue",
		}),
		cpu: buildMetricGauges("cpu", "CPU"),
		rps: buildMetricGauges("rps", "RPS"),
	}
}

func buildMetricGauges(name, title string) metricGauges {
	gauge := func(stat, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_" + stat + "_" + name,
			Help: help + " of " + title,
		})
	}
	return metricGauges{
		avg:     gauge("rolling_avg", "Rolling average"),
		median:  gauge("rolling_median", "Rolling median"),
		min:     gauge("rolling_min", "Rolling minimum"),
		max:     gauge("rolling_max", "Rolling maximum"),
		zscore:  gauge("zscore", "Z-score"),
		anomaly: gauge("anomaly", "Anomaly flag (1 if anomaly)"),
		anomalyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_anomaly_" + name + "_total",
			Help: "Total " + title + " anomalies detected",
		}),
	}
}

func (m promMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ingestedTotal,
		m.badReqTotal,
		m.queueFullTotal,
		m.redisErrTotal,
		m.procTimeSeconds,
		m.ready,
		m.windowCount,
		m.lagMedian,
	)
	m.cpu.register(reg)
	m.rps.register(reg)
}

func (g metricGauges) register(reg prometheus.Registerer) {
	reg.MustRegister(g.avg, g.median, g.min, g.max, g.zscore, g.anomaly, g.anomalyTotal)
}

func (g metricGauges) update(s analytics.MetricStats) {
	g.avg.Set(s.Avg)
	g.median.Set(s.Median)
	g.min.Set(s.Min)
	g.max.Set(s.Max)
	g.zscore.Set(s.ZScore)
	if s.Anomaly {
		g.anomaly.Set(1)
		g.anomalyTotal.Inc()
	} else {
		g.anomaly.Set(0)
	}
}

func (m promMetrics) update(res analytics.Snapshot) {
	m.windowCount.Set(float64(res.Samples))
	if res.LagReady {
		m.lagMedian.Set(res.LagMedian.Seconds())
	}
	if !res.Ready {
		m.ready.Set(0)
		return
	}
	m.ready.Set(1)
	m.cpu.update(res.CPU)
	m.rps.update(res.RPS)
}
