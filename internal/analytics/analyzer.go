package analytics

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lamrongol/QueueWithMovingStat/internal/model"
	"github.com/lamrongol/QueueWithMovingStat/internal/windowstats"
)

var ErrInvalidSample = errors.New("invalid sample value")

// MetricStats is the rolling view of a single metric.
type MetricStats struct {
	Avg     float64 `json:"rolling_avg"`
	Median  float64 `json:"rolling_median"`
	Min     float64 `json:"rolling_min"`
	Max     float64 `json:"rolling_max"`
	ZScore  float64 `json:"zscore"`
	Anomaly bool    `json:"anomaly"`
}

type Snapshot struct {
	TimeUnix int64       `json:"timestamp"`
	Ready    bool        `json:"ready"`
	CPU      MetricStats `json:"cpu"`
	RPS      MetricStats `json:"rps"`
	Samples  int         `json:"window_count"`

	// LagMedian is the median time samples spent queued before analysis.
	LagMedian time.Duration `json:"lag_median_ns"`
	LagReady  bool          `json:"lag_ready"`
}

// Analyzer keeps rolling windows for CPU, RPS and ingest lag. Process must be called
// from a single goroutine; Latest may be called from any goroutine.
type Analyzer struct {
	cpuWindow *windowstats.WindowStats
	rpsWindow *windowstats.WindowStats
	lagWindow *windowstats.Ordered[time.Duration]
	threshold float64
	logger    logrus.FieldLogger
	now       func() time.Time

	mu     sync.RWMutex
	latest Snapshot
}

// NewAnalyzer fails when lagWindow is not a positive odd number.
func NewAnalyzer(window, lagWindow int, threshold float64, logger logrus.FieldLogger) (*Analyzer, error) {
	lag, err := windowstats.NewOrdered[time.Duration](lagWindow)
	if err != nil {
		return nil, fmt.Errorf("lag window: %w", err)
	}
	return &Analyzer{
		cpuWindow: windowstats.NewWindowStats(window),
		rpsWindow: windowstats.NewWindowStats(window),
		lagWindow: lag,
		threshold: threshold,
		logger:    logger.WithField("component", "analyzer"),
		now:       time.Now,
	}, nil
}

func (a *Analyzer) Process(m model.Sample) Snapshot {
	if m.Timestamp == 0 {
		m.Timestamp = a.now().Unix()
	}

	wasReady := a.cpuWindow.Fulfilled()
	a.cpuWindow.Insert(m.CPU)
	a.rpsWindow.Insert(m.RPS)
	if !m.ReceivedAt.IsZero() {
		a.lagWindow.Insert(a.now().Sub(m.ReceivedAt))
	}

	res := a.snapshot(m)
	if res.Ready && !wasReady {
		a.logger.WithField("window", a.cpuWindow.Capacity()).Info("analytics window fulfilled")
	}
	if res.CPU.Anomaly || res.RPS.Anomaly {
		a.logger.WithFields(logrus.Fields{
			"device_id":  m.DeviceID,
			"zscore_cpu": res.CPU.ZScore,
			"zscore_rps": res.RPS.ZScore,
		}).Debug("anomaly detected")
	}

	a.mu.Lock()
	a.latest = res
	a.mu.Unlock()

	return res
}

// Prime fills the windows from history, oldest first, without publishing snapshots or
// touching the lag window. A failure leaves the windows empty.
func (a *Analyzer) Prime(history []model.Sample) (err error) {
	defer func() {
		if err != nil {
			a.cpuWindow.Reset()
			a.rpsWindow.Reset()
		}
	}()

	for i, m := range history {
		if !validValue(m.CPU) || !validValue(m.RPS) {
			return fmt.Errorf("history sample %d: %w", i, ErrInvalidSample)
		}
		a.cpuWindow.Insert(m.CPU)
		a.rpsWindow.Insert(m.RPS)
	}

	a.logger.WithFields(logrus.Fields{
		"samples": len(history),
		"ready":   a.cpuWindow.Fulfilled(),
	}).Info("analytics windows primed")
	return nil
}

func validValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (a *Analyzer) snapshot(m model.Sample) Snapshot {
	res := Snapshot{
		TimeUnix: m.Timestamp,
		Ready:    a.cpuWindow.Fulfilled() && a.rpsWindow.Fulfilled(),
		Samples:  a.cpuWindow.Size(),
	}
	if res.Ready {
		res.CPU = a.metricStats(a.cpuWindow, m.CPU)
		res.RPS = a.metricStats(a.rpsWindow, m.RPS)
	}
	if lag, err := a.lagWindow.Median(); err == nil {
		res.LagMedian = lag
		res.LagReady = true
	}
	return res
}

// metricStats expects a fulfilled window.
func (a *Analyzer) metricStats(w *windowstats.WindowStats, value float64) MetricStats {
	var s MetricStats
	s.Avg, _ = w.Mean()
	s.Median, _ = w.Median()
	s.Min, _ = w.Min()
	s.Max, _ = w.Max()
	s.ZScore, _ = w.ZScore(value)
	s.Anomaly = math.Abs(s.ZScore) >= a.threshold
	return s
}

func (a *Analyzer) Latest() Snapshot {
	a.mu.RLock()
	res := a.latest
	a.mu.RUnlock()
	return res
}
