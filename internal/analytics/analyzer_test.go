package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamrongol/QueueWithMovingStat/internal/model"
	"github.com/lamrongol/QueueWithMovingStat/internal/windowstats"
)

func newTestAnalyzer(t *testing.T, window, lagWindow int) (*Analyzer, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	a, err := NewAnalyzer(window, lagWindow, 2.0, logger)
	require.NoError(t, err)
	return a, hook
}

func TestNewAnalyzerRejectsEvenLagWindow(t *testing.T) {
	_, err := NewAnalyzer(10, 4, 2.0, logrus.New())
	require.ErrorIs(t, err, windowstats.ErrEvenCapacity)
}

func TestAnalyzerWarmUpThenStats(t *testing.T) {
	a, hook := newTestAnalyzer(t, 4, 3)

	for i, cpu := range []float64{10, 20, 30} {
		res := a.Process(model.Sample{CPU: cpu, RPS: 100, Timestamp: int64(i + 1)})
		assert.False(t, res.Ready)
		assert.Equal(t, i+1, res.Samples)
		assert.Zero(t, res.CPU.Median)
	}

	res := a.Process(model.Sample{CPU: 40, RPS: 100, Timestamp: 4})
	require.True(t, res.Ready)
	assert.Equal(t, 25.0, res.CPU.Avg)
	assert.Equal(t, 25.0, res.CPU.Median)
	assert.Equal(t, 10.0, res.CPU.Min)
	assert.Equal(t, 40.0, res.CPU.Max)
	assert.Equal(t, 100.0, res.RPS.Median)
	assert.Zero(t, res.RPS.ZScore)
	assert.False(t, res.RPS.Anomaly)
	assert.Equal(t, int64(4), res.TimeUnix)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "analytics window fulfilled", hook.LastEntry().Message)

	res = a.Process(model.Sample{CPU: 50, RPS: 100, Timestamp: 5})
	assert.Equal(t, 35.0, res.CPU.Median)
	assert.Equal(t, 20.0, res.CPU.Min)
	assert.Equal(t, res, a.Latest())
}

func TestAnalyzerFlagsAnomaly(t *testing.T) {
	a, hook := newTestAnalyzer(t, 10, 3)
	for i := 0; i < 10; i++ {
		a.Process(model.Sample{CPU: 1, RPS: float64(10 + i%2)})
	}

	res := a.Process(model.Sample{DeviceID: "dev-1", CPU: 1, RPS: 1000})
	assert.True(t, res.RPS.Anomaly)
	assert.False(t, res.CPU.Anomaly)
	assert.GreaterOrEqual(t, math.Abs(res.RPS.ZScore), 2.0)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "anomaly detected", entry.Message)
	assert.Equal(t, "dev-1", entry.Data["device_id"])
}

func TestAnalyzerLagMedian(t *testing.T) {
	a, _ := newTestAnalyzer(t, 2, 3)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	for _, lag := range []time.Duration{30 * time.Millisecond, 10 * time.Millisecond} {
		res := a.Process(model.Sample{CPU: 1, RPS: 1, ReceivedAt: now.Add(-lag)})
		assert.False(t, res.LagReady)
	}

	res := a.Process(model.Sample{CPU: 1, RPS: 1, ReceivedAt: now.Add(-20 * time.Millisecond)})
	require.True(t, res.LagReady)
	assert.Equal(t, 20*time.Millisecond, res.LagMedian)
	assert.Equal(t, now.Unix(), res.TimeUnix)

	// samples without a receive time do not touch the lag window
	res = a.Process(model.Sample{CPU: 1, RPS: 1})
	assert.Equal(t, 20*time.Millisecond, res.LagMedian)
}

func TestAnalyzerPrime(t *testing.T) {
	a, _ := newTestAnalyzer(t, 3, 3)

	err := a.Prime([]model.Sample{{CPU: 5, RPS: 1}, {CPU: 1, RPS: 2}, {CPU: 3, RPS: 3}, {CPU: 9, RPS: 4}})
	require.NoError(t, err)
	assert.Equal(t, Snapshot{}, a.Latest())

	res := a.Process(model.Sample{CPU: 2, RPS: 5})
	require.True(t, res.Ready)
	// window is 3 9 2
	assert.Equal(t, 3.0, res.CPU.Median)
	assert.Equal(t, 2.0, res.CPU.Min)
	assert.Equal(t, 9.0, res.CPU.Max)
	assert.Equal(t, 4.0, res.RPS.Median)
}

func TestAnalyzerPrimeRejectsInvalidHistory(t *testing.T) {
	a, _ := newTestAnalyzer(t, 2, 3)

	err := a.Prime([]model.Sample{{CPU: 1, RPS: 1}, {CPU: math.NaN(), RPS: 1}})
	require.ErrorIs(t, err, ErrInvalidSample)

	res := a.Process(model.Sample{CPU: 1, RPS: 1})
	assert.False(t, res.Ready)
	assert.Equal(t, 1, res.Samples)
}
