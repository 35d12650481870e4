package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamrongol/QueueWithMovingStat/internal/analytics"
	"github.com/lamrongol/QueueWithMovingStat/internal/model"
)

func newTestStore(t *testing.T) (*MetricStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	store := NewMetricStore(srv.Addr(), "", 0, "test")
	t.Cleanup(func() { _ = store.Stop() })
	return store, srv
}

func TestMetricStoreSaveAndFetchLatest(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Check(ctx))

	missing, err := store.FetchLatest(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Save(ctx, model.Sample{DeviceID: "a", CPU: 1, RPS: 2, Timestamp: 10}))
	require.NoError(t, store.Save(ctx, model.Sample{CPU: 3, RPS: 4, Timestamp: 11}))

	latest, err := store.FetchLatest(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(11), latest.Timestamp)

	device, err := store.FetchLatest(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, 1.0, device.CPU)

	assert.True(t, srv.Exists("test:latest:a"))
	assert.Equal(t, time.Hour, srv.TTL("test:latest"))
}

func TestMetricStoreFetchRecentOldestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Save(ctx, model.Sample{CPU: float64(i), Timestamp: int64(i)}))
	}

	recent, err := store.FetchRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []float64{3, 4, 5}, []float64{recent[0].CPU, recent[1].CPU, recent[2].CPU})

	all, err := store.FetchRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := store.FetchRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMetricStoreSnapshotRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	missing, err := store.FetchSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, missing)

	snap := analytics.Snapshot{
		TimeUnix:  42,
		Ready:     true,
		CPU:       analytics.MetricStats{Avg: 1.5, Median: 1, Min: 0.5, Max: 3},
		Samples:   4,
		LagMedian: 5 * time.Millisecond,
		LagReady:  true,
	}
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	got, err := store.FetchSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)
}

func TestMetricStoreCorruptPayload(t *testing.T) {
	store, srv := newTestStore(t)
	require.NoError(t, srv.Set("test:latest", "{not json"))

	_, err := store.FetchLatest(context.Background(), "")
	require.Error(t, err)
}

func TestMetricStoreUnavailable(t *testing.T) {
	store, srv := newTestStore(t)
	srv.Close()

	err := store.Save(context.Background(), model.Sample{CPU: 1})
	require.Error(t, err)
	assert.Error(t, store.Check(context.Background()))
}
