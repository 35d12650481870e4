package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lamrongol/QueueWithMovingStat/internal/analytics"
	"github.com/lamrongol/QueueWithMovingStat/internal/model"
)

const (
	latestTTL     = time.Hour
	recentHistory = 1000
)

type MetricStore struct {
	client *redis.Client
	prefix string
}

func NewMetricStore(addr, password string, db int, prefix string) *MetricStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if prefix == "" {
		prefix = "metrics"
	}
	return &MetricStore{client: client, prefix: prefix}
}

func (s *MetricStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *MetricStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *MetricStore) Stop() error {
	return s.client.Close()
}

func (s *MetricStore) Save(ctx context.Context, m model.Sample) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key("latest"), payload, latestTTL)
	pipe.LPush(ctx, s.key("recent"), payload)
	pipe.LTrim(ctx, s.key("recent"), 0, recentHistory-1)
	if m.DeviceID != "" {
		pipe.Set(ctx, s.key("latest", m.DeviceID), payload, latestTTL)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}

	return nil
}

func (s *MetricStore) FetchLatest(ctx context.Context, deviceID string) (*model.Sample, error) {
	key := s.key("latest")
	if deviceID != "" {
		key = s.key("latest", deviceID)
	}

	var m model.Sample
	found, err := s.getJSON(ctx, key, &m)
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

// FetchRecent returns up to n of the most recently saved samples, oldest first.
func (s *MetricStore) FetchRecent(ctx context.Context, n int) ([]model.Sample, error) {
	if n <= 0 {
		return nil, nil
	}

	items, err := s.client.LRange(ctx, s.key("recent"), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	samples := make([]model.Sample, 0, len(items))
	for _, item := range items {
		var m model.Sample
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal metric: %w", err)
		}
		samples = append(samples, m)
	}
	// the list is pushed newest first
	slices.Reverse(samples)
	return samples, nil
}

func (s *MetricStore) SaveSnapshot(ctx context.Context, snap analytics.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key("analytics"), payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *MetricStore) FetchSnapshot(ctx context.Context) (*analytics.Snapshot, error) {
	var snap analytics.Snapshot
	found, err := s.getJSON(ctx, s.key("analytics"), &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

func (s *MetricStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}
