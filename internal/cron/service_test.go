package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(failing, nil, ok),
		Lock:     NoopLock{},
		Metrics:  metrics.NewMaintenanceMetrics(reg),
	})
	require.NoError(t, err)
	require.NoError(t, svc.runCycle(context.Background()))

	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, failing.runs)
	series, err := testutil.GatherAndCount(reg, "bookstore_maintenance_job_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 2, series)
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	store := newMemoryLockStore()
	holder, err := NewRedisLock(store, "bookstore:maintenance:lock:test", time.Minute)
	require.NoError(t, err)
	locked, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, locked)

	contender, err := NewRedisLock(store, "bookstore:maintenance:lock:test", time.Minute)
	require.NoError(t, err)
	job := &testJob{name: "job"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(job),
		Lock:     contender,
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	require.Zero(t, job.runs)

	require.NoError(t, holder.Release(context.Background()))
	require.NoError(t, svc.runCycle(context.Background()))
	require.Equal(t, 1, job.runs)
	_, err = store.Get(context.Background(), "bookstore:maintenance:lock:test")
	require.ErrorIs(t, err, redis.Nil)
}

func TestRedisLockReleaseIgnoresForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	locked, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, locked)

	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(context.Background()))
	require.Equal(t, "someone-else", store.values["k"])
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: NoopLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "x"})})
	require.Error(t, err)

	svc, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "x"}), Lock: NoopLock{}})
	require.NoError(t, err)
	require.Equal(t, defaultInterval, svc.interval)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(job),
		Lock:     NoopLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	require.Equal(t, 1, job.runs)
}

type memoryLockStore struct {
	values map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
