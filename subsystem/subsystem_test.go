package subsystem

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/breaker"
	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/testkit"
)

func newRecorder(t *testing.T, conn connector.RedisConnector, node string, opts ...Option) *Recorder {
	t.Helper()
	rec, err := NewRecorder(conn, &Config{Node: node}, opts...)
	require.NoError(t, err)
	return rec
}

func newReader(t *testing.T, conn connector.RedisConnector, cfg *Config) *Reader {
	t.Helper()
	if cfg == nil {
		cfg = &Config{Node: "reader"}
	}
	r, err := NewReader(conn, cfg)
	require.NoError(t, err)
	return r
}

func hget(t *testing.T, mr *miniredis.Miniredis, node, field string) float64 {
	t.Helper()
	raw := mr.HGet("awx_metrics:node:"+node, field)
	require.NotEmpty(t, raw, field)
	v, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err)
	return v
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{Node: "awx-1"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "awx_metrics", cfg.KeyPrefix)
	assert.Equal(t, 3*time.Second, cfg.FlushInterval)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "awx_metrics:node:awx-1", cfg.nodeKey("awx-1"))

	assert.ErrorIs(t, (&Config{Node: "x", NodeTTL: -time.Second}).validate(), ErrInvalidConfig)
}

func TestRecorderValidation(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	rec := newRecorder(t, testkit.NewRedisConnector(t, mr), "awx-1")

	assert.ErrorIs(t, rec.Inc("awx_unknown_metric", 1), ErrUnknownMetric)
	assert.ErrorIs(t, rec.Set(analytics.MetricTaskManagerScheduleCalls, 1), ErrKindMismatch)
	assert.ErrorIs(t, rec.Inc(analytics.MetricCallbackReceiverEventsQueueSize, 1), ErrKindMismatch)
	assert.ErrorIs(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 0.5), ErrInvalidValue)
	assert.ErrorIs(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, -1), ErrInvalidValue)
	assert.NoError(t, rec.Inc(analytics.MetricSubsystemMetricsPipeExecuteSeconds, 0.25))

	_, err := NewRecorder(nil, &Config{Node: "x"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRecorderFlush(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	conn := testkit.NewRedisConnector(t, mr)
	ctx := context.Background()

	tick := time.Unix(0, 0)
	rec := newRecorder(t, conn, "awx-1", WithClock(func() time.Time {
		tick = tick.Add(100 * time.Millisecond)
		return tick
	}))

	require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 2))
	require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 3))
	require.NoError(t, rec.Set(analytics.MetricCallbackReceiverEventsQueueSize, 40))
	require.NoError(t, rec.Set(analytics.MetricCallbackReceiverEventsQueueSize, 7))
	require.NoError(t, rec.Flush(ctx))

	assert.InDelta(t, 5, hget(t, mr, "awx-1", analytics.MetricTaskManagerScheduleCalls), 0)
	assert.InDelta(t, 7, hget(t, mr, "awx-1", analytics.MetricCallbackReceiverEventsQueueSize), 0)
	assert.InDelta(t, 1, hget(t, mr, "awx-1", analytics.MetricSubsystemMetricsPipeExecuteCalls), 0)
	members, err := mr.Members("awx_metrics:nodes")
	require.NoError(t, err)
	assert.Equal(t, []string{"awx-1"}, members)

	require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 1))
	require.NoError(t, rec.Flush(ctx))
	assert.InDelta(t, 6, hget(t, mr, "awx-1", analytics.MetricTaskManagerScheduleCalls), 0)
	assert.InDelta(t, 2, hget(t, mr, "awx-1", analytics.MetricSubsystemMetricsPipeExecuteCalls), 0)
	assert.InDelta(t, 0.1, hget(t, mr, "awx-1", analytics.MetricSubsystemMetricsPipeExecuteSeconds), 1e-9)
}

func TestRecorderFlushFailureKeepsBuffer(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	rec := newRecorder(t, testkit.NewRedisConnector(t, mr), "awx-1")
	ctx := context.Background()

	require.NoError(t, rec.Inc(analytics.MetricTaskManagerTasksStarted, 4))
	mr.SetError("LOADING")
	assert.ErrorIs(t, rec.Flush(ctx), ErrUnavailable)

	mr.SetError("")
	require.NoError(t, rec.Inc(analytics.MetricTaskManagerTasksStarted, 1))
	require.NoError(t, rec.Flush(ctx))
	assert.InDelta(t, 5, hget(t, mr, "awx-1", analytics.MetricTaskManagerTasksStarted), 0)
}

func TestRecorderIdleFlushCountsItself(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	rec, err := NewRecorder(testkit.NewRedisConnector(t, mr), &Config{Node: "awx-1", FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	require.Eventually(t, func() bool {
		raw := mr.HGet("awx_metrics:node:awx-1", analytics.MetricSubsystemMetricsPipeExecuteCalls)
		v, err := strconv.ParseFloat(raw, 64)
		return err == nil && v >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	members, err := mr.Members("awx_metrics:nodes")
	require.NoError(t, err)
	assert.Equal(t, []string{"awx-1"}, members)
	assert.Empty(t, mr.HGet("awx_metrics:node:awx-1", analytics.MetricTaskManagerScheduleCalls))
}

func TestRecorderFailedFlushAppliesNothing(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	rec := newRecorder(t, testkit.NewRedisConnector(t, mr), "awx-1")
	ctx := context.Background()

	require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 3))
	require.NoError(t, rec.Flush(ctx))

	require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 2))
	mr.SetError("LOADING")
	assert.ErrorIs(t, rec.Flush(ctx), ErrUnavailable)
	mr.SetError("")
	assert.InDelta(t, 3, hget(t, mr, "awx-1", analytics.MetricTaskManagerScheduleCalls), 0)
	assert.InDelta(t, 1, hget(t, mr, "awx-1", analytics.MetricSubsystemMetricsPipeExecuteCalls), 0)

	require.NoError(t, rec.Flush(ctx))
	assert.InDelta(t, 5, hget(t, mr, "awx-1", analytics.MetricTaskManagerScheduleCalls), 0)
	assert.InDelta(t, 2, hget(t, mr, "awx-1", analytics.MetricSubsystemMetricsPipeExecuteCalls), 0)
}

func TestRecorderRunFlushesOnStop(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	rec, err := NewRecorder(testkit.NewRedisConnector(t, mr), &Config{Node: "awx-1", FlushInterval: time.Hour})
	require.NoError(t, err)
	require.NoError(t, rec.Inc(analytics.MetricCallbackReceiverEventsInsertDB, 9))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.InDelta(t, 9, hget(t, mr, "awx-1", analytics.MetricCallbackReceiverEventsInsertDB), 0)
}

func TestRecorderNodeTTL(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	rec, err := NewRecorder(testkit.NewRedisConnector(t, mr), &Config{Node: "awx-1", NodeTTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, 1))
	require.NoError(t, rec.Flush(context.Background()))

	assert.Equal(t, time.Minute, mr.TTL("awx_metrics:node:awx-1"))
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("awx_metrics:node:awx-1"))
}

func TestReaderRoundTrip(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	conn := testkit.NewRedisConnector(t, mr)
	ctx := context.Background()

	for node, calls := range map[string]float64{"awx-2": 7, "awx-1": 12} {
		rec := newRecorder(t, conn, node)
		require.NoError(t, rec.Inc(analytics.MetricTaskManagerScheduleCalls, calls))
		require.NoError(t, rec.Flush(ctx))
	}
	mr.HSet("awx_metrics:node:awx-1", "awx_not_listed", "3")
	mr.HSet("awx_metrics:node:awx-1", analytics.MetricTaskManagerTasksStarted, "garbage")

	samples, err := newReader(t, conn, nil).SubsystemMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []analytics.SubsystemSample{
		{Node: "awx-1", Metric: analytics.MetricTaskManagerScheduleCalls, Value: 12},
		{Node: "awx-1", Metric: analytics.MetricSubsystemMetricsPipeExecuteCalls, Value: 1},
		{Node: "awx-2", Metric: analytics.MetricTaskManagerScheduleCalls, Value: 7},
		{Node: "awx-2", Metric: analytics.MetricSubsystemMetricsPipeExecuteCalls, Value: 1},
	}, samples)
}

func TestReaderEmpty(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	samples, err := newReader(t, testkit.NewRedisConnector(t, mr), nil).SubsystemMetrics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestReaderBreakerOpens(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	conn := testkit.NewRedisConnector(t, mr)
	r := newReader(t, conn, &Config{
		Node:    "reader",
		Breaker: breaker.Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Hour},
	})
	ctx := context.Background()

	mr.SetError("LOADING")
	for i := 0; i < 2; i++ {
		_, err := r.SubsystemMetrics(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	mr.SetError("")
	_, err := r.SubsystemMetrics(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, breaker.ErrOpenState)
}

func TestReaderImplementsSource(t *testing.T) {
	mr := testkit.NewMiniRedis(t)
	conn := testkit.NewRedisConnector(t, mr)
	rec := newRecorder(t, conn, "awx-1")
	require.NoError(t, rec.Set(analytics.MetricCallbackReceiverEventsQueueSize, 3))
	require.NoError(t, rec.Flush(context.Background()))

	defs := analytics.NewCatalog(analytics.Sources{Subsystem: newReader(t, conn, nil)}, analytics.SystemInfo{})
	reg, err := analytics.NewRegistry(defs...)
	require.NoError(t, err)

	snap := analytics.NewAggregator(reg).Collect(context.Background(), analytics.CollectOptions{})
	var found bool
	for _, s := range snap.Samples {
		if s.Name == analytics.MetricCallbackReceiverEventsQueueSize {
			found = true
			assert.InDelta(t, 3, s.Value, 0)
			assert.Equal(t, []analytics.Label{analytics.L("node", "awx-1")}, s.Labels)
		}
	}
	assert.True(t, found)
}
