package observability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T) float64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, activitiesStoredGauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func counterValue(t *testing.T) float64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, activityUpsertCounter.Write(metric))
	return metric.GetCounter().GetValue()
}

type countFunc func(context.Context) (int, error)

func (f countFunc) Count(ctx context.Context) (int, error) { return f(ctx) }

func TestRecordActivityPersisted(t *testing.T) {
	before := counterValue(t)
	ts := time.Date(2024, time.May, 1, 7, 30, 0, 0, time.UTC)

	RecordActivityPersisted(ts)
	RecordActivityPersisted(time.Time{})

	require.Equal(t, before+2, counterValue(t))
	metric := &dto.Metric{}
	require.NoError(t, activityPersistGauge.Write(metric))
	require.Equal(t, float64(ts.Unix()), metric.GetGauge().GetValue())
}

func TestRunStoredGaugeRefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	counter := countFunc(func(context.Context) (int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			return 0, errors.New("connection reset")
		}
		if n >= 3 {
			cancel()
		}
		return 7, nil
	})

	done := make(chan error, 1)
	go func() { done <- RunStoredGauge(ctx, counter, time.Millisecond, zerolog.Nop()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("refresher did not stop")
	}
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
	require.Equal(t, float64(7), gaugeValue(t))
}
