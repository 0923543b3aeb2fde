package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Nzyazin/currency-tracker/internal/core/metrics"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/scheduler"
	"github.com/Nzyazin/currency-tracker/internal/core/usecase"
)

var errUpstream = errors.New("upstream is down")

type fakeSource struct {
	calls atomic.Int64
	fail  atomic.Bool
	eur   string
	usd   string
}

func (f *fakeSource) Fetch(ctx context.Context) (models.Values, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return models.Values{}, err
	}
	if f.fail.Load() {
		return models.Values{}, errUpstream
	}
	return models.Values{
		RUB: decimal.NewFromInt(1),
		EUR: decimal.RequireFromString(f.eur),
		USD: decimal.RequireFromString(f.usd),
	}, nil
}

type blockingSource struct{}

func (blockingSource) Fetch(ctx context.Context) (models.Values, error) {
	<-ctx.Done()
	return models.Values{}, ctx.Err()
}

func newStateStore(t *testing.T, m *metrics.Metrics) *usecase.StateStore {
	t.Helper()
	balance, err := models.NewAmountOf(0, 0, 0)
	require.NoError(t, err)
	return usecase.NewStateStore(balance, zap.NewNop(), m)
}

func TestRefreshOnce(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	store := newStateStore(t, m)
	source := &fakeSource{eur: "98.7152", usd: "90.9461"}
	refresher := scheduler.NewRateRefresher(source, store, time.Minute, time.Second, zap.NewNop(), m)

	require.NoError(t, refresher.RefreshOnce(context.Background()))

	got := store.ReadRate()
	assert.Equal(t, "1", got.RUB.String())
	assert.Equal(t, "98.72", got.EUR.String())
	assert.Equal(t, "90.95", got.USD.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateRefreshTotal.WithLabelValues("success")))
}

func TestRefreshOnce_FailureKeepsSnapshot(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	store := newStateStore(t, m)
	source := &fakeSource{eur: "90", usd: "80"}
	refresher := scheduler.NewRateRefresher(source, store, time.Minute, time.Second, zap.NewNop(), m)
	require.NoError(t, refresher.RefreshOnce(context.Background()))

	source.fail.Store(true)
	err := refresher.RefreshOnce(context.Background())

	assert.ErrorIs(t, err, errUpstream)
	got := store.ReadRate()
	assert.Equal(t, "90", got.EUR.String())
	assert.Equal(t, "80", got.USD.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateRefreshTotal.WithLabelValues("failure")))
}

func TestRefreshOnce_FetchTimeout(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	store := newStateStore(t, m)
	refresher := scheduler.NewRateRefresher(blockingSource{}, store, time.Minute, 20*time.Millisecond, zap.NewNop(), m)

	err := refresher.RefreshOnce(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = store.ComputeTotal()
	assert.ErrorIs(t, err, usecase.ErrRatesUnavailable)
}

func TestRateRefresher_Run(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	store := newStateStore(t, m)
	source := &fakeSource{eur: "90", usd: "80"}
	source.fail.Store(true)
	refresher := scheduler.NewRateRefresher(source, store, 5*time.Millisecond, time.Second, zap.New(core), m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- refresher.Run(ctx) }()

	// failed cycles do not stop the loop
	require.Eventually(t, func() bool { return source.calls.Load() >= 2 }, time.Second, time.Millisecond)
	source.fail.Store(false)
	require.Eventually(t, func() bool {
		return store.ReadRate().EUR.Equal(decimal.NewFromInt(90))
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancel")
	}

	assert.NotZero(t, logs.FilterMessage("Rate refresh failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Stopping rate refresher").Len())
	assert.Equal(t, "1", store.ReadRate().RUB.String())
}
