package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	"github.com/Nzyazin/currency-tracker/internal/core/metrics"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/repository"
)

// RateWriter is the writer side of the rate snapshot.
type RateWriter interface {
	ApplyRates(rates models.Values) error
}

// RateRefresher is the only writer of the rate snapshot.
type RateRefresher struct {
	source       repository.RateSource
	store        RateWriter
	period       time.Duration
	fetchTimeout time.Duration
	log          logger.Logger
	metrics      *metrics.Metrics
}

func NewRateRefresher(
	source repository.RateSource,
	store RateWriter,
	period time.Duration,
	fetchTimeout time.Duration,
	log logger.Logger,
	m *metrics.Metrics,
) *RateRefresher {
	return &RateRefresher{
		source:       source,
		store:        store,
		period:       period,
		fetchTimeout: fetchTimeout,
		log:          log,
		metrics:      m,
	}
}

// Run refreshes once per period until ctx is done. A failed cycle is logged and
// the snapshot is left as it was; there is no retry before the next period.
func (r *RateRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	r.log.Info("Start rate refresher", logger.DurationField("period", r.period))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Stopping rate refresher")
			return nil
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.log.Error("Rate refresh failed", logger.ErrorField("error", err))
			}
		}
	}
}

// RefreshOnce runs a single fetch-and-apply cycle.
func (r *RateRefresher) RefreshOnce(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		r.metrics.RateRefreshDuration.Observe(time.Since(begin).Seconds())
		if err != nil {
			r.metrics.RefreshFailed()
			return
		}
		r.metrics.RefreshSucceeded()
	}(time.Now())

	fetchCtx := ctx
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	rates, err := r.source.Fetch(fetchCtx)
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}

	if err := r.store.ApplyRates(rates); err != nil {
		return fmt.Errorf("apply rates: %w", err)
	}
	return nil
}
