package cbr

import (
	"context"
	"time"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/repository"
)

// loggingSource decorates a RateSource with logging
type loggingSource struct {
	next repository.RateSource
	log  logger.Logger
}

func NewLoggingSource(log logger.Logger, s repository.RateSource) repository.RateSource {
	return &loggingSource{next: s, log: log}
}

func (s *loggingSource) Fetch(ctx context.Context) (rates models.Values, err error) {
	s.log.Info("Check new rate")
	defer func(begin time.Time) {
		if err != nil {
			s.log.Warn("Rate fetch failed",
				logger.DurationField("took", time.Since(begin)),
				logger.ErrorField("error", err),
			)
			return
		}
		s.log.Debug("Rate fetched",
			logger.StringField("rates", rates.String()),
			logger.DurationField("took", time.Since(begin)),
		)
	}(time.Now())
	return s.next.Fetch(ctx)
}
