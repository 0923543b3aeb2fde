package repository

import (
	"context"
	"errors"

	"github.com/Nzyazin/currency-tracker/internal/core/models"
)

// ErrMalformedRates is returned when the rate source answers with a table the
// tracker cannot use: a missing currency, or a non-positive rate.
var ErrMalformedRates = errors.New("malformed rate table")

// RateSource fetches a fresh rate table on demand. Values are the price of one
// unit of each denomination in RUB, so RUB is always 1. Implementations do not retry.
type RateSource interface {
	Fetch(ctx context.Context) (models.Values, error)
}
