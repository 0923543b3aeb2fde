package usecase

import "errors"

var (
	// ErrRatesUnavailable means no rate table has been applied yet.
	ErrRatesUnavailable = errors.New("exchange rates are not available yet")
)
