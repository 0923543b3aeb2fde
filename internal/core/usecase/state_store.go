package usecase

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	"github.com/Nzyazin/currency-tracker/internal/core/metrics"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
)

const (
	EntityUser = "user"
	EntityCBR  = "cbr"

	operationReplace    = "replace"
	operationAccumulate = "accumulate"
)

// BalanceUsecase is what the HTTP layer needs from the state store.
type BalanceUsecase interface {
	ReadBalance() models.Values
	ReplaceBalance(src any) error
	AccumulateBalance(src any) error
	ReadRate() models.Values
	ComputeTotal() (Total, error)
}

// Total is the balance converted with one consistent rate snapshot.
type Total struct {
	Balance models.Values
	Rate    models.Values
	RUB     decimal.Decimal
	EUR     decimal.Decimal
	USD     decimal.Decimal
}

// Tracked names an entity for the change monitor.
type Tracked struct {
	Name   string
	Entity *models.Amount
}

// StateStore owns the user balance and the rate snapshot. Whenever both are
// needed the balance lock is taken before the rate lock.
type StateStore struct {
	balance *models.Amount
	rate    *models.Amount
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewStateStore starts with the given balance and an empty rate snapshot pinned at rub=1.
func NewStateStore(balance *models.Amount, log logger.Logger, m *metrics.Metrics) *StateStore {
	rate := models.NewAmount()
	_ = rate.SetField(models.RUB, 1)
	rate.WasUpdated()

	s := &StateStore{
		balance: balance,
		rate:    rate,
		log:     log,
		metrics: m,
	}
	m.TrackValues(EntityUser, balance.Snapshot)
	m.TrackValues(EntityCBR, rate.Snapshot)
	return s
}

func (s *StateStore) ReadBalance() models.Values {
	return s.balance.Snapshot()
}

// ReplaceBalance overwrites every known key present in src. Accepted fields are
// applied even when others are rejected; the rejections are returned.
func (s *StateStore) ReplaceBalance(src any) error {
	values, err := s.mapping(operationReplace, src)
	if err != nil {
		return err
	}
	_, err = s.balance.FromMapping(values)
	s.logResult(operationReplace, values, err)
	return err
}

// AccumulateBalance adds every known key present in src to the balance.
func (s *StateStore) AccumulateBalance(src any) error {
	values, err := s.mapping(operationAccumulate, src)
	if err != nil {
		return err
	}
	_, err = s.balance.Accumulate(values)
	s.logResult(operationAccumulate, values, err)
	return err
}

func (s *StateStore) ReadRate() models.Values {
	return s.rate.Snapshot()
}

// ApplyRates merges a fetched rate table into the snapshot. RUB is the base
// denomination and is never overwritten.
func (s *StateStore) ApplyRates(rates models.Values) error {
	values := rates.Mapping()
	delete(values, string(models.RUB))

	if _, err := s.rate.FromMapping(values); err != nil {
		s.log.Error("Rate table rejected", logger.ErrorField("error", err))
		return err
	}
	return nil
}

// ComputeTotal converts the balance into each denomination.
func (s *StateStore) ComputeTotal() (Total, error) {
	balance, rate := models.ConsistentSnapshot(s.balance, s.rate)

	if !rate.EUR.IsPositive() || !rate.USD.IsPositive() {
		return Total{}, ErrRatesUnavailable
	}

	total := balance.RUB.
		Add(balance.EUR.Mul(rate.EUR).RoundBank(0)).
		Add(balance.USD.Mul(rate.USD).RoundBank(0))

	return Total{
		Balance: balance,
		Rate:    rate,
		RUB:     total,
		EUR:     total.Div(rate.EUR).RoundBank(4),
		USD:     total.Div(rate.USD).RoundBank(4),
	}, nil
}

// Tracked lists the entities the change monitor polls.
func (s *StateStore) Tracked() []Tracked {
	return []Tracked{
		{Name: EntityUser, Entity: s.balance},
		{Name: EntityCBR, Entity: s.rate},
	}
}

func (s *StateStore) mapping(operation string, src any) (map[string]any, error) {
	values, err := models.AsMapping(src)
	if err != nil {
		s.log.Error("Mutation skipped",
			logger.StringField("operation", operation),
			logger.ErrorField("error", err))
		return nil, err
	}
	return values, nil
}

func (s *StateStore) logResult(operation string, values map[string]any, err error) {
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		s.metrics.ValidationFailed(operation, verrs.Names())
		s.log.Error("Balance fields rejected",
			logger.StringField("operation", operation),
			logger.AnyField("request", values),
			logger.ErrorField("error", err))
	}
	s.log.Debug("Balance changed",
		logger.StringField("operation", operation),
		logger.StringField("balance", s.balance.Snapshot().String()))
}
