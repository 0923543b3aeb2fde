package models

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Amount holds a non-negative value for each denomination and remembers whether
// any of them changed since the last WasUpdated call.
//
// All methods are safe for concurrent use. Every mutation and the test-and-clear
// of the dirty flag run under one mutex, so a change can never slip between the
// flag test and its reset.
type Amount struct {
	mu      sync.Mutex
	values  Values
	updated bool
}

func NewAmount() *Amount {
	return &Amount{}
}

// NewAmountOf builds an Amount from explicit initial values. Rejected values are
// left at zero and reported. A freshly built Amount is never dirty.
func NewAmountOf(rub, eur, usd any) (*Amount, error) {
	a := NewAmount()
	var errs ValidationErrors
	raws := map[Denomination]any{RUB: rub, EUR: eur, USD: usd}
	for _, d := range Denominations {
		if err := a.setLocked(d, raws[d]); err != nil {
			errs = append(errs, err)
		}
	}
	return a, errs.orNil()
}

// SetField replaces one value.
func (a *Amount) SetField(d Denomination, raw any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.values.Key()
	if err := a.setLocked(d, raw); err != nil {
		return err
	}
	a.markLocked(before)
	return nil
}

// FromMapping replaces each known key present in values. Unknown keys are ignored,
// absent keys keep their value. It returns the receiver for chaining.
func (a *Amount) FromMapping(values map[string]any) (*Amount, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.values.Key()
	var errs ValidationErrors
	for _, d := range Denominations {
		raw, ok := values[string(d)]
		if !ok {
			continue
		}
		if err := a.setLocked(d, raw); err != nil {
			errs = append(errs, err)
		}
	}
	a.markLocked(before)

	return a, errs.orNil()
}

// Accumulate adds each known key present in values to the current value.
// A field whose result would be negative is rejected and keeps its value.
func (a *Amount) Accumulate(values map[string]any) (*Amount, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.values.Key()
	var errs ValidationErrors
	for _, d := range Denominations {
		raw, ok := values[string(d)]
		if !ok {
			continue
		}
		delta, err := ParseValue(raw)
		if err != nil {
			errs = append(errs, &ValidationError{Field: d, Value: raw, Err: ErrUnparsableValue})
			continue
		}
		if err := a.setLocked(d, a.values.Get(d).Add(delta)); err != nil {
			errs = append(errs, &ValidationError{Field: d, Value: raw, Err: err.Err})
		}
	}
	a.markLocked(before)

	return a, errs.orNil()
}

// AddAmount accumulates another Amount. Both values are non-negative so the sum is too.
func (a *Amount) AddAmount(other *Amount) *Amount {
	delta := other.Snapshot()

	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.values.Key()
	for _, d := range Denominations {
		a.values.set(d, a.values.Get(d).Add(delta.Get(d)).RoundBank(Precision))
	}
	a.markLocked(before)
	return a
}

// WasUpdated reports whether a value changed since the previous call and clears the flag.
func (a *Amount) WasUpdated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	updated := a.updated
	a.updated = false
	return updated
}

func (a *Amount) Snapshot() Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.values
}

func (a *Amount) Get(d Denomination) decimal.Decimal {
	return a.Snapshot().Get(d)
}

func (a *Amount) Equal(other *Amount) bool {
	if a == other {
		return true
	}
	if a == nil || other == nil {
		return false
	}
	return a.Snapshot().Equal(other.Snapshot())
}

func (a *Amount) String() string {
	return fmt.Sprintf("Amount(%s)", a.Snapshot())
}

func (a *Amount) setLocked(d Denomination, raw any) *ValidationError {
	value, err := ParseValue(raw)
	if err != nil {
		return &ValidationError{Field: d, Value: raw, Err: ErrUnparsableValue}
	}
	if value.IsNegative() {
		return &ValidationError{Field: d, Value: raw, Err: ErrNegativeValue}
	}
	a.values.set(d, value)
	return nil
}

// markLocked sets the dirty flag when the identity key moved. It never clears a pending change.
func (a *Amount) markLocked(before uint64) {
	if a.values.Key() != before {
		a.updated = true
	}
}

// ConsistentSnapshot reads both amounts while holding both locks, first then second.
// Callers must always pass the pair in the same order to keep a global lock order.
func ConsistentSnapshot(first, second *Amount) (Values, Values) {
	if first == second {
		v := first.Snapshot()
		return v, v
	}

	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	return first.values, second.values
}

// AsMapping normalises a mutation source into a mapping keyed by denomination name.
func AsMapping(src any) (map[string]any, error) {
	switch v := src.(type) {
	case map[string]any:
		return v, nil
	case map[Denomination]any:
		m := make(map[string]any, len(v))
		for d, raw := range v {
			m[string(d)] = raw
		}
		return m, nil
	case Values:
		return v.Mapping(), nil
	case *Amount:
		if v == nil {
			break
		}
		return v.Snapshot().Mapping(), nil
	}
	return nil, fmt.Errorf("%w: got %T", ErrMappingType, src)
}
