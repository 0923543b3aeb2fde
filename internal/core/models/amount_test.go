package models_test

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nzyazin/currency-tracker/internal/core/models"
)

var sample = map[string]any{"rub": 10, "eur": "3", "usd": "1,5"}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestNewAmountOf_MatchesFromMapping(t *testing.T) {
	direct, err := models.NewAmountOf(sample["rub"], sample["eur"], sample["usd"])
	require.NoError(t, err)

	mapped, err := models.NewAmount().FromMapping(sample)
	require.NoError(t, err)

	assert.True(t, direct.Equal(mapped))
	assertDecimal(t, "3", direct.Get(models.EUR))
	assertDecimal(t, "1.5", mapped.Get(models.USD))
	assert.False(t, direct.WasUpdated(), "constructor must not leave the amount dirty")
}

func TestNewAmountOf_ErrorsInDenominationOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		_, err := models.NewAmountOf("x", -1, "y")

		var verrs models.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.Len(t, verrs, 3)
		assert.Equal(t, models.RUB, verrs[0].Field)
		assert.Equal(t, models.EUR, verrs[1].Field)
		assert.Equal(t, models.USD, verrs[2].Field)
	}
}

func TestEqual_Nil(t *testing.T) {
	a := models.NewAmount()
	var missing *models.Amount

	assert.False(t, a.Equal(nil))
	assert.False(t, missing.Equal(a))
	assert.True(t, missing.Equal(nil))
}

func TestAccumulate_RejectsOverflow(t *testing.T) {
	a, err := models.NewAmountOf("999999999999999", 0, 0)
	require.NoError(t, err)

	_, err = a.Accumulate(map[string]any{"rub": 1})

	assert.ErrorIs(t, err, models.ErrUnparsableValue)
	assertDecimal(t, "999999999999999", a.Get(models.RUB))
}

func TestParseDenomination(t *testing.T) {
	d, err := models.ParseDenomination("eur")
	require.NoError(t, err)
	assert.Equal(t, models.EUR, d)
	assert.Equal(t, "EUR", d.Code())

	_, err = models.ParseDenomination("RUB")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    string
		wantErr error
	}{
		{"int", 10, "10", nil},
		{"float rounded", 2.345, "2.34", nil},
		{"string dot", "1.5", "1.5", nil},
		{"string comma", "1,5", "1.5", nil},
		{"string spaces", "  7,25 ", "7.25", nil},
		{"json number", json.Number("12.005"), "12", nil},
		{"banker rounding", "0.125", "0.12", nil},
		{"negative kept", "-4", "-4", nil},
		{"uint", uint32(9), "9", nil},
		{"decimal", dec("5.555"), "5.56", nil},
		{"letters", "abc", "", models.ErrUnparsableValue},
		{"thousands separator", "1,000.5", "", models.ErrUnparsableValue},
		{"empty", "", "", models.ErrUnparsableValue},
		{"nan", math.NaN(), "", models.ErrUnparsableValue},
		{"bool", true, "", models.ErrUnparsableValue},
		{"nil", nil, "", models.ErrUnparsableValue},
		{"small exponent", "1.5e3", "1500", nil},
		{"largest accepted", "999999999999999.99", "999999999999999.99", nil},
		{"huge exponent", "1e2000000", "", models.ErrUnparsableValue},
		{"huge exponent json", json.Number("1e20000"), "", models.ErrUnparsableValue},
		{"too many digits", "1000000000000000", "", models.ErrUnparsableValue},
		{"exponent past limit", "1e15", "", models.ErrUnparsableValue},
		{"huge float", 1e308, "", models.ErrUnparsableValue},
		{"huge decimal", decimal.New(1, 40), "", models.ErrUnparsableValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.ParseValue(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
		})
	}
}

func TestSetField_RejectsNegative(t *testing.T) {
	a, err := models.NewAmountOf(5, 0, 0)
	require.NoError(t, err)

	err = a.SetField(models.RUB, -1)
	require.ErrorIs(t, err, models.ErrNegativeValue)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.RUB, verr.Field)

	assertDecimal(t, "5", a.Get(models.RUB))
	assert.False(t, a.WasUpdated(), "a rejected write must not mark the amount dirty")
}

func TestFromMapping_PartialRejection(t *testing.T) {
	a := models.NewAmount()

	_, err := a.FromMapping(map[string]any{"rub": "12", "eur": "-3", "usd": "x", "gbp": 1})
	require.Error(t, err)

	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"eur", "usd"}, verrs.Names())
	assert.ErrorIs(t, err, models.ErrNegativeValue)
	assert.ErrorIs(t, err, models.ErrUnparsableValue)

	assertDecimal(t, "12", a.Get(models.RUB))
	assertDecimal(t, "0", a.Get(models.EUR))
	assert.True(t, a.WasUpdated())
}

func TestWasUpdated_TestAndClear(t *testing.T) {
	a := models.NewAmount()

	_, err := a.FromMapping(map[string]any{"eur": 1})
	require.NoError(t, err)

	assert.True(t, a.WasUpdated())
	assert.False(t, a.WasUpdated())

	_, err = a.FromMapping(map[string]any{"eur": "1.00"})
	require.NoError(t, err)
	assert.False(t, a.WasUpdated(), "writing the same value is not a change")
}

func TestWasUpdated_StickyUntilConsumed(t *testing.T) {
	a := models.NewAmount()

	_, err := a.FromMapping(map[string]any{"rub": 3})
	require.NoError(t, err)
	_, err = a.FromMapping(map[string]any{"rub": 3})
	require.NoError(t, err)

	assert.True(t, a.WasUpdated(), "a no-op mutation must not hide an earlier change")
}

func TestIdentityKey_DetectsMovedValue(t *testing.T) {
	a, err := models.NewAmountOf(1, 2, 0)
	require.NoError(t, err)

	_, err = a.FromMapping(map[string]any{"rub": 2, "eur": 1})
	require.NoError(t, err)
	assert.True(t, a.WasUpdated())
}

func TestAccumulate(t *testing.T) {
	a, err := models.NewAmount().FromMapping(map[string]any{"rub": 10})
	require.NoError(t, err)
	a.WasUpdated()

	_, err = a.Accumulate(map[string]any{"rub": 10})
	require.NoError(t, err)

	assertDecimal(t, "20", a.Get(models.RUB))
	assert.True(t, a.WasUpdated())
}

func TestAccumulate_WithSample(t *testing.T) {
	a, err := models.NewAmount().FromMapping(map[string]any{"rub": 10})
	require.NoError(t, err)

	_, err = a.Accumulate(sample)
	require.NoError(t, err)

	assertDecimal(t, "20", a.Get(models.RUB))
	assertDecimal(t, "3", a.Get(models.EUR))
	assertDecimal(t, "1.5", a.Get(models.USD))
	assert.True(t, a.WasUpdated())
}

func TestAccumulate_RejectsNegativeResult(t *testing.T) {
	a, err := models.NewAmountOf(10, 5, 0)
	require.NoError(t, err)

	_, err = a.Accumulate(map[string]any{"rub": -4, "eur": -6})
	require.ErrorIs(t, err, models.ErrNegativeValue)

	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"eur"}, verrs.Names())

	assertDecimal(t, "6", a.Get(models.RUB))
	assertDecimal(t, "5", a.Get(models.EUR))
}

func TestAddAmount(t *testing.T) {
	a, err := models.NewAmountOf(1, 2, 3)
	require.NoError(t, err)
	b, err := models.NewAmountOf("0,5", 0, 1)
	require.NoError(t, err)

	a.AddAmount(b)

	want, err := models.NewAmountOf("1.5", 2, 4)
	require.NoError(t, err)
	assert.True(t, a.Equal(want))
	assert.True(t, a.WasUpdated())
}

func TestAsMapping(t *testing.T) {
	a, err := models.NewAmountOf(1, 2, 3)
	require.NoError(t, err)

	for _, src := range []any{
		map[string]any{"rub": 1},
		map[models.Denomination]any{models.RUB: 1},
		a.Snapshot(),
		a,
	} {
		m, err := models.AsMapping(src)
		require.NoError(t, err)
		assert.Contains(t, m, "rub")
	}

	for _, src := range []any{[]any{1, 2}, "rub", 5.0, nil, (*models.Amount)(nil)} {
		_, err := models.AsMapping(src)
		assert.ErrorIs(t, err, models.ErrMappingType)
	}
}

func TestConcurrentAccumulate(t *testing.T) {
	const goroutines = 1000

	a := models.NewAmount()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	errCh := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := a.Accumulate(map[string]any{"rub": 1})
			errCh <- err
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}
	assertDecimal(t, "1000", a.Get(models.RUB))
	assert.True(t, a.WasUpdated())
	assert.False(t, a.WasUpdated())
}

func TestConcurrentWasUpdated_NoLostChange(t *testing.T) {
	const writes = 500

	a := models.NewAmount()

	var (
		wg       sync.WaitGroup
		observed int
		mu       sync.Mutex
	)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			default:
				if a.WasUpdated() {
					mu.Lock()
					observed++
					mu.Unlock()
				}
			}
		}
	}()

	wg.Add(writes)
	for i := 0; i < writes; i++ {
		go func() {
			defer wg.Done()
			_, _ = a.Accumulate(map[string]any{"usd": "0.01"})
		}()
	}
	wg.Wait()
	close(done)

	mu.Lock()
	defer mu.Unlock()
	// Every write changed the key, so at least one observation (or a pending flag) must exist.
	assert.True(t, observed > 0 || a.WasUpdated())
	assertDecimal(t, "5", a.Get(models.USD))
}

func TestConsistentSnapshot(t *testing.T) {
	balance, err := models.NewAmountOf(10, 0, 0)
	require.NoError(t, err)
	rate, err := models.NewAmountOf(1, 90, 80)
	require.NoError(t, err)

	b, r := models.ConsistentSnapshot(balance, rate)
	assertDecimal(t, "10", b.RUB)
	assertDecimal(t, "90", r.EUR)

	same1, same2 := models.ConsistentSnapshot(balance, balance)
	assert.True(t, same1.Equal(same2))
}

func TestValidationErrors_Fields(t *testing.T) {
	_, err := models.NewAmountOf(-1, 0, "oops")
	var verrs models.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := verrs.Fields()
	assert.Equal(t, "rub value must be >= 0", fields["rub"])
	assert.Equal(t, "usd value is not a number", fields["usd"])
}
