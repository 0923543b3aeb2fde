package models

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits stored for every value.
const Precision int32 = 2

// MaxIntegerDigits bounds the magnitude of any stored value.
const MaxIntegerDigits = 15

var (
	amountRegexp = regexp.MustCompile(`^[+-]?\d{1,15}([.,]\d{1,15})?([eE][+-]?\d{1,2})?$`)
	maxValue     = decimal.New(1, MaxIntegerDigits)
)

// ParseValue converts a raw number or numeric string into a decimal rounded to Precision.
// Strings may use either '.' or ',' as the decimal separator. Sign is preserved.
// Values with more than MaxIntegerDigits integer digits are rejected as unparsable.
func ParseValue(raw any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)

	switch v := raw.(type) {
	case decimal.Decimal:
		d = v
	case json.Number:
		d, err = parseString(v.String())
	case string:
		d, err = parseString(v)
	case float64:
		d, err = parseFloat(v)
	case float32:
		d, err = parseFloat(float64(v))
	case int:
		d = decimal.NewFromInt(int64(v))
	case int8:
		d = decimal.NewFromInt(int64(v))
	case int16:
		d = decimal.NewFromInt(int64(v))
	case int32:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case uint:
		d = fromUint(uint64(v))
	case uint8:
		d = fromUint(uint64(v))
	case uint16:
		d = fromUint(uint64(v))
	case uint32:
		d = fromUint(uint64(v))
	case uint64:
		d = fromUint(v)
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrUnparsableValue, raw)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if d.Abs().GreaterThanOrEqual(maxValue) {
		return decimal.Zero, fmt.Errorf("%w: more than %d integer digits", ErrUnparsableValue, MaxIntegerDigits)
	}

	return d.RoundBank(Precision), nil
}

func parseString(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparsableValue, s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnparsableValue, err)
	}
	return d, nil
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func parseFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnparsableValue, f)
	}
	return decimal.NewFromFloat(f), nil
}

// Values is an immutable snapshot of the three denominations.
type Values struct {
	RUB decimal.Decimal
	EUR decimal.Decimal
	USD decimal.Decimal
}

func (v Values) Get(d Denomination) decimal.Decimal {
	switch d {
	case RUB:
		return v.RUB
	case EUR:
		return v.EUR
	case USD:
		return v.USD
	}
	return decimal.Zero
}

func (v *Values) set(d Denomination, value decimal.Decimal) {
	switch d {
	case RUB:
		v.RUB = value
	case EUR:
		v.EUR = value
	case USD:
		v.USD = value
	}
}

// Equal compares numerically, so 3 and 3.00 are equal.
func (v Values) Equal(other Values) bool {
	return v.RUB.Equal(other.RUB) && v.EUR.Equal(other.EUR) && v.USD.Equal(other.USD)
}

// Key is the identity key used to detect changes. It is not an ordering or storage key.
func (v Values) Key() uint64 {
	h := xxhash.New()
	for _, d := range Denominations {
		_, _ = h.WriteString(v.Get(d).StringFixed(Precision))
		_, _ = h.WriteString("|")
	}
	return h.Sum64()
}

// Mapping returns the values keyed by denomination name.
func (v Values) Mapping() map[string]any {
	return map[string]any{
		string(RUB): v.RUB,
		string(EUR): v.EUR,
		string(USD): v.USD,
	}
}

func (v Values) String() string {
	return fmt.Sprintf("rub=%s, eur=%s, usd=%s",
		v.RUB.StringFixed(Precision), v.EUR.StringFixed(Precision), v.USD.StringFixed(Precision))
}
