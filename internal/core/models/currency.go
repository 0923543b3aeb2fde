package models

import "fmt"

// Denomination is one of the three tracked currency slots.
type Denomination string

const (
	// RUB is the base denomination, rates are expressed in it.
	RUB Denomination = "rub"
	EUR Denomination = "eur"
	USD Denomination = "usd"
)

// Denominations lists the slots in display order.
var Denominations = []Denomination{RUB, EUR, USD}

// ISO 4217 codes, as used by rate tables.
var codes = map[Denomination]string{
	RUB: "RUB",
	EUR: "EUR",
	USD: "USD",
}

// ParseDenomination accepts the lower case slot name ("rub").
func ParseDenomination(s string) (Denomination, error) {
	d := Denomination(s)
	if _, ok := codes[d]; !ok {
		return "", fmt.Errorf("unknown denomination %q", s)
	}
	return d, nil
}

func (d Denomination) Code() string {
	return codes[d]
}

func (d Denomination) String() string {
	return string(d)
}
