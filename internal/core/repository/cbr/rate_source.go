package cbr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/repository"
)

// DefaultURL is the daily rate table of the Central Bank of Russia.
const DefaultURL = "https://www.cbr-xml-daily.ru/daily_json.js"

// MaxResponseBytes bounds the rate table read from upstream.
const MaxResponseBytes = 1 << 20

type rateSource struct {
	url    string
	client http.Client
}

// NewRateSource returns a RateSource reading the CBR daily JSON at url.
func NewRateSource(url string, timeout time.Duration) repository.RateSource {
	return &rateSource{
		url: url,
		client: http.Client{
			Timeout: timeout,
		},
	}
}

type valute struct {
	CharCode string          `json:"CharCode"`
	Nominal  int64           `json:"Nominal"`
	Value    decimal.Decimal `json:"Value"`
}

type dailyResponse struct {
	Date   string            `json:"Date"`
	Valute map[string]valute `json:"Valute"`
}

// Fetch loads the current EUR and USD prices in RUB.
func (s *rateSource) Fetch(ctx context.Context) (models.Values, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.Values{}, fmt.Errorf("building http request: %w", err)
	}

	httpResponse, err := s.client.Do(request)
	if err != nil {
		return models.Values{}, fmt.Errorf("http get: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return models.Values{}, fmt.Errorf("cbr returned status %d", httpResponse.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, MaxResponseBytes+1))
	if err != nil {
		return models.Values{}, fmt.Errorf("reading body: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return models.Values{}, fmt.Errorf("%w: response exceeds %d bytes", repository.ErrMalformedRates, MaxResponseBytes)
	}

	var response dailyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return models.Values{}, fmt.Errorf("decoding json: %w", err)
	}

	rates := models.Values{RUB: decimal.NewFromInt(1)}
	for _, d := range []models.Denomination{models.EUR, models.USD} {
		rate, err := response.price(d.Code())
		if err != nil {
			return models.Values{}, err
		}
		switch d {
		case models.EUR:
			rates.EUR = rate
		case models.USD:
			rates.USD = rate
		}
	}

	return rates, nil
}

// price is the RUB price of a single unit. CBR quotes some currencies per 10 or 100 units.
func (r dailyResponse) price(code string) (decimal.Decimal, error) {
	v, ok := r.Valute[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s is missing", repository.ErrMalformedRates, code)
	}
	if !v.Value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s rate is %s", repository.ErrMalformedRates, code, v.Value)
	}
	if v.Nominal > 1 {
		return v.Value.DivRound(decimal.NewFromInt(v.Nominal), 4), nil
	}
	return v.Value, nil
}
