package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/repository/cbr"
)

const (
	EnvPrefix = "tracker"
	envFile   = "config.env"
)

type Config struct {
	// Refresh period in minutes
	Period          int           `validate:"gt=0"`
	RUB             string        `validate:"required"`
	EUR             string        `validate:"required"`
	USD             string        `validate:"required"`
	Debug           bool
	Addr            string        `validate:"required,hostname_port"`
	RateURL         string        `validate:"required,url"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	RateLimit       string        `validate:"required"`
	TLSCert         string        `validate:"required_with=TLSKey"`
	TLSKey          string        `validate:"required_with=TLSCert"`

	// Balance is the starting balance parsed from RUB, EUR and USD.
	Balance models.Values `validate:"-"`
}

// RefreshPeriod is Period as a duration.
func (c *Config) RefreshPeriod() time.Duration {
	return time.Duration(c.Period) * time.Minute
}

func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("currency-tracker", pflag.ContinueOnError)
	flags.IntP("period", "p", 5, "rate refresh period in minutes")
	flags.StringP("rub", "r", "", "starting rub balance")
	flags.StringP("eur", "e", "", "starting eur balance")
	flags.StringP("usd", "u", "", "starting usd balance")
	flags.BoolP("debug", "d", false, "enable debug logging")
	flags.String("addr", "localhost:8080", "HTTP listen address")
	flags.String("rate-url", cbr.DefaultURL, "exchange rate source URL")
	flags.Duration("fetch-timeout", 5*time.Second, "timeout of a single rate fetch")
	flags.Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
	flags.String("rate-limit", "100-S", "per-IP request rate, e.g. 100-S or 1000-M")
	flags.String("tls-cert", "", "TLS certificate file")
	flags.String("tls-key", "", "TLS key file")
	return flags
}

// Load resolves the configuration from args, TRACKER_* environment variables and
// an optional config.env, in that order of precedence.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Period:          v.GetInt("period"),
		RUB:             v.GetString("rub"),
		EUR:             v.GetString("eur"),
		USD:             v.GetString("usd"),
		Debug:           v.GetBool("debug"),
		Addr:            v.GetString("addr"),
		RateURL:         v.GetString("rate-url"),
		FetchTimeout:    v.GetDuration("fetch-timeout"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		RateLimit:       v.GetString("rate-limit"),
		TLSCert:         v.GetString("tls-cert"),
		TLSKey:          v.GetString("tls-key"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	balance, err := models.NewAmountOf(cfg.RUB, cfg.EUR, cfg.USD)
	if err != nil {
		return nil, fmt.Errorf("invalid starting balance: %w", err)
	}
	cfg.Balance = balance.Snapshot()

	return cfg, nil
}
