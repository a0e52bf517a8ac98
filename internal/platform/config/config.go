// Package config loads ledgercore's configuration from environment
// variables and an optional .env file, binding the dot-path knobs the
// ledger engine exposes.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the fully-resolved set of ledgercore knobs.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	BalanceNonNegativePolicy bool
	ConcurrencyMaxRetries    int
	ConcurrencyBaseBackoff   time.Duration
	SweepStalenessThreshold  time.Duration
	AmountMaxUnits           decimal.Decimal
	AmountScale              int32
}

// LoadConfig reads .env (if present), then binds environment variables via
// viper using dot-path keys matching the knob names the ledger engine
// exposes (balance.nonNegativePolicy, concurrency.maxRetries, ...).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("database.url", "postgres://localhost:5432/ledgercore?sslmode=disable")
	v.SetDefault("jwt.secret", "a-very-secret-key-should-be-longer-and-random")
	v.SetDefault("balance.nonNegativePolicy", true)
	v.SetDefault("concurrency.maxRetries", 3)
	v.SetDefault("concurrency.baseBackoff", "10ms")
	v.SetDefault("sweep.stalenessThreshold", "60s")
	v.SetDefault("amount.maxUnits", "100000000000")
	v.SetDefault("amount.scale", 2)

	baseBackoff, err := time.ParseDuration(v.GetString("concurrency.baseBackoff"))
	if err != nil {
		return nil, err
	}
	staleness, err := time.ParseDuration(v.GetString("sweep.stalenessThreshold"))
	if err != nil {
		return nil, err
	}
	maxUnits, err := decimal.NewFromString(v.GetString("amount.maxUnits"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                     v.GetString("port"),
		DatabaseURL:              v.GetString("database.url"),
		JWTSecret:                v.GetString("jwt.secret"),
		BalanceNonNegativePolicy: v.GetBool("balance.nonNegativePolicy"),
		ConcurrencyMaxRetries:    v.GetInt("concurrency.maxRetries"),
		ConcurrencyBaseBackoff:   baseBackoff,
		SweepStalenessThreshold:  staleness,
		AmountMaxUnits:           maxUnits,
		AmountScale:              int32(v.GetInt("amount.scale")),
	}, nil
}
