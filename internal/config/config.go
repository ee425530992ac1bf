// Package config loads the faucet's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every setting the faucet needs to start.
type Config struct {
	NodeURL       string
	Amount        decimal.Decimal
	TokenName     string
	AddressType   uint16
	Cooldown      time.Duration
	CooldownHours float64
	Decimals      int32
	Mnemonic      string
	FaucetName    string
	TelegramToken string

	Port          string
	LogLevel      slog.Level
	MaxConcurrent int
	ReportMissing bool
	DryRun        bool
	MaxIdleConns  int
}

// ScaledAmount is Amount in the chain's base unit.
func (c Config) ScaledAmount() *big.Int {
	return c.Amount.Shift(c.Decimals).BigInt()
}

// Addr is the listen address for the metrics and health server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// LoadDotEnv reads path into the process environment if it exists.
// Variables already set take precedence.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv reads the configuration. Every missing or malformed required
// key is reported in one joined error.
func FromEnv() (Config, error) {
	r := reader{}
	cfg := Config{
		NodeURL:       r.str("NODE_WS_URL"),
		Amount:        r.decimal("AMOUNT"),
		TokenName:     r.str("TOKEN_NAME"),
		AddressType:   r.addressType("ADDRESS_TYPE"),
		CooldownHours: r.hours("TIME_LIMIT_HOURS"),
		Decimals:      r.decimals("DECIMALS"),
		Mnemonic:      r.str("MNEMONIC"),
		FaucetName:    r.str("FAUCET_NAME"),
		TelegramToken: r.str("TELEGRAM_TOKEN"),

		Port:          optionalPort(),
		LogLevel:      r.level("LOG_LEVEL"),
		MaxConcurrent: r.positiveInt("MAX_CONCURRENT", 16),
		ReportMissing: r.boolean("REPORT_MISSING_PROJECT"),
		DryRun:        r.boolean("DRY_RUN"),
		MaxIdleConns:  r.nonNegativeInt("LEDGER_MAX_IDLE", 1),
	}
	cfg.Cooldown = time.Duration(cfg.CooldownHours * float64(time.Hour))

	if len(r.errs) == 0 {
		scaled := cfg.Amount.Shift(cfg.Decimals)
		if !scaled.IsInteger() || !scaled.IsPositive() {
			r.errs = append(r.errs, fmt.Errorf("AMOUNT: %s scaled by 10^%d is not a positive integer", cfg.Amount, cfg.Decimals))
		}
	}
	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	return cfg, nil
}

// optionalPort returns PORT, accepting "8080" or ":8080". Defaults to 8080.
func optionalPort() string {
	p := strings.TrimPrefix(strings.TrimSpace(os.Getenv("PORT")), ":")
	if p == "" {
		return "8080"
	}
	return p
}

type reader struct {
	errs []error
}

func (r *reader) required(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		r.errs = append(r.errs, fmt.Errorf("%s: required", key))
		return "", false
	}
	return v, true
}

func (r *reader) str(key string) string {
	v, _ := r.required(key)
	return v
}

func (r *reader) decimal(key string) decimal.Decimal {
	v, ok := r.required(key)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

// maxHours is the longest span a time.Duration can hold, in hours.
var maxHours = float64(math.MaxInt64) / float64(time.Hour)

// hours reads a non-negative number of hours that fits in a time.Duration.
func (r *reader) hours(key string) float64 {
	v, ok := r.required(key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f*float64(time.Hour) >= float64(math.MaxInt64) {
		r.errs = append(r.errs, fmt.Errorf("%s: want a number of hours in [0, %.0f), got %q", key, maxHours, v))
		return 0
	}
	return f
}

func (r *reader) addressType(key string) uint16 {
	v, ok := r.required(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil || n > 16383 {
		r.errs = append(r.errs, fmt.Errorf("%s: want an SS58 address type 0-16383, got %q", key, v))
	}
	return uint16(n)
}

func (r *reader) decimals(key string) int32 {
	v, ok := r.required(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 || n > 38 {
		r.errs = append(r.errs, fmt.Errorf("%s: want an exponent 0-38, got %q", key, v))
	}
	return int32(n)
}

func (r *reader) positiveInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: want a positive integer, got %q", key, v))
		return def
	}
	return n
}

func (r *reader) nonNegativeInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: want a non-negative integer, got %q", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: want a boolean, got %q", key, v))
	}
	return b
}

func (r *reader) level(key string) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return slog.LevelInfo
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return slog.LevelInfo
	}
	return l
}
