package config

import (
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requiredEnv = map[string]string{
	"NODE_WS_URL":      "ws://127.0.0.1:9944",
	"AMOUNT":           "100",
	"TOKEN_NAME":       "IMBU",
	"ADDRESS_TYPE":     "42",
	"TIME_LIMIT_HOURS": "1.5",
	"DECIMALS":         "12",
	"MNEMONIC":         "bottom drive obey lake curtain smoke basket hold race lonely fit walk",
	"FAUCET_NAME":      "Imbue Faucet",
	"TELEGRAM_TOKEN":   "123:abc",
}

var optionalEnv = []string{"PORT", "LOG_LEVEL", "MAX_CONCURRENT", "REPORT_MISSING_PROJECT", "DRY_RUN", "LEDGER_MAX_IDLE"}

func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	for _, k := range optionalEnv {
		t.Setenv(k, "")
	}
	for k, v := range requiredEnv {
		t.Setenv(k, v)
	}
	for k, v := range overrides {
		t.Setenv(k, v)
	}
}

func TestFromEnv(t *testing.T) {
	setEnv(t, nil)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:9944", cfg.NodeURL)
	assert.Equal(t, "100", cfg.Amount.String())
	assert.Equal(t, "IMBU", cfg.TokenName)
	assert.Equal(t, uint16(42), cfg.AddressType)
	assert.Equal(t, 90*time.Minute, cfg.Cooldown)
	assert.Equal(t, 1.5, cfg.CooldownHours)
	assert.Equal(t, int32(12), cfg.Decimals)
	assert.Equal(t, "Imbue Faucet", cfg.FaucetName)
	assert.Equal(t, "123:abc", cfg.TelegramToken)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 16, cfg.MaxConcurrent)
	assert.Equal(t, 1, cfg.MaxIdleConns)
	assert.False(t, cfg.ReportMissing)
	assert.False(t, cfg.DryRun)
}

func TestFromEnv_ScaledAmount(t *testing.T) {
	setEnv(t, map[string]string{"AMOUNT": "2.5", "DECIMALS": "3"})

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2500), cfg.ScaledAmount())
}

func TestFromEnv_MissingKeysReportedTogether(t *testing.T) {
	setEnv(t, map[string]string{"NODE_WS_URL": "", "MNEMONIC": "", "TELEGRAM_TOKEN": " "})

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODE_WS_URL: required")
	assert.Contains(t, err.Error(), "MNEMONIC: required")
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN: required")
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"AMOUNT":           "lots",
		"ADDRESS_TYPE":     "70000",
		"TIME_LIMIT_HOURS": "-1",
		"DECIMALS":         "x",
		"MAX_CONCURRENT":   "0",
		"DRY_RUN":          "maybe",
		"LOG_LEVEL":        "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			setEnv(t, map[string]string{key: value})
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestFromEnv_CooldownBounds(t *testing.T) {
	for _, value := range []string{"10000000", "2562048", "NaN", "Inf", "+Inf", "1e300"} {
		t.Run(value, func(t *testing.T) {
			setEnv(t, map[string]string{"TIME_LIMIT_HOURS": value})
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "TIME_LIMIT_HOURS")
		})
	}

	setEnv(t, map[string]string{"TIME_LIMIT_HOURS": "2562047"})
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2562047*time.Hour, cfg.Cooldown)
	assert.Positive(t, cfg.Cooldown)
}

func TestFromEnv_FractionalBaseUnitRejected(t *testing.T) {
	setEnv(t, map[string]string{"AMOUNT": "0.0001", "DECIMALS": "2"})

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a positive integer")
}

func TestFromEnv_Optional(t *testing.T) {
	setEnv(t, map[string]string{
		"PORT":                   ":9090",
		"LOG_LEVEL":              "debug",
		"MAX_CONCURRENT":         "4",
		"REPORT_MISSING_PROJECT": "true",
		"DRY_RUN":                "1",
		"LEDGER_MAX_IDLE":        "0",
	})

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, 0, cfg.MaxIdleConns)
	assert.True(t, cfg.ReportMissing)
	assert.True(t, cfg.DryRun)
}

func TestLoadDotEnv(t *testing.T) {
	setEnv(t, nil)
	t.Setenv("TOKEN_NAME", "")
	os.Unsetenv("TOKEN_NAME")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOKEN_NAME=KSM\nAMOUNT=7\n"), 0o600))
	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "KSM", os.Getenv("TOKEN_NAME"))
	assert.Equal(t, "100", os.Getenv("AMOUNT"), "existing variables win")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, LoadDotEnv(""))
}
