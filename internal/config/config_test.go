package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
ledger:
  base_url: https://ledger.example.com
  api_key: ${TEST_LEDGER_KEY}
signer:
  base_url: https://signer.example.com
schedule:
  - name: main
    account: ACC_1
    pair:
      selling: {code: TOK, issuer: I1}
      buying: {code: USD, issuer: I2}
ladders:
  main:
    account: ACC_1
    pair:
      selling: {code: TOK, issuer: I1}
      buying: {code: USD, issuer: I2}
    leverage_amount_sell: 1000
    leverage_amount_buy: 1000
    offset_percent: 2
    step_percent: 1
    rung_count: 10
    min_stop_price: 5
    max_stop_price: 20
    tolerance_percent: 0.5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_LEDGER_KEY", "sekrit")

	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "sekrit", cfg.Ledger.APIKey.Reveal())
	assert.Equal(t, "ladder_maker", cfg.App.Name)
	assert.Equal(t, 10, cfg.Ledger.RequestTimeout)
	assert.Equal(t, "@every 30s", cfg.Timing.CycleCron)
	assert.Equal(t, "memory", cfg.Report.Backend)
	assert.Equal(t, 8, cfg.Concurrency.CyclePoolSize)

	ladder := cfg.Ladders["main"]
	assert.Equal(t, 0.5, ladder.MirrorTolerancePercent, "mirror tolerance defaults to tolerance")
	assert.Equal(t, 0.1, ladder.MinRungFraction)
	assert.Equal(t, 7, ladder.PriceDecimals)
	assert.Equal(t, 7, ladder.AmountDecimals)
}

func TestLoadConfig_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeConfig(t, "signer:\n  base_url: https://signer.example.com\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.base_url")
}

func TestLoadConfig_RejectsDuplicateScheduleNames(t *testing.T) {
	t.Parallel()

	content := `
ledger:
  base_url: https://ledger.example.com
signer:
  base_url: https://signer.example.com
schedule:
  - name: main
    account: ACC_1
    pair:
      selling: {code: TOK, issuer: I1}
      buying: {code: USD, issuer: I2}
  - name: main
    account: ACC_2
    pair:
      selling: {code: TOK, issuer: I1}
      buying: {code: USD, issuer: I2}
`
	_, err := LoadConfig(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
}

func TestLadderConfigValidate(t *testing.T) {
	t.Parallel()

	valid := LadderConfig{
		Account:            "ACC_1",
		LeverageAmountSell: 100,
		StepPercent:        1,
		RungCount:          5,
		MinStopPrice:       5,
		MaxStopPrice:       20,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*LadderConfig)
	}{
		{"missing account", func(l *LadderConfig) { l.Account = "" }},
		{"zero rungs", func(l *LadderConfig) { l.RungCount = 0 }},
		{"too many rungs", func(l *LadderConfig) { l.RungCount = 101 }},
		{"no leverage either side", func(l *LadderConfig) { l.LeverageAmountSell = 0; l.LeverageAmountBuy = 0 }},
		{"zero step", func(l *LadderConfig) { l.StepPercent = 0 }},
		{"negative offset", func(l *LadderConfig) { l.OffsetPercent = -1 }},
		{"inverted stop band", func(l *LadderConfig) { l.MinStopPrice = 20; l.MaxStopPrice = 5 }},
		{"negative tolerance", func(l *LadderConfig) { l.TolerancePercent = -0.5 }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := valid
			tc.mutate(&l)
			assert.Error(t, l.Validate())
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	s := Secret("topsecret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, s.GoString(), "topsecret")
	assert.Equal(t, "topsecret", s.Reveal())
}
