package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanflow/beanflow/internal/common"
)

func loadYAML(t *testing.T, yaml string) (*Config, error) {
	t.Helper()

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

const validYAML = `
ledger:
  file: /tmp/ledger.txt
  fallback_file: /tmp/fallback.txt
sources:
  - name: checking
    format: chase
    account: Assets:Checking
    currency: USD
  - name: giro
    format: dkb
    account: Assets:Giro
    currency: EUR
`

func TestLoadValid(t *testing.T) {
	cfg, err := loadYAML(t, validYAML)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger.txt", cfg.Ledger.File)
	assert.Equal(t, DefaultWindowDays, cfg.Dedup.WindowDays)
	assert.InDelta(t, DefaultConfidenceFloor, cfg.Classifier.ConfidenceFloor, 1e-9)
	assert.True(t, cfg.SourceRe().MatchString("Assets:Checking"))
	assert.True(t, cfg.CategoryRe().MatchString("Expenses:Food"))
	assert.False(t, cfg.CategoryRe().MatchString("Assets:Checking"))

	source, ok := cfg.FindSource("giro")
	require.True(t, ok)
	assert.Equal(t, "dkb", source.Format)
	assert.Equal(t, "EUR", source.Currency)

	_, ok = cfg.FindSource("missing")
	assert.False(t, ok)
}

func TestLoadMissingLedgerFile(t *testing.T) {
	_, err := loadYAML(t, `history: {db: /tmp/h.db}`)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "negative window",
			yaml: "ledger: {file: /tmp/l.txt}\ndedup: {window_days: -1}",
		},
		{
			name: "floor out of range",
			yaml: "ledger: {file: /tmp/l.txt}\nclassifier: {confidence_floor: 1.5}",
		},
		{
			name: "bad regex",
			yaml: "ledger: {file: /tmp/l.txt}\naccounts: {source_regex: '(['}",
		},
		{
			name: "incomplete source",
			yaml: "ledger: {file: /tmp/l.txt}\nsources: [{name: x, format: chase}]",
		},
		{
			name: "duplicate source name",
			yaml: "ledger: {file: /tmp/l.txt}\nsources: [" +
				"{name: x, format: chase, account: 'Assets:A', currency: USD}," +
				"{name: x, format: dkb, account: 'Assets:B', currency: EUR}]",
		},
		{
			name: "source account outside source regex",
			yaml: "ledger: {file: /tmp/l.txt}\nsources: [" +
				"{name: x, format: chase, account: 'Expenses:Food', currency: USD}]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "ledger.txt"), ExpandPath("~/ledger.txt"))

	t.Setenv("BEANFLOW_TEST_DIR", "/data")
	assert.Equal(t, "/data/ledger.txt", ExpandPath("$BEANFLOW_TEST_DIR/ledger.txt"))
}
