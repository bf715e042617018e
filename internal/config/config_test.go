package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/click-thru/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, SourceCSV, cfg.Data.Source)
	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "email_table.csv", cfg.Data.Emails)
	assert.Equal(t, "email_opened_table.csv", cfg.Data.Opened)
	assert.Equal(t, "link_clicked_table.csv", cfg.Data.Clicked)
	assert.Equal(t, TrainPrompt, cfg.Train.Mode)
	assert.Equal(t, []int{5, 10, 50, 100, 150, 200}, cfg.Train.Candidates)
	assert.Equal(t, 3, cfg.Train.Folds)
	assert.InDelta(t, 0.25, cfg.Train.TestSize, 1e-12)
	assert.Equal(t, uint64(42), cfg.Train.Seed)
	assert.Positive(t, cfg.Train.Workers)
	assert.Equal(t, 1, cfg.Train.MinSamplesLeaf)
	assert.True(t, cfg.Train.Bootstrap)

	tc := cfg.Tuning()
	assert.Equal(t, cfg.Train.Candidates, tc.Candidates)
	assert.Equal(t, uint64(42), tc.Seed)
	assert.Equal(t, 1, tc.MinSamplesLeaf)
	assert.False(t, tc.DisableBootstrap)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data:
  source: sqlite
  sqlite_path: /tmp/emails.db
train:
  mode: never
  candidates: [5, 10]
  split_seed: 7
  min_samples_leaf: 3
  bootstrap: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, SourceSQLite, cfg.Data.Source)
	assert.Equal(t, "/tmp/emails.db", cfg.Data.SQLitePath)
	assert.Equal(t, TrainNever, cfg.Train.Mode)
	assert.Equal(t, []int{5, 10}, cfg.Train.Candidates)
	assert.Equal(t, uint64(7), cfg.Train.SplitSeed)

	tc := cfg.Tuning()
	assert.Equal(t, 3, tc.MinSamplesLeaf)
	assert.True(t, tc.DisableBootstrap)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CLICKTHRU_TRAIN_MODE", "never")
	t.Setenv("CLICKTHRU_TRAIN_FOLDS", "5")
	t.Setenv("CLICKTHRU_DATA_DIR", "/srv/campaign")
	t.Setenv("CLICKTHRU_LOGGING_LEVEL", "debug")

	v := newViper()
	BindEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, TrainNever, cfg.Train.Mode)
	assert.Equal(t, 5, cfg.Train.Folds)
	assert.Equal(t, "/srv/campaign", cfg.Data.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate  func(c *Config)
		wantErr error
		name    string
	}{
		{name: "unknown source", mutate: func(c *Config) { c.Data.Source = "parquet" }, wantErr: common.ErrInvalidConfig},
		{name: "sqlite without path", mutate: func(c *Config) { c.Data.Source = SourceSQLite }, wantErr: common.ErrMissingConfig},
		{name: "unknown mode", mutate: func(c *Config) { c.Train.Mode = "maybe" }, wantErr: common.ErrInvalidConfig},
		{name: "no candidates", mutate: func(c *Config) { c.Train.Candidates = nil }, wantErr: common.ErrInvalidConfig},
		{name: "zero trees", mutate: func(c *Config) { c.Train.Candidates = []int{5, 0} }, wantErr: common.ErrInvalidConfig},
		{name: "one fold", mutate: func(c *Config) { c.Train.Folds = 1 }, wantErr: common.ErrInvalidConfig},
		{name: "test size too large", mutate: func(c *Config) { c.Train.TestSize = 1 }, wantErr: common.ErrInvalidConfig},
		{name: "negative depth", mutate: func(c *Config) { c.Train.MaxDepth = -1 }, wantErr: common.ErrInvalidConfig},
		{name: "empty leaves", mutate: func(c *Config) { c.Train.MinSamplesLeaf = 0 }, wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newViper())
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfig_YAML(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "mode: prompt")
	assert.Contains(t, out, "sqlite_path:")

	var decoded Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, *cfg, decoded)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CLICKTHRU_TEST_DIR", "/srv/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "emails.db"), ExpandPath("~/emails.db"))
	assert.Equal(t, "/srv/data/emails.db", ExpandPath("$CLICKTHRU_TEST_DIR/emails.db"))
	assert.Equal(t, "data", ExpandPath("data"))
}
