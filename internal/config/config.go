package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Veraticus/click-thru/internal/common"
	"github.com/Veraticus/click-thru/internal/storage"
	"github.com/Veraticus/click-thru/internal/tuning"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Data sources.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Training modes.
const (
	TrainPrompt = "prompt"
	TrainAlways = "always"
	TrainNever  = "never"
)

// Config is the typed view of the viper configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Data    DataConfig    `yaml:"data"`
	Train   TrainConfig   `yaml:"train"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig locates the three source tables.
type DataConfig struct {
	Source     string `yaml:"source"`
	Dir        string `yaml:"dir"`
	Emails     string `yaml:"emails"`
	Opened     string `yaml:"opened"`
	Clicked    string `yaml:"clicked"`
	SQLitePath string `yaml:"sqlite_path"`
}

// TrainConfig controls the optional training stage.
type TrainConfig struct {
	Mode       string  `yaml:"mode"`
	Candidates []int   `yaml:"candidates"`
	Folds      int     `yaml:"folds"`
	TestSize   float64 `yaml:"test_size"`
	Seed       uint64  `yaml:"seed"`
	SplitSeed  uint64  `yaml:"split_seed"`
	Workers    int     `yaml:"workers"`
	MaxDepth   int     `yaml:"max_depth"`
	// MinSamplesLeaf and Bootstrap shape every tree of the forest.
	MinSamplesLeaf int  `yaml:"min_samples_leaf"`
	Bootstrap      bool `yaml:"bootstrap"`
}

// EnvPrefix prefixes every environment override, e.g. CLICKTHRU_TRAIN_MODE.
const EnvPrefix = "CLICKTHRU"

// BindEnv lets environment variables override any key. Dots in keys become
// underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	train := tuning.DefaultConfig()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("data.source", SourceCSV)
	v.SetDefault("data.dir", storage.DefaultDataDir)
	v.SetDefault("data.emails", storage.DefaultEmailsFile)
	v.SetDefault("data.opened", storage.DefaultOpenedFile)
	v.SetDefault("data.clicked", storage.DefaultClickedFile)
	v.SetDefault("data.sqlite_path", "")

	v.SetDefault("train.mode", TrainPrompt)
	v.SetDefault("train.candidates", train.Candidates)
	v.SetDefault("train.folds", train.Folds)
	v.SetDefault("train.test_size", train.TestSize)
	v.SetDefault("train.seed", train.Seed)
	v.SetDefault("train.split_seed", 0)
	v.SetDefault("train.workers", runtime.NumCPU())
	v.SetDefault("train.max_depth", 0)
	v.SetDefault("train.min_samples_leaf", 1)
	v.SetDefault("train.bootstrap", true)
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Data: DataConfig{
			Source:     v.GetString("data.source"),
			Dir:        ExpandPath(v.GetString("data.dir")),
			Emails:     v.GetString("data.emails"),
			Opened:     v.GetString("data.opened"),
			Clicked:    v.GetString("data.clicked"),
			SQLitePath: ExpandPath(v.GetString("data.sqlite_path")),
		},
		Train: TrainConfig{
			Mode:       v.GetString("train.mode"),
			Candidates: v.GetIntSlice("train.candidates"),
			Folds:      v.GetInt("train.folds"),
			TestSize:   v.GetFloat64("train.test_size"),
			Seed:       v.GetUint64("train.seed"),
			SplitSeed:  v.GetUint64("train.split_seed"),
			Workers:    v.GetInt("train.workers"),
			MaxDepth:   v.GetInt("train.max_depth"),

			MinSamplesLeaf: v.GetInt("train.min_samples_leaf"),
			Bootstrap:      v.GetBool("train.bootstrap"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case SourceCSV:
	case SourceSQLite:
		if c.Data.SQLitePath == "" {
			return fmt.Errorf("%w: data.sqlite_path is required for the sqlite source", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown data.source %q", common.ErrInvalidConfig, c.Data.Source)
	}

	switch c.Train.Mode {
	case TrainPrompt, TrainAlways, TrainNever:
	default:
		return fmt.Errorf("%w: unknown train.mode %q", common.ErrInvalidConfig, c.Train.Mode)
	}

	if len(c.Train.Candidates) == 0 {
		return fmt.Errorf("%w: train.candidates is empty", common.ErrInvalidConfig)
	}
	for _, n := range c.Train.Candidates {
		if n <= 0 {
			return fmt.Errorf("%w: train.candidates must be positive, got %d", common.ErrInvalidConfig, n)
		}
	}
	if c.Train.Folds < 2 {
		return fmt.Errorf("%w: train.folds must be at least 2", common.ErrInvalidConfig)
	}
	if c.Train.TestSize <= 0 || c.Train.TestSize >= 1 {
		return fmt.Errorf("%w: train.test_size must be in (0, 1)", common.ErrInvalidConfig)
	}
	if c.Train.Workers < 0 || c.Train.MaxDepth < 0 {
		return fmt.Errorf("%w: train.workers and train.max_depth cannot be negative", common.ErrInvalidConfig)
	}
	if c.Train.MinSamplesLeaf < 1 {
		return fmt.Errorf("%w: train.min_samples_leaf must be at least 1", common.ErrInvalidConfig)
	}
	return nil
}

// Tuning converts the training section into a tuning configuration.
func (c *Config) Tuning() tuning.Config {
	return tuning.Config{
		Candidates: append([]int(nil), c.Train.Candidates...),
		Folds:      c.Train.Folds,
		TestSize:   c.Train.TestSize,
		Seed:       c.Train.Seed,
		SplitSeed:  c.Train.SplitSeed,
		Workers:    c.Train.Workers,
		MaxDepth:   c.Train.MaxDepth,

		MinSamplesLeaf:   c.Train.MinSamplesLeaf,
		DisableBootstrap: !c.Train.Bootstrap,
	}
}

// YAML renders the configuration in config-file form.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	return string(out), nil
}
