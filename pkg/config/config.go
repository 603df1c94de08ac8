package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/emilsk/kasa/pkg/parser"
	"github.com/emilsk/kasa/pkg/rules"
	"github.com/emilsk/kasa/pkg/sealer"
)

// Config is the merged view of config file, environment and CLI flags.
type Config struct {
	User   string `mapstructure:"user"`
	Remote Remote `mapstructure:"remote"`
	Import Import `mapstructure:"import"`
	Rules  Rules  `mapstructure:"rules"`
	Sync   Sync   `mapstructure:"sync"`
	Sealer Sealer `mapstructure:"sealer"`
}

// Remote selects and parameterizes the remote store backend.
type Remote struct {
	Backend string `mapstructure:"backend"` // "gcs" or "local"
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Dir     string `mapstructure:"dir"`
}

// Import holds statement parsing knobs.
type Import struct {
	FallbackCurrency string   `mapstructure:"fallback_currency"`
	HidePatterns     []string `mapstructure:"hide_patterns"`
}

// Rules holds the categorization key normalization patterns.
type Rules struct {
	NormalizePatterns []string `mapstructure:"normalize_patterns"`
}

// Sync holds retry behaviour for remote calls.
type Sync struct {
	Retries        int `mapstructure:"retries"`
	BackoffMS      int `mapstructure:"backoff_ms"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

func (s Sync) Backoff() time.Duration { return time.Duration(s.BackoffMS) * time.Millisecond }
func (s Sync) Timeout() time.Duration { return time.Duration(s.TimeoutSeconds) * time.Second }

// Sealer holds the argon2id cost parameters used for new blobs. Old blobs
// carry their own parameters and are unaffected.
type Sealer struct {
	Time      uint32 `mapstructure:"time"`
	MemoryKiB uint32 `mapstructure:"memory_kib"`
	Threads   uint8  `mapstructure:"threads"`
}

func (s Sealer) Params() sealer.Params {
	return sealer.Params{Time: s.Time, MemoryKiB: s.MemoryKiB, Threads: s.Threads}
}

// Build loads configuration from the given file (or the default search
// paths), layered under KASA_* environment variables and any bound flags.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Every key needs a default for AutomaticEnv to surface it in Unmarshal.
	v.SetDefault("user", "")
	v.SetDefault("remote.backend", "local")
	v.SetDefault("remote.bucket", "")
	v.SetDefault("remote.prefix", "kasa")
	v.SetDefault("remote.dir", "./kasa-store")
	v.SetDefault("import.fallback_currency", "EUR")
	v.SetDefault("import.hide_patterns", parser.DefaultHidePatterns())
	v.SetDefault("rules.normalize_patterns", rules.DefaultPatterns())
	v.SetDefault("sync.retries", 3)
	v.SetDefault("sync.backoff_ms", 500)
	v.SetDefault("sync.timeout_seconds", 30)
	kdf := sealer.DefaultParams()
	v.SetDefault("sealer.time", kdf.Time)
	v.SetDefault("sealer.memory_kib", kdf.MemoryKiB)
	v.SetDefault("sealer.threads", kdf.Threads)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("kasa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/kasa")
	}

	v.SetEnvPrefix("KASA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
