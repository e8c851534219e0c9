// Package config loads papergraph settings from flags, environment and an optional
// config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/localstore"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PAPERGRAPH_API_URL.
	EnvPrefix = "PAPERGRAPH"
	fileName  = "papergraph"
)

// Config is the resolved application configuration.
type Config struct {
	API   APIConfig   `mapstructure:"api"`
	Cache CacheConfig `mapstructure:"cache"`
	Log   LogConfig   `mapstructure:"log"`
	Debug bool        `mapstructure:"debug"`
	UI    UIConfig    `mapstructure:"ui"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type CacheConfig struct {
	Dir     string `mapstructure:"dir" validate:"required"`
	Backend string `mapstructure:"backend" validate:"oneof=file badger"`
}

type LogConfig struct {
	File string `mapstructure:"file"`
}

type UIConfig struct {
	AltScreen bool `mapstructure:"alt_screen"`
}

var validate = validator.New()

// DefaultCacheDir is where local state lives when cache.dir is unset.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "papergraph")
	}
	return filepath.Join(os.TempDir(), "papergraph")
}

// New returns a viper instance with defaults and environment lookup configured.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("api.url", api.DefaultBaseURL)
	v.SetDefault("api.timeout", time.Duration(0))
	v.SetDefault("cache.dir", DefaultCacheDir())
	v.SetDefault("cache.backend", localstore.BackendFile)
	v.SetDefault("log.file", "")
	v.SetDefault("debug", false)
	v.SetDefault("ui.alt_screen", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads path, or searches ./papergraph.yaml and ~/.config/papergraph/ when
// path is empty. A missing file is not an error; the returned name is empty then.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "papergraph"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if cfg.Log.File == "" && cfg.Cache.Dir != "" {
		cfg.Log.File = filepath.Join(cfg.Cache.Dir, "papergraph.log")
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
