package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // viewer zones must resolve on hosts without a zoneinfo database

	"github.com/spf13/viper"

	"github.com/yukikurage/task-management-front/orchestrator"
)

const (
	envPrefix         = "TASKER"
	defaultBaseURL    = "http://localhost:8080"
	defaultCacheTTL   = 5 * time.Minute
	configDirName     = "tasker"
	configFileName    = "config.yaml"
	sessionFileName   = "session.yaml"
	outputTable       = "table"
	outputYAML        = "yaml"
	outputJSON        = "json"
	keyAPIBaseURL     = "api_base_url"
	keyTimezone       = "timezone"
	keyRedisURL       = "redis_url"
	keyRefreshChannel = "refresh_channel"
	keyCacheTTL       = "cache_ttl"
	keyDraftWorkers   = "draft_workers"
	keyLang           = "lang"
	keyTimeout        = "timeout"
	keyDebug          = "debug"
	keyTrace          = "trace"
	keyOutput         = "output"
	keySessionFile    = "session_file"
)

// Config is the resolved CLI configuration.
type Config struct {
	APIBaseURL     string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	Timezone       string        `mapstructure:"timezone" yaml:"timezone"`
	RedisURL       string        `mapstructure:"redis_url" yaml:"redis_url"`
	RefreshChannel string        `mapstructure:"refresh_channel" yaml:"refresh_channel"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	DraftWorkers   int           `mapstructure:"draft_workers" yaml:"draft_workers"`
	Lang           string        `mapstructure:"lang" yaml:"lang"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Debug          bool          `mapstructure:"debug" yaml:"debug"`
	Trace          bool          `mapstructure:"trace" yaml:"trace"`
	Output         string        `mapstructure:"output" yaml:"output"`
	SessionFile    string        `mapstructure:"session_file" yaml:"session_file"`
}

// configDir is ~/.config/tasker, or the platform equivalent.
func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, configDirName)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(keyAPIBaseURL, defaultBaseURL)
	v.SetDefault(keyCacheTTL, defaultCacheTTL)
	v.SetDefault(keyDraftWorkers, orchestrator.DefaultDraftWorkers)
	v.SetDefault(keyLang, string(orchestrator.DefaultLang))
	v.SetDefault(keyOutput, outputTable)
	v.SetDefault(keySessionFile, filepath.Join(configDir(), sessionFileName))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// API_BASE_URL is honoured for parity with the web client's proxy setting.
	_ = v.BindEnv(keyAPIBaseURL, envPrefix+"_API_BASE_URL", "API_BASE_URL")
	_ = v.BindEnv(keyDebug, envPrefix+"_DEBUG", "DEBUG")
	return v
}

// readConfig loads the config file, if any, and resolves the configuration.
// A missing default config file is not an error; a missing explicit one is.
func readConfig(v *viper.Viper, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir(), configFileName)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("api_base_url must be set")
	}
	if c.DraftWorkers < 0 {
		return fmt.Errorf("draft_workers must not be negative, got %d", c.DraftWorkers)
	}
	if c.Timeout < 0 || c.CacheTTL < 0 {
		return errors.New("durations must not be negative")
	}
	switch c.Output {
	case outputTable, outputYAML, outputJSON:
	default:
		return fmt.Errorf("unsupported output %q", c.Output)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the viewer time zone; empty selects the system zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Language() orchestrator.Lang {
	return orchestrator.ParseLang(c.Lang)
}
