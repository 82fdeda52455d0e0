// Package config loads CLI configuration from a file and GAIA_* environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/stxapps/gaia-go/pkg/hub"
	"github.com/stxapps/gaia-go/pkg/naming"
	"github.com/stxapps/gaia-go/pkg/session"
)

// EnvPrefix prefixes every environment variable, e.g. GAIA_HUB_URL.
const EnvPrefix = "GAIA"

// Config is the CLI configuration.
type Config struct {
	HubURL           string `mapstructure:"hub_url"`
	PrivateKey       string `mapstructure:"private_key"`
	AssociationToken string `mapstructure:"association_token"`

	// AppOrigin and LookupURL are used for multiplayer reads.
	AppOrigin string `mapstructure:"app_origin"`
	LookupURL string `mapstructure:"lookup_url"`

	// LocalRoot is where file:// references are made relative to.
	LocalRoot string `mapstructure:"local_root"`

	SessionStore       string `mapstructure:"session_store"`
	SessionStoreConfig string `mapstructure:"session_store_config"`
	SessionKey         string `mapstructure:"session_key"`

	Timeout       time.Duration `mapstructure:"timeout"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hub_url", hub.DefaultHubURL)
	v.SetDefault("private_key", "")
	v.SetDefault("association_token", "")
	v.SetDefault("app_origin", "")
	v.SetDefault("lookup_url", naming.DefaultLookupURL)
	v.SetDefault("local_root", "")
	v.SetDefault("session_store", "file")
	v.SetDefault("session_store_config", "")
	v.SetDefault("session_key", session.DefaultKey)
	v.SetDefault("timeout", "30s")
	v.SetDefault("batch_timeout", "10m")
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_file", "")
}

// Load reads configuration. With an empty path, config.{yaml,toml,json} in
// the user config directory is used if it exists. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(session.DefaultDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.HubURL = strings.TrimRight(cfg.HubURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	storeKinds = map[string]bool{"file": true, "postgres": true, "s3": true, "memory": true}
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.HubURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("hub_url must be an http(s) URL, got %q", c.HubURL))
	}
	if !storeKinds[c.SessionStore] {
		errs = append(errs, fmt.Errorf("session_store must be one of file, postgres, s3, memory, got %q", c.SessionStore))
	}
	if c.SessionStoreConfig != "" && !json.Valid([]byte(c.SessionStoreConfig)) {
		errs = append(errs, errors.New("session_store_config must be JSON"))
	}
	if c.SessionKey == "" {
		errs = append(errs, errors.New("session_key is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.BatchTimeout <= 0 {
		errs = append(errs, errors.New("batch_timeout must be positive"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry_attempts must be at least 1"))
	}
	if !logLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// StoreConfig returns the session store config as raw JSON.
func (c *Config) StoreConfig() json.RawMessage {
	if c.SessionStoreConfig == "" {
		return nil
	}
	return json.RawMessage(c.SessionStoreConfig)
}
