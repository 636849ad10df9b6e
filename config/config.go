package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DELTAFLOW_API_BASE_URL.
const EnvPrefix = "DELTAFLOW"

// --- Configuration Structs ---

type APIConfig struct {
	// BaseURL is the single base URL of the backend API.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds each backend request. Zero means no client-side timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Prefork bool   `mapstructure:"prefork"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type WizardConfig struct {
	UniqueValuesLimit int    `mapstructure:"unique_values_limit"`
	ProcessName       string `mapstructure:"process_name"`
}

type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Wizard WizardConfig `mapstructure:"wizard"`
}

var defaults = map[string]any{
	"api.base_url":               "http://localhost:8000/api",
	"api.timeout":                "0s",
	"server.port":                "5555",
	"server.prefork":             false,
	"log.level":                  "info",
	"log.file":                   "deltaflow.log",
	"wizard.unique_values_limit": 1000,
	"wizard.process_name":        "Delta Generation",
}

// --- Load Configuration ---

// LoadDotEnv loads .env files into the process environment. Missing files
// are skipped and variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads defaults, the optional YAML file at configPath and
// DELTAFLOW_ environment overrides, in increasing priority.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// --- Validation Functions ---

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf(format, a...)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := validate(c.Server.Port != "", "server port is required"); err != nil {
		return err
	}
	if err := validate(c.Wizard.UniqueValuesLimit > 0, "wizard.unique_values_limit must be positive, got %d", c.Wizard.UniqueValuesLimit); err != nil {
		return err
	}
	return nil
}

func (ac *APIConfig) Validate() error {
	u, err := url.Parse(ac.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", ac.BaseURL, err)
	}
	if err := validate(u.Scheme == "http" || u.Scheme == "https", "base URL %q must be absolute http(s)", ac.BaseURL); err != nil {
		return err
	}
	if err := validate(u.Host != "", "base URL %q has no host", ac.BaseURL); err != nil {
		return err
	}
	return validate(ac.Timeout >= 0, "timeout must not be negative")
}
