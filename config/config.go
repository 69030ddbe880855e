package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store struct {
		Path      string `yaml:"path"`
		GitIgnore bool   `yaml:"gitignore"`
	} `yaml:"store"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Clipboard struct {
		ClearAfter time.Duration `yaml:"clear_after"`
	} `yaml:"clipboard"`
	Generator struct {
		Length  int  `yaml:"length"`
		Special bool `yaml:"special"`
	} `yaml:"generator"`
}

func defaultConfig() Config {
	var c Config
	c.Store.Path = "passwords.json"
	c.Store.GitIgnore = true
	c.Logging.Level = "warn"
	c.Logging.Pretty = true
	c.Clipboard.ClearAfter = 30 * time.Second
	c.Generator.Length = 16
	c.Generator.Special = true
	return c
}

// Load builds the configuration from defaults, the YAML file named by
// PASSVAULT_CONFIG and PASSVAULT_* environment overrides, in that order.
func Load() (Config, error) {
	c := defaultConfig()
	if path := os.Getenv("PASSVAULT_CONFIG"); path != "" {
		if err := c.mergeFile(path); err != nil {
			return c, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return c, err
	}
	return c, nil
}

// LoadFile is Load with an explicit config file that takes the place of
// PASSVAULT_CONFIG.
func LoadFile(path string) (Config, error) {
	c := defaultConfig()
	if err := c.mergeFile(path); err != nil {
		return c, err
	}
	if err := c.applyEnv(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %q", path)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return errors.Wrapf(err, "parse config %q", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PASSVAULT_FILE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("PASSVAULT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PASSVAULT_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "PASSVAULT_LOG_PRETTY")
		}
		c.Logging.Pretty = b
	}
	if v := os.Getenv("PASSVAULT_GITIGNORE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "PASSVAULT_GITIGNORE")
		}
		c.Store.GitIgnore = b
	}
	if v := os.Getenv("PASSVAULT_CLIPBOARD_CLEAR"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "PASSVAULT_CLIPBOARD_CLEAR")
		}
		c.Clipboard.ClearAfter = d
	}
	return nil
}
