package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Scanner ScannerConfig `mapstructure:"scanner"`
	Logging LoggingConfig `mapstructure:"logging"`
	Burn    BurnConfig    `mapstructure:"burn"`
}

// ScannerConfig selects the bus-scan tool
type ScannerConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// BurnConfig holds the initial toolbar settings
type BurnConfig struct {
	Speed   int    `mapstructure:"speed"`
	Session string `mapstructure:"session"`
	Media   string `mapstructure:"media"`
}

// LoadConfig loads configuration from an optional file and BURNITNOW_* environment variables.
// With an empty path, burnitnow.yaml is looked up in the working directory and the
// user config directory; a missing file there is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("BURNITNOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("burnitnow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "burnitnow"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("scanner.command", "cdrecord")
	v.SetDefault("scanner.args", []string{"-scanbus"})
	v.SetDefault("scanner.timeout", time.Duration(0))

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("burn.speed", MinBurnSpeed)
	v.SetDefault("burn.session", "dao")
	v.SetDefault("burn.media", DefaultMedia().Key)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Scanner.Command == "" {
		return fmt.Errorf("scanner.command is required")
	}
	if config.Scanner.Timeout < 0 {
		return fmt.Errorf("scanner.timeout must not be negative")
	}
	if _, err := ParseSessionMode(config.Burn.Session); err != nil {
		return fmt.Errorf("burn.session: %w", err)
	}
	if _, ok := GetMediaByKey(config.Burn.Media); !ok {
		return fmt.Errorf("burn.media: %w: %s", ErrUnknownMedia, config.Burn.Media)
	}
	return nil
}
