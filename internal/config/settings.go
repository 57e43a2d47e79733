package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RELNEGO_LOG_LEVEL.
const EnvPrefix = "RELNEGO"

// Settings keys.
const (
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
	KeyDBPath    = "db_path"
)

// Settings are process-wide options shared by every command.
type Settings struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DBPath    string `mapstructure:"db_path"`
}

// ValidLogLevels lists accepted log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats lists accepted log formats.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:  "warn",
		LogFormat: "text",
		DBPath:    "relnego.db",
	}
}

// NewViper returns a viper instance with defaults and environment binding
// applied. When settingsFile is non-empty it must exist and parse.
func NewViper(settingsFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", settingsFile, err)
		}
	}
	return v, nil
}

// SetDefaults registers DefaultSettings on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyDBPath, d.DBPath)
}

// LoadSettings unmarshals and validates settings from v.
func LoadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	s.LogLevel = strings.ToLower(s.LogLevel)
	s.LogFormat = strings.ToLower(s.LogFormat)
	if errs := s.Validate(); len(errs) > 0 {
		return Settings{}, errs
	}
	return s, nil
}

// Validate checks every field.
func (s Settings) Validate() ValidationErrors {
	var errs ValidationErrors
	if !slices.Contains(ValidLogLevels(), s.LogLevel) {
		errs = append(errs, ValidationError{
			Field:   KeyLogLevel,
			Value:   s.LogLevel,
			Message: "must be one of " + strings.Join(ValidLogLevels(), ", "),
		})
	}
	if !slices.Contains(ValidLogFormats(), s.LogFormat) {
		errs = append(errs, ValidationError{
			Field:   KeyLogFormat,
			Value:   s.LogFormat,
			Message: "must be one of " + strings.Join(ValidLogFormats(), ", "),
		})
	}
	if s.DBPath == "" {
		errs = append(errs, ValidationError{Field: KeyDBPath, Message: "must not be empty"})
	}
	return errs
}

// Level converts LogLevel to a slog level. Unknown values map to warn.
func (s Settings) Level() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}
