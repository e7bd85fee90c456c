// SPDX-License-Identifier: EPL-2.0

// Package config loads the runtime settings from a YAML document, creating
// the document with defaults when it does not exist yet. Every key can be
// overridden from the environment with the AUDSLOT_ prefix, e.g.
// AUDSLOT_CACHE_SIZE=100.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "AUDSLOT"

var ErrInvalidSetting = errors.New("invalid setting")

// Settings holds every recognised option.
type Settings struct {
	CacheSize         int           `mapstructure:"cache_size"`
	DefaultFadeIn     float64       `mapstructure:"default_fade_in"`
	DefaultFadeOut    float64       `mapstructure:"default_fade_out"`
	UseBuiltinFactory bool          `mapstructure:"use_builtin_factory"`
	Capacity          int           `mapstructure:"capacity"`
	SampleRate        int           `mapstructure:"sample_rate"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	LogLevel          string        `mapstructure:"log_level"`
}

// document is the on-disk layout of Settings.
type document struct {
	CacheSize         int     `yaml:"cache_size"`
	DefaultFadeIn     float64 `yaml:"default_fade_in"`
	DefaultFadeOut    float64 `yaml:"default_fade_out"`
	UseBuiltinFactory bool    `yaml:"use_builtin_factory"`
	Capacity          int     `yaml:"capacity"`
	SampleRate        int     `yaml:"sample_rate"`
	TickInterval      string  `yaml:"tick_interval"`
	LogLevel          string  `yaml:"log_level"`
}

func Defaults() Settings {
	return Settings{
		CacheSize:         50,
		DefaultFadeIn:     1,
		DefaultFadeOut:    1,
		UseBuiltinFactory: true,
		Capacity:          255,
		SampleRate:        48000,
		TickInterval:      20 * time.Millisecond,
		LogLevel:          "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("default_fade_in", d.DefaultFadeIn)
	v.SetDefault("default_fade_out", d.DefaultFadeOut)
	v.SetDefault("use_builtin_factory", d.UseBuiltinFactory)
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("sample_rate", d.SampleRate)
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("log_level", d.LogLevel)
}

// Load reads path, writing a default document there first if it is missing.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading default config %s: %w", path, err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteDefault writes the default document to path through a temporary
// file, so readers never see a partial document.
func WriteDefault(path string) error {
	d := Defaults()
	data, err := yaml.Marshal(document{
		CacheSize:         d.CacheSize,
		DefaultFadeIn:     d.DefaultFadeIn,
		DefaultFadeOut:    d.DefaultFadeOut,
		UseBuiltinFactory: d.UseBuiltinFactory,
		Capacity:          d.Capacity,
		SampleRate:        d.SampleRate,
		TickInterval:      d.TickInterval.String(),
		LogLevel:          d.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temporary config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temporary config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("installing default config: %w", err)
	}
	return nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size %d must be positive", ErrInvalidSetting, s.CacheSize))
	}
	if s.DefaultFadeIn < 0 {
		errs = append(errs, fmt.Errorf("%w: default_fade_in %v is negative", ErrInvalidSetting, s.DefaultFadeIn))
	}
	if s.DefaultFadeOut < 0 {
		errs = append(errs, fmt.Errorf("%w: default_fade_out %v is negative", ErrInvalidSetting, s.DefaultFadeOut))
	}
	if s.Capacity < 1 || s.Capacity > 255 {
		errs = append(errs, fmt.Errorf("%w: capacity %d outside 1..255", ErrInvalidSetting, s.Capacity))
	}
	if s.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: sample_rate %d must be positive", ErrInvalidSetting, s.SampleRate))
	}
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: tick_interval %v must be positive", ErrInvalidSetting, s.TickInterval))
	}
	if _, err := s.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s Settings) FadeIn() time.Duration  { return seconds(s.DefaultFadeIn) }
func (s Settings) FadeOut() time.Duration { return seconds(s.DefaultFadeOut) }

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (s Settings) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidSetting, s.LogLevel)
	}
	return l, nil
}

// Logger builds a text logger writing to w at the configured level.
func (s Settings) Logger(w io.Writer) *slog.Logger {
	level, err := s.level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
