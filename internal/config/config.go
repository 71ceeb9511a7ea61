// Package config loads epydoc configuration from defaults, an epydoc.toml
// file and EPYDOC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/AnjaneyuluBatta505/epydoc/internal/loader"
	"github.com/AnjaneyuluBatta505/epydoc/internal/markup"
	"github.com/AnjaneyuluBatta505/epydoc/internal/resolve"
)

// FileName is the configuration file looked up in the search paths.
const FileName = "epydoc.toml"

// keyDelimiter separates nested keys. markup.modules holds glob patterns
// over dotted module names, so "." cannot be the delimiter.
const keyDelimiter = "::"

type MarkupConfig struct {
	Default string            `mapstructure:"default" toml:"default"`
	Modules map[string]string `mapstructure:"modules" toml:"modules"`
}

type ResolveConfig struct {
	TieBreak []string `mapstructure:"tiebreak" toml:"tiebreak"`
}

type BuildConfig struct {
	Workers     int      `mapstructure:"workers" toml:"workers"`
	MaxFileSize int64    `mapstructure:"max_file_size" toml:"max_file_size"`
	Exclude     []string `mapstructure:"exclude" toml:"exclude"`
	Private     bool     `mapstructure:"private" toml:"private"`
}

type Config struct {
	Markup  MarkupConfig  `mapstructure:"markup" toml:"markup"`
	Resolve ResolveConfig `mapstructure:"resolve" toml:"resolve"`
	Build   BuildConfig   `mapstructure:"build" toml:"build"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Markup:  MarkupConfig{Default: markup.Epytext, Modules: map[string]string{}},
		Resolve: ResolveConfig{TieBreak: resolve.DefaultPolicy().TieBreak},
		Build: BuildConfig{
			MaxFileSize: loader.DefaultMaxFileSize,
			Exclude:     []string{},
			Private:     true,
		},
	}
}

// Options controls where configuration is read from.
type Options struct {
	// File is an explicit configuration file. It must exist.
	File string
	// Dir is searched for epydoc.toml before the user config directory.
	// Empty means the working directory.
	Dir string
}

// New returns a viper instance with defaults, search paths and the
// environment binding set up.
func New(opts Options) *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("toml")
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "epydoc"))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "epydoc"))
		}
	}

	d := Default()
	v.SetDefault(Key("markup", "default"), d.Markup.Default)
	v.SetDefault(Key("resolve", "tiebreak"), d.Resolve.TieBreak)
	v.SetDefault(Key("build", "workers"), d.Build.Workers)
	v.SetDefault(Key("build", "max_file_size"), d.Build.MaxFileSize)
	v.SetDefault(Key("build", "exclude"), d.Build.Exclude)
	v.SetDefault(Key("build", "private"), d.Build.Private)

	v.SetEnvPrefix("EPYDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	return v
}

// Key joins the parts of a nested setting name for use with the viper
// instance returned by New, e.g. when binding command-line flags.
func Key(parts ...string) string {
	return strings.Join(parts, keyDelimiter)
}

// Load reads configuration. A missing file in the search paths is not an
// error; a missing explicit file is.
func Load(opts Options) (*Config, error) {
	return Decode(New(opts))
}

// Decode reads v's config file, if any, and decodes and validates the
// merged settings.
func Decode(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			trimSliceHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Markup.Modules == nil {
		config.Markup.Modules = map[string]string{}
	}
	if config.Build.Exclude == nil {
		config.Build.Exclude = []string{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks dialect names, tie-breaks and limits.
func (c *Config) Validate() error {
	if _, ok := markup.Canonical(c.Markup.Default); !ok {
		return fmt.Errorf("markup.default: %w %q", markup.ErrUnknownDialect, c.Markup.Default)
	}
	for pattern, name := range c.Markup.Modules {
		if _, ok := markup.Canonical(name); !ok {
			return fmt.Errorf("markup.modules[%q]: %w %q", pattern, markup.ErrUnknownDialect, name)
		}
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("resolve.tiebreak: %w", err)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build.workers must not be negative, got %d", c.Build.Workers)
	}
	if c.Build.MaxFileSize < 0 {
		return fmt.Errorf("build.max_file_size must not be negative, got %d", c.Build.MaxFileSize)
	}
	return nil
}

// Policy returns the resolver policy for resolve.tiebreak.
func (c *Config) Policy() (resolve.Policy, error) {
	return resolve.ParsePolicy(c.Resolve.TieBreak)
}

// trimSliceHookFunc trims the elements of comma-split environment values
// such as EPYDOC_BUILD_EXCLUDE="build/, dist/".
func trimSliceHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		items, ok := data.([]string)
		if !ok || t.Kind() != reflect.Slice {
			return data, nil
		}
		out := make([]string, 0, len(items))
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
}
