package cmd

import (
	"errors"
	"log/slog"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/ardnew/shgo/resolve"
	"github.com/ardnew/shgo/shell"
)

// Config is the converter configuration. It shares the configuration file
// with the command-line flags: top-level keys naming a flag set its
// default, and the sections below steer resolution and generation.
type Config struct {
	Resolve  resolve.Config `yaml:"resolve"`
	Generate Generate       `yaml:"generate"`
}

// Generate configures code generation.
type Generate struct {
	// Parallel limits the number of units lowered at once.
	Parallel int `yaml:"parallel" validate:"gte=0"`
	// Options are enabled at program start in addition to the shebang's.
	Options shell.Options `yaml:"options"`
	// Decisions is the default decision file.
	Decisions string `yaml:"decisions"`
}

// DefaultConfig returns the configuration used without a configuration file.
func DefaultConfig() Config {
	return Config{
		Resolve:  resolve.DefaultConfig(),
		Generate: Generate{Parallel: runtime.GOMAXPROCS(0)},
	}
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})

	return v
})

// Validate reports the first semantic problem in c.
func (c Config) Validate() error {
	return validate().Struct(c)
}

// LoadConfig reads the configuration at path over the defaults. A missing
// file yields the defaults.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return cfg, ErrConfig.Wrap(err).With(slog.String("file", path))
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, ErrConfig.Wrap(err).With(slog.String("file", path))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, ErrConfig.Wrap(err).With(slog.String("file", path))
	}

	return cfg, nil
}
