package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/profile"
)

// Init generates a default configuration file with current flag values.
type Init struct {
	Force  bool   `help:"Overwrite existing configuration file"                 short:"f"`
	Output string `help:"Write to this file instead of the configuration file." placeholder:"FILE" short:"o" type:"path"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)

	confPath := i.Output
	if confPath == "" && ktx != nil {
		confPath = ktx.Model.Vars()[ConfigIdentifier]
	}

	if confPath == "" {
		return ErrWriteConfig.With(slog.String("issue", "no configuration file path"))
	}

	fs := fsFrom(ctx)

	if ok, _ := afero.Exists(fs, confPath); ok && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			With(slog.Bool("exists", true)).
			Wrap(ErrFileExists)
	}

	b, err := yaml.Marshal(i.document(ktx, configFrom(ctx)))
	if err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	if err := fs.MkdirAll(filepath.Dir(confPath), 0o700); err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	if err := afero.WriteFile(fs, confPath, b, 0o600); err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	log.DebugContext(ctx,
		"initialized configuration file",
		slog.String("path", confPath),
	)

	return nil
}

// document lays out the configuration file: the global flags first, then
// the converter sections.
func (i *Init) document(ktx *kong.Context, cfg Config) yaml.MapSlice {
	var doc yaml.MapSlice

	if ktx != nil {
		prefixIgnore := []string{"help", ConfigIdentifier, profile.Tag}

		for _, flag := range ktx.Model.Flags {
			if flag.Hidden || slices.ContainsFunc(prefixIgnore, func(s string) bool {
				return strings.HasPrefix(flag.Name, s)
			}) {
				continue
			}

			if val := flagValue(ktx, flag); val != nil {
				doc = append(doc, yaml.MapItem{Key: flag.Name, Value: val})
			}
		}
	}

	return append(doc,
		yaml.MapItem{Key: "resolve", Value: cfg.Resolve},
		yaml.MapItem{Key: "generate", Value: cfg.Generate},
	)
}

// flagValue returns the value of a flag as written to the configuration
// file, or nil if it is unset.
func flagValue(ktx *kong.Context, flag *kong.Flag) any {
	switch v := ktx.FlagValue(flag).(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}

		return v
	case []string:
		if len(v) == 0 {
			return nil
		}

		return v
	case bool, int, int64, uint, uint64, float64:
		return v
	case interface{ String() string }:
		return v.String()
	default:
		return v
	}
}
