package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// loadYAML is a [kong.ConfigurationLoader] for the YAML configuration file.
//
// Top-level keys set the default of the flag with the same name, written
// with hyphens or underscores. A mapping named after a command holds flag
// defaults that apply only to that command and take precedence:
//
//	log_level: debug
//	convert:
//	  output: dist
//	watch:
//	  debounce: 1s
//
// The converter sections (resolve, generate) are read separately and never
// match a flag. Command-line flags override every value in the file.
func loadYAML(r io.Reader) (kong.Resolver, error) {
	var values map[string]any

	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return config(values), nil
}

// config implements [kong.Resolver] over a decoded YAML document.
type config map[string]any

// Validate implements [kong.Resolver].
func (config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (r config) Resolve(ktx *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if ktx != nil {
		if cmd := ktx.Selected(); cmd != nil {
			if section, ok := r[cmd.Name].(map[string]any); ok {
				if v, ok := lookup(section, flag.Name); ok {
					return v, nil
				}
			}
		}
	}

	if v, ok := lookup(r, flag.Name); ok {
		return v, nil
	}

	return nil, nil
}

func lookup(m map[string]any, name string) (any, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}

		if _, ok := v.(map[string]any); ok {
			continue
		}

		return scalar(v), true
	}

	return nil, false
}

// scalar renders values the way kong expects to read them from a command
// line: numbers as strings and sequences as comma-separated lists.
func scalar(v any) any {
	switch v := v.(type) {
	case string, bool:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = fmt.Sprint(scalar(e))
		}

		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
