package lower

import (
	"bytes"
	"go/format"
	"log/slog"
	"maps"
	"slices"
	"text/template"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/shgo/pkg"
	"github.com/ardnew/shgo/shell"
)

// Names of the files produced by [Emit].
const (
	MainFile     = "main.go"
	ProgramFile  = "program.bin"
	ManifestFile = "manifest.yaml"
	ModFile      = "go.mod"
)

var mainTemplate = template.Must(template.New(MainFile).Parse(`// Code generated by {{.Generator}} from {{.Script}}. DO NOT EDIT.
{{if .Description}}
// {{.Description}}
{{end}}
package main

import (
	_ "embed"

	"{{.Module}}/lower"
	"{{.Module}}/shell"
)

//go:embed {{.Program}}
var program []byte

func main() {
	prog, err := shell.Load(program)
	if err != nil {
		panic(err)
	}

	shell.Main(prog, shell.WithCompiler(lower.Compile))
}
`))

var modTemplate = template.Must(template.New(ModFile).Parse(`module {{.Name}}

go 1.25

require {{.Module}} v{{.Version}}
`))

// Manifest summarizes a program for people and build tooling.
type Manifest struct {
	Name      string           `yaml:"name"`
	Dialect   string           `yaml:"dialect"`
	Meta      shell.Meta       `yaml:"meta"`
	Options   shell.Options    `yaml:"options"`
	Units     []string         `yaml:"units,omitempty"`
	Embeds    map[string]int   `yaml:"embeds,omitempty"`
	Externals []shell.External `yaml:"externals,omitempty"`
}

// NewManifest describes prog.
func NewManifest(prog *shell.Program) Manifest {
	m := Manifest{
		Name:      prog.Name,
		Dialect:   prog.Dialect,
		Meta:      prog.Meta,
		Options:   prog.Options,
		Units:     slices.Sorted(maps.Keys(prog.Units)),
		Externals: prog.Externals,
	}

	if len(prog.Embeds) > 0 {
		m.Embeds = make(map[string]int, len(prog.Embeds))
		for k, v := range prog.Embeds {
			m.Embeds[k] = len(v)
		}
	}

	return m
}

// Emit renders prog as a Go main package: the main function, the encoded
// program it embeds, a manifest and a module file. The result maps file
// names to content and is handed to the build.
func Emit(prog *shell.Program) (map[string][]byte, error) {
	if prog == nil || prog.Main == nil {
		return nil, ErrEmit.With(slog.String("issue", "empty program"))
	}

	var blob bytes.Buffer
	if err := shell.Encode(&blob, prog); err != nil {
		return nil, ErrEmit.Wrap(err).With(slog.String("name", prog.Name))
	}

	data := struct {
		Generator   string
		Script      string
		Description string
		Module      string
		Program     string
		Name        string
		Version     string
	}{
		Generator:   prog.Meta.Generator,
		Script:      prog.Name,
		Description: prog.Meta.Description,
		Module:      pkg.Module,
		Program:     ProgramFile,
		Name:        prog.Name,
		Version:     pkg.Version(),
	}

	if data.Generator == "" {
		data.Generator = pkg.Name
	}

	var src bytes.Buffer
	if err := mainTemplate.Execute(&src, data); err != nil {
		return nil, ErrEmit.Wrap(err).With(slog.String("file", MainFile))
	}

	gofile, err := format.Source(src.Bytes())
	if err != nil {
		return nil, ErrEmit.Wrap(err).With(slog.String("file", MainFile))
	}

	var mod bytes.Buffer
	if err := modTemplate.Execute(&mod, data); err != nil {
		return nil, ErrEmit.Wrap(err).With(slog.String("file", ModFile))
	}

	manifest, err := yaml.Marshal(NewManifest(prog))
	if err != nil {
		return nil, ErrEmit.Wrap(err).With(slog.String("file", ManifestFile))
	}

	return map[string][]byte{
		MainFile:     gofile,
		ProgramFile:  blob.Bytes(),
		ManifestFile: manifest,
		ModFile:      mod.Bytes(),
	}, nil
}
