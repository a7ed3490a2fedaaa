package cmd

import (
	"context"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/lower"
	"github.com/ardnew/shgo/resolve"
)

// defaultFileMode is the permission of generated files.
const defaultFileMode = 0o644

// defaultDirMode is the permission of generated directories.
const defaultDirMode = 0o755

// Convert generates a Go main package from a script.
type Convert struct {
	Pipeline `embed:""`

	Output   string `help:"Directory the package is written to (default: build/NAME)." placeholder:"DIR" short:"o" type:"path"`
	DryRun   bool   `help:"Print the program manifest instead of writing files."            short:"n"`
	Requests string `help:"Write unanswered resolution requests to this file."              placeholder:"FILE" type:"path"`
	Force    bool   `help:"Overwrite existing files."                                      short:"f"`

	Script string `arg:"" help:"Shell script to convert." name:"script" type:"path"`
}

// Run executes the convert command.
func (c *Convert) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	res, prog, _, err := c.generate(ctx, c.Script)
	if res != nil && c.Requests != "" {
		if werr := c.writeRequests(ctx, res.Requests); werr != nil {
			return werr
		}
	}

	if err != nil {
		return err
	}

	if c.DryRun {
		b, err := yaml.Marshal(lower.NewManifest(prog))
		if err != nil {
			return ErrOutput.Wrap(err)
		}

		_, err = stdioFrom(ctx).out.Write(b)

		return err
	}

	files, err := lower.Emit(prog)
	if err != nil {
		return err
	}

	dir := outputDir(c.Output, c.Script)

	if err := writeFiles(fsFrom(ctx), dir, files, c.Force); err != nil {
		return err
	}

	log.InfoContext(ctx, "converted",
		slog.String("script", c.Script),
		slog.String("output", dir),
		slog.Int("units", len(prog.Units)+1),
		slog.Int("embeds", len(prog.Embeds)),
		slog.Int("externals", len(prog.Externals)))

	return nil
}

func (c *Convert) writeRequests(ctx context.Context, reqs []resolve.Request) error {
	f, err := fsFrom(ctx).Create(c.Requests)
	if err != nil {
		return ErrOutput.Wrap(err).With(slog.String("file", c.Requests))
	}
	defer f.Close()

	return WriteRequests(f, reqs)
}

// defaultOutput is the directory generated packages are written beneath
// when no output directory is given.
const defaultOutput = "build"

// outputDir is output, or a directory named after script when unset.
func outputDir(output, script string) string {
	if output != "" {
		return output
	}

	return filepath.Join(defaultOutput, programName(script))
}

// writeFiles writes files beneath dir. Existing files are only replaced
// when force is set; nothing is written if any would be refused.
func writeFiles(fs afero.Fs, dir string, files map[string][]byte, force bool) error {
	names := slices.Sorted(maps.Keys(files))

	if !force {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if ok, _ := afero.Exists(fs, path); ok {
				return ErrOutput.Wrap(ErrFileExists).With(slog.String("file", path))
			}
		}
	}

	if err := fs.MkdirAll(dir, defaultDirMode); err != nil {
		return ErrOutput.Wrap(err).With(slog.String("dir", dir))
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := afero.WriteFile(fs, path, files[name], defaultFileMode); err != nil {
			return ErrOutput.Wrap(err).With(slog.String("file", path))
		}
	}

	return nil
}
