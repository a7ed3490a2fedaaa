package cli

import (
	"context"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/ardnew/shgo/cli/cmd"
	"github.com/ardnew/shgo/pkg"
	"github.com/ardnew/shgo/syntax"
)

// CLI is the top-level command-line interface for shgo.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Config kong.ConfigFlag `help:"Configuration file (default: ${config})." placeholder:"FILE"`

	Convert  cmd.Convert  `cmd:"" help:"Convert a script into a Go program."`
	Check    cmd.Check    `cmd:"" help:"Report diagnostics without generating code."`
	Run      cmd.Run      `cmd:"" help:"Convert a script and run it in-process."`
	Deps     cmd.Deps     `cmd:"" help:"Print the dependency graph of a script."`
	Watch    cmd.Watch    `cmd:"" help:"Regenerate a program when its sources change."`
	Fmt      cmd.Fmt      `cmd:"" help:"Format shell scripts."`
	Features cmd.Features `cmd:"" help:"List the language features of each dialect."`
	Init     cmd.Init     `cmd:"" help:"Initialize configuration file."`
}

// Run executes the shgo command line. The exit function is called by kong
// after printing help or usage errors.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	if err := mkdirAllRequired(); err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier:   configFilePath,
		cmd.CacheIdentifier:    pkg.CacheDir(),
		cmd.DialectsIdentifier: strings.Join(syntax.Dialects(), ","),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(loadYAML, configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if cli.Config != "" {
		configFilePath = string(cli.Config)
	}

	cfg, err := cmd.LoadConfig(afero.NewOsFs(), configFilePath)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)
	ctx = cmd.WithConfig(ctx, cfg)

	cli.Log.start(ctx)

	// No-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
