// Package cli implements the offline-repo command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/git-pkgs/offlinerepo"
	"github.com/git-pkgs/offlinerepo/internal/config"
	"github.com/git-pkgs/offlinerepo/internal/manifest"
	"github.com/git-pkgs/offlinerepo/internal/mirror"
	"github.com/git-pkgs/offlinerepo/internal/resolve"
)

// Version is set at link time.
var Version = "dev"

// App carries the process context and streams shared by all commands.
type App struct {
	Context context.Context
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewApp returns an App bound to the process streams.
func NewApp(ctx context.Context) *App {
	return &App{Context: ctx, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (a *App) ctx() context.Context {
	if a.Context == nil {
		return context.Background()
	}
	return a.Context
}

// options holds the flags shared by commands that touch a project.
type options struct {
	configPath      string
	projectDir      string
	manifestPath    string
	repoDir         string
	mode            string
	remoteURL       string
	cacheDir        string
	timeout         time.Duration
	continueOnError bool
	logLevel        string
	json            bool
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "configuration file (env "+config.EnvConfig+")")
	fs.StringVarP(&o.projectDir, "project-dir", "C", ".", "project directory")
	fs.StringVar(&o.repoDir, "repo-dir", "", "offline repository root (env "+config.EnvRepoDir+")")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&o.json, "json", false, "write JSON output and JSON logs")
}

func (o *options) registerResolution(fs *pflag.FlagSet) {
	fs.StringVarP(&o.manifestPath, "manifest", "f", "", "project manifest (default <project-dir>/"+manifest.DefaultFile+")")
	fs.StringVar(&o.mode, "mode", "", "repository mode: bootstrap or consume (env "+config.EnvRepoMode+")")
	fs.StringVar(&o.remoteURL, "remote-url", "", "remote Maven repository used in bootstrap mode")
	fs.StringVar(&o.cacheDir, "cache-dir", "", "download cache directory")
	fs.DurationVar(&o.timeout, "timeout", 0, "resolution timeout per grouping")
	fs.BoolVar(&o.continueOnError, "continue-on-error", false, "skip groupings that fail to resolve")
}

func (a *App) logger(o *options) (*slog.Logger, error) {
	level, err := ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	return NewCommandLogger(a.Stderr, level, o.json), nil
}

// config loads the configuration and applies the flags over it.
func (o *options) config() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(filepath.Join(o.projectDir, ".env")); err != nil {
		return nil, err
	}

	if o.repoDir != "" {
		cfg.OfflineRepoDir = o.repoDir
	}
	if o.mode != "" {
		cfg.RepoMode = o.mode
	}
	if o.remoteURL != "" {
		cfg.RemoteURL = o.remoteURL
	}
	if o.cacheDir != "" {
		cfg.CacheDir = o.cacheDir
	}
	if o.timeout > 0 {
		cfg.ResolveTimeout = o.timeout.String()
	}
	if o.continueOnError {
		cfg.FailurePolicy = string(resolve.Continue)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *options) project() (*manifest.Project, error) {
	if o.manifestPath != "" {
		return manifest.Load(o.manifestPath)
	}
	return manifest.LoadDir(o.projectDir)
}

// pipeline is everything a bootstrap or resolve run needs.
type pipeline struct {
	cfg     *config.Config
	project *manifest.Project
	root    string
	driver  *resolve.Driver
}

func (a *App) pipeline(o *options, logger *slog.Logger) (*pipeline, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	project, err := o.project()
	if err != nil {
		return nil, err
	}

	root, err := cfg.RepositoryRoot(o.projectDir)
	if err != nil {
		return nil, err
	}
	driver, err := offlinerepo.NewDriver(cfg, o.projectDir, logger)
	if err != nil {
		return nil, err
	}
	return &pipeline{cfg: cfg, project: project, root: root, driver: driver}, nil
}

func (p *pipeline) builder(logger *slog.Logger) (*mirror.Builder, error) {
	copier, err := mirror.NewCopier(p.root)
	if err != nil {
		return nil, err
	}
	return mirror.NewBuilder(p.driver, copier, mirror.WithLogger(logger)), nil
}

// Root returns the offline-repo command tree.
func (a *App) Root() *Command {
	var showVersion bool
	root := &Command{
		Name:    "offline-repo",
		Summary: "Build and check offline Maven repositories",
		Description: `offline-repo resolves the dependency groupings of a project and copies
every resolved artifact into a directory laid out like a Maven repository,
so later builds can run without network access.`,
		Output: a.Stderr,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("offline-repo", pflag.ContinueOnError)
			fs.BoolVar(&showVersion, "version", false, "print the version and exit")
			return fs
		},
		Subcommands: []*Command{
			a.bootstrapCommand(),
			a.verifyCommand(),
			a.resolveCommand(),
			a.pathCommand(),
			a.publishCommand(),
		},
	}
	root.Run = func(args []string) error {
		if showVersion {
			fmt.Fprintf(a.Stdout, "offline-repo %s\n", Version)
			return nil
		}
		root.PrintHelp(a.Stderr)
		if len(args) > 0 {
			return fmt.Errorf("unexpected argument %q", args[0])
		}
		return fmt.Errorf("subcommand required")
	}
	return root
}
