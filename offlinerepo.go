// Package offlinerepo builds offline Maven-layout repositories.
//
// A project's dependency groupings are resolved against a remote Maven
// repository, and every resolved binary and POM is copied into a local
// directory laid out like a Maven repository. Builds can then resolve the
// same groupings from that directory without network access.
//
// Basic usage:
//
//	cfg := offlinerepo.DefaultConfig()
//	project, err := offlinerepo.LoadProject(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := offlinerepo.Bootstrap(ctx, cfg, project, ".", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(len(report.CopiedBinaries), "artifacts copied")
//
//	if _, err := offlinerepo.Verify(report.Root); err != nil {
//		log.Fatal(err)
//	}
package offlinerepo

import (
	"context"
	"io"
	"log/slog"

	"github.com/git-pkgs/offlinerepo/fetch"
	"github.com/git-pkgs/offlinerepo/internal/config"
	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
	"github.com/git-pkgs/offlinerepo/internal/manifest"
	"github.com/git-pkgs/offlinerepo/internal/maven"
	"github.com/git-pkgs/offlinerepo/internal/mirror"
	"github.com/git-pkgs/offlinerepo/internal/resolve"
	"github.com/git-pkgs/offlinerepo/internal/verify"
)

// Re-export types from internal packages
type (
	// Coordinate identifies a module version.
	Coordinate = core.Coordinate

	// ArtifactDescriptor is one resolved file.
	ArtifactDescriptor = core.ArtifactDescriptor

	// Grouping is a named set of dependency declarations.
	Grouping = core.Grouping

	// Project is a parsed project manifest.
	Project = manifest.Project

	// Config is the configuration of a run.
	Config = config.Config

	// Report summarizes a bootstrap run.
	Report = mirror.Report

	// Result is the outcome of a verification.
	Result = verify.Result

	// Driver resolves every resolvable grouping of a project.
	Driver = resolve.Driver
)

// Re-export errors
var (
	ErrInvalidIdentifier    = core.ErrInvalidIdentifier
	ErrResolution           = core.ErrResolution
	ErrIO                   = core.ErrIO
	ErrIncompleteRepository = core.ErrIncompleteRepository
)

// Error types
type (
	IdentifierError           = core.IdentifierError
	ResolutionError           = core.ResolutionError
	IOError                   = core.IOError
	IncompleteRepositoryError = core.IncompleteRepositoryError
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadProject reads the manifest of the project in dir, falling back to
// the built-in project model when the directory has none.
func LoadProject(dir string) (*Project, error) {
	return manifest.LoadDir(dir)
}

// ArtifactPath returns the repository-relative path of an artifact.
func ArtifactPath(group, artifact, version, classifier, ext string) (string, error) {
	return layout.Path(group, artifact, version, classifier, ext)
}

// NewDriver wires the artifact source, Maven resolver and resolution
// driver described by cfg for the project in projectDir. A nil logger
// discards output.
func NewDriver(cfg *Config, projectDir string, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srcCfg, err := cfg.SourceConfig(projectDir)
	if err != nil {
		return nil, err
	}
	source, err := fetch.NewSource(cfg.RepoMode, srcCfg)
	if err != nil {
		return nil, err
	}
	resolver, err := maven.New(source, cfg.CacheDir, maven.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	logger.Debug("resolver ready", "mode", cfg.RepoMode, "source", source.BaseURL, "policy", policy)
	return resolve.NewDriver(resolver,
		resolve.WithTimeout(timeout),
		resolve.WithPolicy(policy),
		resolve.WithLogger(logger),
	), nil
}

// Bootstrap resolves project and populates the repository configured by
// cfg. The report lists what was copied and what failed.
func Bootstrap(ctx context.Context, cfg *Config, project *Project, projectDir string, logger *slog.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver, err := NewDriver(cfg, projectDir, logger)
	if err != nil {
		return nil, err
	}
	root, err := cfg.RepositoryRoot(projectDir)
	if err != nil {
		return nil, err
	}
	copier, err := mirror.NewCopier(root)
	if err != nil {
		return nil, err
	}
	return mirror.NewBuilder(driver, copier, mirror.WithLogger(logger)).Build(ctx, project)
}

// Verify checks that the repository at root holds at least one jar.
func Verify(root string) (*Result, error) {
	return verify.Verify(root, verify.Options{})
}
