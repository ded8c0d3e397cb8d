package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/resolve"
)

// PlacementFailure records an artifact that could not be copied.
type PlacementFailure struct {
	Descriptor core.ArtifactDescriptor
	Err        error
}

// Report summarizes a build.
type Report struct {
	Root           string
	CopiedBinaries []Entry
	CopiedMetadata []Entry
	Failed         []PlacementFailure
	// Unresolved lists groupings skipped under the continue failure policy.
	Unresolved []*core.ResolutionError
}

// Pristine reports whether every artifact was resolved and placed.
func (r *Report) Pristine() bool {
	return len(r.Failed) == 0 && len(r.Unresolved) == 0
}

// Builder populates a repository from a project's resolved groupings.
type Builder struct {
	driver *resolve.Driver
	copier *Copier
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the progress logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(driver *resolve.Driver, copier *Copier, opts ...BuilderOption) *Builder {
	b := &Builder{
		driver: driver,
		copier: copier,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves the project and copies every binary and metadata artifact
// into the repository. Resolution failures abort the build; a failed copy
// only skips that artifact and is recorded in the report.
func (b *Builder) Build(ctx context.Context, project resolve.Project) (*Report, error) {
	root := b.copier.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &core.IOError{Op: "mkdir", Path: root, Err: err}
	}

	res, err := b.driver.ResolveAll(ctx, project)
	if err != nil {
		return nil, err
	}

	report := &Report{Root: root, Unresolved: res.Failures}

	b.logger.Info("copying binaries", "count", len(res.Binaries), "root", root)
	for _, d := range res.Binaries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry, err := b.copier.Place(d)
		if err != nil {
			b.fail(report, d, err)
			continue
		}
		b.logger.Debug("placed binary", "path", entry.Rel, "grouping", d.Grouping)
		report.CopiedBinaries = append(report.CopiedBinaries, entry)
	}

	b.logger.Info("copying metadata", "count", len(res.Metadata), "root", root)
	for _, d := range res.Metadata {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		d.Extension = core.MetadataExtension
		entry, err := b.copier.Place(d)
		if err != nil {
			b.fail(report, d, err)
			continue
		}
		b.logger.Debug("placed metadata", "path", entry.Rel, "grouping", d.Grouping)
		report.CopiedMetadata = append(report.CopiedMetadata, entry)
	}

	b.logger.Info("repository populated",
		"binaries", len(report.CopiedBinaries),
		"metadata", len(report.CopiedMetadata),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (b *Builder) fail(report *Report, d core.ArtifactDescriptor, err error) {
	b.logger.Warn("artifact not placed", "coordinate", d.Coordinate.String(), "grouping", d.Grouping, "error", err)
	report.Failed = append(report.Failed, PlacementFailure{Descriptor: d, Err: err})
}

// Err summarizes the failures of a non-pristine report.
func (r *Report) Err() error {
	if r.Pristine() {
		return nil
	}
	return fmt.Errorf("repository is not pristine: %d artifacts failed to copy, %d groupings unresolved", len(r.Failed), len(r.Unresolved))
}
