// Package resolve drives dependency resolution over every resolvable
// grouping of a project and collects the binary and metadata artifacts to
// mirror.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

// DefaultTimeout bounds the resolution of a single grouping.
const DefaultTimeout = 5 * time.Minute

// Resolver turns a grouping into resolved artifact descriptors for one view.
type Resolver interface {
	Artifacts(ctx context.Context, grouping core.Grouping, view core.View) ([]core.ArtifactDescriptor, error)
}

// Project exposes the dependency groupings of a project model, in
// declaration order.
type Project interface {
	Groupings() []core.Grouping
}

// FailurePolicy decides what happens when one grouping fails to resolve.
type FailurePolicy string

const (
	// FailFast aborts on the first failed grouping.
	FailFast FailurePolicy = "fail-fast"
	// Continue records the failure and resolves the remaining groupings.
	Continue FailurePolicy = "continue"
)

// ParsePolicy validates a failure policy name. Empty selects FailFast.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailFast:
		return FailFast, nil
	case Continue:
		return Continue, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %s or %s)", s, FailFast, Continue)
	}
}

// Resolution is the outcome of resolving every grouping of a project.
type Resolution struct {
	Binaries []core.ArtifactDescriptor
	Metadata []core.ArtifactDescriptor
	// Failures holds the groupings skipped under the Continue policy.
	Failures []*core.ResolutionError
	// Groupings lists the names of the groupings that were resolved.
	Groupings []string
}

// Driver resolves all resolvable groupings of a project.
type Driver struct {
	resolver Resolver
	timeout  time.Duration
	policy   FailurePolicy
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithTimeout sets the per-grouping resolution timeout.
func WithTimeout(d time.Duration) Option {
	return func(dr *Driver) {
		if d > 0 {
			dr.timeout = d
		}
	}
}

// WithPolicy sets the failure policy.
func WithPolicy(p FailurePolicy) Option {
	return func(dr *Driver) {
		if p != "" {
			dr.policy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(dr *Driver) {
		if l != nil {
			dr.logger = l
		}
	}
}

// NewDriver creates a Driver around a resolver.
func NewDriver(r Resolver, opts ...Option) *Driver {
	d := &Driver{
		resolver: r,
		timeout:  DefaultTimeout,
		policy:   FailFast,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ResolveAll resolves every resolvable grouping in declaration order and
// returns the deduplicated binary and metadata descriptors of published
// modules. Project-to-project references are dropped. When two groupings
// yield the same repository entry, the later one wins.
func (d *Driver) ResolveAll(ctx context.Context, project Project) (*Resolution, error) {
	res := &Resolution{}

	for _, g := range project.Groupings() {
		logger := d.logger.With("grouping", g.Name)
		if !g.Resolvable {
			logger.Debug("skipping grouping that is not resolvable")
			continue
		}

		binaries, metadata, err := d.resolveGrouping(ctx, g)
		if err != nil {
			var re *core.ResolutionError
			if !errors.As(err, &re) {
				re = &core.ResolutionError{Grouping: g.Name, Err: err}
			}
			if re.Grouping == "" {
				re.Grouping = g.Name
			}
			if d.policy != Continue || ctx.Err() != nil {
				return nil, re
			}
			logger.Warn("grouping failed to resolve, continuing", "error", re)
			res.Failures = append(res.Failures, re)
			continue
		}

		logger.Info("resolved grouping", "binaries", len(binaries), "metadata", len(metadata))
		res.Binaries = append(res.Binaries, binaries...)
		res.Metadata = append(res.Metadata, metadata...)
		res.Groupings = append(res.Groupings, g.Name)
	}

	res.Binaries = core.Dedupe(res.Binaries)
	res.Metadata = core.Dedupe(res.Metadata)
	return res, nil
}

func (d *Driver) resolveGrouping(ctx context.Context, g core.Grouping) (binaries, metadata []core.ArtifactDescriptor, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	binaries, err = d.resolver.Artifacts(ctx, g, core.ViewBinary)
	if err != nil {
		return nil, nil, wrapTimeout(ctx, g.Name, err)
	}
	metadata, err = d.resolver.Artifacts(ctx, g, core.ViewMetadata)
	if err != nil {
		return nil, nil, wrapTimeout(ctx, g.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, &core.ResolutionError{Grouping: g.Name, Err: err}
	}

	return core.ModulesOnly(binaries), core.ModulesOnly(metadata), nil
}

// wrapTimeout makes sure an expired deadline is visible in the error chain
// even when the resolver reported a transport failure instead.
func wrapTimeout(ctx context.Context, grouping string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return &core.ResolutionError{Grouping: grouping, Err: fmt.Errorf("%w: %w", ctxErr, err)}
	}
	return err
}
