// Package maven resolves dependency groupings against Maven-layout
// repositories: it reads POMs with parent inheritance, property expansion
// and BOM imports, walks transitive dependencies and picks the highest
// requested version of every module.
package maven

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/git-pkgs/offlinerepo/fetch"
	"github.com/git-pkgs/offlinerepo/internal/core"
)

const (
	defaultCacheSize = 4096
	defaultMaxPasses = 20
)

// Resolver implements resolve.Resolver on top of a fetch.Source.
type Resolver struct {
	source    *fetch.Source
	cacheDir  string
	logger    *slog.Logger
	maxPasses int

	models   *lru.Cache[string, *POM]
	versions *lru.Cache[string, []string]

	mu     sync.Mutex
	graphs map[string]*Graph
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver reading from source. Downloaded files are kept
// under cacheDir in repository layout; an empty cacheDir uses the user
// cache directory.
func New(source *fetch.Source, cacheDir string, opts ...Option) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("maven: nil source")
	}
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "offline-repo")
	}

	models, err := lru.New[string, *POM](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	versions, err := lru.New[string, []string](defaultCacheSize)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		source:    source,
		cacheDir:  cacheDir,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxPasses: defaultMaxPasses,
		models:    models,
		versions:  versions,
		graphs:    make(map[string]*Graph),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Artifact is one file requested from a resolved component.
type Artifact struct {
	Classifier string
	Extension  string
}

// Node is a selected module version in a resolved graph.
type Node struct {
	Coordinate core.Coordinate
	Artifacts  []Artifact
	POM        *POM
	Depth      int
}

func (n *Node) add(a Artifact) {
	for _, existing := range n.Artifacts {
		if existing == a {
			return
		}
	}
	n.Artifacts = append(n.Artifacts, a)
}

// Graph is the resolved dependency graph of one grouping.
type Graph struct {
	Grouping  string
	Nodes     []*Node
	Platforms []*POM
	Projects  []core.ProjectRef
	Passes    int
}

// Selected returns the selected version of every module, keyed by
// "group:artifact".
func (g *Graph) Selected() map[string]string {
	out := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.Coordinate.Module()] = n.Coordinate.Version
	}
	return out
}

// artifactFor maps a dependency type to the file it refers to. pom-typed
// dependencies have no binary.
func artifactFor(depType, classifier string) (Artifact, bool) {
	switch depType {
	case "", "jar", "bundle", "maven-plugin", "ejb":
		return Artifact{Classifier: classifier, Extension: "jar"}, true
	case "test-jar":
		if classifier == "" {
			classifier = "tests"
		}
		return Artifact{Classifier: classifier, Extension: "jar"}, true
	case "ejb-client":
		if classifier == "" {
			classifier = "client"
		}
		return Artifact{Classifier: classifier, Extension: "jar"}, true
	case "pom":
		return Artifact{}, false
	default:
		return Artifact{Classifier: classifier, Extension: depType}, true
	}
}

func isDefaultType(depType string) bool {
	return depType == "" || depType == "jar"
}

type pending struct {
	dep        core.Dependency
	exclusions []core.Exclusion
	depth      int
}

func excluded(exclusions []core.Exclusion, c core.Coordinate) bool {
	for _, e := range exclusions {
		if e.Matches(c) {
			return true
		}
	}
	return false
}

// Resolve builds the dependency graph of a grouping. Versions managed by
// the grouping's platforms override transitive requests; among the
// remaining candidates the highest version of each module wins.
func (r *Resolver) Resolve(ctx context.Context, grouping core.Grouping) (*Graph, error) {
	key := graphKey(grouping)
	r.mu.Lock()
	if g, ok := r.graphs[key]; ok {
		r.mu.Unlock()
		return g, nil
	}
	r.mu.Unlock()

	logger := r.logger.With("grouping", grouping.Name)
	usage := grouping.Usage
	if usage == "" {
		usage = core.UsageRuntime
	}

	graph := &Graph{Grouping: grouping.Name, Projects: grouping.Projects}
	managed := make(map[string]Dependency)
	for _, platform := range grouping.Platforms {
		bom, err := r.effectiveModel(ctx, platform, 0)
		if err != nil {
			return nil, &core.ResolutionError{Grouping: grouping.Name, Coordinate: platform.String(), Err: err}
		}
		graph.Platforms = append(graph.Platforms, bom)
		for _, d := range bom.DependencyManagement.Dependencies {
			if _, ok := managed[d.managementKey()]; !ok {
				managed[d.managementKey()] = d
			}
		}
	}

	roots := make([]pending, 0, len(grouping.Dependencies))
	for _, d := range grouping.Dependencies {
		if d.Version == "" {
			m, ok := managed[Dependency{GroupID: d.Group, ArtifactID: d.Artifact, Type: d.Type, Classifier: d.Classifier}.managementKey()]
			if !ok {
				return nil, &core.ResolutionError{Grouping: grouping.Name, Coordinate: d.Module(), Err: fmt.Errorf("no version declared or managed")}
			}
			d.Version = m.Version
		}
		roots = append(roots, pending{dep: d, exclusions: d.Exclusions})
	}

	selected := make(map[string]string)
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, &core.ResolutionError{Grouping: grouping.Name, Err: err}
		}
		if pass > r.maxPasses {
			return nil, &core.ResolutionError{Grouping: grouping.Name, Err: fmt.Errorf("versions did not settle after %d passes", r.maxPasses)}
		}

		nodes, candidates, err := r.walk(ctx, grouping.Name, usage, roots, managed, selected)
		if err != nil {
			return nil, err
		}

		next := maps.Clone(selected)
		for module, v := range candidates {
			if cur, ok := next[module]; !ok || CompareVersions(v, cur) > 0 {
				next[module] = v
			}
		}
		if maps.Equal(next, selected) {
			graph.Nodes = nodes
			graph.Passes = pass
			break
		}
		logger.Debug("versions changed, walking again", "pass", pass)
		selected = next
	}

	logger.Debug("resolved grouping", "modules", len(graph.Nodes), "passes", graph.Passes)

	r.mu.Lock()
	r.graphs[key] = graph
	r.mu.Unlock()
	return graph, nil
}

// walk visits the graph breadth first using the currently selected
// versions. It returns the reached nodes and, per module, the highest
// version requested along any edge.
func (r *Resolver) walk(ctx context.Context, grouping string, usage core.Usage, roots []pending, managed map[string]Dependency, selected map[string]string) ([]*Node, map[string]string, error) {
	var order []*Node
	visited := make(map[string]*Node)
	candidates := make(map[string]string)
	queue := append([]pending(nil), roots...)

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		module := item.dep.Module()
		requested, err := r.pinVersion(ctx, item.dep.Group, item.dep.Artifact, item.dep.Version)
		if err != nil {
			return nil, nil, &core.ResolutionError{Grouping: grouping, Coordinate: item.dep.String(), Err: err}
		}
		if cur, ok := candidates[module]; !ok || CompareVersions(requested, cur) > 0 {
			candidates[module] = requested
		}

		version := requested
		if v, ok := selected[module]; ok {
			version = v
		}
		artifact, hasBinary := artifactFor(item.dep.Type, item.dep.Classifier)

		if node, ok := visited[module]; ok {
			if hasBinary && !(isDefaultType(item.dep.Type) && node.POM.EffectivePackaging() == "pom") {
				node.add(artifact)
			}
			continue
		}

		coord := item.dep.WithVersion(version)
		pom, err := r.effectiveModel(ctx, coord, 0)
		if err != nil {
			return nil, nil, &core.ResolutionError{Grouping: grouping, Coordinate: coord.String(), Err: err}
		}
		if len(pom.RelocatedFrom) > 0 {
			coord = pom.Coordinate()
		}

		node := &Node{Coordinate: coord, POM: pom, Depth: item.depth}
		visited[module] = node
		order = append(order, node)
		if hasBinary && !(isDefaultType(item.dep.Type) && pom.EffectivePackaging() == "pom") {
			node.add(artifact)
		}

		for _, pd := range pom.Dependencies {
			child := pd.Core()
			if child.Optional || !usage.Follows(child.Scope) {
				continue
			}
			if excluded(item.exclusions, child.Coordinate) {
				continue
			}
			if m, ok := managed[pd.managementKey()]; ok && m.Version != "" {
				child.Version = m.Version
			}
			if child.Version == "" || unresolved(child.Version) {
				return nil, nil, &core.ResolutionError{
					Grouping:   grouping,
					Coordinate: child.Module(),
					Err:        fmt.Errorf("no usable version for dependency of %s (got %q)", coord, child.Version),
				}
			}
			exclusions := append(append([]core.Exclusion(nil), item.exclusions...), child.Exclusions...)
			queue = append(queue, pending{dep: child, exclusions: exclusions, depth: item.depth + 1})
		}
	}
	return order, candidates, nil
}

func graphKey(g core.Grouping) string {
	return fmt.Sprintf("%s|%v|%v|%v|%s", g.Name, g.Platforms, g.Dependencies, g.Projects, g.Usage)
}

// Artifacts resolves the grouping and returns the files of the requested
// view. The binary view holds one descriptor per selected module file plus
// one per project reference; the metadata view holds the POM of every
// selected module together with its parents and imported BOMs, and the
// platform POMs.
func (r *Resolver) Artifacts(ctx context.Context, grouping core.Grouping, view core.View) ([]core.ArtifactDescriptor, error) {
	graph, err := r.Resolve(ctx, grouping)
	if err != nil {
		return nil, err
	}

	switch view {
	case core.ViewBinary:
		return r.binaries(ctx, graph)
	case core.ViewMetadata:
		return r.metadata(ctx, graph)
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
}

func (r *Resolver) binaries(ctx context.Context, graph *Graph) ([]core.ArtifactDescriptor, error) {
	var out []core.ArtifactDescriptor
	for _, n := range graph.Nodes {
		for _, a := range n.Artifacts {
			file, err := r.download(ctx, n.Coordinate, a.Classifier, a.Extension)
			if err != nil {
				return nil, &core.ResolutionError{Grouping: graph.Grouping, Coordinate: n.Coordinate.String(), Err: err}
			}
			out = append(out, core.ArtifactDescriptor{
				Coordinate: n.Coordinate,
				Classifier: a.Classifier,
				Extension:  a.Extension,
				File:       file,
				View:       core.ViewBinary,
				Component:  core.ComponentModule,
				Grouping:   graph.Grouping,
				License:    n.POM.LicenseExpression(),
			})
		}
	}
	for _, p := range graph.Projects {
		out = append(out, core.ArtifactDescriptor{
			Coordinate: core.Coordinate{Group: "project", Artifact: strings.Trim(strings.ReplaceAll(p.Path, ":", "-"), "-"), Version: "unspecified"},
			File:       p.File,
			View:       core.ViewBinary,
			Component:  core.ComponentProject,
			Grouping:   graph.Grouping,
		})
	}
	return out, nil
}

func (r *Resolver) metadata(ctx context.Context, graph *Graph) ([]core.ArtifactDescriptor, error) {
	var coords []core.Coordinate
	for _, p := range graph.Platforms {
		coords = append(coords, p.metadataCoordinates()...)
	}
	for _, n := range graph.Nodes {
		coords = append(coords, n.POM.metadataCoordinates()...)
	}

	seen := make(map[core.Coordinate]bool, len(coords))
	var out []core.ArtifactDescriptor
	for _, c := range coords {
		if seen[c] {
			continue
		}
		seen[c] = true
		file, err := r.download(ctx, c, "", core.MetadataExtension)
		if err != nil {
			return nil, &core.ResolutionError{Grouping: graph.Grouping, Coordinate: c.String(), Err: err}
		}
		out = append(out, core.ArtifactDescriptor{
			Coordinate: c,
			Extension:  core.MetadataExtension,
			File:       file,
			View:       core.ViewMetadata,
			Component:  core.ComponentModule,
			Grouping:   graph.Grouping,
		})
	}
	return out, nil
}
