// Package manifest loads the project model: the named dependency groupings
// of a project, their inheritance, platforms and declared dependencies.
//
// A manifest is a YAML file (offline-repo.yaml by default):
//
//	name: app
//	groupings:
//	  - name: implementation
//	    platforms: [org.springframework.boot:spring-boot-dependencies:4.0.2]
//	    dependencies:
//	      - org.springframework.boot:spring-boot-starter-web
//	      - coordinate: com.example:client:1.2
//	        classifier: all
//	        exclusions: [{group: commons-logging, module: commons-logging}]
//	  - name: runtimeClasspath
//	    resolvable: true
//	    usage: runtime
//	    extends: [implementation]
//
// Declarations of extended groupings are inherited, so a resolvable
// grouping sees everything declared on the groupings it extends.
package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

// DefaultFile is the manifest file name looked up in the project directory.
const DefaultFile = "offline-repo.yaml"

//go:embed default.yaml
var defaultManifest []byte

// Project is a loaded project model.
type Project struct {
	Name  string         `yaml:"name"`
	Specs []GroupingSpec `yaml:"groupings"`

	// Dir is the project directory; relative project files resolve
	// against it.
	Dir string `yaml:"-"`

	resolved []core.Grouping
}

// GroupingSpec is a grouping as written in the manifest.
type GroupingSpec struct {
	Name         string           `yaml:"name"`
	Resolvable   bool             `yaml:"resolvable"`
	Usage        core.Usage       `yaml:"usage"`
	Extends      []string         `yaml:"extends"`
	Platforms    []string         `yaml:"platforms"`
	Dependencies []DependencySpec `yaml:"dependencies"`
	Projects     []ProjectSpec    `yaml:"projects"`
}

// DependencySpec is one declared dependency. It may be written as a plain
// "group:artifact[:version]" string or as a mapping.
type DependencySpec struct {
	Coordinate string           `yaml:"coordinate"`
	Classifier string           `yaml:"classifier"`
	Type       string           `yaml:"type"`
	Exclusions []core.Exclusion `yaml:"exclusions"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (d *DependencySpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Coordinate = node.Value
		return nil
	}
	type plain DependencySpec
	return node.Decode((*plain)(d))
}

// ProjectSpec references another project of the same build.
type ProjectSpec struct {
	Path string `yaml:"path"`
	File string `yaml:"file"`
}

// Load reads a manifest file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return Parse(data, dir)
}

// LoadDir loads DefaultFile from dir, falling back to Default when the
// directory has no manifest.
func LoadDir(dir string) (*Project, error) {
	p, err := Load(filepath.Join(dir, DefaultFile))
	if errors.Is(err, os.ErrNotExist) {
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return nil, absErr
		}
		return Parse(defaultManifest, abs)
	}
	return p, err
}

// Default returns the built-in project model rooted at dir.
func Default(dir string) *Project {
	p, err := Parse(defaultManifest, dir)
	if err != nil {
		panic(fmt.Sprintf("manifest: invalid built-in manifest: %v", err))
	}
	return p
}

// Parse decodes and validates a manifest. dir is the project directory.
func Parse(data []byte, dir string) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	p.Dir = dir
	if err := p.flatten(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Groupings returns the flattened groupings in declaration order.
func (p *Project) Groupings() []core.Grouping {
	return p.resolved
}

// Grouping returns one flattened grouping by name.
func (p *Project) Grouping(name string) (core.Grouping, bool) {
	for _, g := range p.resolved {
		if g.Name == name {
			return g, true
		}
	}
	return core.Grouping{}, false
}

func (p *Project) flatten() error {
	specs := make(map[string]*GroupingSpec, len(p.Specs))
	for i := range p.Specs {
		g := &p.Specs[i]
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return fmt.Errorf("grouping %d has no name", i)
		}
		if _, dup := specs[g.Name]; dup {
			return fmt.Errorf("grouping %q declared twice", g.Name)
		}
		switch g.Usage {
		case "", core.UsageCompile, core.UsageRuntime:
		default:
			return fmt.Errorf("grouping %q: unknown usage %q", g.Name, g.Usage)
		}
		specs[g.Name] = g
	}

	p.resolved = make([]core.Grouping, 0, len(p.Specs))
	for _, spec := range p.Specs {
		g := core.Grouping{Name: spec.Name, Resolvable: spec.Resolvable, Usage: spec.Usage}
		if g.Usage == "" {
			g.Usage = core.UsageRuntime
		}

		chain, err := lineage(spec.Name, specs, nil)
		if err != nil {
			return err
		}

		deps := make(map[string]int)
		platforms := make(map[core.Coordinate]bool)
		for _, name := range chain {
			s := specs[name]
			for _, raw := range s.Platforms {
				c, err := parseCoordinate(raw, true)
				if err != nil {
					return fmt.Errorf("grouping %q platform: %w", name, err)
				}
				if !platforms[c] {
					platforms[c] = true
					g.Platforms = append(g.Platforms, c)
				}
			}
			for _, ds := range s.Dependencies {
				d, err := ds.dependency()
				if err != nil {
					return fmt.Errorf("grouping %q: %w", name, err)
				}
				key := d.Module() + ":" + d.Classifier + ":" + d.Type
				if i, ok := deps[key]; ok {
					g.Dependencies[i] = d
					continue
				}
				deps[key] = len(g.Dependencies)
				g.Dependencies = append(g.Dependencies, d)
			}
			for _, ps := range s.Projects {
				ref := core.ProjectRef{Path: ps.Path, File: ps.File}
				if ref.File != "" && !filepath.IsAbs(ref.File) {
					ref.File = filepath.Join(p.Dir, ref.File)
				}
				g.Projects = append(g.Projects, ref)
			}
		}
		p.resolved = append(p.resolved, g)
	}
	return nil
}

// lineage lists name and everything it extends, ancestors first.
func lineage(name string, specs map[string]*GroupingSpec, visiting []string) ([]string, error) {
	for _, v := range visiting {
		if v == name {
			return nil, fmt.Errorf("grouping %q extends itself through %s", name, strings.Join(append(visiting, name), " -> "))
		}
	}
	spec, ok := specs[name]
	if !ok {
		return nil, fmt.Errorf("grouping %q extends unknown grouping %q", visiting[len(visiting)-1], name)
	}

	var out []string
	seen := make(map[string]bool)
	for _, parent := range spec.Extends {
		chain, err := lineage(parent, specs, append(visiting, name))
		if err != nil {
			return nil, err
		}
		for _, n := range chain {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return append(out, name), nil
}

func (d DependencySpec) dependency() (core.Dependency, error) {
	c, err := parseCoordinate(d.Coordinate, false)
	if err != nil {
		return core.Dependency{}, err
	}
	return core.Dependency{
		Coordinate: c,
		Classifier: strings.TrimSpace(d.Classifier),
		Type:       strings.TrimSpace(d.Type),
		Exclusions: d.Exclusions,
	}, nil
}

func parseCoordinate(s string, versionRequired bool) (core.Coordinate, error) {
	c, err := core.ParseCoordinate(s)
	if err != nil {
		return core.Coordinate{}, err
	}
	if versionRequired && c.Version == "" {
		return core.Coordinate{}, &core.IdentifierError{Field: "version", Value: s}
	}
	return c, nil
}
