// Package core provides the shared types and error kinds used across the
// resolve, mirror and verify pipeline.
package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Coordinate identifies a module version in a Maven-style repository.
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
}

// ParseCoordinate parses "group:artifact[:version]". The version is left
// empty when absent.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Coordinate{}, &IdentifierError{Field: "coordinate", Value: s}
	}
	c := Coordinate{Group: parts[0], Artifact: parts[1]}
	if len(parts) == 3 {
		c.Version = parts[2]
	}
	if c.Group == "" || c.Artifact == "" {
		return Coordinate{}, &IdentifierError{Field: "coordinate", Value: s}
	}
	return c, nil
}

// Module returns the versionless "group:artifact" key.
func (c Coordinate) Module() string {
	return c.Group + ":" + c.Artifact
}

func (c Coordinate) String() string {
	if c.Version == "" {
		return c.Module()
	}
	return c.Module() + ":" + c.Version
}

// WithVersion returns a copy of c pinned to version.
func (c Coordinate) WithVersion(version string) Coordinate {
	c.Version = version
	return c
}

// Scope is a Maven dependency scope.
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
	ScopeTest     Scope = "test"
	ScopeSystem   Scope = "system"
	ScopeImport   Scope = "import"
)

// Usage selects which transitive scopes a grouping follows.
type Usage string

const (
	// UsageCompile follows compile-scoped transitive dependencies only.
	UsageCompile Usage = "compile"
	// UsageRuntime follows compile and runtime scoped dependencies.
	UsageRuntime Usage = "runtime"
)

// Follows reports whether a transitive dependency in scope s is part of
// a graph built for usage u.
func (u Usage) Follows(s Scope) bool {
	switch s {
	case "", ScopeCompile:
		return true
	case ScopeRuntime:
		return u == UsageRuntime
	default:
		return false
	}
}

// Exclusion removes a module (or a wildcard of modules) from a subtree.
type Exclusion struct {
	Group    string `yaml:"group"`
	Artifact string `yaml:"module"`
}

// Matches reports whether the exclusion covers c. "*" matches anything.
func (e Exclusion) Matches(c Coordinate) bool {
	groupOK := e.Group == "*" || e.Group == "" || e.Group == c.Group
	artifactOK := e.Artifact == "*" || e.Artifact == "" || e.Artifact == c.Artifact
	return groupOK && artifactOK
}

// Dependency is a declared dependency, either in a project manifest or in
// a POM.
type Dependency struct {
	Coordinate
	Classifier string
	Type       string
	Scope      Scope
	Optional   bool
	Exclusions []Exclusion
}

// Grouping is a named dependency set ("configuration") read from a
// project model. Inherited declarations are already flattened.
type Grouping struct {
	Name         string
	Resolvable   bool
	Usage        Usage
	Platforms    []Coordinate
	Dependencies []Dependency
	Projects     []ProjectRef
}

// ProjectRef is a project-to-project reference inside a grouping. It never
// names a published coordinate.
type ProjectRef struct {
	Path string
	File string
}

// View selects which artifacts of a resolved grouping are requested.
type View string

const (
	ViewBinary   View = "binary"
	ViewMetadata View = "metadata"
)

// ComponentKind distinguishes published modules from local projects.
type ComponentKind string

const (
	ComponentModule  ComponentKind = "module"
	ComponentProject ComponentKind = "project"
)

// MetadataExtension is the canonical extension of metadata artifacts.
const MetadataExtension = "pom"

// ArtifactDescriptor identifies one resolved file. Descriptors are produced
// by resolution and never modified afterwards.
type ArtifactDescriptor struct {
	Coordinate
	Classifier string
	Extension  string
	File       string
	View       View
	Component  ComponentKind
	Grouping   string
	// License is the SPDX expression declared by the module's POM, empty
	// when unknown.
	License string
}

// EffectiveExtension returns Extension, falling back to the extension of
// the resolved file.
func (d ArtifactDescriptor) EffectiveExtension() string {
	if d.Extension != "" {
		return d.Extension
	}
	return strings.TrimPrefix(filepath.Ext(d.File), ".")
}

// Key identifies the repository entry the descriptor materializes into.
func (d ArtifactDescriptor) Key() string {
	return fmt.Sprintf("%s:%s:%s", d.Coordinate, strings.TrimSpace(d.Classifier), d.EffectiveExtension())
}

// Repository modes select the artifact source for a run.
const (
	// ModeBootstrap resolves against the remote network repository.
	ModeBootstrap = "bootstrap"
	// ModeConsume resolves against the local mirrored repository only.
	ModeConsume = "consume"
)
