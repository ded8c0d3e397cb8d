package maven

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

// POM is the subset of a Maven project model needed for resolution.
type POM struct {
	XMLName              xml.Name             `xml:"project"`
	Parent               *Parent              `xml:"parent"`
	GroupID              string               `xml:"groupId"`
	ArtifactID           string               `xml:"artifactId"`
	Version              string               `xml:"version"`
	Packaging            string               `xml:"packaging"`
	Properties           Properties           `xml:"properties"`
	DependencyManagement DependencyManagement `xml:"dependencyManagement"`
	Dependencies         []Dependency         `xml:"dependencies>dependency"`
	Licenses             []License            `xml:"licenses>license"`
	Relocation           *Relocation          `xml:"distributionManagement>relocation"`

	// File is the local copy of the POM this model was read from.
	File string `xml:"-"`
	// Ancestors lists the parent chain, nearest first.
	Ancestors []core.Coordinate `xml:"-"`
	// Imports lists BOMs merged into dependencyManagement, including
	// their own parents and imports.
	Imports []core.Coordinate `xml:"-"`
	// RelocatedFrom lists coordinates whose relocation led to this model.
	RelocatedFrom []core.Coordinate `xml:"-"`
}

// Parent references the parent POM.
type Parent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// DependencyManagement holds managed dependency versions.
type DependencyManagement struct {
	Dependencies []Dependency `xml:"dependencies>dependency"`
}

// Dependency is a dependency element as written in a POM.
type Dependency struct {
	GroupID    string      `xml:"groupId"`
	ArtifactID string      `xml:"artifactId"`
	Version    string      `xml:"version"`
	Type       string      `xml:"type"`
	Classifier string      `xml:"classifier"`
	Scope      string      `xml:"scope"`
	Optional   string      `xml:"optional"`
	Exclusions []Exclusion `xml:"exclusions>exclusion"`
}

// Exclusion is an exclusion element inside a dependency.
type Exclusion struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

// License is a license element.
type License struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

// Relocation marks a coordinate that moved.
type Relocation struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// Properties holds the free-form properties element.
type Properties map[string]string

// UnmarshalXML reads each child element of properties as a key/value pair.
func (p *Properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	props := Properties{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			props[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			*p = props
			return nil
		}
	}
}

// ParsePOM decodes a POM document.
func ParsePOM(data []byte) (*POM, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false

	var pom POM
	if err := decoder.Decode(&pom); err != nil {
		return nil, fmt.Errorf("parsing pom: %w", err)
	}
	pom.trim()
	return &pom, nil
}

func (p *POM) trim() {
	p.GroupID = strings.TrimSpace(p.GroupID)
	p.ArtifactID = strings.TrimSpace(p.ArtifactID)
	p.Version = strings.TrimSpace(p.Version)
	p.Packaging = strings.TrimSpace(p.Packaging)
	if p.Parent != nil {
		p.Parent.GroupID = strings.TrimSpace(p.Parent.GroupID)
		p.Parent.ArtifactID = strings.TrimSpace(p.Parent.ArtifactID)
		p.Parent.Version = strings.TrimSpace(p.Parent.Version)
	}
	for i := range p.Dependencies {
		p.Dependencies[i].trim()
	}
	for i := range p.DependencyManagement.Dependencies {
		p.DependencyManagement.Dependencies[i].trim()
	}
}

func (d *Dependency) trim() {
	d.GroupID = strings.TrimSpace(d.GroupID)
	d.ArtifactID = strings.TrimSpace(d.ArtifactID)
	d.Version = strings.TrimSpace(d.Version)
	d.Type = strings.TrimSpace(d.Type)
	d.Classifier = strings.TrimSpace(d.Classifier)
	d.Scope = strings.TrimSpace(d.Scope)
	d.Optional = strings.TrimSpace(d.Optional)
}

// Coordinate returns the project's own coordinate.
func (p *POM) Coordinate() core.Coordinate {
	return core.Coordinate{Group: p.GroupID, Artifact: p.ArtifactID, Version: p.Version}
}

// EffectivePackaging defaults packaging to jar.
func (p *POM) EffectivePackaging() string {
	if p.Packaging == "" {
		return "jar"
	}
	return p.Packaging
}

// managementKey identifies a managed dependency. Type and classifier are
// part of the key so test-jars and main jars are managed separately.
func (d Dependency) managementKey() string {
	t := d.Type
	if t == "" {
		t = "jar"
	}
	return d.GroupID + ":" + d.ArtifactID + ":" + t + ":" + d.Classifier
}

// IsOptional reports whether the dependency is marked optional.
func (d Dependency) IsOptional() bool {
	return strings.EqualFold(d.Optional, "true")
}

// Core converts the POM element into a core.Dependency.
func (d Dependency) Core() core.Dependency {
	dep := core.Dependency{
		Coordinate: core.Coordinate{Group: d.GroupID, Artifact: d.ArtifactID, Version: d.Version},
		Classifier: d.Classifier,
		Type:       d.Type,
		Scope:      core.Scope(d.Scope),
		Optional:   d.IsOptional(),
	}
	for _, e := range d.Exclusions {
		dep.Exclusions = append(dep.Exclusions, core.Exclusion{
			Group:    strings.TrimSpace(e.GroupID),
			Artifact: strings.TrimSpace(e.ArtifactID),
		})
	}
	return dep
}

// inherit merges a parent model into p following Maven's inheritance
// rules: identity, properties, dependency management, dependencies and
// licenses flow down unless the child overrides them. Packaging
// is never inherited.
func (p *POM) inherit(parent *POM) {
	if p.GroupID == "" && p.Parent != nil {
		p.GroupID = p.Parent.GroupID
	}
	if p.Version == "" && p.Parent != nil {
		p.Version = p.Parent.Version
	}

	merged := make(Properties, len(parent.Properties)+len(p.Properties))
	for k, v := range parent.Properties {
		merged[k] = v
	}
	for k, v := range p.Properties {
		merged[k] = v
	}
	p.Properties = merged

	p.DependencyManagement.Dependencies = mergeDependencies(p.DependencyManagement.Dependencies, parent.DependencyManagement.Dependencies)
	p.Dependencies = mergeDependencies(p.Dependencies, parent.Dependencies)

	if len(p.Licenses) == 0 {
		p.Licenses = append([]License(nil), parent.Licenses...)
	}
}

// mergeDependencies appends inherited entries the child does not declare.
func mergeDependencies(own, inherited []Dependency) []Dependency {
	seen := make(map[string]bool, len(own))
	out := make([]Dependency, 0, len(own)+len(inherited))
	for _, d := range own {
		seen[d.managementKey()] = true
		out = append(out, d)
	}
	for _, d := range inherited {
		if !seen[d.managementKey()] {
			seen[d.managementKey()] = true
			out = append(out, d)
		}
	}
	return out
}

// clone returns a copy that can be modified without touching p.
func (p *POM) clone() *POM {
	c := *p
	if p.Parent != nil {
		parent := *p.Parent
		c.Parent = &parent
	}
	c.Properties = make(Properties, len(p.Properties))
	for k, v := range p.Properties {
		c.Properties[k] = v
	}
	c.Dependencies = cloneDependencies(p.Dependencies)
	c.DependencyManagement.Dependencies = cloneDependencies(p.DependencyManagement.Dependencies)
	c.Licenses = append([]License(nil), p.Licenses...)
	c.Ancestors = append([]core.Coordinate(nil), p.Ancestors...)
	c.Imports = append([]core.Coordinate(nil), p.Imports...)
	c.RelocatedFrom = append([]core.Coordinate(nil), p.RelocatedFrom...)
	return &c
}

func cloneDependencies(deps []Dependency) []Dependency {
	out := make([]Dependency, len(deps))
	for i, d := range deps {
		out[i] = d
		out[i].Exclusions = append([]Exclusion(nil), d.Exclusions...)
	}
	return out
}

// managed returns the dependencyManagement entry matching d, if any.
func (p *POM) managed(d Dependency) (Dependency, bool) {
	key := d.managementKey()
	for _, m := range p.DependencyManagement.Dependencies {
		if m.managementKey() == key {
			return m, true
		}
	}
	return Dependency{}, false
}

// applyManagement fills missing versions and scopes from dependencyManagement.
func (p *POM) applyManagement() {
	for i, d := range p.Dependencies {
		m, ok := p.managed(d)
		if !ok {
			continue
		}
		if d.Version == "" {
			p.Dependencies[i].Version = m.Version
		}
		if d.Scope == "" {
			p.Dependencies[i].Scope = m.Scope
		}
		if len(d.Exclusions) == 0 {
			p.Dependencies[i].Exclusions = append([]Exclusion(nil), m.Exclusions...)
		}
	}
}
