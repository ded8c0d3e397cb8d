package maven

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/offlinerepo/fetch"
	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
)

// maxModelDepth bounds parent, import and relocation chains.
const maxModelDepth = 32

var errModelTooDeep = errors.New("pom parent/import chain too deep")

// rawModel downloads and parses the POM of c without any inheritance.
func (r *Resolver) rawModel(ctx context.Context, c core.Coordinate) (*POM, error) {
	key := "raw:" + c.String()
	if p, ok := r.models.Get(key); ok {
		return p, nil
	}

	file, err := r.download(ctx, c, "", core.MetadataExtension)
	if err != nil {
		return nil, fmt.Errorf("fetching pom %s: %w", c, err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading pom %s: %w", c, err)
	}
	p, err := ParsePOM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	p.File = file

	r.models.Add(key, p)
	return p, nil
}

// inheritedModel returns the POM of c merged with its whole parent chain.
// Property references are not yet expanded.
func (r *Resolver) inheritedModel(ctx context.Context, c core.Coordinate, depth int) (*POM, error) {
	if depth > maxModelDepth {
		return nil, fmt.Errorf("%s: %w", c, errModelTooDeep)
	}
	key := "inherited:" + c.String()
	if p, ok := r.models.Get(key); ok {
		return p, nil
	}

	raw, err := r.rawModel(ctx, c)
	if err != nil {
		return nil, err
	}
	p := raw.clone()

	if p.Parent != nil && p.Parent.ArtifactID != "" {
		parentCoord := core.Coordinate{Group: p.Parent.GroupID, Artifact: p.Parent.ArtifactID, Version: p.Parent.Version}
		parent, err := r.inheritedModel(ctx, parentCoord, depth+1)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", c, err)
		}
		p.inherit(parent)
		p.Ancestors = append([]core.Coordinate{parentCoord}, parent.Ancestors...)
	}

	r.models.Add(key, p)
	return p, nil
}

// effectiveModel returns the fully built model of c: inherited, property
// expanded, BOM imports merged and own dependency management applied.
// Relocations are followed.
func (r *Resolver) effectiveModel(ctx context.Context, c core.Coordinate, depth int) (*POM, error) {
	if depth > maxModelDepth {
		return nil, fmt.Errorf("%s: %w", c, errModelTooDeep)
	}
	key := "effective:" + c.String()
	if p, ok := r.models.Get(key); ok {
		return p, nil
	}

	inherited, err := r.inheritedModel(ctx, c, depth)
	if err != nil {
		return nil, err
	}
	p := inherited.clone()
	p.interpolate()

	if err := r.importBOMs(ctx, p, depth); err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	p.applyManagement()

	if target, ok := p.relocationTarget(c); ok {
		r.logger.Debug("following relocation", "from", c.String(), "to", target.String())
		relocated, err := r.effectiveModel(ctx, target, depth+1)
		if err != nil {
			return nil, fmt.Errorf("relocation of %s: %w", c, err)
		}
		moved := relocated.clone()
		moved.RelocatedFrom = append([]core.Coordinate{c}, moved.RelocatedFrom...)
		moved.Ancestors = append(moved.Ancestors, p.Ancestors...)
		p = moved
	}

	r.models.Add(key, p)
	return p, nil
}

// importBOMs replaces import-scoped pom entries in dependencyManagement with
// the managed dependencies of the referenced BOMs. Entries declared
// directly take precedence over imported ones.
func (r *Resolver) importBOMs(ctx context.Context, p *POM, depth int) error {
	var own, imports []Dependency
	for _, d := range p.DependencyManagement.Dependencies {
		if d.Scope == string(core.ScopeImport) && d.Type == "pom" {
			imports = append(imports, d)
			continue
		}
		own = append(own, d)
	}
	if len(imports) == 0 {
		return nil
	}

	merged := own
	for _, d := range imports {
		bomCoord := core.Coordinate{Group: d.GroupID, Artifact: d.ArtifactID, Version: d.Version}
		if unresolved(bomCoord.String()) {
			return fmt.Errorf("unresolved import %s", bomCoord)
		}
		bom, err := r.effectiveModel(ctx, bomCoord, depth+1)
		if err != nil {
			return fmt.Errorf("importing %s: %w", bomCoord, err)
		}
		merged = mergeDependencies(merged, bom.DependencyManagement.Dependencies)
		p.Imports = append(p.Imports, bom.Coordinate())
		p.Imports = append(p.Imports, bom.Ancestors...)
		p.Imports = append(p.Imports, bom.Imports...)
	}
	p.DependencyManagement.Dependencies = merged
	return nil
}

func (p *POM) relocationTarget(from core.Coordinate) (core.Coordinate, bool) {
	if p.Relocation == nil {
		return core.Coordinate{}, false
	}
	target := from
	if p.Relocation.GroupID != "" {
		target.Group = p.Relocation.GroupID
	}
	if p.Relocation.ArtifactID != "" {
		target.Artifact = p.Relocation.ArtifactID
	}
	if p.Relocation.Version != "" {
		target.Version = p.Relocation.Version
	}
	return target, target != from
}

// metadataCoordinates lists every POM consulted to build p, p itself first.
func (p *POM) metadataCoordinates() []core.Coordinate {
	out := []core.Coordinate{p.Coordinate()}
	out = append(out, p.RelocatedFrom...)
	out = append(out, p.Ancestors...)
	out = append(out, p.Imports...)
	return out
}

// download stores one artifact file under the cache directory and returns
// its path. Local mirrors are read in place.
func (r *Resolver) download(ctx context.Context, c core.Coordinate, classifier, ext string) (string, error) {
	info, err := r.source.Locate(c, classifier, ext)
	if err != nil {
		return "", err
	}

	if local, ok := r.source.LocalPath(info.URL); ok {
		st, err := os.Stat(local)
		if err != nil || st.IsDir() {
			return "", fmt.Errorf("%s: %w", info.Path, fetch.ErrNotFound)
		}
		return local, nil
	}

	rel, err := layout.Path(c.Group, c.Artifact, c.Version, classifier, ext)
	if err != nil {
		return "", err
	}
	target := filepath.Join(r.cacheDir, rel)
	if st, err := os.Stat(target); err == nil && st.Mode().IsRegular() {
		return target, nil
	}

	artifact, err := r.source.Fetcher.Fetch(ctx, info.URL)
	if err != nil {
		return "", err
	}
	defer func() { _ = artifact.Body.Close() }()

	if err := writeAtomic(target, artifact.Body); err != nil {
		return "", fmt.Errorf("caching %s: %w", info.Path, err)
	}
	r.logger.Debug("downloaded", "url", info.URL, "file", target)
	return target, nil
}

func writeAtomic(target string, body io.Reader) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

type mavenMetadata struct {
	XMLName    xml.Name `xml:"metadata"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// availableVersions lists the published versions of a module, from
// maven-metadata.xml or, for a local mirror, from its version directories.
func (r *Resolver) availableVersions(ctx context.Context, group, artifact string) ([]string, error) {
	key := group + ":" + artifact
	if v, ok := r.versions.Get(key); ok {
		return v, nil
	}

	metadataURL, err := r.source.MetadataURL(group, artifact)
	if err != nil {
		return nil, err
	}

	var versions []string
	if local, ok := r.source.LocalPath(metadataURL); ok {
		entries, err := os.ReadDir(filepath.Dir(local))
		if err != nil {
			return nil, fmt.Errorf("listing versions of %s: %w", key, fetch.ErrNotFound)
		}
		for _, e := range entries {
			if e.IsDir() {
				versions = append(versions, e.Name())
			}
		}
	} else {
		resp, err := r.source.Fetcher.Fetch(ctx, metadataURL)
		if err != nil {
			return nil, fmt.Errorf("fetching metadata of %s: %w", key, err)
		}
		defer func() { _ = resp.Body.Close() }()

		var meta mavenMetadata
		if err := xml.NewDecoder(resp.Body).Decode(&meta); err != nil {
			return nil, fmt.Errorf("parsing metadata of %s: %w", key, err)
		}
		for _, v := range meta.Versioning.Versions {
			versions = append(versions, strings.TrimSpace(v))
		}
	}

	r.versions.Add(key, versions)
	return versions, nil
}

// pinVersion turns a version requirement into a concrete version. Plain
// versions are returned unchanged; ranges pick the highest match.
func (r *Resolver) pinVersion(ctx context.Context, group, artifact, requirement string) (string, error) {
	if !IsRange(requirement) {
		return requirement, nil
	}
	ranges, err := ParseRanges(requirement)
	if err != nil {
		return "", err
	}
	if len(ranges) == 1 && ranges[0].Lower != "" && ranges[0].Lower == ranges[0].Upper {
		return ranges[0].Lower, nil
	}

	versions, err := r.availableVersions(ctx, group, artifact)
	if err != nil {
		return "", err
	}
	v, ok := SelectVersion(ranges, versions)
	if !ok {
		return "", fmt.Errorf("no version of %s:%s matches %s", group, artifact, requirement)
	}
	return v, nil
}
