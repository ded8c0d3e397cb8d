package maven

import "strings"

// maxInterpolationDepth bounds nested property references.
const maxInterpolationDepth = 10

// interpolate resolves ${...} references in the model's coordinates and
// dependency declarations. Unknown references are left untouched.
func (p *POM) interpolate() {
	lookup := p.lookup()

	p.GroupID = expand(p.GroupID, lookup)
	p.ArtifactID = expand(p.ArtifactID, lookup)
	p.Version = expand(p.Version, lookup)
	p.Packaging = expand(p.Packaging, lookup)

	for i := range p.Dependencies {
		p.Dependencies[i].expand(lookup)
	}
	for i := range p.DependencyManagement.Dependencies {
		p.DependencyManagement.Dependencies[i].expand(lookup)
	}
	if p.Relocation != nil {
		p.Relocation.GroupID = expand(p.Relocation.GroupID, lookup)
		p.Relocation.ArtifactID = expand(p.Relocation.ArtifactID, lookup)
		p.Relocation.Version = expand(p.Relocation.Version, lookup)
	}
}

func (d *Dependency) expand(lookup func(string) (string, bool)) {
	d.GroupID = expand(d.GroupID, lookup)
	d.ArtifactID = expand(d.ArtifactID, lookup)
	d.Version = expand(d.Version, lookup)
	d.Type = expand(d.Type, lookup)
	d.Classifier = expand(d.Classifier, lookup)
	d.Scope = expand(d.Scope, lookup)
	d.Optional = expand(d.Optional, lookup)
}

// lookup resolves built-in project expressions first, then properties.
func (p *POM) lookup() func(string) (string, bool) {
	builtins := map[string]string{
		"project.groupId":    p.GroupID,
		"project.artifactId": p.ArtifactID,
		"project.version":    p.Version,
		"pom.groupId":        p.GroupID,
		"pom.artifactId":     p.ArtifactID,
		"pom.version":        p.Version,
		"groupId":            p.GroupID,
		"artifactId":         p.ArtifactID,
		"version":            p.Version,
	}
	if p.Parent != nil {
		builtins["project.parent.groupId"] = p.Parent.GroupID
		builtins["project.parent.artifactId"] = p.Parent.ArtifactID
		builtins["project.parent.version"] = p.Parent.Version
		builtins["parent.version"] = p.Parent.Version
	}

	return func(key string) (string, bool) {
		if v, ok := p.Properties[key]; ok {
			return v, true
		}
		if v, ok := builtins[key]; ok && v != "" {
			return v, true
		}
		return "", false
	}
}

// expand substitutes ${key} occurrences in s, re-expanding substituted
// values up to maxInterpolationDepth times.
func expand(s string, lookup func(string) (string, bool)) string {
	for range maxInterpolationDepth {
		if !strings.Contains(s, "${") {
			return s
		}
		next := expandOnce(s, lookup)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

func expandOnce(s string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start

		key := s[start+2 : end]
		b.WriteString(s[:start])
		if v, ok := lookup(key); ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

// unresolved reports whether s still carries a property reference.
func unresolved(s string) bool {
	return strings.Contains(s, "${")
}
