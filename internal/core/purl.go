package core

import (
	packageurl "github.com/package-url/packageurl-go"
)

// PURL wraps packageurl.PackageURL with Maven coordinate helpers.
type PURL struct {
	packageurl.PackageURL
}

// NewPURL builds the package URL for a Maven artifact. Classifier and
// extension become qualifiers when they differ from a plain jar.
func NewPURL(c Coordinate, classifier, ext string) PURL {
	var qualifiers packageurl.Qualifiers
	if classifier != "" {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: "classifier", Value: classifier})
	}
	if ext != "" && ext != "jar" {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: "type", Value: ext})
	}
	return PURL{*packageurl.NewPackageURL(packageurl.TypeMaven, c.Group, c.Artifact, c.Version, qualifiers, "")}
}

// ParsePURL parses a maven package URL into a coordinate.
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, &IdentifierError{Field: "purl", Value: purl}
	}
	if p.Type != packageurl.TypeMaven {
		return nil, &IdentifierError{Field: "purl type", Value: p.Type}
	}
	return &PURL{p}, nil
}

// Coordinate returns the Maven coordinate named by the package URL.
func (p PURL) Coordinate() Coordinate {
	return Coordinate{Group: p.Namespace, Artifact: p.Name, Version: p.Version}
}

// Artifact returns the coordinate, classifier and extension named by a
// Maven package URL. The extension defaults to jar when no type
// qualifier is present.
func (p PURL) Artifact() (Coordinate, string, string) {
	q := p.Qualifiers.Map()
	ext := q["type"]
	if ext == "" {
		ext = "jar"
	}
	return p.Coordinate(), q["classifier"], ext
}

// DescriptorPURL renders the package URL of a resolved artifact.
func DescriptorPURL(d ArtifactDescriptor) string {
	p := NewPURL(d.Coordinate, d.Classifier, d.EffectiveExtension())
	return p.ToString()
}
