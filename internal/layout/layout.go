// Package layout maps Maven coordinates to paths in a standard repository
// layout:
//
//	group/path/artifact/version/artifact-version[-classifier].ext
package layout

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

// DefaultExtension is used when no extension is supplied.
const DefaultExtension = "jar"

// Path returns the repository-relative path of an artifact using the
// platform path separator.
func Path(group, artifact, version, classifier, ext string) (string, error) {
	segments, err := segments(group, artifact, version, classifier, ext)
	if err != nil {
		return "", err
	}
	return filepath.Join(segments...), nil
}

// URLPath is Path with forward slashes, for remote repository URLs and
// object keys.
func URLPath(group, artifact, version, classifier, ext string) (string, error) {
	segments, err := segments(group, artifact, version, classifier, ext)
	if err != nil {
		return "", err
	}
	return path.Join(segments...), nil
}

// CoordinatePath is URLPath for a coordinate.
func CoordinatePath(c core.Coordinate, classifier, ext string) (string, error) {
	return URLPath(c.Group, c.Artifact, c.Version, classifier, ext)
}

// FileName returns artifact-version[-classifier].ext.
func FileName(artifact, version, classifier, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	name := artifact + "-" + version
	if c := strings.TrimSpace(classifier); c != "" {
		name += "-" + c
	}
	return name + "." + ext
}

func segments(group, artifact, version, classifier, ext string) ([]string, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	if err := validateSegment("artifact", artifact); err != nil {
		return nil, err
	}
	if err := validateSegment("version", version); err != nil {
		return nil, err
	}
	if c := strings.TrimSpace(classifier); c != "" {
		if err := validateSegment("classifier", c); err != nil {
			return nil, err
		}
	}
	if e := strings.TrimPrefix(strings.TrimSpace(ext), "."); e != "" {
		if err := validateSegment("extension", e); err != nil {
			return nil, err
		}
	}

	out := strings.Split(group, ".")
	out = append(out, artifact, version, FileName(artifact, version, classifier, ext))
	return out, nil
}

func validateGroup(group string) error {
	if strings.TrimSpace(group) == "" {
		return &core.IdentifierError{Field: "group", Value: group}
	}
	for _, part := range strings.Split(group, ".") {
		if part == "" || strings.ContainsAny(part, `/\:`) || strings.TrimSpace(part) != part {
			return &core.IdentifierError{Field: "group", Value: group}
		}
	}
	return nil
}

func validateSegment(field, value string) error {
	if strings.TrimSpace(value) == "" || value == "." || value == ".." {
		return &core.IdentifierError{Field: field, Value: value}
	}
	if strings.ContainsAny(value, `/\:`) {
		return &core.IdentifierError{Field: field, Value: value}
	}
	return nil
}

// Entry is a coordinate recovered from a repository-relative path.
type Entry struct {
	core.Coordinate
	Classifier string
	Extension  string
}

// Parse inverts Path. It reports false when rel does not follow the
// layout convention. Coordinates are validated before the file name is
// split. The extension is the text after the last dot, so multi-dot
// extensions such as tar.gz are not recognized: "x-1.0.tar.gz" has no
// classifier separator before ".tar" and is rejected.
func Parse(rel string) (Entry, bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 4 {
		return Entry{}, false
	}
	dirs := parts[:len(parts)-3]
	for _, d := range dirs {
		if strings.Contains(d, ".") {
			return Entry{}, false
		}
	}
	group := strings.Join(dirs, ".")
	artifact := parts[len(parts)-3]
	version := parts[len(parts)-2]
	file := parts[len(parts)-1]
	if validateGroup(group) != nil || validateSegment("artifact", artifact) != nil || validateSegment("version", version) != nil {
		return Entry{}, false
	}

	prefix := artifact + "-" + version
	rest, ok := strings.CutPrefix(file, prefix)
	if !ok {
		return Entry{}, false
	}
	dot := strings.LastIndex(rest, ".")
	if dot < 0 || dot == len(rest)-1 {
		return Entry{}, false
	}
	ext := rest[dot+1:]
	classifier := rest[:dot]
	if classifier != "" {
		if !strings.HasPrefix(classifier, "-") || len(classifier) == 1 {
			return Entry{}, false
		}
		classifier = classifier[1:]
	}

	return Entry{
		Coordinate: core.Coordinate{Group: group, Artifact: artifact, Version: version},
		Classifier: classifier,
		Extension:  ext,
	}, true
}
