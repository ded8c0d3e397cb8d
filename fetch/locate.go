package fetch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
)

var ErrNoDownloadURL = errors.New("no download URL available")

// ArtifactInfo describes where a repository serves one artifact file.
type ArtifactInfo struct {
	URL      string
	Path     string // repository-relative, forward slashes
	Filename string
}

// Locate returns the download location of an artifact in this source.
func (s *Source) Locate(c core.Coordinate, classifier, ext string) (*ArtifactInfo, error) {
	if s == nil || s.BaseURL == "" {
		return nil, ErrNoDownloadURL
	}
	rel, err := layout.CoordinatePath(c, classifier, ext)
	if err != nil {
		return nil, err
	}
	return &ArtifactInfo{
		URL:      s.BaseURL + "/" + rel,
		Path:     rel,
		Filename: filenameFromURL(rel),
	}, nil
}

// MetadataURL returns the maven-metadata.xml location of a module.
func (s *Source) MetadataURL(group, artifact string) (string, error) {
	if strings.TrimSpace(group) == "" || strings.TrimSpace(artifact) == "" {
		return "", &core.IdentifierError{Field: "module", Value: group + ":" + artifact}
	}
	return fmt.Sprintf("%s/%s/%s/maven-metadata.xml", s.BaseURL, strings.ReplaceAll(group, ".", "/"), artifact), nil
}

func filenameFromURL(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

// LocalPath returns the filesystem path behind a file:// URL of this
// source. It reports false for network sources.
func (s *Source) LocalPath(rawURL string) (string, bool) {
	if s == nil || !strings.HasPrefix(rawURL, "file:") {
		return "", false
	}
	p, err := localPath(rawURL)
	if err != nil {
		return "", false
	}
	return p, true
}
