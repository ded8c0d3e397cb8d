// Package mirror materializes resolved artifacts into an offline
// repository directory laid out like a Maven repository.
package mirror

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
)

// Entry is one file placed in the repository.
type Entry struct {
	core.Coordinate
	Classifier string
	Extension  string
	// Path is the absolute location of the file; Rel is relative to the
	// repository root.
	Path string
	Rel  string
	Size int64
	// Digest is the hex BLAKE3 digest of the copied bytes.
	Digest string
}

// Copier places artifact files under a repository root.
type Copier struct {
	root string
}

// NewCopier returns a copier writing below root. The root is created
// lazily on first placement.
func NewCopier(root string) (*Copier, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving repository root: %w", err)
	}
	return &Copier{root: abs}, nil
}

// Root returns the absolute repository root.
func (c *Copier) Root() string {
	return c.root
}

// Place copies the descriptor's file to its layout path, replacing any
// file already there. The copy goes through a temporary file in the
// target directory so readers never observe a partially written artifact.
func (c *Copier) Place(d core.ArtifactDescriptor) (Entry, error) {
	ext := d.EffectiveExtension()
	rel, err := layout.Path(d.Group, d.Artifact, d.Version, d.Classifier, ext)
	if err != nil {
		return Entry{}, err
	}
	target := filepath.Join(c.root, rel)
	if !within(c.root, target) {
		return Entry{}, &core.IOError{Op: "place", Path: target, Coordinate: d.Coordinate.String(), Err: fmt.Errorf("target escapes repository root %s", c.root)}
	}

	src, err := os.Open(d.File)
	if err != nil {
		return Entry{}, &core.IOError{Op: "read", Path: d.File, Coordinate: d.Coordinate.String(), Err: err}
	}
	defer func() { _ = src.Close() }()
	if st, err := src.Stat(); err != nil || st.IsDir() {
		if err == nil {
			err = fmt.Errorf("source is a directory")
		}
		return Entry{}, &core.IOError{Op: "read", Path: d.File, Coordinate: d.Coordinate.String(), Err: err}
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, &core.IOError{Op: "mkdir", Path: dir, Coordinate: d.Coordinate.String(), Err: err}
	}

	size, digest, err := writeFile(target, src)
	if err != nil {
		return Entry{}, &core.IOError{Op: "write", Path: target, Coordinate: d.Coordinate.String(), Err: err}
	}

	return Entry{
		Coordinate: d.Coordinate,
		Classifier: strings.TrimSpace(d.Classifier),
		Extension:  strings.TrimPrefix(ext, "."),
		Path:       target,
		Rel:        filepath.ToSlash(rel),
		Size:       size,
		Digest:     digest,
	}, nil
}

func writeFile(target string, src io.Reader) (int64, string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hasher := blake3.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		_ = tmp.Close()
		return 0, "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return 0, "", err
	}
	if err := tmp.Close(); err != nil {
		return 0, "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
