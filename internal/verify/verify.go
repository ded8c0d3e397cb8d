// Package verify checks that an offline repository is usable.
package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
)

// Options tunes verification.
type Options struct {
	// Extension is the binary artifact extension to count. Default jar.
	Extension string
	// RequireMetadata additionally fails when a binary has no POM next to
	// it.
	RequireMetadata bool
}

// Result is the outcome of a verification.
type Result struct {
	Root          string
	BinaryCount   int
	MetadataCount int
	// MissingMetadata lists binaries (repository-relative) without a POM.
	MissingMetadata []string
}

// ErrMissingMetadata is returned under RequireMetadata when a binary has
// no metadata file.
var ErrMissingMetadata = errors.New("binary artifacts without metadata")

// Verify walks root and counts binary and metadata artifacts. It fails with
// a *core.IncompleteRepositoryError when no binary is present, including
// when root does not exist. It never modifies the tree.
func Verify(root string, opts Options) (*Result, error) {
	ext := strings.TrimPrefix(opts.Extension, ".")
	if ext == "" {
		ext = layout.DefaultExtension
	}

	res := &Result{Root: root}
	incomplete := &core.IncompleteRepositoryError{Root: root, Extension: ext}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return res, incomplete
	}
	if err != nil {
		return nil, &core.IOError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &core.IOError{Op: "stat", Path: root, Err: fmt.Errorf("not a directory")}
	}

	var binaries []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		switch strings.TrimPrefix(filepath.Ext(d.Name()), ".") {
		case ext:
			res.BinaryCount++
			binaries = append(binaries, path)
		case core.MetadataExtension:
			res.MetadataCount++
		}
		return nil
	})
	if err != nil {
		return nil, &core.IOError{Op: "walk", Path: root, Err: err}
	}

	if res.BinaryCount == 0 {
		return res, incomplete
	}

	if opts.RequireMetadata {
		for _, path := range binaries {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				continue
			}
			if !hasMetadata(root, rel) {
				res.MissingMetadata = append(res.MissingMetadata, filepath.ToSlash(rel))
			}
		}
		if len(res.MissingMetadata) > 0 {
			return res, fmt.Errorf("%w: %d under %s", ErrMissingMetadata, len(res.MissingMetadata), root)
		}
	}
	return res, nil
}

// hasMetadata reports whether the POM of the module version owning the
// binary at rel exists. Files outside the naming convention are skipped.
func hasMetadata(root, rel string) bool {
	entry, ok := layout.Parse(rel)
	if !ok {
		return true
	}
	pom, err := layout.Path(entry.Group, entry.Artifact, entry.Version, "", core.MetadataExtension)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(root, pom))
	return err == nil
}
