package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileFetcher serves file:// URLs from local storage. It backs the
// consume mode, where the mirrored repository is the only source.
type FileFetcher struct{}

// NewFileFetcher creates a FileFetcher.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

// Fetch opens the file named by a file:// URL.
func (f *FileFetcher) Fetch(ctx context.Context, fileURL string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := localPath(fileURL)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", fileURL, ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", fileURL, ErrNotFound)
	}

	return &Artifact{
		Body:        file,
		Size:        info.Size(),
		ContentType: "application/octet-stream",
	}, nil
}

// Head reports the size of the file named by a file:// URL.
func (f *FileFetcher) Head(ctx context.Context, fileURL string) (size int64, contentType string, err error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	path, err := localPath(fileURL)
	if err != nil {
		return 0, "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, "", fmt.Errorf("%s: %w", fileURL, ErrNotFound)
		}
		return 0, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, "", fmt.Errorf("%s: %w", fileURL, ErrNotFound)
	}
	return info.Size(), "application/octet-stream", nil
}

// FileURL converts an absolute directory or file path to a file:// URL.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

func localPath(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", fileURL, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, fileURL)
	}
	return filepath.FromSlash(u.Path), nil
}
