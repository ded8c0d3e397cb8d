// Package publish uploads an offline repository to S3-compatible object
// storage so other machines can use it as a remote Maven repository.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
)

// Config describes the target bucket.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	UseSSL bool
}

// Uploader is the part of an object store the publisher needs.
type Uploader interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key, file string) error
}

// S3Store writes objects to a bucket through minio-go.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

// NewS3Store validates cfg and creates a client. No request is made.
func NewS3Store(cfg Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

// EnsureBucket creates the bucket on first use if it is missing.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put uploads a local file under key.
func (s *S3Store) Put(ctx context.Context, key, file string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	_, err := s.client.FPutObject(ctx, s.bucketName, key, file, minio.PutObjectOptions{
		ContentType: contentType(file),
	})
	return err
}

func contentType(file string) string {
	switch strings.TrimPrefix(filepath.Ext(file), ".") {
	case core.MetadataExtension:
		return "application/xml"
	case layout.DefaultExtension, "war", "ear":
		return "application/java-archive"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Object is one uploaded file.
type Object struct {
	Key  string
	Path string
	Size int64
}

// Result summarizes a publish run.
type Result struct {
	Uploaded []Object
	// Skipped lists repository-relative files outside the Maven layout.
	Skipped []string
}

// Publisher copies a repository tree to an Uploader.
type Publisher struct {
	store  Uploader
	prefix string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Nil discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// NewPublisher creates a publisher writing to store.
func NewPublisher(store Uploader, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish uploads every file of the repository at root that follows the
// Maven layout. The key of a file is the prefix joined with its
// repository-relative path, so the bucket can serve as a remote URL.
func (p *Publisher) Publish(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.IncompleteRepositoryError{Root: root, Extension: layout.DefaultExtension}
		}
		return nil, &core.IOError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &core.IOError{Op: "stat", Path: root, Err: fmt.Errorf("not a directory")}
	}

	if err := p.store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	res := &Result{}
	err = filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := layout.Parse(rel); !ok {
			res.Skipped = append(res.Skipped, rel)
			return nil
		}

		key := ObjectKey(p.prefix, rel)
		if err := p.store.Put(ctx, key, file); err != nil {
			return fmt.Errorf("uploading %s: %w", rel, err)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		res.Uploaded = append(res.Uploaded, Object{Key: key, Path: file, Size: fi.Size()})
		p.logger.Debug("uploaded", "key", key, "size", fi.Size())
		return nil
	})
	if err != nil {
		return res, err
	}

	p.logger.Info("repository published", "objects", len(res.Uploaded), "skipped", len(res.Skipped))
	return res, nil
}

// ObjectKey joins prefix and a repository-relative path.
func ObjectKey(prefix, rel string) string {
	rel = strings.TrimLeft(strings.TrimSpace(rel), "/")
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}
