// Package media opens the files attached to categories and image contents.
// Sources are local paths or s3://bucket/key references.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"medialib/client/internal/api"
)

var (
	ErrS3NotConfigured = errors.New("s3 storage is not configured")
	ErrInvalidRef      = errors.New("invalid s3 reference")
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// File is an open upload source.
type File struct {
	Name string
	io.ReadCloser
}

// Upload wraps f for a multipart payload. The caller still closes f.
func (f *File) Upload() *api.Upload {
	return &api.Upload{Filename: f.Name, Body: f}
}

type Opener struct {
	s3 *minio.Client
}

// NewOpener builds an opener. Without an S3 endpoint only local files can be
// opened.
func NewOpener(cfg S3Config) (*Opener, error) {
	o := &Opener{}
	if cfg.Endpoint == "" {
		return o, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	o.s3 = client
	return o, nil
}

func (o *Opener) Open(ctx context.Context, ref string) (*File, error) {
	if strings.HasPrefix(ref, "s3://") {
		bucket, key, err := ParseS3Ref(ref)
		if err != nil {
			return nil, err
		}
		return o.openS3(ctx, bucket, key)
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return &File{Name: filepath.Base(ref), ReadCloser: f}, nil
}

func (o *Opener) openS3(ctx context.Context, bucket, key string) (*File, error) {
	if o.s3 == nil {
		return nil, ErrS3NotConfigured
	}
	obj, err := o.s3.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	// GetObject is lazy; Stat surfaces a missing object before the upload starts.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat s3://%s/%s: %w", bucket, key, err)
	}
	return &File{Name: path.Base(key), ReadCloser: obj}, nil
}

// ParseS3Ref splits s3://bucket/key.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return bucket, key, nil
}
