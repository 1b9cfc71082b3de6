// Package filestore resolves staged upload references to their raw bytes.
// Submissions either carry the file inline or name an object previously
// staged in a local directory or S3-compatible storage.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LocalSource serves staged files from a directory on disk.
type LocalSource struct {
	dir string
}

// NewLocalSource creates a source rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{dir: filepath.Clean(dir)}
}

// Fetch reads a staged file by its reference, which must stay inside the
// source directory.
func (s *LocalSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	cleaned := filepath.Clean(ref)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("invalid file reference %q", ref)
	}
	payload, err := os.ReadFile(filepath.Join(s.dir, cleaned))
	if err != nil {
		return nil, fmt.Errorf("read staged file %q: %w", ref, err)
	}
	return payload, nil
}

// S3Config holds the settings for an S3-compatible staging bucket.
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
	KeyID    string
	Secret   string
}

// S3Source serves staged files from S3-compatible object storage, configured
// with path-style addressing for non-AWS endpoints.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source creates a source against the configured bucket.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("staging bucket is required")
	}

	options := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", cfg.Endpoint))
	}

	return &S3Source{
		client: s3.New(options),
		bucket: cfg.Bucket,
	}, nil
}

// Fetch downloads a staged object by key.
func (s *S3Source) Fetch(ctx context.Context, ref string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("get staged object %q: %w", ref, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read staged object %q: %w", ref, err)
	}
	return payload, nil
}
