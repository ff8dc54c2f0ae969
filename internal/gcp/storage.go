package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ErrObjectNotFound is returned by GCSBlobStore.Read when the object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ParseGCSURI splits a gs://bucket/key URI into its bucket and object key.
// The key is taken verbatim: object names are raw strings, not URL paths.
func ParseGCSURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI %q: scheme must be gs", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid GCS URI %q: bucket and object are required", uri)
	}
	return bucket, key, nil
}

// GCSURI builds a gs:// URI for the given bucket and key.
func GCSURI(bucket, key string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, key)
}

// GCSBlobStore reads and writes whole objects in Cloud Storage.
type GCSBlobStore struct {
	client *storage.Client
}

// NewGCSBlobStore creates a GCSBlobStore. STORAGE_EMULATOR_HOST is honoured by
// the client library for local runs.
func NewGCSBlobStore(ctx context.Context) (*GCSBlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSBlobStore{client: client}, nil
}

// Read returns the full content of gs://bucket/key.
func (s *GCSBlobStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	return content, nil
}

// Write stores content at gs://bucket/key, replacing any existing object.
func (s *GCSBlobStore) Write(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	writer := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	return finishWrite(writer, bucket, key, content, contentType)
}

// WriteIfAbsent writes content only if the object doesn't already exist.
// An existing object is not a failure in an idempotent workflow.
func (s *GCSBlobStore) WriteIfAbsent(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	writer := s.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	err := finishWrite(writer, bucket, key, content, contentType)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return nil
	}
	return err
}

// Close releases the underlying storage client.
func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}

func finishWrite(writer *storage.Writer, bucket, key string, content []byte, contentType string) error {
	writer.ContentType = contentType
	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to gs://%s/%s: %w", bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize write to gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}
