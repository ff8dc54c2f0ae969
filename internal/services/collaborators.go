package services

import (
	"context"

	"github.com/Lllllllleong/processresults/internal/models"
)

// BlobStore reads and writes whole objects addressed by bucket and key.
// gcp.GCSBlobStore is the production implementation.
type BlobStore interface {
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Write(ctx context.Context, bucket, key string, content []byte, contentType string) error
	WriteIfAbsent(ctx context.Context, bucket, key string, content []byte, contentType string) error
}

// DocumentTracker publishes document snapshots for observers of the pipeline.
// gcp.FirestoreTracker is the production implementation.
type DocumentTracker interface {
	UpdateDocument(ctx context.Context, doc *models.Document) error
}
