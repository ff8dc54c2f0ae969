package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/processresults/internal/gcp"
)

// ArtifactKind tells the indexer what sort of artifact a sidecar describes.
type ArtifactKind string

const (
	ArtifactKindPage    ArtifactKind = "page"
	ArtifactKindSection ArtifactKind = "section"
)

const sidecarSuffix = ".metadata.json"

// SidecarMetadata is the body of a sidecar object.
type SidecarMetadata struct {
	MetadataAttributes MetadataAttributes `json:"metadataAttributes"`
}

// MetadataAttributes are the fields the search indexer reads from a sidecar.
type MetadataAttributes struct {
	DateTime string       `json:"DateTime"`
	Class    string       `json:"Class"`
	FileType ArtifactKind `json:"FileType"`
}

// SidecarResult describes a sidecar that was written.
type SidecarResult struct {
	URI      string
	Metadata SidecarMetadata
}

// SidecarKey returns the object key of the sidecar for an artifact key.
func SidecarKey(artifactKey string) string {
	return artifactKey + sidecarSuffix
}

// InferArtifactKind guesses the kind from the key: structured extraction output
// is JSON, everything else is page text.
func InferArtifactKind(key string) ArtifactKind {
	if strings.HasSuffix(key, ".json") {
		return ArtifactKindSection
	}
	return ArtifactKindPage
}

// SidecarEmitter writes metadata sidecars next to extraction artifacts.
type SidecarEmitter struct {
	store  BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSidecarEmitter creates a SidecarEmitter stamping sidecars with the current UTC time.
func NewSidecarEmitter(store BlobStore, logger *slog.Logger) *SidecarEmitter {
	return &SidecarEmitter{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Write stores the sidecar for artifactURI. An empty kind is inferred from the URI.
func (e *SidecarEmitter) Write(ctx context.Context, artifactURI, classification string, kind ArtifactKind) (*SidecarResult, error) {
	bucket, key, err := gcp.ParseGCSURI(artifactURI)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = InferArtifactKind(key)
	}

	metadata := SidecarMetadata{
		MetadataAttributes: MetadataAttributes{
			DateTime: e.now().Format(time.RFC3339Nano),
			Class:    classification,
			FileType: kind,
		},
	}
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sidecar metadata: %w", err)
	}

	sidecarKey := SidecarKey(key)
	if err := e.store.Write(ctx, bucket, sidecarKey, body, "application/json"); err != nil {
		return nil, err
	}
	return &SidecarResult{URI: gcp.GCSURI(bucket, sidecarKey), Metadata: metadata}, nil
}

// Emit writes a sidecar on a best-effort basis. Failures are logged and
// dropped; a missing sidecar must never fail document processing.
// It reports whether the sidecar was written.
func (e *SidecarEmitter) Emit(ctx context.Context, artifactURI, classification string, kind ArtifactKind) bool {
	result, err := e.Write(ctx, artifactURI, classification, kind)
	if err != nil {
		e.logger.Error("Failed to create metadata sidecar", "error", err, "artifactUri", artifactURI)
		return false
	}
	e.logger.Info("Created metadata sidecar.", "gcsUri", result.URI, "fileType", result.Metadata.MetadataAttributes.FileType)
	return true
}
