package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/processresults/internal/gcp"
	"github.com/Lllllllleong/processresults/internal/models"
	"github.com/google/uuid"
)

// LoadError reports a document reference that could not be materialized.
type LoadError struct {
	Source string // which input held the reference, e.g. "extractionResults[2]"
	URI    string // empty for inline references
	Err    error
}

func (e *LoadError) Error() string {
	msg := "failed to load document"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.URI != "" {
		msg += " from " + e.URI
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FragmentLoader turns document references into documents and back, reading
// and writing out-of-line payloads in the working bucket.
type FragmentLoader struct {
	store            BlobStore
	workingBucket    string
	offloadThreshold int
	logger           *slog.Logger
}

// NewFragmentLoader creates a FragmentLoader. Documents whose encoding is larger
// than offloadThreshold bytes are offloaded by Serialize; a threshold of zero or
// less disables offloading.
func NewFragmentLoader(store BlobStore, workingBucket string, offloadThreshold int, logger *slog.Logger) *FragmentLoader {
	return &FragmentLoader{
		store:            store,
		workingBucket:    workingBucket,
		offloadThreshold: offloadThreshold,
		logger:           logger,
	}
}

// Load materializes the document behind ref, whichever form it takes.
// Every failure is returned as a *LoadError.
func (l *FragmentLoader) Load(ctx context.Context, ref models.DocumentReference) (*models.Document, error) {
	return l.LoadFrom(ctx, ref, "")
}

// LoadFrom is Load with the failure attributed to source.
func (l *FragmentLoader) LoadFrom(ctx context.Context, ref models.DocumentReference, source string) (*models.Document, error) {
	doc, err := l.load(ctx, ref)
	if err != nil {
		err.Source = source
		return nil, err
	}
	return doc, nil
}

func (l *FragmentLoader) load(ctx context.Context, ref models.DocumentReference) (*models.Document, *LoadError) {
	parsed, err := ref.Parse()
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	switch r := parsed.(type) {
	case models.InlineReference:
		return r.Document, nil
	case models.PointerReference:
		return l.loadOffloaded(ctx, r.Pointer)
	default:
		return nil, &LoadError{Err: fmt.Errorf("unsupported document reference %T", parsed)}
	}
}

func (l *FragmentLoader) loadOffloaded(ctx context.Context, p models.PayloadPointer) (*models.Document, *LoadError) {
	bucket, key, err := gcp.ParseGCSURI(p.GCSUri)
	if err != nil {
		return nil, &LoadError{URI: p.GCSUri, Err: err}
	}

	content, err := l.store.Read(ctx, bucket, key)
	if err != nil {
		return nil, &LoadError{URI: p.GCSUri, Err: err}
	}

	var doc models.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &LoadError{URI: p.GCSUri, Err: fmt.Errorf("invalid document payload: %w", err)}
	}
	l.logger.Debug("Loaded offloaded document.", "gcsUri", p.GCSUri, "documentId", doc.ID, "sectionCount", len(doc.Sections))
	return &doc, nil
}

// Serialize encodes doc for the next stage, writing it to the working bucket
// and returning a pointer when it is too large to pass inline.
func (l *FragmentLoader) Serialize(ctx context.Context, doc *models.Document, stepName string) (models.DocumentReference, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}
	if l.offloadThreshold <= 0 || len(encoded) <= l.offloadThreshold {
		return models.DocumentReference(encoded), nil
	}

	docID := doc.ID
	if docID == "" {
		docID = "unidentified"
	}
	key := fmt.Sprintf("%s/%s/document_%s.json", docID, stepName, uuid.NewString())
	if err := l.store.WriteIfAbsent(ctx, l.workingBucket, key, encoded, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to offload document %s: %w", doc.ID, err)
	}

	uri := gcp.GCSURI(l.workingBucket, key)
	l.logger.Info("Offloaded large document payload.", "documentId", doc.ID, "gcsUri", uri, "sizeBytes", len(encoded))
	return models.NewPointerReference(models.PayloadPointer{
		GCSUri:     uri,
		DocumentID: doc.ID,
		SectionIDs: doc.SectionIDs(),
	})
}
