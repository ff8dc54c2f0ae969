package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/Lllllllleong/processresults/internal/gcp"
	"github.com/Lllllllleong/processresults/internal/models"
)

// stepName names this stage in offloaded payload keys.
const stepName = "processresults"

const defaultOffloadThresholdBytes = 128 * 1024

// ProcessResultsConfig holds configuration for the process-results service.
type ProcessResultsConfig struct {
	ProjectID             string
	WorkingBucket         string
	CollectionName        string
	OffloadThresholdBytes int
}

// ProcessResultsFunction holds dependencies for the consolidation logic.
type ProcessResultsFunction struct {
	tracker      DocumentTracker
	loader       *FragmentLoader
	consolidator *Consolidator
	sidecars     *SidecarEmitter
	logger       *slog.Logger
	config       ProcessResultsConfig
}

// loadConfig loads and validates all necessary environment variables for this service.
func loadConfig() (*ProcessResultsConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	workingBucket := gcp.GetEnv("WORKING_BUCKET", "")
	if workingBucket == "" {
		return nil, fmt.Errorf("WORKING_BUCKET environment variable must be set")
	}

	threshold := defaultOffloadThresholdBytes
	if raw := gcp.GetEnv("PAYLOAD_OFFLOAD_THRESHOLD_BYTES", ""); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("PAYLOAD_OFFLOAD_THRESHOLD_BYTES must be an integer: %w", err)
		}
		threshold = parsed
	}

	return &ProcessResultsConfig{
		ProjectID:             projectID,
		WorkingBucket:         workingBucket,
		CollectionName:        gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		OffloadThresholdBytes: threshold,
	}, nil
}

// NewProcessResults creates a ProcessResultsFunction backed by Cloud Storage and Firestore.
func NewProcessResults(ctx context.Context, logger *slog.Logger) (*ProcessResultsFunction, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := gcp.NewGCSBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	tracker := gcp.NewFirestoreTracker(firestoreClient, config.CollectionName)

	logger.Info("Process results logic initialized.", "workingBucket", config.WorkingBucket, "collection", config.CollectionName)
	return NewProcessResultsWith(*config, store, tracker, logger), nil
}

// NewProcessResultsWith wires a ProcessResultsFunction from explicit collaborators.
func NewProcessResultsWith(config ProcessResultsConfig, store BlobStore, tracker DocumentTracker, logger *slog.Logger) *ProcessResultsFunction {
	loader := NewFragmentLoader(store, config.WorkingBucket, config.OffloadThresholdBytes, logger)
	sidecars := NewSidecarEmitter(store, logger)
	return &ProcessResultsFunction{
		tracker:      tracker,
		loader:       loader,
		consolidator: NewConsolidator(loader, sidecars, logger),
		sidecars:     sidecars,
		logger:       logger,
		config:       config,
	}
}

// Process consolidates the extraction results into the classified document,
// writes search metadata sidecars and returns the document for the next stage.
func (f *ProcessResultsFunction) Process(ctx context.Context, req *models.ProcessResultsRequest) (*models.ProcessResultsResponse, error) {
	logCtx := f.logger.With("executionId", req.ExecutionID)

	// --- 1. Materialize the base document ---
	doc, err := f.loader.LoadFrom(ctx, req.ClassificationResult.Document, "classificationResult")
	if err != nil {
		logCtx.Error("Failed to load classified document", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("documentId", doc.ID)
	logCtx.Info("Starting result processing.", "extractionResultCount", len(req.ExtractionResults))

	// --- 2. Mark the document as postprocessing ---
	doc.Status = models.StatusPostprocessing
	if err := f.reportStatus(ctx, logCtx, doc); err != nil {
		return nil, err
	}

	// --- 3. Fold the extraction results into the document ---
	fragments := make([]models.DocumentReference, 0, len(req.ExtractionResults))
	for _, result := range req.ExtractionResults {
		fragments = append(fragments, result.Document)
	}
	if err := f.consolidator.Consolidate(ctx, doc, fragments); err != nil {
		logCtx.Error("Failed to consolidate extraction results", "error", err)
		return nil, err
	}

	// --- 4. Describe every page text for the search indexer ---
	f.emitPageSidecars(ctx, logCtx, doc)

	// --- 5. Final checkpoint ---
	if err := f.reportStatus(ctx, logCtx, doc); err != nil {
		return nil, err
	}

	// --- 6. Hand the document to the next stage ---
	ref, err := f.loader.Serialize(ctx, doc, stepName)
	if err != nil {
		logCtx.Error("Failed to serialize document", "error", err)
		return nil, err
	}

	logCtx.Info("Result processing complete.", "sectionCount", len(doc.Sections))
	return &models.ProcessResultsResponse{Document: ref}, nil
}

func (f *ProcessResultsFunction) reportStatus(ctx context.Context, logCtx *slog.Logger, doc *models.Document) error {
	logCtx.Info("Updating document status.", "status", doc.Status)
	if err := f.tracker.UpdateDocument(ctx, doc); err != nil {
		logCtx.Error("Failed to update document status", "error", err, "status", doc.Status)
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return nil
}

func (f *ProcessResultsFunction) emitPageSidecars(ctx context.Context, logCtx *slog.Logger, doc *models.Document) {
	// Page order is irrelevant to the output; sorting keeps the logs stable.
	pageIDs := make([]string, 0, len(doc.Pages))
	for id := range doc.Pages {
		pageIDs = append(pageIDs, id)
	}
	sort.Strings(pageIDs)

	var written, attempted int
	for _, id := range pageIDs {
		page := doc.Pages[id]
		if page.RawTextURI == "" {
			continue
		}
		attempted++
		if f.sidecars.Emit(ctx, page.RawTextURI, page.Classification, ArtifactKindPage) {
			written++
		}
	}
	logCtx.Info("Page metadata sidecars written.", "written", written, "attempted", attempted)
}
