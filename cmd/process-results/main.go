package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/processresults/internal/gcp"
	"github.com/Lllllllleong/processresults/internal/logging"
	"github.com/Lllllllleong/processresults/internal/models"
	"github.com/Lllllllleong/processresults/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// resultsProcessor is the part of services.ProcessResultsFunction the handlers need.
type resultsProcessor interface {
	Process(ctx context.Context, req *models.ProcessResultsRequest) (*models.ProcessResultsResponse, error)
}

var (
	processorInstance resultsProcessor
	once              sync.Once
	initErr           error
	logger            *slog.Logger
)

func init() {
	// --- Set up structured logging ---
	logger = logging.New(os.Stdout, gcp.GetEnv("LOG_LEVEL", "INFO"))
	slog.SetDefault(logger)

	// "HandleProcessResults" is called by the workflow; "ProcessResultsEvent"
	// serves the same request delivered as a CloudEvent.
	functions.HTTP("HandleProcessResults", handleProcessResults)
	functions.CloudEvent("ProcessResultsEvent", processResultsEvent)
}

// errMissingDocument rejects requests without a base document, whichever entry point they arrive on.
var errMissingDocument = errors.New("classificationResult.document is required")

func validateRequest(req *models.ProcessResultsRequest) error {
	if req.ClassificationResult.Document.IsEmpty() {
		return errMissingDocument
	}
	return nil
}

// main is required by the Go Functions Framework.
func main() {}

func processor() (resultsProcessor, error) {
	once.Do(func() {
		processorInstance, initErr = services.NewProcessResults(context.Background(), logger)
	})
	return processorInstance, initErr
}

// handleProcessResults is the HTTP handler for the process-results service.
func handleProcessResults(w http.ResponseWriter, r *http.Request) {
	p, err := processor()
	if err != nil {
		logger.Error("Critical: ProcessResults initialization failed", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ProcessResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request has no classified document", "executionId", req.ExecutionID)
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := p.Process(r.Context(), &req)
	if err != nil {
		// Error is already logged with context in the Process method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger.Error("Failed to write response", "error", err, "executionId", req.ExecutionID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

// processResultsEvent is the CloudEvent entry point. The consolidated document
// reference is logged since an event trigger has no caller to return it to.
func processResultsEvent(ctx context.Context, e cloudevents.Event) error {
	p, err := processor()
	if err != nil {
		logger.Error("Critical error during function initialization", "error", err)
		return err
	}

	var req models.ProcessResultsRequest
	if err := e.DataAs(&req); err != nil {
		logger.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("event.DataAs: %w", err)
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Event has no classified document", "eventId", e.ID(), "executionId", req.ExecutionID)
		return err
	}

	res, err := p.Process(ctx, &req)
	if err != nil {
		return err
	}

	logger.Info("Processed results event.", "eventId", e.ID(), "document", json.RawMessage(res.Document))
	return nil
}
