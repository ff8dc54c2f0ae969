package models

// These structs define the JSON payloads exchanged between the Cloud Workflow
// and the process-results function.

// ClassificationResult is the output of the classification stage.
type ClassificationResult struct {
	Document DocumentReference `json:"document"`
}

// ExtractionResult is the output of one per-section extraction step.
type ExtractionResult struct {
	Document DocumentReference `json:"document"`
}

// ProcessResultsRequest is the input for the process-results function.
type ProcessResultsRequest struct {
	ClassificationResult ClassificationResult `json:"classificationResult"`
	ExtractionResults    []ExtractionResult   `json:"extractionResults"`
	ExecutionID          string               `json:"executionId,omitempty"`
}

// ProcessResultsResponse is the output of the process-results function.
type ProcessResultsResponse struct {
	Document DocumentReference `json:"document"`
}
