package models

// Status is the lifecycle stage of a document as it moves through the pipeline.
type Status string

const (
	StatusQueued         Status = "QUEUED"
	StatusRunning        Status = "RUNNING"
	StatusOCR            Status = "OCR"
	StatusClassifying    Status = "CLASSIFYING"
	StatusExtracting     Status = "EXTRACTING"
	StatusAssessing      Status = "ASSESSING"
	StatusPostprocessing Status = "POSTPROCESSING"
	StatusHITLInProgress Status = "HITL_IN_PROGRESS"
	StatusSummarizing    Status = "SUMMARIZING"
	StatusEvaluating     Status = "EVALUATING"
	StatusCompleted      Status = "COMPLETED"
	StatusFailed         Status = "FAILED"
)

// Document is the canonical record for a document moving through the pipeline.
// It is materialized from a DocumentReference at the start of a stage and
// serialized back into one at the end.
type Document struct {
	ID                  string          `json:"id"`
	InputBucket         string          `json:"inputBucket,omitempty"`
	InputKey            string          `json:"inputKey,omitempty"`
	OutputBucket        string          `json:"outputBucket,omitempty"`
	Status              Status          `json:"status,omitempty"`
	NumPages            int             `json:"numPages,omitempty"`
	Pages               map[string]Page `json:"pages,omitempty"`
	Sections            []Section       `json:"sections"`
	Metering            Metering        `json:"metering,omitempty"`
	Errors              []string        `json:"errors,omitempty"`
	WorkflowExecutionID string          `json:"workflowExecutionId,omitempty"` // For traceability
}

// Page is a single page of the source document.
type Page struct {
	PageID         string  `json:"pageId"`
	ImageURI       string  `json:"imageUri,omitempty"`
	RawTextURI     string  `json:"rawTextUri,omitempty"`
	ParsedTextURI  string  `json:"parsedTextUri,omitempty"`
	Classification string  `json:"classification,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// Section is a contiguous run of pages sharing one classification.
type Section struct {
	SectionID           string   `json:"sectionId"`
	Classification      string   `json:"classification,omitempty"`
	Confidence          float64  `json:"confidence,omitempty"`
	PageIDs             []string `json:"pageIds,omitempty"`
	ExtractionResultURI string   `json:"extractionResultUri,omitempty"`
}

// Metering holds usage counters keyed by metering dimension.
type Metering map[string]float64

// Merge returns a new Metering holding the elementwise sum of m and other.
// Keys missing on either side count as zero. Neither input is modified.
func (m Metering) Merge(other Metering) Metering {
	merged := make(Metering, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] += v
	}
	return merged
}

// MergeMetering sums any number of metering maps. Nil maps are treated as empty.
func MergeMetering(all ...Metering) Metering {
	total := Metering{}
	for _, m := range all {
		total = total.Merge(m)
	}
	return total
}

// SectionIDs lists the ids of the document's sections in order.
func (d *Document) SectionIDs() []string {
	ids := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		ids = append(ids, s.SectionID)
	}
	return ids
}
