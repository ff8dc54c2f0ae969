package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/processresults/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreTracker reports document progress to the tracking collection.
type FirestoreTracker struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreTracker creates a tracker writing to the given collection.
func NewFirestoreTracker(client *firestore.Client, collection string) *FirestoreTracker {
	return &FirestoreTracker{client: client, collection: collection}
}

// UpdateDocument merges the current snapshot of doc into its tracking record.
// Repeating the call with the same snapshot leaves the record unchanged apart
// from updatedAt.
func (t *FirestoreTracker) UpdateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("cannot track a document without an id")
	}

	metering := map[string]interface{}{}
	for k, v := range doc.Metering {
		metering[k] = v
	}
	record := map[string]interface{}{
		"status":       string(doc.Status),
		"pageCount":    doc.NumPages,
		"sectionCount": len(doc.Sections),
		"metering":     metering,
		"updatedAt":    firestore.ServerTimestamp,
	}
	if doc.WorkflowExecutionID != "" {
		record["workflowExecutionId"] = doc.WorkflowExecutionID
	}

	if _, err := t.client.Collection(t.collection).Doc(doc.ID).Set(ctx, record, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update tracking record for document %s: %w", doc.ID, err)
	}
	return nil
}

// Close releases the underlying Firestore client.
func (t *FirestoreTracker) Close() error {
	return t.client.Close()
}
