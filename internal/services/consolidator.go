package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/processresults/internal/models"
)

// Consolidator folds per-section extraction fragments into a base document.
type Consolidator struct {
	loader   *FragmentLoader
	sidecars *SidecarEmitter
	logger   *slog.Logger
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(loader *FragmentLoader, sidecars *SidecarEmitter, logger *slog.Logger) *Consolidator {
	return &Consolidator{loader: loader, sidecars: sidecars, logger: logger}
}

// Consolidate replaces doc's sections with the first section of each fragment,
// in the order given, and adds every fragment's metering to doc's totals.
// Sections are neither reordered nor deduplicated.
//
// If any fragment fails to load, doc is left untouched and the error is returned.
// Section sidecars are emitted only once every fragment has been merged.
func (c *Consolidator) Consolidate(ctx context.Context, doc *models.Document, fragments []models.DocumentReference) error {
	sections := make([]models.Section, 0, len(fragments))
	metering := doc.Metering

	for i, ref := range fragments {
		fragment, err := c.loader.LoadFrom(ctx, ref, fmt.Sprintf("extractionResults[%d]", i))
		if err != nil {
			return err
		}

		if n := len(fragment.Sections); n == 0 {
			c.logger.Warn("Extraction result has no section; merging metering only.", "index", i, "fragmentId", fragment.ID)
		} else {
			if n > 1 {
				c.logger.Warn("Extraction result has more than one section; keeping the first.", "index", i, "sectionCount", n)
			}
			sections = append(sections, fragment.Sections[0])
		}

		metering = metering.Merge(fragment.Metering)
	}

	doc.Sections = sections
	doc.Metering = metering

	for _, section := range sections {
		if section.ExtractionResultURI != "" {
			c.sidecars.Emit(ctx, section.ExtractionResultURI, section.Classification, ArtifactKindSection)
		}
	}

	c.logger.Info("Consolidated extraction results.", "fragmentCount", len(fragments), "sectionCount", len(sections))
	return nil
}
