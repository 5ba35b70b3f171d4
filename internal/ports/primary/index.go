// Package primary defines the service interfaces the CLI drives and
// their request/response shapes.
package primary

import (
	"context"
	"time"
)

// IndexStudiesRequest selects what to index from a DICOMweb endpoint.
// When StudyInstanceUID is set only that study is indexed; otherwise
// studies are discovered through the paginated studies listing.
type IndexStudiesRequest struct {
	StudyInstanceUID string
	Limit            int
	Offset           int
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Indexed int
	Failed  []string
	Elapsed time.Duration
}

// IndexService drives metadata indexing from a remote store into the
// local metadata store.
type IndexService interface {
	// IndexStudies indexes DICOMweb studies. Per-study failures are
	// recorded in the report, not returned as errors; the run continues.
	IndexStudies(ctx context.Context, req IndexStudiesRequest) (*IndexReport, error)

	// IndexDatastore indexes every image set in the configured
	// HealthImaging datastore. Per-image-set failures are recorded in
	// the report.
	IndexDatastore(ctx context.Context) (*IndexReport, error)
}
