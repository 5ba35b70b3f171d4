package secondary

import "context"

// RemoteStore is the frame-retrieval capability shared by the DICOMweb
// and HealthImaging adapters. Locators passed to one StartRequest call
// must all belong to the same store, study, and series.
type RemoteStore interface {
	// StartRequest issues the underlying fetches for the given frame
	// locators. Issuance does not block on the responses; a locator
	// already pending is not issued a second time.
	StartRequest(ctx context.Context, locators []string) error

	// Frames returns the decoded frames among requested that have
	// completed, removing them from the store's buffer. Frames not in
	// requested stay buffered for other callers; absence from the result
	// means "not yet", not failure.
	Frames(requested []string) map[string][]int16

	// RequestFinished reports whether no frame requests remain
	// outstanding.
	RequestFinished() bool
}
