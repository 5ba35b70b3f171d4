package primary

import "context"

// FrameFetchResult reports one completed frame retrieval run.
type FrameFetchResult struct {
	Frames     map[string][]int16
	Unresolved []string
}

// FrameService retrieves pixel-data frames through a remote store,
// waiting for outstanding requests to settle.
type FrameService interface {
	// FetchFrames requests the given locators and polls until the remote
	// store reports no outstanding requests, returning whatever frames
	// resolved. Locators that never resolved are listed in Unresolved.
	FetchFrames(ctx context.Context, locators []string) (*FrameFetchResult, error)
}
