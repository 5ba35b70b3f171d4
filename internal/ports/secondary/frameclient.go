package secondary

import "context"

// FrameResponse is one retrieved image frame from the datastore request
// handler, identified by the datastore's frame ID.
type FrameResponse struct {
	ImageFrameID string
	Samples      []int16
}

// FrameClient is the opaque request handler for cloud-datastore frame
// retrieval. It accepts a JSON request document describing the image
// set, series, instances, and frames to retrieve, and buffers responses
// until drained.
type FrameClient interface {
	// RequestFrames submits one request document. Retrieval proceeds in
	// the background.
	RequestFrames(ctx context.Context, document []byte) error

	// Responses drains and returns the frame responses completed so far.
	Responses() []FrameResponse

	// Busy reports whether any submitted frames are still in flight.
	Busy() bool
}
