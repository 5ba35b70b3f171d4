package ahi

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/medicalimaging"
	imagingtypes "github.com/aws/aws-sdk-go-v2/service/medicalimaging/types"
	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/ports/secondary"
)

// imagingAPI is the slice of the HealthImaging client the store uses.
// The SDK client satisfies it; tests fake it.
type imagingAPI interface {
	SearchImageSets(ctx context.Context, params *medicalimaging.SearchImageSetsInput,
		optFns ...func(*medicalimaging.Options)) (*medicalimaging.SearchImageSetsOutput, error)
	GetImageSetMetadata(ctx context.Context, params *medicalimaging.GetImageSetMetadataInput,
		optFns ...func(*medicalimaging.Options)) (*medicalimaging.GetImageSetMetadataOutput, error)
}

// frameAPI is the slice of the HealthImaging client the frame client uses.
type frameAPI interface {
	GetImageFrame(ctx context.Context, params *medicalimaging.GetImageFrameInput,
		optFns ...func(*medicalimaging.Options)) (*medicalimaging.GetImageFrameOutput, error)
}

// NewImagingClient builds a HealthImaging client from the default AWS
// credential chain.
func NewImagingClient(ctx context.Context, region string) (*medicalimaging.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return medicalimaging.NewFromConfig(cfg), nil
}

// frameRequestDocument is the JSON request document handed to the frame
// client: one image set, its series, and the frames wanted per instance.
type frameRequestDocument struct {
	DatastoreID string            `json:"DatastoreID"`
	ImageSetID  string            `json:"ImageSetID"`
	Study       frameRequestStudy `json:"Study"`
}

type frameRequestStudy struct {
	Series map[string]frameRequestSeries `json:"Series"`
}

type frameRequestSeries struct {
	Instances map[string]frameRequestInstance `json:"Instances"`
}

type frameRequestInstance struct {
	ImageFrames []frameRequestFrame `json:"ImageFrames"`
}

type frameRequestFrame struct {
	ID string `json:"ID"`
}

// ImagingFrameClient implements secondary.FrameClient over the
// HealthImaging GetImageFrame RPC. Frames are fetched concurrently and
// buffered until drained.
type ImagingFrameClient struct {
	api    frameAPI
	logger *zap.Logger

	mu        sync.Mutex
	inFlight  int
	responses []secondary.FrameResponse
}

var _ secondary.FrameClient = (*ImagingFrameClient)(nil)

// NewImagingFrameClient wraps a HealthImaging client as a frame client.
func NewImagingFrameClient(api frameAPI, logger *zap.Logger) *ImagingFrameClient {
	return &ImagingFrameClient{api: api, logger: logger}
}

// RequestFrames submits one request document and starts retrieval of
// every frame it names.
func (c *ImagingFrameClient) RequestFrames(ctx context.Context, document []byte) error {
	var doc frameRequestDocument
	if err := json.Unmarshal(document, &doc); err != nil {
		return fmt.Errorf("failed to parse frame request document: %w", err)
	}

	for _, series := range doc.Study.Series {
		for _, instance := range series.Instances {
			for _, frame := range instance.ImageFrames {
				c.mu.Lock()
				c.inFlight++
				c.mu.Unlock()
				go c.fetchFrame(ctx, doc.DatastoreID, doc.ImageSetID, frame.ID)
			}
		}
	}
	return nil
}

func (c *ImagingFrameClient) fetchFrame(ctx context.Context, datastoreID, imageSetID, frameID string) {
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	out, err := c.api.GetImageFrame(ctx, &medicalimaging.GetImageFrameInput{
		DatastoreId: aws.String(datastoreID),
		ImageSetId:  aws.String(imageSetID),
		ImageFrameInformation: &imagingtypes.ImageFrameInformation{
			ImageFrameId: aws.String(frameID),
		},
	})
	if err != nil {
		c.logger.Warn("image frame retrieval failed",
			zap.String("image_frame_id", frameID),
			zap.Error(err),
		)
		return
	}
	defer out.ImageFrameBlob.Close()

	blob, err := io.ReadAll(out.ImageFrameBlob)
	if err != nil {
		c.logger.Warn("image frame read failed",
			zap.String("image_frame_id", frameID),
			zap.Error(err),
		)
		return
	}

	samples := make([]int16, len(blob)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(blob[2*i:]))
	}

	c.mu.Lock()
	c.responses = append(c.responses, secondary.FrameResponse{
		ImageFrameID: frameID,
		Samples:      samples,
	})
	c.mu.Unlock()
}

// Responses drains the completed frame responses.
func (c *ImagingFrameClient) Responses() []secondary.FrameResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.responses
	c.responses = nil
	return out
}

// Busy reports whether any frames are still in flight.
func (c *ImagingFrameClient) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}
