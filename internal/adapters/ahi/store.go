// Package ahi adapts an AWS HealthImaging datastore as a metadata
// source and frame store. Image-set metadata documents are expanded into
// per-instance records for the local database; frame retrieval goes
// through an opaque request handler keyed by ahi:// composite locators.
package ahi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/medicalimaging"
	imagingtypes "github.com/aws/aws-sdk-go-v2/service/medicalimaging/types"
	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/frames"
	"github.com/example/dicomcache/internal/ports/secondary"
)

// Options tunes datastore indexing. When both CreatedSince and
// CreatedBefore are set, image-set searches are restricted to that
// creation window; otherwise the whole datastore is listed.
type Options struct {
	CreatedSince  time.Time
	CreatedBefore time.Time
}

// Store indexes image sets from one HealthImaging datastore and
// retrieves image frames through a FrameClient. Implements
// secondary.RemoteStore.
type Store struct {
	api         imagingAPI
	datastoreID string
	db          secondary.Database
	client      secondary.FrameClient
	broker      *frames.Broker
	logger      *zap.Logger
	opts        Options

	mu               sync.Mutex
	locatorByFrameID map[string]string
}

var _ secondary.RemoteStore = (*Store)(nil)

// New creates a store over one datastore.
func New(api imagingAPI, datastoreID string, db secondary.Database, client secondary.FrameClient, opts Options, logger *zap.Logger) *Store {
	return &Store{
		api:              api,
		datastoreID:      datastoreID,
		db:               db,
		client:           client,
		broker:           frames.NewBroker(logger),
		logger:           logger,
		opts:             opts,
		locatorByFrameID: make(map[string]string),
	}
}

// ListImageSetIDs pages through the datastore's image sets and returns
// their IDs.
func (s *Store) ListImageSetIDs(ctx context.Context) ([]string, error) {
	input := &medicalimaging.SearchImageSetsInput{
		DatastoreId: aws.String(s.datastoreID),
	}
	if !s.opts.CreatedSince.IsZero() && !s.opts.CreatedBefore.IsZero() {
		input.SearchCriteria = &imagingtypes.SearchCriteria{
			Filters: []imagingtypes.SearchFilter{{
				Operator: imagingtypes.OperatorBetween,
				Values: []imagingtypes.SearchByAttributeValue{
					&imagingtypes.SearchByAttributeValueMemberCreatedAt{Value: s.opts.CreatedSince},
					&imagingtypes.SearchByAttributeValueMemberCreatedAt{Value: s.opts.CreatedBefore},
				},
			}},
		}
	}

	var ids []string
	for {
		out, err := s.api.SearchImageSets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to search image sets: %w", err)
		}
		for _, summary := range out.ImageSetsMetadataSummaries {
			ids = append(ids, aws.ToString(summary.ImageSetId))
		}
		if out.NextToken == nil {
			return ids, nil
		}
		input.NextToken = out.NextToken
	}
}

// IndexImageSet fetches one image set's metadata document, expands it
// into per-instance records, and inserts them as a single batch. Returns
// the number of instances inserted.
func (s *Store) IndexImageSet(ctx context.Context, imageSetID string) (int, error) {
	out, err := s.api.GetImageSetMetadata(ctx, &medicalimaging.GetImageSetMetadataInput{
		DatastoreId: aws.String(s.datastoreID),
		ImageSetId:  aws.String(imageSetID),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch metadata for image set %s: %w", imageSetID, err)
	}
	defer out.ImageSetMetadataBlob.Close()

	meta, err := decodeImageSetMetadata(out.ImageSetMetadataBlob)
	if err != nil {
		return 0, fmt.Errorf("failed to decode metadata for image set %s: %w", imageSetID, err)
	}
	if meta.ImageSetID == "" {
		meta.ImageSetID = imageSetID
	}

	instances := expandImageSet(s.datastoreID, meta)
	if len(instances) == 0 {
		return 0, nil
	}

	if err := s.db.StartBatch(ctx); err != nil {
		return 0, fmt.Errorf("failed to start batch for image set %s: %w", imageSetID, err)
	}
	inserted := 0
	for _, instance := range instances {
		ok, err := s.db.Insert(ctx, instance.Dataset, instance.Locator)
		if err != nil {
			s.logger.Warn("instance insert failed",
				zap.String("image_set_id", imageSetID),
				zap.String("locator", instance.Locator),
				zap.Error(err),
			)
			continue
		}
		if ok {
			inserted++
		}
	}
	if err := s.db.EndBatch(); err != nil {
		if abortErr := s.db.AbortBatch(); abortErr != nil {
			s.logger.Warn("batch abort failed", zap.Error(abortErr))
		}
		return 0, fmt.Errorf("failed to commit batch for image set %s: %w", imageSetID, err)
	}
	return inserted, nil
}

// StartRequest issues frame retrieval for the given locators. All
// locators must name the same image set; locators already pending or
// buffered are skipped, and non-image placeholders are not retrievable.
func (s *Store) StartRequest(ctx context.Context, locators []string) error {
	parsed := make([]frameLocator, 0, len(locators))
	for _, raw := range locators {
		loc, err := parseFrameLocator(raw)
		if err != nil {
			return fmt.Errorf("failed to parse frame locator: %w", err)
		}
		if loc.FrameID == nonImagePlaceholder {
			s.logger.Warn("skipping non-image instance", zap.String("locator", raw))
			continue
		}
		parsed = append(parsed, loc)
	}
	if len(parsed) == 0 {
		return nil
	}

	first := parsed[0]
	for _, loc := range parsed[1:] {
		if loc.DatastoreID != first.DatastoreID || loc.ImageSetID != first.ImageSetID {
			return fmt.Errorf("frame locators span image sets %s and %s", first.ImageSetID, loc.ImageSetID)
		}
	}

	admitted := parsed[:0]
	for _, loc := range parsed {
		if s.broker.Begin(loc.String()) {
			admitted = append(admitted, loc)
		}
	}
	if len(admitted) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, loc := range admitted {
		s.locatorByFrameID[loc.FrameID] = loc.String()
	}
	s.mu.Unlock()

	body, err := json.Marshal(buildRequestDocument(first.DatastoreID, first.ImageSetID, admitted))
	if err != nil {
		return fmt.Errorf("failed to build frame request document: %w", err)
	}
	if err := s.client.RequestFrames(ctx, body); err != nil {
		// pending locators stay registered; pump reissues or fails them
		// once the client goes idle
		return fmt.Errorf("failed to submit frame request: %w", err)
	}
	return nil
}

// Frames returns the completed frames among requested.
func (s *Store) Frames(requested []string) map[string][]int16 {
	s.pump()
	return s.broker.Drain(requested)
}

// RequestFinished reports whether no frame requests remain outstanding.
func (s *Store) RequestFinished() bool {
	s.pump()
	return s.broker.Done()
}

// FailedFrames returns the locators that exhausted their attempt bound.
func (s *Store) FailedFrames() []string {
	return s.broker.Failed()
}

// pump moves finished responses from the frame client into the broker.
// When the client goes idle with registered locators still pending, the
// deliveries were lost; those locators are reissued one at a time until
// the broker's attempt bound gives up on them.
func (s *Store) pump() {
	responses := s.client.Responses()

	s.mu.Lock()
	for _, resp := range responses {
		locator, ok := s.locatorByFrameID[resp.ImageFrameID]
		if !ok {
			s.logger.Debug("dropping response for unknown frame",
				zap.String("image_frame_id", resp.ImageFrameID))
			continue
		}
		delete(s.locatorByFrameID, resp.ImageFrameID)
		s.broker.Complete(locator, resp.Samples)
	}

	var reissue []frameLocator
	if !s.client.Busy() {
		for frameID, locator := range s.locatorByFrameID {
			if !s.broker.Fail(locator) {
				delete(s.locatorByFrameID, frameID)
				continue
			}
			loc, err := parseFrameLocator(locator)
			if err != nil {
				delete(s.locatorByFrameID, frameID)
				continue
			}
			reissue = append(reissue, loc)
		}
	}
	s.mu.Unlock()

	for _, loc := range reissue {
		body, err := json.Marshal(buildRequestDocument(loc.DatastoreID, loc.ImageSetID, []frameLocator{loc}))
		if err != nil {
			continue
		}
		if err := s.client.RequestFrames(context.Background(), body); err != nil {
			s.logger.Warn("frame reissue failed",
				zap.String("locator", loc.String()),
				zap.Error(err),
			)
		}
	}
}

// buildRequestDocument groups locators by series and instance into the
// request document shape the frame client expects.
func buildRequestDocument(datastoreID, imageSetID string, locators []frameLocator) frameRequestDocument {
	doc := frameRequestDocument{
		DatastoreID: datastoreID,
		ImageSetID:  imageSetID,
		Study:       frameRequestStudy{Series: make(map[string]frameRequestSeries)},
	}
	for _, loc := range locators {
		series, ok := doc.Study.Series[loc.SeriesUID]
		if !ok {
			series = frameRequestSeries{Instances: make(map[string]frameRequestInstance)}
		}
		instance := series.Instances[loc.SOPInstanceUID]
		instance.ImageFrames = append(instance.ImageFrames, frameRequestFrame{ID: loc.FrameID})
		series.Instances[loc.SOPInstanceUID] = instance
		doc.Study.Series[loc.SeriesUID] = series
	}
	return doc
}
