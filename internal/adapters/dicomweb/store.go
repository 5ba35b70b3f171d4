// Package dicomweb is the remote store adapter for DICOMweb endpoints:
// study discovery and metadata over the QIDO/WADO hierarchy, and frame
// retrieval through the shared broker.
package dicomweb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/dataset"
	"github.com/example/dicomcache/internal/frames"
	"github.com/example/dicomcache/internal/ports/secondary"
)

const defaultTimeout = 60 * time.Second

// Options configures a Store. Headers come from the external credential
// provider (typically a bearer token); Synchronous selects the blocking
// sequential fetch mode instead of per-request goroutines.
type Options struct {
	Headers     map[string]string
	Synchronous bool
	Timeout     time.Duration
}

// Store implements secondary.RemoteStore against a DICOMweb base URL and
// indexes study metadata into the local store.
type Store struct {
	client  *resty.Client
	baseURL string
	db      secondary.Database
	broker  *frames.Broker
	logger  *zap.Logger
	sync    bool
}

var _ secondary.RemoteStore = (*Store)(nil)

// New creates a DICOMweb store over the given base URL.
func New(baseURL string, database secondary.Database, logger *zap.Logger, opts Options) *Store {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(opts.Headers)

	return &Store{
		client:  client,
		baseURL: baseURL,
		db:      database,
		broker:  frames.NewBroker(logger),
		logger:  logger,
		sync:    opts.Synchronous,
	}
}

// frameLocator builds the WADO frame URL for one instance. Frame 1 is
// the only frame indexed; multi-frame instances are out of scope here.
func (s *Store) frameLocator(ds *dataset.Dataset) string {
	return fmt.Sprintf("%s/studies/%s/series/%s/instances/%s/frames/1",
		s.baseURL,
		ds.GetString("StudyInstanceUID"),
		ds.GetString("SeriesInstanceUID"),
		ds.GetString("SOPInstanceUID"),
	)
}

// ListStudyUIDs fetches one page of the studies listing. An empty
// response body or empty array signals the end of pagination with a nil
// result.
func (s *Store) ListStudyUIDs(ctx context.Context, limit, offset int) ([]string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/dicom+json").
		SetQueryParams(map[string]string{
			"limit":  strconv.Itoa(limit),
			"offset": strconv.Itoa(offset),
		}).
		Get("studies")
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("studies listing returned status %d", resp.StatusCode())
	}

	studies, err := dataset.FromDICOMJSONArray(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to parse studies listing: %w", err)
	}

	uids := make([]string, 0, len(studies))
	for _, study := range studies {
		if uid := study.GetString("StudyInstanceUID"); uid != "" {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

// IndexStudy fetches the study's full metadata and indexes every
// instance into the local store inside one batch. Returns the number of
// instances inserted.
func (s *Store) IndexStudy(ctx context.Context, studyInstanceUID string) (int, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/dicom+json").
		Get(fmt.Sprintf("studies/%s/metadata", studyInstanceUID))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch study metadata: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return 0, fmt.Errorf("study metadata returned status %d", resp.StatusCode())
	}

	instances, err := dataset.FromDICOMJSONArray(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("failed to parse study metadata: %w", err)
	}

	if err := s.db.StartBatch(ctx); err != nil {
		return 0, fmt.Errorf("failed to start batch: %w", err)
	}

	inserted := 0
	for _, instance := range instances {
		ok, err := s.db.Insert(ctx, instance, s.frameLocator(instance))
		if err != nil {
			// a bad record fails alone; the batch continues
			s.logger.Warn("skipping instance",
				zap.String("study_instance_uid", studyInstanceUID),
				zap.String("sop_instance_uid", instance.GetString("SOPInstanceUID")),
				zap.Error(err),
			)
			continue
		}
		if ok {
			inserted++
		}
	}

	if err := s.db.EndBatch(); err != nil {
		s.db.AbortBatch()
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

// StartRequest issues one frame fetch per locator. Locators must share a
// study and series. A locator already pending or buffered is skipped. In
// asynchronous mode each fetch runs in its own goroutine and delivers
// into the broker; in synchronous mode fetches run sequentially before
// StartRequest returns.
func (s *Store) StartRequest(ctx context.Context, locators []string) error {
	for _, locator := range locators {
		if !s.broker.Begin(locator) {
			continue
		}
		if s.sync {
			s.fetchFrame(ctx, locator)
		} else {
			go s.fetchFrame(ctx, locator)
		}
	}
	return nil
}

// fetchFrame retrieves one frame, reissuing on malformed responses until
// the broker's attempt bound is reached.
func (s *Store) fetchFrame(ctx context.Context, locator string) {
	for {
		samples, err := s.fetchFrameOnce(ctx, locator)
		if err == nil {
			s.broker.Complete(locator, samples)
			return
		}
		s.logger.Debug("frame fetch failed",
			zap.String("locator", locator),
			zap.Error(err),
		)
		if !s.broker.Fail(locator) {
			return
		}
	}
}

func (s *Store) fetchFrameOnce(ctx context.Context, locator string) ([]int16, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", `multipart/related; type="application/octet-stream"`).
		Get(locator)
	if err != nil {
		return nil, fmt.Errorf("frame request failed: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("frame request returned status %d", resp.StatusCode())
	}
	return parseMultipartFrame(resp.Body())
}

// Frames drains completed frames matching the requested locators.
func (s *Store) Frames(requested []string) map[string][]int16 {
	return s.broker.Drain(requested)
}

// RequestFinished reports whether no frame requests remain outstanding.
func (s *Store) RequestFinished() bool {
	return s.broker.Done()
}

// FailedFrames returns locators that exhausted their retry bound.
func (s *Store) FailedFrames() []string {
	return s.broker.Failed()
}
