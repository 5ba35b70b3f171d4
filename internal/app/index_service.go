// Package app implements the primary service interfaces over the
// adapter ports.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/ports/primary"
)

// StudyIndexer lists and indexes studies from a DICOMweb endpoint.
type StudyIndexer interface {
	ListStudyUIDs(ctx context.Context, limit, offset int) ([]string, error)
	IndexStudy(ctx context.Context, studyInstanceUID string) (int, error)
}

// ImageSetIndexer lists and indexes image sets from a HealthImaging
// datastore.
type ImageSetIndexer interface {
	ListImageSetIDs(ctx context.Context) ([]string, error)
	IndexImageSet(ctx context.Context, imageSetID string) (int, error)
}

// IndexServiceImpl implements the IndexService interface.
type IndexServiceImpl struct {
	studies   StudyIndexer
	imageSets ImageSetIndexer
	logger    *zap.Logger
}

var _ primary.IndexService = (*IndexServiceImpl)(nil)

// NewIndexService creates a new IndexService with injected dependencies.
// Either indexer may be nil when the corresponding remote store is not
// configured.
func NewIndexService(studies StudyIndexer, imageSets ImageSetIndexer, logger *zap.Logger) *IndexServiceImpl {
	return &IndexServiceImpl{
		studies:   studies,
		imageSets: imageSets,
		logger:    logger,
	}
}

// IndexStudies indexes DICOMweb studies into the local store. A failing
// study is recorded and skipped; the run continues.
func (s *IndexServiceImpl) IndexStudies(ctx context.Context, req primary.IndexStudiesRequest) (*primary.IndexReport, error) {
	if s.studies == nil {
		return nil, fmt.Errorf("no DICOMweb endpoint configured")
	}

	start := time.Now()

	uids := []string{req.StudyInstanceUID}
	if req.StudyInstanceUID == "" {
		listed, err := s.studies.ListStudyUIDs(ctx, req.Limit, req.Offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list studies: %w", err)
		}
		uids = listed
	}

	report := &primary.IndexReport{}
	for _, uid := range uids {
		inserted, err := s.studies.IndexStudy(ctx, uid)
		if err != nil {
			s.logger.Warn("study indexing failed",
				zap.String("study_instance_uid", uid),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, uid)
			continue
		}
		report.Indexed += inserted
		s.logger.Info("study indexed",
			zap.String("study_instance_uid", uid),
			zap.Int("instances", inserted),
		)
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// IndexDatastore indexes every image set in the configured datastore.
func (s *IndexServiceImpl) IndexDatastore(ctx context.Context) (*primary.IndexReport, error) {
	if s.imageSets == nil {
		return nil, fmt.Errorf("no datastore configured")
	}

	start := time.Now()

	ids, err := s.imageSets.ListImageSetIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list image sets: %w", err)
	}

	report := &primary.IndexReport{}
	for _, id := range ids {
		inserted, err := s.imageSets.IndexImageSet(ctx, id)
		if err != nil {
			s.logger.Warn("image set indexing failed",
				zap.String("image_set_id", id),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Indexed += inserted
		s.logger.Info("image set indexed",
			zap.String("image_set_id", id),
			zap.Int("instances", inserted),
		)
	}
	report.Elapsed = time.Since(start)
	return report, nil
}
