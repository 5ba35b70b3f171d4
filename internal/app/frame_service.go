package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/ports/primary"
	"github.com/example/dicomcache/internal/ports/secondary"
)

// DefaultPollInterval paces the outstanding-request polling loop.
const DefaultPollInterval = 50 * time.Millisecond

// FrameServiceImpl implements the FrameService interface.
type FrameServiceImpl struct {
	store        secondary.RemoteStore
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ primary.FrameService = (*FrameServiceImpl)(nil)

// NewFrameService creates a new FrameService with injected dependencies.
func NewFrameService(store secondary.RemoteStore, logger *zap.Logger) *FrameServiceImpl {
	return &FrameServiceImpl{
		store:        store,
		pollInterval: DefaultPollInterval,
		logger:       logger,
	}
}

// FetchFrames requests the locators and polls the store until no request
// remains outstanding, collecting frames as they resolve. Locators that
// never resolved (failed retrievals, non-image instances) come back in
// Unresolved.
func (s *FrameServiceImpl) FetchFrames(ctx context.Context, locators []string) (*primary.FrameFetchResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no remote store configured")
	}
	if err := s.store.StartRequest(ctx, locators); err != nil {
		return nil, fmt.Errorf("failed to start frame request: %w", err)
	}

	result := &primary.FrameFetchResult{Frames: make(map[string][]int16)}
	collect := func() {
		for locator, samples := range s.store.Frames(locators) {
			result.Frames[locator] = samples
		}
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		collect()
		if len(result.Frames) == len(locators) || s.store.RequestFinished() {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("frame retrieval interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	// a frame may have resolved between the last drain and the finished check
	collect()

	for _, locator := range locators {
		if _, ok := result.Frames[locator]; !ok {
			result.Unresolved = append(result.Unresolved, locator)
		}
	}
	if len(result.Unresolved) > 0 {
		s.logger.Warn("frames unresolved after request settled",
			zap.Int("unresolved", len(result.Unresolved)),
		)
	}
	return result, nil
}
