package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockRemoteStore resolves frames one per poll, in locator order, and
// reports finished once nothing requested remains undelivered.
type mockRemoteStore struct {
	frames    map[string][]int16
	startErr  error
	requested []string
	delivered int
}

func (m *mockRemoteStore) StartRequest(ctx context.Context, locators []string) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.requested = locators
	return nil
}

func (m *mockRemoteStore) Frames(requested []string) map[string][]int16 {
	out := make(map[string][]int16)
	if m.delivered < len(m.requested) {
		locator := m.requested[m.delivered]
		m.delivered++
		if samples, ok := m.frames[locator]; ok {
			out[locator] = samples
		}
	}
	return out
}

func (m *mockRemoteStore) RequestFinished() bool {
	return m.delivered >= len(m.requested)
}

func TestFetchFramesCollectsAll(t *testing.T) {
	store := &mockRemoteStore{
		frames: map[string][]int16{
			"loc-a": {1, 2},
			"loc-b": {3},
		},
	}
	service := NewFrameService(store, zap.NewNop())
	service.pollInterval = time.Millisecond

	result, err := service.FetchFrames(context.Background(), []string{"loc-a", "loc-b"})
	if err != nil {
		t.Fatalf("FetchFrames returned error: %v", err)
	}
	if len(result.Frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(result.Frames))
	}
	if got := result.Frames["loc-a"]; len(got) != 2 || got[0] != 1 {
		t.Errorf("loc-a samples = %v, want [1 2]", got)
	}
	if len(result.Unresolved) != 0 {
		t.Errorf("Unresolved = %v, want none", result.Unresolved)
	}
}

func TestFetchFramesReportsUnresolved(t *testing.T) {
	store := &mockRemoteStore{
		frames: map[string][]int16{"loc-a": {1}},
	}
	service := NewFrameService(store, zap.NewNop())
	service.pollInterval = time.Millisecond

	result, err := service.FetchFrames(context.Background(), []string{"loc-a", "loc-b"})
	if err != nil {
		t.Fatalf("FetchFrames returned error: %v", err)
	}
	if len(result.Frames) != 1 {
		t.Errorf("got %d frames, want 1", len(result.Frames))
	}
	if len(result.Unresolved) != 1 || result.Unresolved[0] != "loc-b" {
		t.Errorf("Unresolved = %v, want [loc-b]", result.Unresolved)
	}
}

func TestFetchFramesStartFailure(t *testing.T) {
	store := &mockRemoteStore{startErr: errors.New("request rejected")}
	service := NewFrameService(store, zap.NewNop())

	if _, err := service.FetchFrames(context.Background(), []string{"loc-a"}); err == nil {
		t.Fatal("FetchFrames succeeded despite request failure")
	}
}

func TestFetchFramesHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service := NewFrameService(&stuckRemoteStore{}, zap.NewNop())
	service.pollInterval = time.Millisecond

	if _, err := service.FetchFrames(ctx, []string{"loc-a"}); err == nil {
		t.Fatal("FetchFrames ignored context cancellation")
	}
}

// stuckRemoteStore accepts requests and never resolves them.
type stuckRemoteStore struct{}

func (s *stuckRemoteStore) StartRequest(ctx context.Context, locators []string) error { return nil }
func (s *stuckRemoteStore) Frames(requested []string) map[string][]int16 {
	return map[string][]int16{}
}
func (s *stuckRemoteStore) RequestFinished() bool { return false }
