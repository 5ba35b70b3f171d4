// Package frames holds the frame retrieval broker: the shared buffer
// between network delivery and frame consumers. Remote store adapters
// push decoded frames in as responses arrive; consumers poll them out by
// locator. The broker is the dedup point — a locator in flight is never
// fetched twice.
package frames

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds reissues of a request whose response failed
// to decode. Truncated reads are transient; a persistently malformed
// endpoint must not turn into an infinite retry loop.
const DefaultMaxAttempts = 3

// Broker tracks per-locator frame lifecycle:
// idle -> requested -> decoded -> delivered, with bounded re-request on
// decode failure. Safe for concurrent use by delivery goroutines and
// pollers. There is no cancellation: an issued request stays pending
// until it completes or exhausts its attempts.
type Broker struct {
	mu          sync.Mutex
	logger      *zap.Logger
	maxAttempts int
	attempts    map[string]int
	completed   map[string][]int16
	failed      []string
}

// NewBroker creates a broker with the default attempt bound.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		attempts:    make(map[string]int),
		completed:   make(map[string][]int16),
	}
}

// Begin transitions a locator to requested. Returns false when the
// locator is already pending or already has a buffered frame, in which
// case the caller must not issue another fetch.
func (b *Broker) Begin(locator string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, pending := b.attempts[locator]; pending {
		return false
	}
	if _, done := b.completed[locator]; done {
		return false
	}
	b.attempts[locator] = 1
	return true
}

// Complete buffers a decoded frame and clears the pending state. A
// delivery for a locator that is no longer pending (late response after
// the attempt bound) is dropped.
func (b *Broker) Complete(locator string, samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, pending := b.attempts[locator]; !pending {
		b.logger.Debug("dropping late frame delivery", zap.String("locator", locator))
		return
	}
	delete(b.attempts, locator)
	b.completed[locator] = samples
}

// Fail records a decode failure. Returns true when the caller should
// reissue the fetch; false when the attempt bound is reached, in which
// case the locator leaves the pending set and is reported by Failed.
func (b *Broker) Fail(locator string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, pending := b.attempts[locator]
	if !pending {
		return false
	}
	if n < b.maxAttempts {
		b.attempts[locator] = n + 1
		b.logger.Debug("reissuing frame request",
			zap.String("locator", locator),
			zap.Int("attempt", n+1),
		)
		return true
	}
	delete(b.attempts, locator)
	b.failed = append(b.failed, locator)
	b.logger.Warn("frame request failed after retries",
		zap.String("locator", locator),
		zap.Int("attempts", n),
	)
	return false
}

// Drain returns the buffered frames whose locators are in requested,
// removing them from the buffer. Frames requested by other callers stay
// buffered. Absence from the result means not-yet-ready, not failure.
func (b *Broker) Drain(requested []string) map[string][]int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := make(map[string][]int16)
	for _, locator := range requested {
		if samples, ok := b.completed[locator]; ok {
			drained[locator] = samples
			delete(b.completed, locator)
		}
	}
	return drained
}

// Outstanding returns the number of locators still in the requested state.
func (b *Broker) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attempts)
}

// Done reports whether no locator is in the requested state.
func (b *Broker) Done() bool {
	return b.Outstanding() == 0
}

// Failed returns the locators that exhausted their attempt bound.
func (b *Broker) Failed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.failed))
	copy(out, b.failed)
	return out
}
