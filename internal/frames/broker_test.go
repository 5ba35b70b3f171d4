package frames_test

import (
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/frames"
)

func TestBeginDeduplicates(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	if !b.Begin("A") {
		t.Fatal("first Begin should report issuable")
	}
	if b.Begin("A") {
		t.Error("second Begin for a pending locator must not issue a fetch")
	}

	b.Complete("A", []int16{1})
	if b.Begin("A") {
		t.Error("Begin for a buffered locator must not issue a fetch")
	}
}

func TestDrainIntersection(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	for _, loc := range []string{"A", "B", "C"} {
		b.Begin(loc)
	}
	b.Complete("A", []int16{1})
	b.Complete("B", []int16{2})

	got := b.Drain([]string{"A", "B", "C"})
	if len(got) != 2 {
		t.Fatalf("Drain returned %d frames, want 2", len(got))
	}
	if got["A"][0] != 1 || got["B"][0] != 2 {
		t.Errorf("unexpected frame contents: %v", got)
	}

	// C resolves later and is still deliverable
	b.Complete("C", []int16{3})
	got = b.Drain([]string{"C"})
	if len(got) != 1 || got["C"][0] != 3 {
		t.Errorf("Drain after late completion = %v", got)
	}
}

func TestDrainLeavesOtherCallersFrames(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	b.Begin("mine")
	b.Begin("theirs")
	b.Complete("mine", []int16{1})
	b.Complete("theirs", []int16{2})

	got := b.Drain([]string{"mine"})
	if _, ok := got["theirs"]; ok {
		t.Error("Drain returned a frame outside the requested set")
	}

	// the other caller can still collect theirs
	got = b.Drain([]string{"theirs"})
	if len(got) != 1 {
		t.Errorf("other caller's frame was consumed: %v", got)
	}
}

func TestDrainRemovesDelivered(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	b.Begin("A")
	b.Complete("A", []int16{1})
	b.Drain([]string{"A"})

	got := b.Drain([]string{"A"})
	if len(got) != 0 {
		t.Errorf("delivered frame returned twice: %v", got)
	}
}

func TestFailBoundedRetry(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	b.Begin("A")
	retries := 0
	for b.Fail("A") {
		retries++
	}
	if retries != frames.DefaultMaxAttempts-1 {
		t.Errorf("got %d reissues, want %d", retries, frames.DefaultMaxAttempts-1)
	}
	if !b.Done() {
		t.Error("broker still pending after attempts exhausted")
	}
	failed := b.Failed()
	if len(failed) != 1 || failed[0] != "A" {
		t.Errorf("Failed() = %v", failed)
	}
}

func TestLateDeliveryDropped(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	b.Begin("A")
	for b.Fail("A") {
	}
	b.Complete("A", []int16{1})

	if got := b.Drain([]string{"A"}); len(got) != 0 {
		t.Errorf("late delivery was buffered: %v", got)
	}
}

func TestDoneTracksOutstanding(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	if !b.Done() {
		t.Error("fresh broker should be done")
	}
	b.Begin("A")
	if b.Done() {
		t.Error("broker with a pending request reported done")
	}
	b.Complete("A", nil)
	if !b.Done() {
		t.Error("broker not done after completion")
	}
}

func TestConcurrentDeliveryAndPolling(t *testing.T) {
	b := frames.NewBroker(zap.NewNop())

	locators := make([]string, 100)
	for i := range locators {
		locators[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
		b.Begin(locators[i])
	}

	var wg sync.WaitGroup
	for _, loc := range locators {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			b.Complete(loc, []int16{1})
		}(loc)
	}

	collected := 0
	for collected < len(locators) {
		collected += len(b.Drain(locators))
	}
	wg.Wait()

	if !b.Done() {
		t.Error("broker not done after all deliveries")
	}
}
