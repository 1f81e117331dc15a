package scanregistry

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestStartRejectsDoubleActiveScan(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	wg.Add(1)
	release := make(chan struct{})

	err := r.Start(1, func(ctx context.Context, s *Scan) {
		wg.Done()
		<-release
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	wg.Wait()

	if err := r.Start(1, func(ctx context.Context, s *Scan) {}); err != ErrAlreadyActive {
		t.Fatalf("second Start() = %v, want ErrAlreadyActive", err)
	}

	close(release)
}

func TestStopSetsCancelledAndStatusReflectsCompletion(t *testing.T) {
	r := New()
	started := make(chan struct{})
	finished := make(chan struct{})

	err := r.Start(2, func(ctx context.Context, s *Scan) {
		close(started)
		for !s.Cancelled() {
			time.Sleep(time.Millisecond)
		}
		s.Log("scan cancelled, draining in-flight work")
		s.Log("scan complete")
		close(finished)
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	if !r.IsActive(2) {
		t.Fatal("expected scan to be active")
	}
	if err := r.Stop(2); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-finished

	// Give the goroutine's deferred markDone a moment to run after closing
	// the finished channel (the close happens before markDone).
	deadline := time.Now().Add(time.Second)
	for r.IsActive(2) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.IsActive(2) {
		t.Fatal("expected scan to be inactive after completion")
	}

	lines, active := r.Status(2)
	if active {
		t.Fatal("Status active = true, want false")
	}
	if len(lines) != 2 || lines[1] != "scan complete" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestStopOnUnknownMapReturnsErrNotActive(t *testing.T) {
	r := New()
	if err := r.Stop(999); err != ErrNotActive {
		t.Fatalf("Stop() = %v, want ErrNotActive", err)
	}
}

func TestStartAllowedAgainAfterPriorScanCompletes(t *testing.T) {
	r := New()
	done := make(chan struct{})
	if err := r.Start(3, func(ctx context.Context, s *Scan) { close(done) }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done

	deadline := time.Now().Add(time.Second)
	for r.IsActive(3) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := r.Start(3, func(ctx context.Context, s *Scan) {}); err != nil {
		t.Fatalf("second Start() = %v, want nil (prior scan finished)", err)
	}
}

func TestSupervisorRecoversPanicAndMarksDone(t *testing.T) {
	r := New()
	if err := r.Start(4, func(ctx context.Context, s *Scan) {
		panic("boom")
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for r.IsActive(4) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	lines, active := r.Status(4)
	if active {
		t.Fatal("expected scan marked inactive after panic")
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %v, want one terminal log line", lines)
	}
}
