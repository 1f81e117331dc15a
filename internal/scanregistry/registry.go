// Package scanregistry tracks scans per map: one entry per map that has
// scanned, each owning a bounded log buffer, a cancellation flag, and a done
// flag set when the supervisor goroutine exits. Entries are created at scan
// start and stay in the registry after the supervisor exits (so the final
// log lines remain readable with active=false) until the next Start for the
// same map replaces them.
package scanregistry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrAlreadyActive is returned by Start when a scan is already running for
// the given map id.
var ErrAlreadyActive = fmt.Errorf("scanregistry: scan already active")

// ErrNotActive is returned by Stop/request-cancel when no scan is running
// for the given map id.
var ErrNotActive = fmt.Errorf("scanregistry: no active scan")

const logBufferLimit = 2000

// Scan is one active (or just-finished) scan's visible state.
type Scan struct {
	mu        sync.Mutex
	lines     []string
	cancelled atomic.Bool
	done      atomic.Bool
}

// Log appends a formatted line to the scan's log buffer, trimming the
// oldest entries once logBufferLimit is exceeded.
func (s *Scan) Log(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if len(s.lines) > logBufferLimit {
		s.lines = s.lines[len(s.lines)-logBufferLimit:]
	}
}

// Lines returns a snapshot of the current log buffer.
func (s *Scan) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Cancelled reports whether a stop has been requested. Workers and the
// crawler supervisor poll this cooperatively; it never preempts an
// in-flight SNMP call.
func (s *Scan) Cancelled() bool { return s.cancelled.Load() }

func (s *Scan) requestCancel() { s.cancelled.Store(true) }

// Active reports whether the supervisor goroutine is still running.
func (s *Scan) Active() bool { return !s.done.Load() }

func (s *Scan) markDone() { s.done.Store(true) }

// Registry is the keyed map of active Scans, guarded by a single RWMutex —
// the registry itself is small and short-lived state, so a coarse lock is
// sufficient (unlike the graph store's write path).
type Registry struct {
	mu    sync.RWMutex
	scans map[int64]*Scan
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{scans: make(map[int64]*Scan)}
}

// Start registers a new Scan for mapID and launches run in its own
// goroutine, passing it the Scan so it can log and poll cancellation. It
// returns ErrAlreadyActive if a scan for mapID is already registered and
// active.
func (r *Registry) Start(mapID int64, run func(ctx context.Context, s *Scan)) error {
	r.mu.Lock()
	if existing, ok := r.scans[mapID]; ok && existing.Active() {
		r.mu.Unlock()
		return ErrAlreadyActive
	}
	scan := &Scan{}
	r.scans[mapID] = scan
	r.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				scan.Log("scan terminated by internal error: %v", rec)
			}
			scan.markDone()
		}()
		run(context.Background(), scan)
	}()
	return nil
}

// Stop requests cancellation of the active scan for mapID.
func (r *Registry) Stop(mapID int64) error {
	r.mu.RLock()
	scan, ok := r.scans[mapID]
	r.mu.RUnlock()
	if !ok || !scan.Active() {
		return ErrNotActive
	}
	scan.requestCancel()
	return nil
}

// Status reports whether a scan has ever run for mapID, and its current
// log lines plus active flag, per the §4.6 "Poll logs" contract.
func (r *Registry) Status(mapID int64) (lines []string, active bool) {
	r.mu.RLock()
	scan, ok := r.scans[mapID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return scan.Lines(), scan.Active()
}

// IsActive reports whether mapID currently has a running scan.
func (r *Registry) IsActive(mapID int64) bool {
	r.mu.RLock()
	scan, ok := r.scans[mapID]
	r.mu.RUnlock()
	return ok && scan.Active()
}
