// Package scheduler decides when settlement recalculations run.
//
// Mutating operations on a group's expenses arrive in bursts (a payer row
// and three split rows land as separate requests within milliseconds). The
// scheduler coalesces those bursts: each trigger for a group replaces any
// not-yet-fired timer for the same group, so one recalculation runs once
// the burst settles. An immediate trigger bypasses the debounce entirely.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tabmates/tabmates/internal/metrics"
)

// DefaultDelay is the debounce window used when a trigger does not carry
// its own delay.
const DefaultDelay = 500 * time.Millisecond

// ErrClosed is returned by Trigger after Cleanup has drained the
// scheduler.
var ErrClosed = errors.New("scheduler is closed")

// ChangeType labels what kind of mutation asked for a recalculation.
// Informative only: it drives timing policy and logging, never
// correctness.
type ChangeType string

const (
	ChangeExpenseCreated      ChangeType = "expense_created"
	ChangeExpenseUpdated      ChangeType = "expense_updated"
	ChangeExpenseDeleted      ChangeType = "expense_deleted"
	ChangePayerUpdated        ChangeType = "payer_updated"
	ChangeSplitUpdated        ChangeType = "split_updated"
	ChangeSettlementProcessed ChangeType = "settlement_processed"
	ChangeScheduled           ChangeType = "scheduled"
	ChangeManual              ChangeType = "manual"
)

// Executor runs one recalculation for a group. Implemented by
// engine.Engine; faked in tests.
type Executor interface {
	Execute(ctx context.Context, groupID string, reason ChangeType) error
}

// Options adjusts how a single trigger behaves.
type Options struct {
	// Delay overrides DefaultDelay for the debounced path. Zero means
	// the default; callers wanting an instant run use Immediate.
	Delay time.Duration

	// Immediate cancels any pending timer for the group and runs now.
	Immediate bool

	// Wait makes an immediate trigger run synchronously and return the
	// execution error. Ignored on the debounced path, which never blocks
	// the caller.
	Wait bool
}

// Statistics is a point-in-time snapshot of scheduler state for monitoring
// endpoints and tests.
type Statistics struct {
	PendingCount    int      `json:"pending_count"`
	PendingGroups   []string `json:"pending_groups"`
	DebounceDelayMs int64    `json:"debounce_delay_ms"`
	Status          string   `json:"status"`
}

// pending is one armed timer. The pointer doubles as a generation marker:
// a fire callback only proceeds if its pending entry is still the one in
// the table, so a timer that loses the race with a newer trigger becomes a
// no-op.
type pending struct {
	timer       *time.Timer
	change      ChangeType
	delay       time.Duration
	requestedAt time.Time
}

// Scheduler owns the per-group debounce table. One instance per process,
// injected into the services that mutate expense data.
type Scheduler struct {
	exec   Executor
	logger *slog.Logger
	delay  time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool

	// runMu guards the per-group run locks that serialize executions
	// without blocking other groups or holding mu across DB I/O.
	runMu sync.Mutex
	runs  map[string]*runLock
}

// runLock serializes one group's executions. refs counts goroutines that
// hold or are waiting on the lock; the map entry is dropped when it hits
// zero so the table does not grow with every group ever triggered.
type runLock struct {
	sync.Mutex
	refs int
}

// New creates a scheduler that dispatches recalculations to exec.
func New(exec Executor, logger *slog.Logger) *Scheduler {
	return NewWithDelay(exec, DefaultDelay, logger)
}

// NewWithDelay creates a scheduler with a custom default debounce delay.
func NewWithDelay(exec Executor, delay time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		exec:    exec,
		logger:  logger,
		delay:   delay,
		pending: make(map[string]*pending),
		runs:    make(map[string]*runLock),
	}
}

// Trigger requests a recalculation for a group.
//
// Debounced path: any pending timer for the group is cancelled and a new
// one armed, so the last trigger before the fire determines the delay. The
// call returns immediately; execution failures are logged, never returned.
//
// Immediate path: the pending timer is cancelled and the recalculation
// runs now. With opts.Wait the call blocks and returns the execution
// error; without it the run happens in a goroutine.
func (s *Scheduler) Trigger(ctx context.Context, groupID string, change ChangeType, opts Options) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if p, ok := s.pending[groupID]; ok {
		p.timer.Stop()
		delete(s.pending, groupID)
		metrics.PendingRecalculations.Set(float64(len(s.pending)))
	}

	if opts.Immediate {
		s.mu.Unlock()
		if opts.Wait {
			return s.run(ctx, groupID, change)
		}
		go func() {
			if err := s.run(context.Background(), groupID, change); err != nil {
				s.logger.Error("immediate recalculation failed",
					"group_id", groupID, "change_type", change, "error", err)
			}
		}()
		return nil
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = s.delay
	}

	p := &pending{change: change, delay: delay, requestedAt: time.Now()}
	p.timer = time.AfterFunc(delay, func() { s.fire(groupID, p) })
	s.pending[groupID] = p
	metrics.PendingRecalculations.Set(float64(len(s.pending)))
	s.mu.Unlock()

	s.logger.Debug("recalculation scheduled",
		"group_id", groupID, "change_type", change, "delay", delay)
	return nil
}

// fire runs when a debounce timer elapses.
func (s *Scheduler) fire(groupID string, p *pending) {
	s.mu.Lock()
	// A newer trigger may have replaced or cancelled this entry between
	// the timer firing and the lock being acquired.
	if s.pending[groupID] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, groupID)
	metrics.PendingRecalculations.Set(float64(len(s.pending)))
	s.mu.Unlock()

	if err := s.run(context.Background(), groupID, p.change); err != nil {
		s.logger.Error("scheduled recalculation failed",
			"group_id", groupID, "change_type", p.change, "error", err)
	}
}

// run executes one recalculation, serialized per group. Errors are
// returned to the caller (immediate+wait path) and otherwise logged by the
// caller; the scheduler never retries on its own — the next mutation
// naturally re-triggers.
func (s *Scheduler) run(ctx context.Context, groupID string, change ChangeType) error {
	lock := s.acquireRunLock(groupID)
	lock.Lock()
	defer s.releaseRunLock(groupID, lock)

	return s.exec.Execute(ctx, groupID, change)
}

func (s *Scheduler) acquireRunLock(groupID string) *runLock {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	lock, ok := s.runs[groupID]
	if !ok {
		lock = &runLock{}
		s.runs[groupID] = lock
	}
	lock.refs++
	return lock
}

// releaseRunLock unlocks and drops the map entry once the last holder or
// waiter is gone. Waiters took a ref before blocking, so an entry is never
// deleted out from under a goroutine that could still serialize against it.
func (s *Scheduler) releaseRunLock(groupID string, lock *runLock) {
	lock.Unlock()

	s.runMu.Lock()
	defer s.runMu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.runs, groupID)
	}
}

// Cancel clears a pending timer for the group if one exists and reports
// whether it did. An in-flight execution is unaffected.
func (s *Scheduler) Cancel(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[groupID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, groupID)
	metrics.PendingRecalculations.Set(float64(len(s.pending)))
	return true
}

// ForceRecalculation runs a recalculation for the group right now,
// bypassing and cancelling any pending debounce, and waits for it.
func (s *Scheduler) ForceRecalculation(ctx context.Context, groupID string, reason ChangeType) error {
	return s.Trigger(ctx, groupID, reason, Options{Immediate: true, Wait: true})
}

// PendingRecalculations returns the group IDs with an armed timer.
func (s *Scheduler) PendingRecalculations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]string, 0, len(s.pending))
	for id := range s.pending {
		groups = append(groups, id)
	}
	return groups
}

// Statistics returns a snapshot of scheduler state.
func (s *Scheduler) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]string, 0, len(s.pending))
	for id := range s.pending {
		groups = append(groups, id)
	}
	status := "running"
	if s.closed {
		status = "stopped"
	}
	return Statistics{
		PendingCount:    len(groups),
		PendingGroups:   groups,
		DebounceDelayMs: s.delay.Milliseconds(),
		Status:          status,
	}
}

// Cleanup cancels all pending timers without executing them and closes
// the scheduler. This is a drain, not a flush: pending recalculations are
// lost and the next mutation after restart re-triggers them.
func (s *Scheduler) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
	metrics.PendingRecalculations.Set(0)
	s.closed = true
	s.logger.Info("scheduler drained")
}
