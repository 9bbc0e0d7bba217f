package fm

import (
	"context"
	"time"
)

// WaitResult is the way a completion wait ended
type WaitResult int

const (
	Signaled WaitResult = iota
	TimedOut
	Canceled
)

func (r WaitResult) String() string {
	switch r {
	case Signaled:
		return "signaled"
	case TimedOut:
		return "timed out"
	default:
		return "canceled"
	}
}

// completionSlot is a waitable completion for one operation kind.
// arm, disarm and signal must be called with the controller's state
// lock held, so a waiter that armed before issuing its device command
// can never miss the dispatcher's signal.
type completionSlot struct {
	name  string
	armed chan struct{}
}

// pendingWait is held by the single operation waiting on a slot
type pendingWait struct {
	ch chan struct{}
}

// arm replaces any stale channel and returns the wait handle
func (s *completionSlot) arm() pendingWait {
	s.armed = make(chan struct{})
	return pendingWait{ch: s.armed}
}

// disarm drops the armed channel if it still belongs to w
func (s *completionSlot) disarm(w pendingWait) {
	if s.armed == w.ch {
		s.armed = nil
	}
}

// signal wakes the armed waiter. Signalling an unarmed slot is a no-op,
// so duplicate events never leak into a later wait.
func (s *completionSlot) signal() bool {
	if s.armed == nil {
		return false
	}
	close(s.armed)
	s.armed = nil
	return true
}

// wait blocks until signal, timeout, or ctx is done. The caller must not
// hold the state lock.
func (w pendingWait) wait(ctx context.Context, timeout time.Duration) WaitResult {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.ch:
		return Signaled
	case <-timer.C:
		return TimedOut
	case <-ctx.Done():
		return Canceled
	}
}

// completions groups the four per-operation slots
type completions struct {
	ready completionSlot
	tune  completionSlot
	seek  completionSlot
	scan  completionSlot
}

func newCompletions() completions {
	return completions{
		ready: completionSlot{name: "ready"},
		tune:  completionSlot{name: "tune"},
		seek:  completionSlot{name: "seek"},
		scan:  completionSlot{name: "scan"},
	}
}

// broadcast signals every slot
func (c *completions) broadcast() {
	c.ready.signal()
	c.tune.signal()
	c.seek.signal()
	c.scan.signal()
}
