package session

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules on the runtime timer.
type SystemScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler is a Scheduler driven by Advance, for tests and replays.
// Callbacks run synchronously on the goroutine calling Advance.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	owner *ManualScheduler
	due   time.Duration
	seq   int
	f     func()
	done  bool
}

// NewManualScheduler creates a ManualScheduler at elapsed time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc registers f to run once Advance moves past d from now.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{owner: s, due: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves the clock forward by d, firing due timers in order.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDue(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.due
		next.done = true
		s.mu.Unlock()

		next.f()
	}
}

// nextDue pops the earliest live timer due by target. Caller holds mu.
func (s *ManualScheduler) nextDue(target time.Duration) *manualTimer {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].due != s.timers[j].due {
			return s.timers[i].due < s.timers[j].due
		}
		return s.timers[i].seq < s.timers[j].seq
	})
	if len(s.timers) == 0 || s.timers[0].due > target {
		return nil
	}
	return s.timers[0]
}

// Pending returns the number of live timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Elapsed returns the scheduler's current time offset.
func (s *ManualScheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
