package turn

import (
	"sort"
	"sync"
	"time"
)

// TimerKind names one of the per-session timers.
type TimerKind string

const (
	TimerReminder   TimerKind = "reminder"
	TimerInactivity TimerKind = "inactivity"
	TimerExitCheck  TimerKind = "exit_check"
	TimerExitDelay  TimerKind = "exit_delay"
	TimerCloseReset TimerKind = "close_reset"
)

// Token identifies one scheduling of a timer. Gen lets the machine ignore a
// fire that raced with a cancel or reschedule.
type Token struct {
	Kind TimerKind
	Gen  uint64
}

// Scheduler runs delayed timer fires. The returned cancel is idempotent and
// safe to call after the timer fired.
type Scheduler interface {
	Schedule(delay time.Duration, token Token) (cancel func())
}

// FireFunc receives due tokens.
type FireFunc func(Token)

// TimeScheduler schedules with the runtime timer.
type TimeScheduler struct {
	fire FireFunc

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
}

// NewTimeScheduler creates a scheduler delivering fires to fire. fire is
// called from timer goroutines and must not block for long.
func NewTimeScheduler(fire FireFunc) *TimeScheduler {
	return &TimeScheduler{fire: fire, pending: make(map[*time.Timer]struct{})}
}

// Schedule implements Scheduler.
func (s *TimeScheduler) Schedule(delay time.Duration, token Token) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}

	var (
		once sync.Once
		t    *time.Timer
	)
	cancelled := make(chan struct{})
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, t)
		s.mu.Unlock()
		select {
		case <-cancelled:
			return
		default:
		}
		s.fire(token)
	})
	s.pending[t] = struct{}{}

	return func() {
		once.Do(func() {
			close(cancelled)
			t.Stop()
			s.mu.Lock()
			delete(s.pending, t)
			s.mu.Unlock()
		})
	}
}

// Stop cancels every pending timer and rejects new ones.
func (s *TimeScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for t := range s.pending {
		t.Stop()
		delete(s.pending, t)
	}
}

// FakeScheduler is a manual clock and scheduler for tests.
type FakeScheduler struct {
	// OnFire receives due tokens during Advance.
	OnFire FireFunc

	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	due       time.Time
	seq       int
	token     Token
	cancelled bool
}

// NewFakeScheduler creates a fake starting at now.
func NewFakeScheduler(now time.Time) *FakeScheduler {
	return &FakeScheduler{now: now}
}

// Now returns the fake time.
func (f *FakeScheduler) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Schedule implements Scheduler.
func (f *FakeScheduler) Schedule(delay time.Duration, token Token) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{due: f.now.Add(delay), seq: f.seq, token: token}
	f.timers = append(f.timers, t)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		t.cancelled = true
	}
}

// Pending returns the kinds of timers that have not fired or been cancelled.
func (f *FakeScheduler) Pending() []TimerKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []TimerKind
	for _, t := range f.timers {
		if !t.cancelled {
			kinds = append(kinds, t.token.Kind)
		}
	}
	return kinds
}

// Advance moves the clock forward by d, firing due timers in order. Timers
// scheduled by a fire are honoured when they fall within the window.
func (f *FakeScheduler) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.popDue(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.due
		f.mu.Unlock()

		if f.OnFire != nil {
			f.OnFire(next.token)
		}
	}
}

func (f *FakeScheduler) popDue(target time.Time) *fakeTimer {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	f.timers = live
	if len(f.timers) == 0 {
		return nil
	}
	sort.Slice(f.timers, func(i, j int) bool {
		if !f.timers[i].due.Equal(f.timers[j].due) {
			return f.timers[i].due.Before(f.timers[j].due)
		}
		return f.timers[i].seq < f.timers[j].seq
	})
	first := f.timers[0]
	if first.due.After(target) {
		return nil
	}
	f.timers = f.timers[1:]
	return first
}
