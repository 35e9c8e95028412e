// Package scheduler runs deferred and repeating callbacks on a virtual clock that the match
// loop advances once per tick. Callbacks run on the goroutine that calls Advance.
package scheduler

import "time"

// Scheduler schedules cancellable callbacks.
type Scheduler interface {
	// Schedule runs fn once after delay.
	Schedule(delay time.Duration, fn func()) *Task
	// ScheduleRepeating runs fn every interval, first after one interval.
	ScheduleRepeating(interval time.Duration, fn func()) *Task
	// Cancel stops a task. Cancelling a nil, cancelled or fired task does nothing.
	Cancel(task *Task)
	// Now returns the scheduler's current time.
	Now() time.Time
}

type taskState int

const (
	statePending taskState = iota
	stateCancelled
	stateDone
)

// Task is a handle to a scheduled callback.
type Task struct {
	id       uint64
	due      time.Duration
	interval time.Duration
	fn       func()
	state    taskState
	owner    *Ticker
}

// Active reports whether the task can still fire.
func (t *Task) Active() bool {
	return t != nil && t.state == statePending
}

// Cancel stops the task.
func (t *Task) Cancel() {
	if t == nil || t.state != statePending {
		return
	}
	t.state = stateCancelled
	if t.owner != nil {
		delete(t.owner.tasks, t.id)
	}
}

// minInterval keeps a zero interval from spinning inside a single Advance.
const minInterval = time.Millisecond

// Ticker is a Scheduler driven by explicit Advance calls.
type Ticker struct {
	origin  time.Time
	elapsed time.Duration
	seq     uint64
	tasks   map[uint64]*Task
}

var _ Scheduler = (*Ticker)(nil)

// NewTicker returns a scheduler whose clock starts at origin.
func NewTicker(origin time.Time) *Ticker {
	return &Ticker{origin: origin, tasks: make(map[uint64]*Task)}
}

func (s *Ticker) Schedule(delay time.Duration, fn func()) *Task {
	if delay < 0 {
		delay = 0
	}
	return s.add(delay, 0, fn)
}

func (s *Ticker) ScheduleRepeating(interval time.Duration, fn func()) *Task {
	if interval < minInterval {
		interval = minInterval
	}
	return s.add(interval, interval, fn)
}

func (s *Ticker) Cancel(task *Task) {
	task.Cancel()
}

func (s *Ticker) Now() time.Time {
	return s.origin.Add(s.elapsed)
}

// Pending returns the number of tasks that can still fire.
func (s *Ticker) Pending() int {
	return len(s.tasks)
}

// Advance moves the clock forward by d and runs every task that falls due, in due order.
// Tasks due at the same instant run in the order they were scheduled. Tasks scheduled by a
// callback run in the same Advance if they fall due before its end. It returns the number of
// callbacks run.
func (s *Ticker) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	target := s.elapsed + d
	fired := 0
	for {
		next := s.nextDue(target)
		if next == nil {
			break
		}
		s.elapsed = next.due
		if next.interval > 0 {
			next.due += next.interval
		} else {
			next.state = stateDone
			delete(s.tasks, next.id)
		}
		next.fn()
		fired++
	}
	s.elapsed = target
	return fired
}

func (s *Ticker) add(after, interval time.Duration, fn func()) *Task {
	s.seq++
	t := &Task{
		id:       s.seq,
		due:      s.elapsed + after,
		interval: interval,
		fn:       fn,
		owner:    s,
	}
	s.tasks[t.id] = t
	return t
}

func (s *Ticker) nextDue(limit time.Duration) *Task {
	var best *Task
	for _, t := range s.tasks {
		if t.due > limit {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.id < best.id) {
			best = t
		}
	}
	return best
}
