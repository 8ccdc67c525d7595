// Package sched implements a single-core, priority-ordered
// cooperative task executor. Each Spawn, SpawnAfter, and SpawnAt call
// allocates its Task on the heap; the executor is not allocation-free.
//
// It is the generalization of core/scheduler.go's timer
// list (sorted singly-linked list, signed-wraparound comparison,
// "timer in the past" overrun detection) from a pure timer queue into
// a priority task executor: each Task carries a Priority in addition
// to its wake time. Dispatch runs due tasks in wake-time order, and
// among tasks due at the same instant the highest priority runs first;
// a due task with an earlier wake time runs before a higher-priority
// task that woke later.
package sched

import (
	"errors"
	"time"
)

// Priority orders tasks when more than one is due at the same instant.
// Higher values run first. The application task graph assigns the
// stepper pulse task the highest priority in the system.
type Priority uint8

const (
	PriorityIdle       Priority = 0
	PriorityUART       Priority = 10
	PriorityI2C        Priority = 20
	PriorityController Priority = 30
	PriorityStepper    Priority = 255
)

// TaskFunc is a single non-blocking invocation of a task. It performs
// at most one unit of work and returns the delay until it should run
// again; reschedule=false means the task has no further pending work
// (the stepper's Idle-state return, for example).
type TaskFunc func(now time.Time) (next time.Duration, reschedule bool)

// Task is one entry in the executor's schedule.
type Task struct {
	Name     string
	Priority Priority
	Handler  TaskFunc

	wake time.Time
	next *Task
}

// ErrDeadlineMissed is reported when a task's wake time has fallen
// further behind the current time than OverrunThreshold allows,
// mirroring core/scheduler.go's "Rescheduled timer in the past" shutdown
// condition (core/scheduler.go's TimerPastThreshold check).
var ErrDeadlineMissed = errors.New("sched: task deadline missed")

// OverrunThreshold is the maximum allowed lateness before a dispatch
// is treated as a missed real-time deadline rather than ordinary
// scheduling jitter.
const OverrunThreshold = 100 * time.Millisecond

// Scheduler holds the sorted list of pending tasks and the resource
// lock-order stack used by Resource (see resource.go).
type Scheduler struct {
	head *Task

	lockStack []Priority
	diag      Diagnostics

	onOverrun func(task string, lateBy time.Duration)
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// OnOverrun registers a callback invoked whenever Dispatch detects a
// task running more than OverrunThreshold behind schedule. It replaces
// core/scheduler.go's hard TryShutdown("Rescheduled timer in the past") call
// with a reporting hook appropriate to a host-testable library.
func (s *Scheduler) OnOverrun(fn func(task string, lateBy time.Duration)) {
	s.onOverrun = fn
}

// Spawn schedules fn to run as soon as Dispatch is next called.
func (s *Scheduler) Spawn(name string, priority Priority, fn TaskFunc) *Task {
	return s.SpawnAfter(name, priority, 0, fn)
}

// SpawnAfter schedules fn to run after delay has elapsed, measured
// from the wall-clock time.Now() at the moment of this call. Callers
// that need a wake time on the same clock they pass to Dispatch use
// SpawnAt instead.
func (s *Scheduler) SpawnAfter(name string, priority Priority, delay time.Duration, fn TaskFunc) *Task {
	t := &Task{Name: name, Priority: priority, Handler: fn}
	s.scheduleAt(t, time.Now().Add(delay))
	return t
}

// SpawnAt schedules fn to run at an explicit absolute time. This is
// the primitive the stepper's re-arm hook and the application task
// graph use, since both already compute absolute wake instants.
func (s *Scheduler) SpawnAt(name string, priority Priority, at time.Time, fn TaskFunc) *Task {
	t := &Task{Name: name, Priority: priority, Handler: fn}
	s.scheduleAt(t, at)
	return t
}

func (s *Scheduler) scheduleAt(t *Task, at time.Time) {
	t.wake = at
	s.insert(t)
}

// insert places t in the sorted schedule. Entries with an earlier wake
// time come first; entries with the same wake time are ordered with
// higher priority first, exactly the tie-break Dispatch relies on.
func (s *Scheduler) insert(t *Task) {
	if s.head == nil || before(t, s.head) {
		t.next = s.head
		s.head = t
		return
	}
	cur := s.head
	for cur.next != nil && !before(t, cur.next) {
		cur = cur.next
	}
	t.next = cur.next
	cur.next = t
}

func before(a, b *Task) bool {
	if a.wake.Equal(b.wake) {
		return a.Priority > b.Priority
	}
	return a.wake.Before(b.wake)
}

// Dispatch runs every task whose wake time is at or before now, in
// schedule order (earliest wake, then highest priority), re-inserting
// any that request a reschedule. It returns the number of tasks run.
//
// Suspension only happens between calls to Dispatch: each Handler
// invocation runs to completion without blocking, per spec.md §5.
func (s *Scheduler) Dispatch(now time.Time) int {
	ran := 0
	for s.head != nil && !s.head.wake.After(now) {
		t := s.head
		s.head = t.next
		t.next = nil

		lateBy := now.Sub(t.wake)
		if lateBy > OverrunThreshold {
			s.diag.record(evtDeadlineMissed, t.Name, lateBy)
			if s.onOverrun != nil {
				s.onOverrun(t.Name, lateBy)
			}
		}

		next, reschedule := t.Handler(now)
		ran++
		if reschedule {
			s.scheduleAt(t, now.Add(next))
		}

		// Re-read "now" is the caller's job in the cooperative model:
		// a handler never blocks, so now does not change mid-loop.
	}
	return ran
}

// Pending returns the number of tasks currently scheduled.
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.head; t != nil; t = t.next {
		n++
	}
	return n
}

// NextWake returns the wake time of the earliest pending task.
func (s *Scheduler) NextWake() (time.Time, bool) {
	if s.head == nil {
		return time.Time{}, false
	}
	return s.head.wake, true
}

// Diagnostics exposes the ring-buffer overrun log for post-mortem
// inspection, the generalization of core/debug.go's timing ring.
func (s *Scheduler) Diagnostics() []OverrunEvent {
	return s.diag.events()
}
