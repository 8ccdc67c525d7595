package sched

import "fmt"

// Resource is a named shared object guarded by a priority-ceiling
// mutex, per spec.md §5: entering a Resource's critical section logically
// raises the current task to the resource's Ceiling priority, and the
// nested acquisition order is fixed by ascending ceiling (outbound
// queue < interfacing registry < wheel/stepper in the application task
// graph). Violating that order is a programming error, not a runtime
// condition, so Enter panics rather than returning an error — the same
// treatment spec.md §4.1 gives to invalid state-machine transitions.
type Resource struct {
	Name    string
	Ceiling Priority
}

// NewResource creates a named resource with the given priority ceiling.
func NewResource(name string, ceiling Priority) *Resource {
	return &Resource{Name: name, Ceiling: ceiling}
}

// Enter begins r's critical section on s, pushing r's ceiling onto the
// scheduler's lock-order stack, and returns a function that must be
// called to leave it. Because the executor is single-core and
// cooperative, only one task is ever "inside" a lock at a time, so the
// stack models ceiling nesting rather than true mutual exclusion.
func (s *Scheduler) Enter(r *Resource) func() {
	if n := len(s.lockStack); n > 0 && r.Ceiling <= s.lockStack[n-1] {
		panic(fmt.Sprintf("sched: lock order violation entering %q (ceiling %d) while holding ceiling %d",
			r.Name, r.Ceiling, s.lockStack[n-1]))
	}
	s.lockStack = append(s.lockStack, r.Ceiling)

	return func() {
		n := len(s.lockStack)
		if n == 0 || s.lockStack[n-1] != r.Ceiling {
			panic(fmt.Sprintf("sched: unbalanced unlock of %q", r.Name))
		}
		s.lockStack = s.lockStack[:n-1]
	}
}
