// internal/scheduler/scheduler.go
package scheduler

import (
	"errors"
	"sync"
	"time"
)

// Task is a named action with a due time.
// Periodic tasks re-arm relative to when they fired, not to wall-clock boundaries.
type Task struct {
	Name   string
	Period time.Duration // 0 means one-shot
	Run    func(now time.Time)

	next time.Time
	done bool
}

// Scheduler is polled by its owner; it never starts goroutines or timers.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Every registers a periodic task first due one period after start.
func (s *Scheduler) Every(name string, period time.Duration, start time.Time, run func(now time.Time)) error {
	if period <= 0 {
		return errors.New("scheduler: period must be > 0")
	}
	if run == nil {
		return errors.New("scheduler: nil task")
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, &Task{Name: name, Period: period, Run: run, next: start.Add(period)})
	s.mu.Unlock()
	return nil
}

// After registers a one-shot task due at start+delay.
func (s *Scheduler) After(name string, delay time.Duration, start time.Time, run func(now time.Time)) error {
	if run == nil {
		return errors.New("scheduler: nil task")
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, &Task{Name: name, Run: run, next: start.Add(delay)})
	s.mu.Unlock()
	return nil
}

// Poll runs every task whose due time has passed and returns their names.
// A task that is far behind fires once, not once per missed period.
func (s *Scheduler) Poll(now time.Time) []string {
	s.mu.Lock()
	var due []*Task
	for _, t := range s.tasks {
		if t.done || now.Before(t.next) {
			continue
		}
		due = append(due, t)
		if t.Period > 0 {
			t.next = now.Add(t.Period)
		} else {
			t.done = true
		}
	}
	s.mu.Unlock()

	names := make([]string, 0, len(due))
	for _, t := range due {
		t.Run(now)
		names = append(names, t.Name)
	}
	return names
}

// NextDue returns the earliest pending due time, or false when nothing is pending.
func (s *Scheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	found := false
	for _, t := range s.tasks {
		if t.done {
			continue
		}
		if !found || t.next.Before(next) {
			next = t.next
			found = true
		}
	}
	return next, found
}
