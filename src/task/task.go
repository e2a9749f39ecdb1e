// Package task implements the typed state bag and ordered task sequence that
// glue the resolver, downloader, modded-installer, and auth subsystems
// together.
package task

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/events"
)

// Watcher receives progress events pushed by tasks as they execute.
type Watcher = events.Watcher

// State is a typed, keyed container: each key is a runtime type identity,
// each value a singleton instance of that type. Not thread-safe — tasks run
// sequentially on one goroutine.
type State struct {
	values map[reflect.Type]any
}

// NewState creates an empty state bag.
func NewState() *State {
	return &State{values: make(map[reflect.Type]any)}
}

// Insert stores v keyed by its dynamic type. Insertion is exclusive: calling
// Insert twice for the same type is a programmer error and panics.
func Insert[T any](s *State, v T) {
	t := reflect.TypeOf(v)
	if _, ok := s.values[t]; ok {
		panic(errors.Errorf("task: state already holds a value of type %s", t))
	}
	s.values[t] = v
}

// Replace stores v keyed by its dynamic type, overwriting any existing value.
// Used by the modded installer, which replaces the resolved version metadata
// wholesale for pre-modern installers.
func Replace[T any](s *State, v T) {
	s.values[reflect.TypeOf(v)] = v
}

// Get returns the value of type T, if present.
func Get[T any](s *State) (T, bool) {
	var zero T
	t := reflect.TypeOf(zero)
	v, ok := s.values[t]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Require returns the value of type T, failing if absent.
func Require[T any](s *State) (T, error) {
	v, ok := Get[T](s)
	if !ok {
		var zero T
		return zero, errors.Errorf("task: state is missing required value of type %s", reflect.TypeOf(zero))
	}
	return v, nil
}

// Task is one idempotent step of a Sequence. Implementations read from and
// write to the shared State and may emit events through the Watcher.
type Task interface {
	Execute(ctx context.Context, state *State, watcher Watcher) error
}

// Sequence is a strictly ordered list of tasks, editable by type identity
// before it runs.
type Sequence struct {
	tasks []Task
}

// NewSequence builds a Sequence from an initial ordered task list.
func NewSequence(tasks ...Task) *Sequence {
	return &Sequence{tasks: append([]Task(nil), tasks...)}
}

// Tasks returns the current ordered task list.
func (s *Sequence) Tasks() []Task {
	return append([]Task(nil), s.tasks...)
}

// PrependBefore inserts t immediately before the first task whose dynamic
// type matches before. If no such task exists, t is inserted at the front.
func (s *Sequence) PrependBefore(t Task, before Task) {
	target := reflect.TypeOf(before)
	for i, existing := range s.tasks {
		if reflect.TypeOf(existing) == target {
			s.tasks = append(s.tasks[:i], append([]Task{t}, s.tasks[i:]...)...)
			return
		}
	}
	s.tasks = append([]Task{t}, s.tasks...)
}

// AppendAfter inserts t immediately after the last task whose dynamic type
// matches after. If no such task exists, t is appended at the end.
func (s *Sequence) AppendAfter(t Task, after Task) {
	target := reflect.TypeOf(after)
	for i := len(s.tasks) - 1; i >= 0; i-- {
		if reflect.TypeOf(s.tasks[i]) == target {
			idx := i + 1
			s.tasks = append(s.tasks[:idx], append([]Task{t}, s.tasks[idx:]...)...)
			return
		}
	}
	s.tasks = append(s.tasks, t)
}

// Run executes every task in order, stopping and returning the first error.
func (s *Sequence) Run(ctx context.Context, state *State, watcher Watcher) error {
	if watcher == nil {
		watcher = events.NopWatcher
	}
	for _, t := range s.tasks {
		if err := t.Execute(ctx, state, watcher); err != nil {
			return errors.Wrapf(err, "task %T failed", t)
		}
	}
	return nil
}
