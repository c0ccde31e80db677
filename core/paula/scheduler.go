package paula

import (
	"sort"
)

// Loader reads and scans the files of one document on behalf of a
// Scheduler.
type Loader interface {
	// Prepare reads the named file and returns the other files it
	// references. The scheduler scans those first.
	Prepare(name string) ([]string, error)
	// Scan feeds a prepared file to the builder.
	Scan(name string) error
}

type fileState int

const (
	stateUnknown fileState = iota
	statePending
	stateOpen
	stateDone
)

// Scheduler loads the files of a document so that every file is scanned
// exactly once and, cycles aside, after the files it references.
//
// Loading is a depth-first walk over an explicit stack. A file is
// prepared, each of its unmet references is pushed and loaded, then the
// file itself is scanned. A reference to a file that is already open
// further down the stack is a cycle and is not waited on.
type Scheduler struct {
	loader  Loader
	state   map[string]fileState
	pending []string
}

// NewScheduler returns a scheduler driving loader.
func NewScheduler(loader Loader) *Scheduler {
	return &Scheduler{loader: loader, state: make(map[string]fileState)}
}

// Schedule adds files to the pending set and loads until it is empty.
func (s *Scheduler) Schedule(files []string) error {
	for _, f := range files {
		if s.state[f] == stateUnknown {
			s.state[f] = statePending
			s.pending = append(s.pending, f)
		}
	}
	for len(s.pending) > 0 {
		f := s.pending[0]
		s.pending = s.pending[1:]
		if err := s.EnsureLoaded(f); err != nil {
			return err
		}
	}
	return nil
}

// EnsureLoaded loads file and everything it references unless it is
// already done or currently being loaded.
func (s *Scheduler) EnsureLoaded(file string) error {
	switch s.state[file] {
	case stateDone, stateOpen:
		return nil
	}

	type frame struct {
		name string
		deps []string
		next int
	}
	var stack []*frame
	push := func(name string) error {
		deps, err := s.loader.Prepare(name)
		if err != nil {
			return err
		}
		s.state[name] = stateOpen
		stack = append(stack, &frame{name: name, deps: deps})
		return nil
	}

	if err := push(file); err != nil {
		return err
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.deps) {
			dep := top.deps[top.next]
			top.next++
			switch s.state[dep] {
			case stateOpen, stateDone:
				continue
			}
			if err := push(dep); err != nil {
				return err
			}
			continue
		}
		stack = stack[:len(stack)-1]
		if err := s.loader.Scan(top.name); err != nil {
			return err
		}
		s.state[top.name] = stateDone
	}
	return nil
}

// Done reports whether file has been scanned.
func (s *Scheduler) Done(file string) bool {
	return s.state[file] == stateDone
}

// Pending returns the files scheduled but not yet loaded, sorted.
func (s *Scheduler) Pending() []string {
	var out []string
	for f, st := range s.state {
		if st == statePending {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Loaded returns every scanned file, sorted.
func (s *Scheduler) Loaded() []string {
	var out []string
	for f, st := range s.state {
		if st == stateDone {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
