package ledger

import "sync"

// Status is the observable state of a repository: whether a store call is
// in flight and the message of the last failure.
type Status struct {
	IsLoading bool
	Error     string
}

type state struct {
	mu      sync.Mutex
	pending int
	err     string
}

// begin marks a call in flight and clears the previous error.
func (s *state) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
	s.err = ""
}

// end records err's message, verbatim, when non-nil.
func (s *state) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
	}
	if err != nil {
		s.err = err.Error()
	}
}

// fail records a failure that did not start a store call.
func (s *state) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err.Error()
}

func (s *state) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{IsLoading: s.pending > 0, Error: s.err}
}
