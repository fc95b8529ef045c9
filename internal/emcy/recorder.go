package emcy

import "sync"

// Recorder is a test double that records every code it receives.
// It satisfies both Sink and Transport.
type Recorder struct {
	mu     sync.Mutex
	Codes  []Code
	Events []Event

	// PublishError, if set, is returned by PublishEMCY.
	PublishError error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emergency records code.
func (r *Recorder) Emergency(code Code) {
	r.mu.Lock()
	r.Codes = append(r.Codes, code)
	r.mu.Unlock()
}

// PublishEMCY records ev.
func (r *Recorder) PublishEMCY(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PublishError != nil {
		return r.PublishError
	}
	r.Events = append(r.Events, ev)
	return nil
}

// Count returns how many times code was received through Emergency.
func (r *Recorder) Count(code Code) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Codes {
		if c == code {
			n++
		}
	}
	return n
}

// Len returns the number of codes received through Emergency.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Codes)
}

// Reset clears recorded codes and events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.Codes = nil
	r.Events = nil
	r.PublishError = nil
	r.mu.Unlock()
}
