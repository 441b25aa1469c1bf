package form

import (
	"sync"
	"time"
)

// Feedback is the transient success notice: a message plus a visibility
// flag. It auto-expires after a fixed duration or on explicit dismissal, and
// is independent of the error bag.
type Feedback struct {
	mu      sync.Mutex
	msg     string
	visible bool
	ttl     time.Duration
	gen     uint64
	timer   *time.Timer
}

// NewFeedback creates a notice that stays visible for ttl after each Show.
func NewFeedback(ttl time.Duration) *Feedback {
	return &Feedback{ttl: ttl}
}

// Show makes the notice visible with the given message and arms the expiry
// timer. Showing again restarts the clock; the generation counter keeps a
// stale timer from clearing a newer message.
func (f *Feedback) Show(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msg = msg
	f.visible = true
	f.gen++
	gen := f.gen
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.ttl, func() { f.expire(gen) })
}

func (f *Feedback) expire(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return
	}
	f.visible = false
	f.msg = ""
}

// Dismiss hides the notice immediately.
func (f *Feedback) Dismiss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
	}
	f.visible = false
	f.msg = ""
}

// Current returns the message and whether it is visible.
func (f *Feedback) Current() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msg, f.visible
}
