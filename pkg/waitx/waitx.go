package waitx

import (
	"sync"
	"time"
)

// DefaultPoll bounds the worst-case wake latency of WaitUntil.
const DefaultPoll = 100 * time.Millisecond

// Signal is a boolean condition shared by reference between a room's
// round loop and the event handler that flips it.
type Signal struct {
	mu  sync.Mutex
	set bool
}

func (s *Signal) Set() {
	s.mu.Lock()
	s.set = true
	s.mu.Unlock()
}

func (s *Signal) Clear() {
	s.mu.Lock()
	s.set = false
	s.mu.Unlock()
}

func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Counter is a shared integer used for "all expected responses arrived"
// gates, e.g. preempting a deadline once 2N answers are in.
type Counter struct {
	mu sync.Mutex
	n  int
}

func (c *Counter) Add(delta int) {
	c.mu.Lock()
	c.n += delta
	c.mu.Unlock()
}

func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *Counter) Reset() {
	c.mu.Lock()
	c.n = 0
	c.mu.Unlock()
}

// Options controls a WaitUntil call.
type Options struct {
	// Timeout bounds the wait; zero means wait indefinitely.
	Timeout time.Duration
	// OnTimeout fires once when the timeout elapses.
	OnTimeout func()
	// ResolveOnTimeout makes the wait return once the timeout has
	// elapsed; when false the wait keeps pending until the condition
	// holds, with OnTimeout still fired at the deadline.
	ResolveOnTimeout bool
	// Reset clears the signal after successful consumption, making the
	// wait point reusable. Ignored by WaitUntilFunc.
	Reset bool
	// Poll overrides DefaultPoll.
	Poll time.Duration
}

// WaitFor suspends the calling round loop for at least d.
func WaitFor(d time.Duration) {
	time.Sleep(d)
}

// WaitUntil blocks until sig becomes set, polling at the configured
// interval. Returns true when the signal was observed, false when the
// wait resolved by timeout instead.
func WaitUntil(sig *Signal, opts Options) bool {
	ok := WaitUntilFunc(sig.IsSet, opts)
	if ok && opts.Reset {
		sig.Clear()
	}
	return ok
}

// WaitUntilFunc is WaitUntil over an arbitrary condition.
func WaitUntilFunc(cond func() bool, opts Options) bool {
	poll := opts.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	timedOut := false

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if cond() {
			return true
		}

		if !deadline.IsZero() && !timedOut && !time.Now().Before(deadline) {
			timedOut = true
			if opts.OnTimeout != nil {
				opts.OnTimeout()
			}
			if opts.ResolveOnTimeout {
				return false
			}
		}

		<-ticker.C
	}
}
