// Package monitor tracks per-process exit-status subscribers. The Notifier
// feeds it every reaped (pid, exit code) pair; tasks awaiting a process's
// completion subscribe by pid and are resumed with the correct status.
package monitor

import (
	"errors"
	"sync"
)

// ErrClosed is returned by NotifyByPid after Close.
var ErrClosed = errors.New("monitor: closed")

// Monitor fans exit statuses out to pid-keyed subscribers. An exit reported
// before anyone subscribes is retained, so a subscriber arriving after the
// process already died still resolves immediately; reaping and subscription
// race freely in practice.
type Monitor struct {
	mu        sync.Mutex
	closed    bool
	subs      map[int][]chan int
	unclaimed map[int]int
}

// New returns an empty Monitor.
func New() *Monitor {
	return &Monitor{
		subs:      make(map[int][]chan int),
		unclaimed: make(map[int]int),
	}
}

// Subscribe returns a channel that yields the exit code of pid exactly once.
// If the exit was already reported, the code is available immediately. The
// channel is closed without a value if the Monitor is closed first.
func (m *Monitor) Subscribe(pid int) <-chan int {
	ch := make(chan int, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if code, ok := m.unclaimed[pid]; ok {
		delete(m.unclaimed, pid)
		ch <- code
		return ch
	}
	if m.closed {
		close(ch)
		return ch
	}
	m.subs[pid] = append(m.subs[pid], ch)
	return ch
}

// NotifyByPid delivers an exit code to every subscriber of pid, or retains
// it for a future subscriber when there is none yet.
func (m *Monitor) NotifyByPid(pid, exitCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if chans, ok := m.subs[pid]; ok {
		delete(m.subs, pid)
		for _, ch := range chans {
			// Buffered with capacity 1 and each channel receives exactly one
			// value, so this never blocks under the lock.
			ch <- exitCode
		}
		return nil
	}
	m.unclaimed[pid] = exitCode
	return nil
}

// Close rejects further notifications and wakes every remaining subscriber
// with a closed channel. Idempotent.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for pid, chans := range m.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(m.subs, pid)
	}
}
