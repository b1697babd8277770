package sandboxd

import (
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Handle is the client side of the bootstrap channel: the write end of the
// request pipe and the read end of the response pipe, exclusively owned by
// the main process. Every request written through it is answered with
// exactly one response, in send order; the mutex makes concurrent callers
// queue up rather than interleave frames.
type Handle struct {
	mu     sync.Mutex
	reqW   int
	respR  int
	closed bool
}

// Create asks the subreaper service for one sandbox leader anchored in fresh
// IPC, UTS, and PID namespaces, joined to the network namespace at netnsPath
// when non-empty. It returns the leader's pid as seen from this process's
// namespace, usable directly for kill/wait and for attaching workload
// processes to the leader's namespaces.
//
// Create blocks until the service answers and supports no cancellation; a
// request, once sent, always runs to completion. Callers on a cooperative
// scheduler should run it on a dedicated goroutine so it cannot stall
// unrelated work. A channel failure after the request was sent closes the
// handle, since request/response pairing can no longer be trusted.
func (h *Handle) Create(id, netnsPath string) (int, error) {
	frame, err := encodeRequest(id, netnsPath)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrHandleClosed
	}

	if err := writeFull(h.reqW, frame[:]); err != nil {
		h.teardownLocked()
		return 0, fmt.Errorf("send create request: %w", err)
	}
	var resp [responseFrameSize]byte
	if err := readFull(h.respR, resp[:]); err != nil {
		// The request went out but its answer never arrived; the channel has
		// lost request/response pairing and no later call can trust it.
		h.teardownLocked()
		return 0, fmt.Errorf("read create response: %w", err)
	}

	v := decodeResponse(resp)
	if v <= 0 {
		return 0, &CreateError{SandboxID: id, Errno: syscall.Errno(-v)}
	}
	return int(v), nil
}

// Close releases both pipe ends. The subreaper service observes the closed
// request pipe and exits; any Create blocked on a response observes channel
// closure. Close is idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	errW := unix.Close(h.reqW)
	errR := unix.Close(h.respR)
	if errW != nil {
		return errW
	}
	return errR
}

// teardownLocked closes the handle after a mid-request channel failure.
// Later calls observe ErrHandleClosed instead of reading a stale response.
// Callers must hold mu.
func (h *Handle) teardownLocked() {
	h.closed = true
	unix.Close(h.reqW)
	unix.Close(h.respR)
}
