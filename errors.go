package sandboxd

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors returned by the sandboxd package.
var (
	// ErrChannelClosed indicates the peer closed its end of a pipe channel
	// before the full frame was transferred.
	ErrChannelClosed = errors.New("sandboxd: pipe channel closed by peer")

	// ErrSandboxIDTooLong indicates a sandbox identifier does not fit in the
	// 64-byte identifier region of a request frame.
	ErrSandboxIDTooLong = errors.New("sandboxd: sandbox id exceeds 64 bytes")

	// ErrSandboxIDInvalid indicates a sandbox identifier contains a NUL
	// byte, which the zero-padded identifier region cannot represent.
	ErrSandboxIDInvalid = errors.New("sandboxd: sandbox id contains NUL byte")

	// ErrNetnsPathTooLong indicates a network-namespace path does not fit in
	// the path region of a request frame.
	ErrNetnsPathTooLong = errors.New("sandboxd: netns path does not fit in request frame")

	// ErrNetnsPathInvalid indicates a network-namespace path contains a NUL
	// byte, which the NUL-terminated path region cannot represent.
	ErrNetnsPathInvalid = errors.New("sandboxd: netns path contains NUL byte")

	// ErrHandleClosed indicates the bootstrap handle has already been closed.
	ErrHandleClosed = errors.New("sandboxd: bootstrap handle already closed")

	// ErrCreateFailed indicates the subreaper service could not create a
	// sandbox leader process.
	ErrCreateFailed = errors.New("sandboxd: sandbox creation failed")

	// ErrConfigInvalid indicates the provided configuration failed validation.
	ErrConfigInvalid = errors.New("sandboxd: invalid configuration")
)

// CreateError is returned by Handle.Create when the subreaper service answers
// a request with a failure response. It wraps ErrCreateFailed so that
// errors.Is(err, ErrCreateFailed) still works.
type CreateError struct {
	// SandboxID is the identifier of the sandbox that could not be created.
	SandboxID string
	// Errno is the system error reported by the service, if one was
	// identifiable; 0 otherwise.
	Errno syscall.Errno
}

func (e *CreateError) Error() string {
	if e.Errno == 0 {
		return fmt.Sprintf("%s: sandbox %q", ErrCreateFailed.Error(), e.SandboxID)
	}
	return fmt.Sprintf("%s: sandbox %q: %s", ErrCreateFailed.Error(), e.SandboxID, e.Errno.Error())
}

func (e *CreateError) Unwrap() error {
	return ErrCreateFailed
}
